package repository

import (
	"context"
	"fmt"
	"time"

	"sub2play/internal/domain"
	"sub2play/internal/kv"

	"github.com/rs/zerolog"
)

type RiotProfileRepository struct {
	store  kv.Store
	logger zerolog.Logger
}

func NewRiotProfileRepository(store kv.Store, logger zerolog.Logger) *RiotProfileRepository {
	return &RiotProfileRepository{store: store, logger: logger}
}

// GetProfile returns the linked riot profile, or nil when the user has no
// link. Some user records live under the username partition, so a miss on
// the id partition falls back to a filtered scan on the Id attribute.
func (r *RiotProfileRepository) GetProfile(ctx context.Context, userID string) (*domain.RiotProfile, error) {
	attrs, err := r.store.Get(ctx, userPK(userID), metaSK)
	if err != nil {
		return nil, fmt.Errorf("get riot profile: %w", err)
	}

	if attrs == nil {
		items, err := r.store.ScanWithFilter(ctx, "Id", userID, 1)
		if err != nil {
			return nil, fmt.Errorf("get riot profile: %w", err)
		}
		if len(items) == 0 {
			return nil, nil
		}
		attrs = items[0].Attrs
	}

	puuid := attrs.String("RiotPuuid")
	if puuid == "" {
		return nil, nil
	}

	iconID := attrs.Int("RiotProfileIconId")
	level, _ := attrs.Int64("RiotSummonerLevel")
	lastSync, _ := attrs.Int64("LastRiotProfileSyncAtEpoch")
	return &domain.RiotProfile{
		UserID:          userID,
		Puuid:           puuid,
		GameName:        attrs.String("RiotGameName"),
		TagLine:         attrs.String("RiotTagline"),
		SummonerID:      attrs.String("RiotSummonerId"),
		ProfileIconID:   iconID,
		SummonerLevel:   level,
		LastSyncAtEpoch: lastSync,
	}, nil
}

// UpsertProfile merges riot attributes into the user item without clobbering
// unrelated attributes such as the password hash.
func (r *RiotProfileRepository) UpsertProfile(ctx context.Context, profile *domain.RiotProfile) error {
	set := kv.Attrs{
		"RiotPuuid":                  profile.Puuid,
		"RiotGameName":               profile.GameName,
		"RiotTagline":                profile.TagLine,
		"LastRiotProfileSyncAtEpoch": time.Now().Unix(),
	}
	if profile.SummonerID != "" {
		set["RiotSummonerId"] = profile.SummonerID
	}
	if profile.ProfileIconID != 0 {
		set["RiotProfileIconId"] = int64(profile.ProfileIconID)
	}
	if profile.SummonerLevel != 0 {
		set["RiotSummonerLevel"] = profile.SummonerLevel
	}

	if _, err := r.store.ConditionalUpdate(ctx, userPK(profile.UserID), metaSK, set, nil, nil); err != nil {
		return fmt.Errorf("upsert riot profile: %w", err)
	}
	return nil
}

// UpsertRankedEntry overwrites the per-queue ranked snapshot wholesale.
func (r *RiotProfileRepository) UpsertRankedEntry(ctx context.Context, entry *domain.RankedEntry) error {
	attrs := kv.Attrs{
		"QueueType":         entry.QueueType,
		"Tier":              entry.Tier,
		"Rank":              entry.Rank,
		"LeaguePoints":      int64(entry.LeaguePoints),
		"Wins":              int64(entry.Wins),
		"Losses":            int64(entry.Losses),
		"LastSyncedAtEpoch": entry.LastSyncedAtEpoch,
	}
	if _, err := r.store.Put(ctx, userPK(entry.UserID), rankSK(entry.QueueType), attrs, false); err != nil {
		return fmt.Errorf("upsert ranked entry: %w", err)
	}
	return nil
}

func (r *RiotProfileRepository) ListRankedEntries(ctx context.Context, userID string) ([]domain.RankedEntry, error) {
	items, err := r.store.QueryByPrefix(ctx, userPK(userID), "RANK#")
	if err != nil {
		return nil, fmt.Errorf("list ranked entries: %w", err)
	}

	var entries []domain.RankedEntry
	for _, item := range items {
		lastSynced, _ := item.Attrs.Int64("LastSyncedAtEpoch")
		entries = append(entries, domain.RankedEntry{
			UserID:            userID,
			QueueType:         item.Attrs.String("QueueType"),
			Tier:              item.Attrs.String("Tier"),
			Rank:              item.Attrs.String("Rank"),
			LeaguePoints:      item.Attrs.Int("LeaguePoints"),
			Wins:              item.Attrs.Int("Wins"),
			Losses:            item.Attrs.Int("Losses"),
			LastSyncedAtEpoch: lastSynced,
		})
	}
	return entries, nil
}

// UpsertChampionMastery overwrites the per-champion snapshot wholesale.
func (r *RiotProfileRepository) UpsertChampionMastery(ctx context.Context, mastery *domain.ChampionMastery) error {
	attrs := kv.Attrs{
		"ChampionId":        int64(mastery.ChampionID),
		"ChampionPoints":    mastery.ChampionPoints,
		"ChampionLevel":     int64(mastery.ChampionLevel),
		"LastPlayTimeEpoch": mastery.LastPlayTimeEpoch,
		"ChestGranted":      mastery.ChestGranted,
		"LastSyncedAtEpoch": mastery.LastSyncedAtEpoch,
	}
	if _, err := r.store.Put(ctx, userPK(mastery.UserID), masterySK(mastery.ChampionID), attrs, false); err != nil {
		return fmt.Errorf("upsert champion mastery: %w", err)
	}
	return nil
}

func (r *RiotProfileRepository) ListChampionMasteries(ctx context.Context, userID string) ([]domain.ChampionMastery, error) {
	items, err := r.store.QueryByPrefix(ctx, userPK(userID), "MASTERY#")
	if err != nil {
		return nil, fmt.Errorf("list champion masteries: %w", err)
	}

	var masteries []domain.ChampionMastery
	for _, item := range items {
		points, _ := item.Attrs.Int64("ChampionPoints")
		lastPlay, _ := item.Attrs.Int64("LastPlayTimeEpoch")
		lastSynced, _ := item.Attrs.Int64("LastSyncedAtEpoch")
		masteries = append(masteries, domain.ChampionMastery{
			UserID:            userID,
			ChampionID:        item.Attrs.Int("ChampionId"),
			ChampionPoints:    points,
			ChampionLevel:     item.Attrs.Int("ChampionLevel"),
			LastPlayTimeEpoch: lastPlay,
			ChestGranted:      item.Attrs.Bool("ChestGranted"),
			LastSyncedAtEpoch: lastSynced,
		})
	}
	return masteries, nil
}
