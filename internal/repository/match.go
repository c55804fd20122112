package repository

import (
	"context"
	"fmt"

	"sub2play/internal/domain"
	"sub2play/internal/kv"

	"github.com/rs/zerolog"
)

type MatchRepository struct {
	store  kv.Store
	logger zerolog.Logger
}

func NewMatchRepository(store kv.Store, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{store: store, logger: logger}
}

// CreateGlobalMatch writes the shared match record if no writer got there
// first. AlreadyExists is a normal outcome for every caller after the first.
func (r *MatchRepository) CreateGlobalMatch(ctx context.Context, match *domain.GlobalMatch) (kv.PutResult, error) {
	attrs := kv.Attrs{
		"GameStartTimestamp":  match.GameStartTimestamp,
		"GameDurationSeconds": match.GameDurationSeconds,
		"QueueId":             int64(match.QueueID),
		"CreatedAtEpoch":      match.CreatedAtEpoch,
	}
	if match.RawJSON != "" {
		attrs["RawJson"] = match.RawJSON
	}

	result, err := r.store.Put(ctx, matchPK(match.MatchID), metaSK, attrs, true)
	if err != nil {
		return result, fmt.Errorf("create global match: %w", err)
	}
	return result, nil
}

func (r *MatchRepository) PutUserMatchStats(ctx context.Context, stats *domain.UserMatchStats) error {
	attrs := kv.Attrs{
		"MatchId":           stats.MatchID,
		"ChampionId":        int64(stats.ChampionID),
		"ChampionName":      stats.ChampionName,
		"Kills":             int64(stats.Kills),
		"Deaths":            int64(stats.Deaths),
		"Assists":           int64(stats.Assists),
		"CreepScore":        int64(stats.CreepScore),
		"GoldEarned":        int64(stats.GoldEarned),
		"DamageToChampions": stats.DamageToChampions,
		"VisionScore":       int64(stats.VisionScore),
		"Win":               stats.Win,
		"QueueId":           int64(stats.QueueID),
		"RecordedAtEpoch":   stats.RecordedAtEpoch,
	}
	if _, err := r.store.Put(ctx, userPK(stats.UserID), userMatchSK(stats.MatchID), attrs, false); err != nil {
		return fmt.Errorf("put user match stats: %w", err)
	}
	return nil
}

// ExistsUserMatch is the ingestion dedup gate, checked before the match
// payload fetch.
func (r *MatchRepository) ExistsUserMatch(ctx context.Context, userID, matchID string) (bool, error) {
	attrs, err := r.store.Get(ctx, userPK(userID), userMatchSK(matchID))
	if err != nil {
		return false, fmt.Errorf("check user match: %w", err)
	}
	return attrs != nil, nil
}

func (r *MatchRepository) ListUserMatchStats(ctx context.Context, userID string, count int) ([]domain.UserMatchStats, error) {
	items, err := r.store.QueryByPrefix(ctx, userPK(userID), "MATCH#")
	if err != nil {
		return nil, fmt.Errorf("list user match stats: %w", err)
	}

	var list []domain.UserMatchStats
	for _, item := range items {
		if count > 0 && len(list) == count {
			break
		}
		dmg, _ := item.Attrs.Int64("DamageToChampions")
		recorded, _ := item.Attrs.Int64("RecordedAtEpoch")
		list = append(list, domain.UserMatchStats{
			UserID:            userID,
			MatchID:           item.Attrs.String("MatchId"),
			ChampionID:        item.Attrs.Int("ChampionId"),
			ChampionName:      item.Attrs.String("ChampionName"),
			Kills:             item.Attrs.Int("Kills"),
			Deaths:            item.Attrs.Int("Deaths"),
			Assists:           item.Attrs.Int("Assists"),
			CreepScore:        item.Attrs.Int("CreepScore"),
			GoldEarned:        item.Attrs.Int("GoldEarned"),
			DamageToChampions: dmg,
			VisionScore:       item.Attrs.Int("VisionScore"),
			Win:               item.Attrs.Bool("Win"),
			QueueID:           item.Attrs.Int("QueueId"),
			RecordedAtEpoch:   recorded,
		})
	}
	return list, nil
}
