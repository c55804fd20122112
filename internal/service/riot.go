package service

import (
	"context"
	"time"

	"sub2play/internal/apperr"
	"sub2play/internal/constants"
	"sub2play/internal/domain"
	"sub2play/internal/kv"
	"sub2play/internal/repository"
	"sub2play/internal/riot"

	"github.com/rs/zerolog"
)

// RiotAPI is the slice of the provider client the orchestrator consumes.
type RiotAPI interface {
	ResolveAccount(ctx context.Context, gameName, tagLine string) (*riot.Account, error)
	GetSummoner(ctx context.Context, puuid string) (*riot.Summoner, error)
	GetRankedEntries(ctx context.Context, summonerID string) ([]riot.RankedEntry, error)
	GetChampionMasteries(ctx context.Context, puuid string) ([]riot.ChampionMastery, error)
	ListMatchIDs(ctx context.Context, puuid string, start, count int) ([]string, error)
	GetMatch(ctx context.Context, matchID string) ([]byte, error)
}

type RiotService struct {
	client      RiotAPI
	profileRepo *repository.RiotProfileRepository
	matchRepo   *repository.MatchRepository
	logger      zerolog.Logger
}

func NewRiotService(client RiotAPI, profileRepo *repository.RiotProfileRepository, matchRepo *repository.MatchRepository, logger zerolog.Logger) *RiotService {
	return &RiotService{client: client, profileRepo: profileRepo, matchRepo: matchRepo, logger: logger}
}

// LinkAccount resolves the riot identity and upserts the profile. A summoner
// record is optional; the account itself is not.
func (s *RiotService) LinkAccount(ctx context.Context, userID, gameName, tagLine string) (*domain.RiotProfile, error) {
	if userID == "" || gameName == "" || tagLine == "" {
		return nil, apperr.New(apperr.KindValidation, "user id, game name and tag line required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	account, err := s.client.ResolveAccount(ctx, gameName, tagLine)
	if err != nil {
		return nil, err
	}

	summoner, err := s.client.GetSummoner(ctx, account.Puuid)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	profile := &domain.RiotProfile{
		UserID:          userID,
		Puuid:           account.Puuid,
		GameName:        gameName,
		TagLine:         tagLine,
		LastSyncAtEpoch: time.Now().Unix(),
	}
	if summoner != nil {
		profile.SummonerID = summoner.SummonerID
		profile.ProfileIconID = summoner.ProfileIconID
		profile.SummonerLevel = summoner.SummonerLevel
	}

	if err := s.profileRepo.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Str("game_name", gameName).Str("tag_line", tagLine).Msg("riot account linked")
	return profile, nil
}

func (s *RiotService) GetProfile(ctx context.Context, userID string) (*domain.RiotProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	profile, err := s.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperr.New(apperr.KindNotFound, "riot profile not linked")
	}
	return profile, nil
}

// SyncRanked overwrites the per-queue ranked snapshots wholesale.
func (s *RiotService) SyncRanked(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	profile, err := s.requireProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.SummonerID == "" {
		return apperr.New(apperr.KindNotFound, "riot summoner id missing")
	}

	entries, err := s.client.GetRankedEntries(ctx, profile.SummonerID)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	for _, entry := range entries {
		err := s.profileRepo.UpsertRankedEntry(ctx, &domain.RankedEntry{
			UserID:            userID,
			QueueType:         entry.QueueType,
			Tier:              entry.Tier,
			Rank:              entry.Rank,
			LeaguePoints:      entry.LeaguePoints,
			Wins:              entry.Wins,
			Losses:            entry.Losses,
			LastSyncedAtEpoch: now,
		})
		if err != nil {
			return err
		}
	}

	s.logger.Info().Str("user_id", userID).Int("entries", len(entries)).Msg("ranked sync complete")
	return nil
}

// SyncMastery stores the user's top-N champion masteries.
func (s *RiotService) SyncMastery(ctx context.Context, userID string, topN int) error {
	if topN <= 0 {
		topN = constants.DefaultMasteryTopN
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	profile, err := s.requireProfile(ctx, userID)
	if err != nil {
		return err
	}

	masteries, err := s.client.GetChampionMasteries(ctx, profile.Puuid)
	if err != nil {
		return err
	}
	if len(masteries) > topN {
		masteries = masteries[:topN]
	}

	now := time.Now().Unix()
	for _, m := range masteries {
		err := s.profileRepo.UpsertChampionMastery(ctx, &domain.ChampionMastery{
			UserID:            userID,
			ChampionID:        m.ChampionID,
			ChampionPoints:    m.ChampionPoints,
			ChampionLevel:     m.ChampionLevel,
			LastPlayTimeEpoch: m.LastPlayTime,
			ChestGranted:      m.ChestGranted,
			LastSyncedAtEpoch: now,
		})
		if err != nil {
			return err
		}
	}

	s.logger.Info().Str("user_id", userID).Int("masteries", len(masteries)).Msg("mastery sync complete")
	return nil
}

// SyncMatches ingests up to count recent matches. The per-user dedup check
// runs before the payload fetch, so an already-recorded match costs no
// network call. That check is not atomic with the eventual stats write: two
// concurrent passes can both fetch and both write the same (user, match)
// row. The key is identical, so the second write is wasted work rather than
// a correctness problem.
func (s *RiotService) SyncMatches(ctx context.Context, userID string, count int) error {
	if count <= 0 {
		count = constants.DefaultMatchSyncCount
	}

	profile, err := s.requireProfile(ctx, userID)
	if err != nil {
		return err
	}

	listCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	matchIDs, err := s.client.ListMatchIDs(listCtx, profile.Puuid, 0, count)
	cancel()
	if err != nil {
		return err
	}

	ingested := 0
	for _, matchID := range matchIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		exists, err := s.matchRepo.ExistsUserMatch(ctx, userID, matchID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		if err := s.ingestMatch(ctx, userID, profile.Puuid, matchID); err != nil {
			if apperr.Is(err, apperr.KindParse) {
				s.logger.Warn().Err(err).Str("match_id", matchID).Msg("skipping malformed match")
				continue
			}
			return err
		}
		ingested++
	}

	s.logger.Info().Str("user_id", userID).Int("listed", len(matchIDs)).Int("ingested", ingested).Msg("match sync complete")
	return nil
}

func (s *RiotService) ingestMatch(ctx context.Context, userID, puuid, matchID string) error {
	fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	raw, err := s.client.GetMatch(fetchCtx, matchID)
	if err != nil {
		return err
	}

	payload, err := riot.ParseMatch(raw)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	result, err := s.matchRepo.CreateGlobalMatch(ctx, &domain.GlobalMatch{
		MatchID:             matchID,
		GameStartTimestamp:  payload.Info.GameStartTimestamp,
		GameDurationSeconds: payload.Info.GameDuration,
		QueueID:             payload.Info.QueueID,
		RawJSON:             string(raw),
		CreatedAtEpoch:      now,
	})
	if err != nil {
		// a failed global write must not starve the per-user row
		s.logger.Warn().Err(err).Str("match_id", matchID).Msg("global match write failed")
	} else if result == kv.AlreadyExists {
		s.logger.Debug().Str("match_id", matchID).Msg("global match already recorded")
	}

	participant, ok := payload.Participant(puuid)
	if !ok {
		return apperr.Newf(apperr.KindParse, "no participant with puuid in match %s", matchID)
	}

	return s.matchRepo.PutUserMatchStats(ctx, &domain.UserMatchStats{
		UserID:            userID,
		MatchID:           matchID,
		ChampionID:        participant.ChampionID,
		ChampionName:      participant.ChampionName,
		Kills:             participant.Kills,
		Deaths:            participant.Deaths,
		Assists:           participant.Assists,
		CreepScore:        participant.TotalMinionsKilled + participant.NeutralMinionsKilled,
		GoldEarned:        participant.GoldEarned,
		DamageToChampions: participant.TotalDamageDealtToChampions,
		VisionScore:       participant.VisionScore,
		Win:               participant.Win,
		QueueID:           payload.Info.QueueID,
		RecordedAtEpoch:   now,
	})
}

// SyncAll runs the three sync steps in sequence.
func (s *RiotService) SyncAll(ctx context.Context, userID string) error {
	if err := s.SyncRanked(ctx, userID); err != nil {
		return err
	}
	if err := s.SyncMastery(ctx, userID, 0); err != nil {
		return err
	}
	return s.SyncMatches(ctx, userID, 0)
}

func (s *RiotService) ListRankedEntries(ctx context.Context, userID string) ([]domain.RankedEntry, error) {
	return s.profileRepo.ListRankedEntries(ctx, userID)
}

func (s *RiotService) ListChampionMasteries(ctx context.Context, userID string) ([]domain.ChampionMastery, error) {
	return s.profileRepo.ListChampionMasteries(ctx, userID)
}

func (s *RiotService) ListMatchStats(ctx context.Context, userID string, count int) ([]domain.UserMatchStats, error) {
	if count <= 0 {
		count = constants.DefaultMatchSyncCount
	}
	return s.matchRepo.ListUserMatchStats(ctx, userID, count)
}

func (s *RiotService) requireProfile(ctx context.Context, userID string) (*domain.RiotProfile, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindValidation, "user id required")
	}
	profile, err := s.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperr.New(apperr.KindNotFound, "riot profile not linked")
	}
	return profile, nil
}
