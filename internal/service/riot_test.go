package service

import (
	"context"
	"fmt"
	"testing"

	"sub2play/internal/apperr"
	"sub2play/internal/domain"
	"sub2play/internal/kv"
	"sub2play/internal/repository"
	"sub2play/internal/riot"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRiotAPI counts fetches so tests can assert the dedup gate short-circuits
// before the network.
type fakeRiotAPI struct {
	account    *riot.Account
	summoner   *riot.Summoner
	ranked     []riot.RankedEntry
	masteries  []riot.ChampionMastery
	matchIDs   []string
	matches    map[string][]byte
	matchCalls int

	summonerErr error
	matchErr    error
}

func (f *fakeRiotAPI) ResolveAccount(_ context.Context, gameName, tagLine string) (*riot.Account, error) {
	if f.account == nil {
		return nil, apperr.New(apperr.KindNotFound, "riot account not found")
	}
	return f.account, nil
}

func (f *fakeRiotAPI) GetSummoner(_ context.Context, puuid string) (*riot.Summoner, error) {
	if f.summonerErr != nil {
		return nil, f.summonerErr
	}
	if f.summoner == nil {
		return nil, apperr.New(apperr.KindNotFound, "summoner not found")
	}
	return f.summoner, nil
}

func (f *fakeRiotAPI) GetRankedEntries(_ context.Context, summonerID string) ([]riot.RankedEntry, error) {
	return f.ranked, nil
}

func (f *fakeRiotAPI) GetChampionMasteries(_ context.Context, puuid string) ([]riot.ChampionMastery, error) {
	return f.masteries, nil
}

func (f *fakeRiotAPI) ListMatchIDs(_ context.Context, puuid string, start, count int) ([]string, error) {
	if count < len(f.matchIDs) {
		return f.matchIDs[:count], nil
	}
	return f.matchIDs, nil
}

func (f *fakeRiotAPI) GetMatch(_ context.Context, matchID string) ([]byte, error) {
	f.matchCalls++
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	raw, ok := f.matches[matchID]
	if !ok {
		return nil, apperr.Newf(apperr.KindUpstream, "match %s not found", matchID)
	}
	return raw, nil
}

func matchJSON(puuid string, queueID int) []byte {
	return []byte(fmt.Sprintf(`{"info":{"gameStartTimestamp":1700000000000,"gameDuration":1800,"queueId":%d,
		"participants":[{"puuid":%q,"championId":103,"championName":"Ahri","kills":5,"deaths":2,"assists":9,
		"totalMinionsKilled":180,"neutralMinionsKilled":20,"goldEarned":12000,
		"totalDamageDealtToChampions":22000,"visionScore":15,"win":true}]}}`, queueID, puuid))
}

func newRiotService(api RiotAPI) (*RiotService, *kv.MemStore) {
	store := kv.NewMemStore()
	profileRepo := repository.NewRiotProfileRepository(store, zerolog.Nop())
	matchRepo := repository.NewMatchRepository(store, zerolog.Nop())
	return NewRiotService(api, profileRepo, matchRepo, zerolog.Nop()), store
}

func linkedFake() *fakeRiotAPI {
	return &fakeRiotAPI{
		account:  &riot.Account{Puuid: "puuid-1", GameName: "Faker", TagLine: "KR1"},
		summoner: &riot.Summoner{SummonerID: "sum-1", ProfileIconID: 4568, SummonerLevel: 512},
		matches:  map[string][]byte{},
	}
}

func TestLinkAccount(t *testing.T) {
	fake := linkedFake()
	svc, _ := newRiotService(fake)
	ctx := context.Background()

	profile, err := svc.LinkAccount(ctx, "u1", "Faker", "KR1")
	require.NoError(t, err)
	assert.Equal(t, "puuid-1", profile.Puuid)
	assert.Equal(t, "sum-1", profile.SummonerID)
	assert.Equal(t, int64(512), profile.SummonerLevel)

	got, err := svc.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "puuid-1", got.Puuid)
}

func TestLinkAccount_SummonerOptional(t *testing.T) {
	fake := linkedFake()
	fake.summoner = nil
	svc, _ := newRiotService(fake)

	profile, err := svc.LinkAccount(context.Background(), "u1", "Faker", "KR1")
	require.NoError(t, err)
	assert.Equal(t, "puuid-1", profile.Puuid)
	assert.Empty(t, profile.SummonerID)
}

func TestLinkAccount_AccountMissing(t *testing.T) {
	svc, store := newRiotService(&fakeRiotAPI{})

	_, err := svc.LinkAccount(context.Background(), "u1", "Ghost", "EUW")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Zero(t, store.Len())
}

func TestSyncRanked(t *testing.T) {
	fake := linkedFake()
	fake.ranked = []riot.RankedEntry{
		{QueueType: "RANKED_SOLO_5x5", Tier: "GOLD", Rank: "II", LeaguePoints: 54, Wins: 120, Losses: 110},
		{QueueType: "RANKED_FLEX_SR", Tier: "SILVER", Rank: "I", LeaguePoints: 12, Wins: 30, Losses: 25},
	}
	svc, _ := newRiotService(fake)
	ctx := context.Background()

	_, err := svc.LinkAccount(ctx, "u1", "Faker", "KR1")
	require.NoError(t, err)

	require.NoError(t, svc.SyncRanked(ctx, "u1"))

	entries, err := svc.ListRankedEntries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byQueue := map[string]domain.RankedEntry{}
	for _, e := range entries {
		byQueue[e.QueueType] = e
	}
	assert.Equal(t, "GOLD", byQueue["RANKED_SOLO_5x5"].Tier)
	assert.Equal(t, 54, byQueue["RANKED_SOLO_5x5"].LeaguePoints)
	assert.Equal(t, "SILVER", byQueue["RANKED_FLEX_SR"].Tier)
}

func TestSyncRanked_RequiresLink(t *testing.T) {
	svc, _ := newRiotService(linkedFake())

	err := svc.SyncRanked(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSyncRanked_RequiresSummonerID(t *testing.T) {
	fake := linkedFake()
	fake.summoner = nil
	svc, _ := newRiotService(fake)
	ctx := context.Background()

	_, err := svc.LinkAccount(ctx, "u1", "Faker", "KR1")
	require.NoError(t, err)

	err = svc.SyncRanked(ctx, "u1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSyncMastery_TopN(t *testing.T) {
	fake := linkedFake()
	for i := 0; i < 8; i++ {
		fake.masteries = append(fake.masteries, riot.ChampionMastery{
			ChampionID:     100 + i,
			ChampionPoints: int64(100000 - i*1000),
			ChampionLevel:  7,
		})
	}
	svc, _ := newRiotService(fake)
	ctx := context.Background()

	_, err := svc.LinkAccount(ctx, "u1", "Faker", "KR1")
	require.NoError(t, err)

	require.NoError(t, svc.SyncMastery(ctx, "u1", 3))

	masteries, err := svc.ListChampionMasteries(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, masteries, 3)
}

func TestSyncMatches_Idempotent(t *testing.T) {
	fake := linkedFake()
	fake.matchIDs = []string{"NA1_1", "NA1_2"}
	fake.matches["NA1_1"] = matchJSON("puuid-1", 420)
	fake.matches["NA1_2"] = matchJSON("puuid-1", 440)
	svc, _ := newRiotService(fake)
	ctx := context.Background()

	_, err := svc.LinkAccount(ctx, "u1", "Faker", "KR1")
	require.NoError(t, err)

	require.NoError(t, svc.SyncMatches(ctx, "u1", 0))
	assert.Equal(t, 2, fake.matchCalls)

	stats, err := svc.ListMatchStats(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Ahri", stats[0].ChampionName)
	assert.Equal(t, 200, stats[0].CreepScore)

	// a second pass fetches nothing
	require.NoError(t, svc.SyncMatches(ctx, "u1", 0))
	assert.Equal(t, 2, fake.matchCalls)
}

func TestSyncMatches_GlobalRecordSharedAcrossUsers(t *testing.T) {
	fake := linkedFake()
	fake.matchIDs = []string{"NA1_1"}
	fake.matches["NA1_1"] = matchJSON("puuid-1", 420)
	svc, store := newRiotService(fake)
	ctx := context.Background()

	_, err := svc.LinkAccount(ctx, "u1", "Faker", "KR1")
	require.NoError(t, err)
	_, err = svc.LinkAccount(ctx, "u2", "Faker", "KR1")
	require.NoError(t, err)

	require.NoError(t, svc.SyncMatches(ctx, "u1", 0))
	require.NoError(t, svc.SyncMatches(ctx, "u2", 0))

	// one global record, two per-user rows
	attrs, err := store.Get(ctx, "MATCH#NA1_1", "META")
	require.NoError(t, err)
	require.NotNil(t, attrs)
	assert.Equal(t, 420, attrs.Int("QueueId"))

	for _, user := range []string{"u1", "u2"} {
		stats, err := svc.ListMatchStats(ctx, user, 0)
		require.NoError(t, err)
		assert.Len(t, stats, 1, "user %s", user)
	}
}

func TestSyncMatches_SkipsMalformedPayload(t *testing.T) {
	fake := linkedFake()
	fake.matchIDs = []string{"NA1_bad", "NA1_good"}
	fake.matches["NA1_bad"] = []byte(`{"info":`)
	fake.matches["NA1_good"] = matchJSON("puuid-1", 420)
	svc, _ := newRiotService(fake)
	ctx := context.Background()

	_, err := svc.LinkAccount(ctx, "u1", "Faker", "KR1")
	require.NoError(t, err)

	require.NoError(t, svc.SyncMatches(ctx, "u1", 0))

	stats, err := svc.ListMatchStats(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "NA1_good", stats[0].MatchID)
}

func TestSyncMatches_SkipsForeignParticipants(t *testing.T) {
	fake := linkedFake()
	fake.matchIDs = []string{"NA1_1"}
	fake.matches["NA1_1"] = matchJSON("someone-else", 420)
	svc, _ := newRiotService(fake)
	ctx := context.Background()

	_, err := svc.LinkAccount(ctx, "u1", "Faker", "KR1")
	require.NoError(t, err)

	require.NoError(t, svc.SyncMatches(ctx, "u1", 0))

	stats, err := svc.ListMatchStats(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestSyncMatches_UpstreamFailureAborts(t *testing.T) {
	fake := linkedFake()
	fake.matchIDs = []string{"NA1_1"}
	fake.matchErr = apperr.New(apperr.KindUpstream, "riot api returned status 503")
	svc, _ := newRiotService(fake)
	ctx := context.Background()

	_, err := svc.LinkAccount(ctx, "u1", "Faker", "KR1")
	require.NoError(t, err)

	err = svc.SyncMatches(ctx, "u1", 0)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestSyncAll(t *testing.T) {
	fake := linkedFake()
	fake.ranked = []riot.RankedEntry{{QueueType: "RANKED_SOLO_5x5", Tier: "GOLD"}}
	fake.masteries = []riot.ChampionMastery{{ChampionID: 103, ChampionPoints: 50000}}
	fake.matchIDs = []string{"NA1_1"}
	fake.matches["NA1_1"] = matchJSON("puuid-1", 420)
	svc, _ := newRiotService(fake)
	ctx := context.Background()

	_, err := svc.LinkAccount(ctx, "u1", "Faker", "KR1")
	require.NoError(t, err)

	require.NoError(t, svc.SyncAll(ctx, "u1"))

	entries, err := svc.ListRankedEntries(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	masteries, err := svc.ListChampionMasteries(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, masteries, 1)

	stats, err := svc.ListMatchStats(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, stats, 1)
}
