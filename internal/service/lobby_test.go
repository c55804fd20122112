package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"sub2play/internal/apperr"
	"sub2play/internal/domain"
	"sub2play/internal/kv"
	"sub2play/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLobbyService() (*LobbyService, *kv.MemStore) {
	store := kv.NewMemStore()
	repo := repository.NewLobbyRepository(store, zerolog.Nop())
	return NewLobbyService(repo, zerolog.Nop()), store
}

func validBid(userID string, amount int) PlaceBidInput {
	return PlaceBidInput{
		TeamIndex:         0,
		Role:              "MID",
		Amount:            amount,
		BidderUserID:      userID,
		BidderDisplayName: "Player " + userID,
	}
}

func TestPlaceBid_Validation(t *testing.T) {
	svc, store := newLobbyService()
	ctx := context.Background()

	tests := []struct {
		name    string
		lobbyID string
		in      PlaceBidInput
	}{
		{"missing lobby id", "", validBid("u1", 10)},
		{"negative team index", "l1", PlaceBidInput{TeamIndex: -1, Role: "MID", Amount: 10, BidderUserID: "u1"}},
		{"team index too large", "l1", PlaceBidInput{TeamIndex: 2, Role: "MID", Amount: 10, BidderUserID: "u1"}},
		{"unknown role", "l1", PlaceBidInput{TeamIndex: 0, Role: "CARRY", Amount: 10, BidderUserID: "u1"}},
		{"zero amount", "l1", PlaceBidInput{TeamIndex: 0, Role: "MID", Amount: 0, BidderUserID: "u1"}},
		{"negative amount", "l1", PlaceBidInput{TeamIndex: 0, Role: "MID", Amount: -5, BidderUserID: "u1"}},
		{"missing bidder", "l1", PlaceBidInput{TeamIndex: 0, Role: "MID", Amount: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PlaceBid(ctx, tt.lobbyID, tt.in)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}

	// rejected bids must leave no trace in the store
	assert.Zero(t, store.Len())
}

func TestPlaceBid_RoleNormalized(t *testing.T) {
	svc, _ := newLobbyService()
	ctx := context.Background()

	in := validBid("u1", 10)
	in.Role = "  mid "
	result, err := svc.PlaceBid(ctx, "l1", in)
	require.NoError(t, err)
	assert.True(t, result.Accepted)

	// the normalized slot is the one the next bid competes on
	in2 := validBid("u2", 10)
	in2.Role = "MID"
	result, err = svc.PlaceBid(ctx, "l1", in2)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, 10, result.CurrentTopBidCredits)
}

func TestPlaceBid_Sequence(t *testing.T) {
	svc, _ := newLobbyService()
	ctx := context.Background()

	// A bids 10: accepted
	result, err := svc.PlaceBid(ctx, "l1", validBid("A", 10))
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.True(t, result.DidBecomeTopBidder)
	assert.Equal(t, 10, result.CurrentTopBidCredits)

	// B bids 10: rejected, top stays 10
	result, err = svc.PlaceBid(ctx, "l1", validBid("B", 10))
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.False(t, result.DidBecomeTopBidder)
	assert.Equal(t, 10, result.CurrentTopBidCredits)

	// C bids 15: accepted and takes over
	result, err = svc.PlaceBid(ctx, "l1", validBid("C", 15))
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, 15, result.CurrentTopBidCredits)

	view, err := svc.GetLobby(ctx, "l1")
	require.NoError(t, err)
	mid := view.Teams[0].Slots[2]
	assert.Equal(t, "MID", mid.Role)
	assert.Equal(t, "C", mid.TopBidderUserID)
	assert.Equal(t, 15, mid.TopBidCredits)
}

func TestPlaceBid_ConcurrentSingleWinner(t *testing.T) {
	svc, _ := newLobbyService()
	ctx := context.Background()

	const bidders = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var winner string
	winners := 0
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.PlaceBid(ctx, "l1", validBid(fmt.Sprintf("u%d", i), 42))
			assert.NoError(t, err)
			if result.Accepted {
				mu.Lock()
				winners++
				winner = fmt.Sprintf("u%d", i)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, winners)

	view, err := svc.GetLobby(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, winner, view.Teams[0].Slots[2].TopBidderUserID)
	assert.Equal(t, 42, view.Teams[0].Slots[2].TopBidCredits)
}

func TestGetLobby_LazyDefault(t *testing.T) {
	svc, _ := newLobbyService()
	ctx := context.Background()

	view, err := svc.GetLobby(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", view.LobbyID)
	assert.Equal(t, defaultTournamentName, view.TournamentName)
	assert.True(t, view.Active)
	assert.NotEmpty(t, view.StartsAtIso)

	// full 2x5 grid with empty slots
	require.Len(t, view.Teams, domain.TeamCount)
	for team, teamView := range view.Teams {
		assert.Equal(t, teamNames[team], teamView.Name)
		require.Len(t, teamView.Slots, len(domain.Roles))
		for i, slot := range teamView.Slots {
			assert.Equal(t, domain.Roles[i], slot.Role)
			assert.Zero(t, slot.TopBidCredits)
			assert.Empty(t, slot.TopBidderUserID)
		}
	}

	// second read reuses the stored metadata
	again, err := svc.GetLobby(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, view.StartsAtIso, again.StartsAtIso)
}

func TestCreateLobby(t *testing.T) {
	svc, _ := newLobbyService()
	ctx := context.Background()

	t.Run("explicit fields", func(t *testing.T) {
		lobby, err := svc.CreateLobby(ctx, "summer-finals", "Summer Finals", "2026-09-01T18:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, "summer-finals", lobby.LobbyID)
		assert.Equal(t, "Summer Finals", lobby.TournamentName)
		assert.True(t, lobby.Active)
	})

	t.Run("minted id and defaults", func(t *testing.T) {
		lobby, err := svc.CreateLobby(ctx, "", "", "")
		require.NoError(t, err)
		assert.NotEmpty(t, lobby.LobbyID)
		assert.Equal(t, defaultTournamentName, lobby.TournamentName)
		assert.NotEmpty(t, lobby.StartsAtIso)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		_, err := svc.CreateLobby(ctx, "x", "X", "next tuesday")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestListActiveLobbies(t *testing.T) {
	svc, _ := newLobbyService()
	ctx := context.Background()

	_, err := svc.CreateLobby(ctx, "a", "Cup A", "2026-09-01T18:00:00Z")
	require.NoError(t, err)
	_, err = svc.CreateLobby(ctx, "b", "Cup B", "2026-09-02T18:00:00Z")
	require.NoError(t, err)

	_, err = svc.PlaceBid(ctx, "a", validBid("u1", 30))
	require.NoError(t, err)

	views, err := svc.ListActiveLobbies(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[string]domain.LobbyView{}
	for _, v := range views {
		byID[v.LobbyID] = v
	}
	assert.Equal(t, 30, byID["a"].Teams[0].Slots[2].TopBidCredits)
	assert.Zero(t, byID["b"].Teams[0].Slots[2].TopBidCredits)
}
