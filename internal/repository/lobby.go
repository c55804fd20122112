package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sub2play/internal/domain"
	"sub2play/internal/kv"

	"github.com/rs/zerolog"
)

type LobbyRepository struct {
	store  kv.Store
	logger zerolog.Logger
}

func NewLobbyRepository(store kv.Store, logger zerolog.Logger) *LobbyRepository {
	return &LobbyRepository{store: store, logger: logger}
}

func (r *LobbyRepository) GetMeta(ctx context.Context, lobbyID string) (*domain.Lobby, error) {
	attrs, err := r.store.Get(ctx, lobbyPK(lobbyID), metaSK)
	if err != nil {
		return nil, fmt.Errorf("get lobby meta: %w", err)
	}
	if attrs == nil {
		return nil, nil
	}

	created, _ := attrs.Int64("CreatedAtEpoch")
	return &domain.Lobby{
		LobbyID:        lobbyID,
		TournamentName: attrs.String("TournamentName"),
		StartsAtIso:    attrs.String("StartsAtIso"),
		Active:         attrs.Bool("Active"),
		CreatedAtEpoch: created,
	}, nil
}

func (r *LobbyRepository) PutMeta(ctx context.Context, lobby *domain.Lobby) error {
	attrs := kv.Attrs{
		"TournamentName": lobby.TournamentName,
		"StartsAtIso":    lobby.StartsAtIso,
		"Active":         lobby.Active,
		"CreatedAtEpoch": lobby.CreatedAtEpoch,
	}
	if _, err := r.store.Put(ctx, lobbyPK(lobby.LobbyID), metaSK, attrs, false); err != nil {
		return fmt.Errorf("put lobby meta: %w", err)
	}
	return nil
}

// TryPlaceTopBid runs the atomic "only if strictly higher" update. On a lost
// race or an insufficient amount it reads back the current top bid.
func (r *LobbyRepository) TryPlaceTopBid(ctx context.Context, lobbyID string, teamIndex int, role string, amount int, bidderID, displayName, avatarURL string) (bool, int, error) {
	set := kv.Attrs{
		"TopBidCredits":        int64(amount),
		"TopBidderUserId":      bidderID,
		"TopBidderDisplayName": displayName,
		"UpdatedAtEpoch":       time.Now().Unix(),
	}
	var remove []string
	if avatarURL != "" {
		set["TopBidderAvatarUrl"] = avatarURL
	} else {
		remove = append(remove, "TopBidderAvatarUrl")
	}

	cond := &kv.Condition{Attr: "TopBidCredits", LessThan: int64(amount), OrAbsent: true}

	ok, err := r.store.ConditionalUpdate(ctx, lobbyPK(lobbyID), topBidSK(teamIndex, role), set, remove, cond)
	if err != nil {
		return false, 0, fmt.Errorf("place top bid: %w", err)
	}
	if ok {
		return true, amount, nil
	}

	current, err := r.GetTopBid(ctx, lobbyID, teamIndex, role)
	if err != nil {
		return false, 0, err
	}
	r.logger.Debug().
		Str("lobby_id", lobbyID).
		Int("team_index", teamIndex).
		Str("role", role).
		Int("amount", amount).
		Int("current_top", current).
		Msg("bid rejected by condition")
	return false, current, nil
}

func (r *LobbyRepository) GetTopBid(ctx context.Context, lobbyID string, teamIndex int, role string) (int, error) {
	attrs, err := r.store.Get(ctx, lobbyPK(lobbyID), topBidSK(teamIndex, role))
	if err != nil {
		return 0, fmt.Errorf("get top bid: %w", err)
	}
	if attrs == nil {
		return 0, nil
	}
	return attrs.Int("TopBidCredits"), nil
}

// QuerySlots returns every recorded slot state under the lobby.
func (r *LobbyRepository) QuerySlots(ctx context.Context, lobbyID string) ([]domain.SlotState, error) {
	items, err := r.store.QueryByPrefix(ctx, lobbyPK(lobbyID), "TOPBID#")
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}

	var slots []domain.SlotState
	for _, item := range items {
		// TOPBID#<teamIndex>#<ROLE>
		parts := strings.Split(item.SK, "#")
		if len(parts) != 3 {
			continue
		}
		teamIndex, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}

		updated, _ := item.Attrs.Int64("UpdatedAtEpoch")
		slots = append(slots, domain.SlotState{
			TeamIndex:            teamIndex,
			Role:                 parts[2],
			TopBidCredits:        item.Attrs.Int("TopBidCredits"),
			TopBidderUserID:      item.Attrs.String("TopBidderUserId"),
			TopBidderDisplayName: item.Attrs.String("TopBidderDisplayName"),
			TopBidderAvatarURL:   item.Attrs.String("TopBidderAvatarUrl"),
			UpdatedAtEpoch:       updated,
		})
	}
	return slots, nil
}

// ListActive scans for active lobby metadata. Lobby counts stay small, so a
// table scan is acceptable here.
func (r *LobbyRepository) ListActive(ctx context.Context) ([]domain.Lobby, error) {
	items, err := r.store.ScanWithFilter(ctx, "Active", true, 0)
	if err != nil {
		return nil, fmt.Errorf("list active lobbies: %w", err)
	}

	var lobbies []domain.Lobby
	for _, item := range items {
		if item.SK != metaSK || !strings.HasPrefix(item.PK, "LOBBY#") {
			continue
		}
		created, _ := item.Attrs.Int64("CreatedAtEpoch")
		lobbies = append(lobbies, domain.Lobby{
			LobbyID:        strings.TrimPrefix(item.PK, "LOBBY#"),
			TournamentName: item.Attrs.String("TournamentName"),
			StartsAtIso:    item.Attrs.String("StartsAtIso"),
			Active:         true,
			CreatedAtEpoch: created,
		})
	}
	return lobbies, nil
}
