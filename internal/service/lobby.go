package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sub2play/internal/apperr"
	"sub2play/internal/constants"
	"sub2play/internal/domain"
	"sub2play/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultTournamentName = "Bronze War"

var teamNames = [domain.TeamCount]string{"Team A", "Team B"}

type LobbyService struct {
	repo   *repository.LobbyRepository
	logger zerolog.Logger
}

func NewLobbyService(repo *repository.LobbyRepository, logger zerolog.Logger) *LobbyService {
	return &LobbyService{repo: repo, logger: logger}
}

type PlaceBidInput struct {
	TeamIndex         int
	Role              string
	Amount            int
	BidderUserID      string
	BidderDisplayName string
	BidderAvatarURL   string
}

// PlaceBid validates locally, then settles the bid with one conditional
// write. A bid equal to the current top is rejected; there is no tie-break.
func (s *LobbyService) PlaceBid(ctx context.Context, lobbyID string, in PlaceBidInput) (*domain.BidResult, error) {
	if lobbyID == "" {
		return nil, apperr.New(apperr.KindValidation, "lobby id required")
	}
	if in.TeamIndex < 0 || in.TeamIndex >= domain.TeamCount {
		return nil, apperr.Newf(apperr.KindValidation, "team index %d out of range", in.TeamIndex)
	}
	role := normalizeRole(in.Role)
	if !domain.IsValidRole(role) {
		return nil, apperr.Newf(apperr.KindValidation, "unknown role %q", in.Role)
	}
	if in.Amount <= 0 {
		return nil, apperr.New(apperr.KindValidation, "bid amount must be positive")
	}
	if in.BidderUserID == "" {
		return nil, apperr.New(apperr.KindValidation, "bidder user id required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	accepted, currentTop, err := s.repo.TryPlaceTopBid(ctx, lobbyID, in.TeamIndex, role,
		in.Amount, in.BidderUserID, in.BidderDisplayName, in.BidderAvatarURL)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lobby_id", lobbyID).
		Int("team_index", in.TeamIndex).
		Str("role", role).
		Int("amount", in.Amount).
		Bool("accepted", accepted).
		Int("current_top", currentTop).
		Msg("bid settled")

	return &domain.BidResult{
		Accepted:             accepted,
		DidBecomeTopBidder:   accepted,
		CurrentTopBidCredits: currentTop,
		QueuePosition:        constants.BidQueuePosition,
	}, nil
}

// GetLobby returns the full team/slot grid, creating default metadata on the
// first read so a lobby always exists. The metadata read and the slot query
// are not transactional: slot writes landing between the two simply show up
// on the next read.
func (s *LobbyService) GetLobby(ctx context.Context, lobbyID string) (*domain.LobbyView, error) {
	if lobbyID == "" {
		return nil, apperr.New(apperr.KindValidation, "lobby id required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	meta, err := s.repo.GetMeta(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = defaultLobby(lobbyID)
		if err := s.repo.PutMeta(ctx, meta); err != nil {
			return nil, err
		}
		s.logger.Info().Str("lobby_id", lobbyID).Msg("lobby created on first read")
	}

	slots, err := s.repo.QuerySlots(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	view := buildView(meta, slots)
	return &view, nil
}

// CreateLobby writes lobby metadata explicitly; a missing id gets a minted
// one.
func (s *LobbyService) CreateLobby(ctx context.Context, lobbyID, tournamentName, startsAtIso string) (*domain.Lobby, error) {
	if lobbyID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("mint lobby id: %w", err)
		}
		lobbyID = id
	}
	if tournamentName == "" {
		tournamentName = defaultTournamentName
	}
	if startsAtIso == "" {
		startsAtIso = time.Now().UTC().Add(constants.LobbyStartOffset).Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, startsAtIso); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "startsAt must be RFC3339", err)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	lobby := &domain.Lobby{
		LobbyID:        lobbyID,
		TournamentName: tournamentName,
		StartsAtIso:    startsAtIso,
		Active:         true,
		CreatedAtEpoch: time.Now().Unix(),
	}
	if err := s.repo.PutMeta(ctx, lobby); err != nil {
		return nil, err
	}

	s.logger.Info().Str("lobby_id", lobbyID).Str("tournament", tournamentName).Msg("lobby created")
	return lobby, nil
}

// ListActiveLobbies hydrates the slot grid of every active lobby
// concurrently.
func (s *LobbyService) ListActiveLobbies(ctx context.Context) ([]domain.LobbyView, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	lobbies, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]domain.LobbyView, len(lobbies))
	g, gctx := errgroup.WithContext(ctx)
	for i := range lobbies {
		i := i
		g.Go(func() error {
			slots, err := s.repo.QuerySlots(gctx, lobbies[i].LobbyID)
			if err != nil {
				return err
			}
			views[i] = buildView(&lobbies[i], slots)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func defaultLobby(lobbyID string) *domain.Lobby {
	now := time.Now()
	return &domain.Lobby{
		LobbyID:        lobbyID,
		TournamentName: defaultTournamentName,
		StartsAtIso:    now.UTC().Add(constants.LobbyStartOffset).Format(time.RFC3339),
		Active:         true,
		CreatedAtEpoch: now.Unix(),
	}
}

// buildView joins recorded slot states against the fixed 2x5 grid; unseen
// slots default to zero bid and no bidder.
func buildView(lobby *domain.Lobby, slots []domain.SlotState) domain.LobbyView {
	recorded := make(map[string]domain.SlotState, len(slots))
	for _, slot := range slots {
		recorded[fmt.Sprintf("%d#%s", slot.TeamIndex, slot.Role)] = slot
	}

	view := domain.LobbyView{
		LobbyID:        lobby.LobbyID,
		TournamentName: lobby.TournamentName,
		StartsAtIso:    lobby.StartsAtIso,
		Active:         lobby.Active,
	}
	for team := 0; team < domain.TeamCount; team++ {
		teamView := domain.TeamView{Name: teamNames[team]}
		for _, role := range domain.Roles {
			slot, ok := recorded[fmt.Sprintf("%d#%s", team, role)]
			if !ok {
				slot = domain.SlotState{TeamIndex: team, Role: role}
			}
			teamView.Slots = append(teamView.Slots, slot)
		}
		view.Teams[team] = teamView
	}
	return view
}

func normalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}
