// Package server exposes the HTTP surface: a fixed route table over the
// lobby, riot and auth services, speaking JSON.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"sub2play/internal/apperr"
	"sub2play/internal/domain"
	"sub2play/internal/middleware"
	"sub2play/internal/service"

	"github.com/rs/zerolog"
)

type Server struct {
	lobbySvc *service.LobbyService
	riotSvc  *service.RiotService
	authSvc  *service.AuthService
	logger   zerolog.Logger
	table    []Route
}

func NewServer(lobbySvc *service.LobbyService, riotSvc *service.RiotService, authSvc *service.AuthService, logger zerolog.Logger) *Server {
	s := &Server{lobbySvc: lobbySvc, riotSvc: riotSvc, authSvc: authSvc, logger: logger}
	s.table = s.routes()
	return s
}

type errorBody struct {
	Message string `json:"message"`
}

type okBody struct {
	Ok bool `json:"ok"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, okBody{Ok: true})
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Ok        bool   `json:"ok"`
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Credits   int    `json:"credits"`
	Type      string `json:"type"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.authSvc.Signup(r.Context(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthResponse(user))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, params map[string]string) {
	user, err := s.authSvc.GetUser(r.Context(), params["userId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(user))
}

type avatarRequest struct {
	AvatarURL string `json:"avatarUrl"`
}

func (s *Server) handleUpdateAvatar(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req avatarRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.authSvc.UpdateAvatar(r.Context(), params["userId"], req.AvatarURL); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{Ok: true})
}

type linkRequest struct {
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type riotProfileResponse struct {
	UserID          string `json:"userId"`
	Puuid           string `json:"puuid"`
	GameName        string `json:"gameName"`
	TagLine         string `json:"tagLine"`
	SummonerLevel   int64  `json:"summonerLevel,omitempty"`
	ProfileIconID   int    `json:"profileIconId,omitempty"`
	LastSyncAtEpoch int64  `json:"lastSyncAt"`
}

func (s *Server) handleRiotLink(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req linkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := s.riotSvc.LinkAccount(r.Context(), params["userId"], req.GameName, req.TagLine)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (s *Server) handleRiotProfile(w http.ResponseWriter, r *http.Request, params map[string]string) {
	profile, err := s.riotSvc.GetProfile(r.Context(), params["userId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (s *Server) handleSyncRanked(w http.ResponseWriter, r *http.Request, params map[string]string) {
	s.runSync(w, r, func() error { return s.riotSvc.SyncRanked(r.Context(), params["userId"]) })
}

func (s *Server) handleSyncMastery(w http.ResponseWriter, r *http.Request, params map[string]string) {
	s.runSync(w, r, func() error { return s.riotSvc.SyncMastery(r.Context(), params["userId"], 0) })
}

func (s *Server) handleSyncMatches(w http.ResponseWriter, r *http.Request, params map[string]string) {
	s.runSync(w, r, func() error { return s.riotSvc.SyncMatches(r.Context(), params["userId"], 0) })
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request, params map[string]string) {
	s.runSync(w, r, func() error { return s.riotSvc.SyncAll(r.Context(), params["userId"]) })
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request, sync func() error) {
	if err := sync(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{Ok: true})
}

func (s *Server) handleListRanked(w http.ResponseWriter, r *http.Request, params map[string]string) {
	entries, err := s.riotSvc.ListRankedEntries(r.Context(), params["userId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entriesResponse(entries))
}

func (s *Server) handleListMastery(w http.ResponseWriter, r *http.Request, params map[string]string) {
	masteries, err := s.riotSvc.ListChampionMasteries(r.Context(), params["userId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, masteriesResponse(masteries))
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request, params map[string]string) {
	count := 0
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Message: "count must be an integer"})
			return
		}
		count = n
	}

	stats, err := s.riotSvc.ListMatchStats(r.Context(), params["userId"], count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matchesResponse(stats))
}

type createLobbyRequest struct {
	LobbyID        string `json:"lobbyId"`
	TournamentName string `json:"tournamentName"`
	StartsAtIso    string `json:"startsAtIso"`
}

func (s *Server) handleCreateLobby(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req createLobbyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lobby, err := s.lobbySvc.CreateLobby(r.Context(), req.LobbyID, req.TournamentName, req.StartsAtIso)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"lobbyId":        lobby.LobbyID,
		"tournamentName": lobby.TournamentName,
		"startsAtIso":    lobby.StartsAtIso,
		"active":         lobby.Active,
	})
}

func (s *Server) handleGetLobby(w http.ResponseWriter, r *http.Request, params map[string]string) {
	view, err := s.lobbySvc.GetLobby(r.Context(), params["lobbyId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLobbyResponse(view))
}

func (s *Server) handleListLobbies(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	views, err := s.lobbySvc.ListActiveLobbies(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]lobbyResponse, 0, len(views))
	for i := range views {
		out = append(out, toLobbyResponse(&views[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"lobbies": out})
}

type bidRequest struct {
	TeamIndex int    `json:"teamIndex"`
	Role      string `json:"role"`
	Amount    int    `json:"amount"`
}

type bidResponse struct {
	Accepted             bool `json:"accepted"`
	DidBecomeTopBidder   bool `json:"didBecomeTopBidder"`
	CurrentTopBidCredits int  `json:"currentTopBidCredits"`
	QueuePosition        int  `json:"queuePosition"`
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req bidRequest
	if !decodeBody(w, r, &req) {
		return
	}

	caller := middleware.GetIdentity(r.Context())
	result, err := s.lobbySvc.PlaceBid(r.Context(), params["lobbyId"], service.PlaceBidInput{
		TeamIndex:         req.TeamIndex,
		Role:              req.Role,
		Amount:            req.Amount,
		BidderUserID:      caller.UserID,
		BidderDisplayName: caller.DisplayName,
		BidderAvatarURL:   caller.AvatarURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bidResponse{
		Accepted:             result.Accepted,
		DidBecomeTopBidder:   result.DidBecomeTopBidder,
		CurrentTopBidCredits: result.CurrentTopBidCredits,
		QueuePosition:        result.QueuePosition,
	})
}

type lobbyResponse struct {
	LobbyID        string         `json:"lobbyId"`
	TournamentName string         `json:"tournamentName"`
	StartsAtIso    string         `json:"startsAtIso"`
	Active         bool           `json:"active"`
	Teams          []teamResponse `json:"teams"`
}

type teamResponse struct {
	Name  string         `json:"name"`
	Slots []slotResponse `json:"slots"`
}

type slotResponse struct {
	Role          string `json:"role"`
	DisplayName   string `json:"displayName,omitempty"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	TopBidCredits int    `json:"topBidCredits"`
}

func toLobbyResponse(view *domain.LobbyView) lobbyResponse {
	teams := make([]teamResponse, 0, len(view.Teams))
	for _, team := range view.Teams {
		slots := make([]slotResponse, 0, len(team.Slots))
		for _, slot := range team.Slots {
			slots = append(slots, slotResponse{
				Role:          slot.Role,
				DisplayName:   slot.TopBidderDisplayName,
				AvatarURL:     slot.TopBidderAvatarURL,
				TopBidCredits: slot.TopBidCredits,
			})
		}
		teams = append(teams, teamResponse{Name: team.Name, Slots: slots})
	}
	return lobbyResponse{
		LobbyID:        view.LobbyID,
		TournamentName: view.TournamentName,
		StartsAtIso:    view.StartsAtIso,
		Active:         view.Active,
		Teams:          teams,
	}
}

func toAuthResponse(user *domain.User) authResponse {
	return authResponse{
		Ok:        true,
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Credits:   user.Credits,
		Type:      user.Type,
	}
}

func toProfileResponse(profile *domain.RiotProfile) riotProfileResponse {
	return riotProfileResponse{
		UserID:          profile.UserID,
		Puuid:           profile.Puuid,
		GameName:        profile.GameName,
		TagLine:         profile.TagLine,
		SummonerLevel:   profile.SummonerLevel,
		ProfileIconID:   profile.ProfileIconID,
		LastSyncAtEpoch: profile.LastSyncAtEpoch,
	}
}

type rankedEntryResponse struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

func entriesResponse(entries []domain.RankedEntry) map[string]any {
	out := make([]rankedEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, rankedEntryResponse{
			QueueType:    e.QueueType,
			Tier:         e.Tier,
			Rank:         e.Rank,
			LeaguePoints: e.LeaguePoints,
			Wins:         e.Wins,
			Losses:       e.Losses,
		})
	}
	return map[string]any{"entries": out}
}

type masteryResponse struct {
	ChampionID     int   `json:"championId"`
	ChampionPoints int64 `json:"championPoints"`
	ChampionLevel  int   `json:"championLevel"`
	LastPlayTime   int64 `json:"lastPlayTime"`
	ChestGranted   bool  `json:"chestGranted"`
}

func masteriesResponse(masteries []domain.ChampionMastery) map[string]any {
	out := make([]masteryResponse, 0, len(masteries))
	for _, m := range masteries {
		out = append(out, masteryResponse{
			ChampionID:     m.ChampionID,
			ChampionPoints: m.ChampionPoints,
			ChampionLevel:  m.ChampionLevel,
			LastPlayTime:   m.LastPlayTimeEpoch,
			ChestGranted:   m.ChestGranted,
		})
	}
	return map[string]any{"masteries": out}
}

type matchStatsResponse struct {
	MatchID      string `json:"matchId"`
	ChampionID   int    `json:"championId"`
	ChampionName string `json:"championName"`
	Kills        int    `json:"kills"`
	Deaths       int    `json:"deaths"`
	Assists      int    `json:"assists"`
	CreepScore   int    `json:"creepScore"`
	GoldEarned   int    `json:"goldEarned"`
	DamageDealt  int64  `json:"damageDealt"`
	VisionScore  int    `json:"visionScore"`
	Win          bool   `json:"win"`
	QueueID      int    `json:"queueId"`
}

func matchesResponse(stats []domain.UserMatchStats) map[string]any {
	out := make([]matchStatsResponse, 0, len(stats))
	for _, m := range stats {
		out = append(out, matchStatsResponse{
			MatchID:      m.MatchID,
			ChampionID:   m.ChampionID,
			ChampionName: m.ChampionName,
			Kills:        m.Kills,
			Deaths:       m.Deaths,
			Assists:      m.Assists,
			CreepScore:   m.CreepScore,
			GoldEarned:   m.GoldEarned,
			DamageDealt:  m.DamageToChampions,
			VisionScore:  m.VisionScore,
			Win:          m.Win,
			QueueID:      m.QueueID,
		})
	}
	return map[string]any{"matches": out}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperr.KindValidation:
			status = http.StatusBadRequest
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindConflict:
			status = http.StatusConflict
		case apperr.KindUpstream:
			status = http.StatusBadGateway
		case apperr.KindParse:
			status = http.StatusUnprocessableEntity
		}
	}

	event := s.logger.Warn()
	if status >= 500 {
		event = s.logger.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")

	msg := "internal error"
	if appErr != nil {
		msg = appErr.Msg
	}
	writeJSON(w, status, errorBody{Message: msg})
}
