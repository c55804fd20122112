package server

import (
	"net/http"
	"regexp"
)

// Route binds one method and one anchored path pattern to a handler. The
// table is built once at startup and never mutated afterwards, so matching
// needs no locking.
type Route struct {
	Method  string
	Pattern *regexp.Regexp
	Handler func(w http.ResponseWriter, r *http.Request, params map[string]string)
}

const idSegment = `[A-Za-z0-9_-]+`

func (s *Server) routes() []Route {
	return []Route{
		{http.MethodGet, pattern(`/healthz`), s.handleHealth},
		{http.MethodPost, pattern(`/auth/signup`), s.handleSignup},
		{http.MethodPost, pattern(`/auth/login`), s.handleLogin},
		{http.MethodGet, pattern(`/users/(?P<userId>` + idSegment + `)`), s.handleGetUser},
		{http.MethodPut, pattern(`/users/(?P<userId>` + idSegment + `)/avatar`), s.handleUpdateAvatar},
		{http.MethodPost, pattern(`/users/(?P<userId>` + idSegment + `)/riot/link`), s.handleRiotLink},
		{http.MethodPost, pattern(`/users/(?P<userId>` + idSegment + `)/riot/sync-ranked`), s.handleSyncRanked},
		{http.MethodPost, pattern(`/users/(?P<userId>` + idSegment + `)/riot/sync-mastery`), s.handleSyncMastery},
		{http.MethodPost, pattern(`/users/(?P<userId>` + idSegment + `)/riot/sync-matches`), s.handleSyncMatches},
		{http.MethodPost, pattern(`/users/(?P<userId>` + idSegment + `)/riot/sync`), s.handleSyncAll},
		{http.MethodGet, pattern(`/users/(?P<userId>` + idSegment + `)/riot/profile`), s.handleRiotProfile},
		{http.MethodGet, pattern(`/users/(?P<userId>` + idSegment + `)/riot/ranked`), s.handleListRanked},
		{http.MethodGet, pattern(`/users/(?P<userId>` + idSegment + `)/riot/mastery`), s.handleListMastery},
		{http.MethodGet, pattern(`/users/(?P<userId>` + idSegment + `)/riot/matches`), s.handleListMatches},
		{http.MethodGet, pattern(`/lobbies`), s.handleListLobbies},
		{http.MethodPost, pattern(`/lobbies`), s.handleCreateLobby},
		{http.MethodGet, pattern(`/lobbies/(?P<lobbyId>` + idSegment + `)`), s.handleGetLobby},
		{http.MethodPost, pattern(`/lobbies/(?P<lobbyId>` + idSegment + `)/bids`), s.handlePlaceBid},
	}
}

func pattern(p string) *regexp.Regexp {
	return regexp.MustCompile(`^` + p + `$`)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	for _, route := range s.table {
		if route.Method != r.Method {
			continue
		}
		m := route.Pattern.FindStringSubmatch(r.URL.Path)
		if m == nil {
			continue
		}

		params := make(map[string]string)
		for i, name := range route.Pattern.SubexpNames() {
			if i > 0 && name != "" {
				params[name] = m[i]
			}
		}
		route.Handler(w, r, params)
		return
	}

	writeJSON(w, http.StatusNotFound, errorBody{Message: "route not found"})
}
