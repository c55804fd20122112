package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sub2play/internal/kv"
	"sub2play/internal/middleware"
	"sub2play/internal/repository"
	"sub2play/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store := kv.NewMemStore()
	log := zerolog.Nop()

	lobbySvc := service.NewLobbyService(repository.NewLobbyRepository(store, log), log)
	riotSvc := service.NewRiotService(nil,
		repository.NewRiotProfileRepository(store, log),
		repository.NewMatchRepository(store, log), log)
	authSvc := service.NewAuthService(repository.NewUserRepository(store, log), log)

	return middleware.WithIdentity(NewServer(lobbySvc, riotSvc, authSvc, log))
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouteNotFound(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// right path, wrong method
	rec = doJSON(t, h, http.MethodDelete, "/lobbies/l1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestServer(t), http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetLobby_CreatesDefault(t *testing.T) {
	rec := doJSON(t, newTestServer(t), http.MethodGet, "/lobbies/l1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp lobbyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "l1", resp.LobbyID)
	require.Len(t, resp.Teams, 2)
	assert.Len(t, resp.Teams[0].Slots, 5)
}

func TestPlaceBid_EndToEnd(t *testing.T) {
	h := newTestServer(t)
	headers := map[string]string{
		"x-user-id":      "u1",
		"x-display-name": "Alice",
	}

	rec := doJSON(t, h, http.MethodPost, "/lobbies/l1/bids",
		map[string]any{"teamIndex": 0, "role": "MID", "amount": 10}, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp bidResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.Equal(t, 10, resp.CurrentTopBidCredits)

	// losing bid comes back 200 with accepted=false
	rec = doJSON(t, h, http.MethodPost, "/lobbies/l1/bids",
		map[string]any{"teamIndex": 0, "role": "MID", "amount": 10},
		map[string]string{"x-user-id": "u2", "x-display-name": "Bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)

	// the lobby view reflects the winner
	rec = doJSON(t, h, http.MethodGet, "/lobbies/l1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view lobbyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "Alice", view.Teams[0].Slots[2].DisplayName)
	assert.Equal(t, 10, view.Teams[0].Slots[2].TopBidCredits)
}

func TestPlaceBid_ValidationStatus(t *testing.T) {
	h := newTestServer(t)

	// no identity header means no bidder user id
	rec := doJSON(t, h, http.MethodPost, "/lobbies/l1/bids",
		map[string]any{"teamIndex": 0, "role": "MID", "amount": 10}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/lobbies/l1/bids",
		map[string]any{"teamIndex": 0, "role": "CARRY", "amount": 10},
		map[string]string{"x-user-id": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/auth/signup",
		map[string]any{"username": "alice", "email": "a@example.com", "password": "hunter2"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Ok)
	require.NotEmpty(t, created.ID)

	// duplicate signup conflicts
	rec = doJSON(t, h, http.MethodPost, "/auth/signup",
		map[string]any{"username": "alice", "password": "other"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/login",
		map[string]any{"username": "alice", "password": "hunter2"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/login",
		map[string]any{"username": "alice", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/users/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRiotProfile_NotLinked(t *testing.T) {
	rec := doJSON(t, newTestServer(t), http.MethodGet, "/users/u1/riot/profile", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString("{broken"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
