package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pvp-arena/internal/config"
	"github.com/pvp-arena/internal/domain"
	"github.com/pvp-arena/internal/service"
	"github.com/pvp-arena/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.MemStore) {
	t.Helper()
	store := testutil.NewMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewArenaService(
		store,
		testutil.NewMemScoreboard(),
		&config.MatchConfig{TTL: 24 * time.Hour, MinTurns: 1, MaxTurns: 30},
		&config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 100},
		logger,
	)
	return NewHandler(svc, nil, logger), store
}

func doRequest(t *testing.T, h *Handler, method, path, playerID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if playerID != "" {
		req.Header.Set("X-Player-ID", playerID)
	}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func registerPlayer(t *testing.T, h *Handler, playerID string) {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/api/v1/players", playerID, domain.RegisterPlayerRequest{
		Username:       playerID,
		CombatSnapshot: domain.CombatSnapshot{Attack: 10, MaxHealth: 100},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func createMatch(t *testing.T, h *Handler, initiatorID, opponentID string) string {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/api/v1/matches", initiatorID,
		domain.CreateMatchRequest{OpponentID: opponentID})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeResponse(t, rec)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var match domain.CreateMatchResponse
	require.NoError(t, json.Unmarshal(data, &match))
	require.NotEmpty(t, match.MatchID)
	return match.MatchID
}

func submission() domain.SubmitResultRequest {
	return domain.SubmitResultRequest{
		Result: &domain.CombatResult{
			TurnCount: 5,
			ActionHistory: []domain.CombatAction{
				{SourceID: "p1", Ability: "strike", Damage: 12},
				{SourceID: "p2", Ability: "strike", Damage: 9},
			},
			FinalPlayerState: domain.CombatantState{IsAlive: true, RemainingHealth: 51},
			FinalEnemyState:  domain.CombatantState{IsAlive: false},
			PlayerWon:        true,
			XPGained:         50,
		},
	}
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, path := range []string{"/health", "/ready"} {
		rec := doRequest(t, h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRequireIdentity(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/matches", "",
		domain.CreateMatchRequest{OpponentID: "p2"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, decodeResponse(t, rec).Success)
}

func TestRegisterPlayerEndpoint(t *testing.T) {
	h, store := newTestHandler(t)
	registerPlayer(t, h, "p1")

	player, err := store.GetPlayer(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", player.Username)

	// Duplicate registration conflicts
	rec := doRequest(t, h, http.MethodPost, "/api/v1/players", "p1",
		domain.RegisterPlayerRequest{Username: "p1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateMatchEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	registerPlayer(t, h, "p1")
	registerPlayer(t, h, "p2")

	matchID := createMatch(t, h, "p1", "p2")

	// Participants can read the match back
	rec := doRequest(t, h, http.MethodGet, "/api/v1/matches/"+matchID, "p2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unknown opponent is a 404
	rec = doRequest(t, h, http.MethodPost, "/api/v1/matches", "p1",
		domain.CreateMatchRequest{OpponentID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Self-challenge is a 400
	rec = doRequest(t, h, http.MethodPost, "/api/v1/matches", "p1",
		domain.CreateMatchRequest{OpponentID: "p1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitResultEndpoint(t *testing.T) {
	h, store := newTestHandler(t)
	registerPlayer(t, h, "p1")
	registerPlayer(t, h, "p2")
	registerPlayer(t, h, "p3")
	matchID := createMatch(t, h, "p1", "p2")

	// Non-participant is forbidden
	rec := doRequest(t, h, http.MethodPost, "/api/v1/matches/"+matchID+"/result", "p3", submission())
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Structurally invalid transcript is a 400
	bad := submission()
	bad.Result.TurnCount = 31
	rec = doRequest(t, h, http.MethodPost, "/api/v1/matches/"+matchID+"/result", "p1", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid submission settles the match
	rec = doRequest(t, h, http.MethodPost, "/api/v1/matches/"+matchID+"/result", "p1", submission())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)

	winner, err := store.GetPlayer(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), winner.PvPWins)
	assert.Equal(t, int64(50), winner.TotalXP)

	// A second submission conflicts
	rec = doRequest(t, h, http.MethodPost, "/api/v1/matches/"+matchID+"/result", "p2", submission())
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown match is a 404
	rec = doRequest(t, h, http.MethodPost, "/api/v1/matches/nope/result", "p1", submission())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitExerciseEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	registerPlayer(t, h, "p1")

	rec := doRequest(t, h, http.MethodPost, "/api/v1/exercises", "p1",
		domain.ExerciseSubmission{Exercise: "Push-ups", Reps: 20, XP: 40})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(40), data["xp_gained"])
	assert.Equal(t, float64(40), data["total_xp"])
}

func TestListPlayerMatchesEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	registerPlayer(t, h, "p1")
	registerPlayer(t, h, "p2")
	createMatch(t, h, "p1", "p2")

	rec := doRequest(t, h, http.MethodGet, "/api/v1/players/p1/matches?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	matches, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, matches, 1)
}

func TestLeaderboardEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	registerPlayer(t, h, "p1")
	registerPlayer(t, h, "p2")
	matchID := createMatch(t, h, "p1", "p2")
	rec := doRequest(t, h, http.MethodPost, "/api/v1/matches/"+matchID+"/result", "p1", submission())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/leaderboards/wins/top?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	entries, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, entries, 1)
	entry, ok := entries[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "p1", entry["player_id"])

	// Unknown board is a 400
	rec = doRequest(t, h, http.MethodGet, "/api/v1/leaderboards/bogus/top", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlayerRankEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	registerPlayer(t, h, "p1")
	registerPlayer(t, h, "p2")
	matchID := createMatch(t, h, "p1", "p2")
	rec := doRequest(t, h, http.MethodPost, "/api/v1/matches/"+matchID+"/result", "p1", submission())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/leaderboards/wins/rank/p1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	entry, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), entry["rank"])
	assert.Equal(t, float64(1), entry["score"])
	assert.Equal(t, "p1", entry["username"])

	// The loser has no wins score yet
	rec = doRequest(t, h, http.MethodGet, "/api/v1/leaderboards/wins/rank/p2", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/leaderboards/bogus/rank/p1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
