package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pvp-arena/internal/domain"
	"github.com/pvp-arena/internal/service"
	"github.com/pvp-arena/internal/websocket"
)

// playerIDHeader carries the authenticated caller identity. Verification of
// the identity itself happens upstream (gateway); this service only requires
// that one is present.
const playerIDHeader = "X-Player-ID"

// Handler provides HTTP handlers for the arena API
type Handler struct {
	service *service.ArenaService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.ArenaService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Player registry and history
		r.Route("/players", func(r chi.Router) {
			r.With(h.requireIdentity).Post("/", h.RegisterPlayer)
			r.Get("/{playerID}", h.GetPlayer)
			r.Get("/{playerID}/matches", h.ListPlayerMatches)
		})

		// Match lifecycle
		r.Route("/matches", func(r chi.Router) {
			r.Use(h.requireIdentity)
			r.Post("/", h.CreateMatch)
			r.Get("/{matchID}", h.GetMatch)
			r.Post("/{matchID}/result", h.SubmitResult)
		})

		// Exercise XP
		r.With(h.requireIdentity).Post("/exercises", h.SubmitExercise)

		// Arena leaderboards
		r.Route("/leaderboards/{board}", func(r chi.Router) {
			r.Get("/top", h.GetLeaderboardTop)
			r.Get("/rank/{playerID}", h.GetPlayerRank)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, X-Player-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireIdentity rejects requests without a caller identity
func (h *Handler) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(playerIDHeader) == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerID returns the authenticated caller identity for the request
func callerID(r *http.Request) string {
	return r.Header.Get(playerIDHeader)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a domain error to its HTTP status
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, err)
	case domain.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrNotParticipant):
		h.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrMatchNotPending):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrMatchExpired):
		h.writeError(w, http.StatusGone, err)
	case errors.Is(err, domain.ErrPlayerExists):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.writeSuccess(w, map[string]interface{}{"total_connections": 0})
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// RegisterPlayer registers the caller as a new player
func (h *Handler) RegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	req.ID = callerID(r)

	player, err := h.service.RegisterPlayer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    player,
	})
}

// GetPlayer returns a player record
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	player, err := h.service.GetPlayer(r.Context(), playerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, player)
}

// ListPlayerMatches returns a player's match history
func (h *Handler) ListPlayerMatches(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	matches, err := h.service.ListPlayerMatches(r.Context(), playerID, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, matches)
}

// CreateMatch creates a new pending match against an opponent
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	resp, err := h.service.CreateMatch(r.Context(), callerID(r), req.OpponentID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    resp,
	})
}

// GetMatch returns a match record to a participant
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	if matchID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	match, err := h.service.GetMatch(r.Context(), callerID(r), matchID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, match)
}

// SubmitResult submits a combat result for a pending match
func (h *Handler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	if matchID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req domain.SubmitResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.service.SubmitResult(r.Context(), matchID, callerID(r), req.Result); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, map[string]bool{"success": true})
}

// SubmitExercise awards exercise XP to the caller
func (h *Handler) SubmitExercise(w http.ResponseWriter, r *http.Request) {
	var sub domain.ExerciseSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	sub.PlayerID = callerID(r)

	xpGained, totalXP, err := h.service.SubmitExercise(r.Context(), sub)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"xp_gained": xpGained,
		"total_xp":  totalXP,
	})
}

// GetLeaderboardTop returns the top N players of an arena board
func (h *Handler) GetLeaderboardTop(w http.ResponseWriter, r *http.Request) {
	board := chi.URLParam(r, "board")
	if board == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.service.Leaderboard(r.Context(), board, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, entries)
}

// GetPlayerRank returns a player's rank and score on an arena board
func (h *Handler) GetPlayerRank(w http.ResponseWriter, r *http.Request) {
	board := chi.URLParam(r, "board")
	playerID := chi.URLParam(r, "playerID")
	if board == "" || playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	entry, err := h.service.PlayerRank(r.Context(), board, playerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, entry)
}
