package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
	"github.com/funniceguy/web-minigame-factory/internal/notify"
	"github.com/funniceguy/web-minigame-factory/internal/sanitize"
	"github.com/funniceguy/web-minigame-factory/internal/store"
	"github.com/funniceguy/web-minigame-factory/internal/websocket"
)

// Sync bodies above this are rejected with 413.
const maxSyncBodyBytes = 128 << 10

// Handler provides HTTP handlers for the leaderboard API
type Handler struct {
	store  *store.Store
	broker *notify.Broker
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(store *store.Store, broker *notify.Broker, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		broker: broker,
		hub:    hub,
		logger: logger,
	}
}

type healthResponse struct {
	OK        bool          `json:"ok"`
	Revision  int64         `json:"revision"`
	Season    domain.Season `json:"season"`
	UpdatedAt int64         `json:"updatedAt"`
}

type syncResponse struct {
	OK       bool           `json:"ok"`
	Enabled  bool           `json:"enabled"`
	Revision int64          `json:"revision"`
	Season   domain.Season  `json:"season"`
	Player   syncPlayerInfo `json:"player"`
}

type syncPlayerInfo struct {
	UID          string `json:"uid"`
	OverallScore int64  `json:"overallScore"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/api/health", h.HealthCheck)

	r.Route("/api/leaderboard", func(r chi.Router) {
		r.Post("/sync", h.SyncPlayer)
		r.Get("/snapshot", h.GetSnapshot)
		r.Get("/events", h.HandleEvents)
		r.Get("/stats", h.GetStats)
	})

	// WebSocket mirror of the event stream
	r.Get("/ws", h.HandleWebSocket)
	r.Get("/api/ws/stats", h.GetWebSocketStats)

	return r
}

// corsMiddleware adds permissive CORS headers and short-circuits preflight
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a non-cacheable JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// HealthCheck returns the live state summary
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	info := h.store.Info()
	h.writeJSON(w, http.StatusOK, healthResponse{
		OK:        true,
		Revision:  info.Revision,
		Season:    info.Season,
		UpdatedAt: info.UpdatedAt,
	})
}

// SyncPlayer handles a session report. Malformed JSON and an unusable
// player id are rejected outright; individual bad fields inside a valid
// request are sanitized or dropped by the store instead.
func (h *Handler) SyncPlayer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSyncBodyBytes)

	var req domain.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, domain.ErrInvalidRequest)
			return
		}
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.store.SyncPlayer(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPlayerID) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to sync player", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, syncResponse{
		OK:       true,
		Enabled:  true,
		Revision: result.Revision,
		Season:   result.Season,
		Player: syncPlayerInfo{
			UID:          result.PlayerID,
			OverallScore: result.OverallScore,
		},
	})
}

// GetSnapshot returns the overall and per-game rankings
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var gameIDs []string
	for _, raw := range strings.Split(query.Get("gameIds"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			gameIDs = append(gameIDs, raw)
		}
	}

	snap := h.store.Snapshot(domain.SnapshotRequest{
		PlayerID: query.Get("playerId"),
		GameIDs:  gameIDs,
		TopLimit: sanitize.ClampTopLimit(query.Get("topLimit")),
	})
	h.writeJSON(w, http.StatusOK, snap)
}

// GetStats returns season statistics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Stats())
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ok":                true,
		"total_connections": h.hub.GetTotalConnections(),
	})
}
