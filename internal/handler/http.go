package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teamtrack/internal/domain"
	"github.com/teamtrack/internal/ingest"
	"github.com/teamtrack/internal/notify"
	"github.com/teamtrack/internal/service"
	"github.com/teamtrack/internal/websocket"
)

// Handler provides HTTP handlers for the team statistics API
type Handler struct {
	engine        *service.Engine
	notifications *notify.Dispatcher
	hub           *websocket.Hub
	logger        *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(engine *service.Engine, notifications *notify.Dispatcher, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		engine:        engine,
		notifications: notifications,
		hub:           hub,
		logger:        logger,
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
		// Event ingestion
		r.Post("/events", h.IngestEvent)
		r.Post("/events/batch", h.IngestEventBatch)

		// Player statistics
		r.Route("/players/{playerID}", func(r chi.Router) {
			r.Get("/stats", h.GetStatistics)
			r.Post("/recalculate", h.Recalculate)
			r.Post("/ensure", h.EnsureStatistics)
			r.Put("/weight", h.SetWeight)
		})

		// Stored notifications
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/{notificationID}/seen", h.MarkNotificationSeen)
			r.Delete("/{notificationID}", h.DeleteNotification)
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
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
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

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
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

// IngestEvent accepts a single tagged domain event
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var env ingest.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := ingest.Dispatch(r.Context(), h.engine, env); err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to ingest event", "kind", env.Kind, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "accepted"})
}

// IngestEventBatch accepts a list of tagged domain events. Invalid entries
// are dropped individually; the batch itself always succeeds.
func (h *Handler) IngestEventBatch(w http.ResponseWriter, r *http.Request) {
	var envs []ingest.Envelope
	if err := json.NewDecoder(r.Body).Decode(&envs); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if len(envs) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	accepted := 0
	for _, env := range envs {
		if err := ingest.Dispatch(r.Context(), h.engine, env); err != nil {
			if errors.Is(err, domain.ErrInvalidEvent) {
				h.logger.Warn("dropping invalid event in batch", "kind", env.Kind, "error", err)
			} else {
				h.logger.Error("failed to ingest event in batch", "kind", env.Kind, "error", err)
			}
			continue
		}
		accepted++
	}

	h.writeSuccess(w, map[string]interface{}{
		"status":   "accepted",
		"received": len(envs),
		"applied":  accepted,
	})
}

// GetStatistics returns a player's current statistics record
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	stats, err := h.engine.GetStatistics(r.Context(), playerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get statistics", "player_id", playerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, stats)
}

// Recalculate rebuilds a player's statistics from recorded history
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	// A missing team scope would rebuild against an empty calendar and wipe
	// the match counters, so it is rejected rather than defaulted.
	teamID := r.URL.Query().Get("team_id")
	if teamID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	stats, err := h.engine.Recalculate(r.Context(), playerID, teamID)
	if err != nil {
		h.logger.Error("failed to recalculate statistics", "player_id", playerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, stats)
}

// EnsureStatistics returns a player's record, creating and backfilling it
// from history if missing
func (h *Handler) EnsureStatistics(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	teamID := r.URL.Query().Get("team_id")
	if teamID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	stats, err := h.engine.Ensure(r.Context(), playerID, teamID)
	if err != nil {
		h.logger.Error("failed to ensure statistics", "player_id", playerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, stats)
}

// SetWeight records a weight measurement for a player
func (h *Handler) SetWeight(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req struct {
		Weight float64 `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.Weight < 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.engine.SetWeight(r.Context(), playerID, req.Weight); err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to set weight", "player_id", playerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "updated"})
}

// ListNotifications returns a user's stored notifications, newest first
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	notifications, err := h.notifications.ListForUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list notifications", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, notifications)
}

// MarkNotificationSeen flags a stored notification as seen
func (h *Handler) MarkNotificationSeen(w http.ResponseWriter, r *http.Request) {
	notificationID := chi.URLParam(r, "notificationID")
	if notificationID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.notifications.MarkSeen(r.Context(), notificationID); err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to mark notification seen", "notification_id", notificationID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "seen"})
}

// DeleteNotification removes a stored notification
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	notificationID := chi.URLParam(r, "notificationID")
	if notificationID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.notifications.Delete(r.Context(), notificationID); err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to delete notification", "notification_id", notificationID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "deleted"})
}
