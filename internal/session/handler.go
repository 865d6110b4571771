package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/aegis-soc/aegis-soc/internal/observability"
	"github.com/aegis-soc/aegis-soc/internal/platform/httpx"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	manager *Manager
	metrics *observability.Metrics
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, manager *Manager, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, manager: manager, metrics: metrics}
}

// MountRoutes registers auth routes on the provided router. Login is
// throttled harder than the global limit to slow credential guessing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.currentSession)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	user, err := h.manager.Login(r.Context(), creds)
	if err != nil {
		h.metrics.RecordLogin(false)
		h.logger.Warn("login failed", slog.String("username", creds.Username))
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordLogin(true)
	h.logger.Info("login", slog.String("user_id", user.ID))
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.manager.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	user, ok := h.manager.Current(r.Context())
	if !ok {
		httpx.JSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}
