package directory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aegis-soc/aegis-soc/internal/platform/httpx"
	"github.com/aegis-soc/aegis-soc/internal/rbac"
)

// Actor identifies the signed-in operator performing a request.
type Actor interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Handler manages operator account endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	actor   Actor
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, actor Actor, rbacmw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, actor: actor, rbac: rbacmw}
}

// MountRoutes registers account routes. Every route requires the
// users/write permission: the directory is an administrative surface.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("users", rbac.ActionWrite))
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Patch("/{userID}", h.updateUser)
		r.Delete("/{userID}", h.deactivateUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var input CreateUserInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	createdBy, ok := h.actor.CurrentUserID(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no active session")
		return
	}
	user, err := h.service.Create(r.Context(), input, createdBy)
	if err != nil {
		h.logger.Warn("create user failed", slog.String("username", input.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var update UserUpdate
	if err := httpx.DecodeJSON(r, &update); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	user, err := h.service.Update(r.Context(), chi.URLParam(r, "userID"), update)
	if err != nil {
		h.logger.Warn("update user failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deactivate(r.Context(), chi.URLParam(r, "userID")); err != nil {
		h.logger.Warn("deactivate user failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
