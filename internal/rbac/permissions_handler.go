package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aegis-soc/aegis-soc/internal/platform/httpx"
)

// PermissionsHandler serves the permission and role catalog.
type PermissionsHandler struct {
	service *Service
}

// NewPermissionsHandler constructs the catalog handler.
func NewPermissionsHandler(service *Service) *PermissionsHandler {
	return &PermissionsHandler{service: service}
}

// MountRoutes attaches catalog routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
	r.Get("/roles", h.listRoles)
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": h.service.ListPermissions()})
}

func (h *PermissionsHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": h.service.ListRoles()})
}
