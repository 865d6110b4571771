package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aegis-soc/aegis-soc/internal/platform/httpx"
)

// SnapshotSource yields the permission snapshot of the acting operator.
// A false second return means no operator is signed in.
type SnapshotSource interface {
	CurrentSnapshot(ctx context.Context) ([]Permission, bool)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Source SnapshotSource
	Logger *slog.Logger
}

// Require ensures the current operator holds the given (resource,
// action) permission before the wrapped handler runs.
func (m Middleware) Require(resource string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snapshot, ok := m.Source.CurrentSnapshot(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no active session")
				return
			}
			if !HasPermission(snapshot, resource, action) {
				if m.Logger != nil {
					m.Logger.Warn("permission denied",
						slog.String("resource", resource),
						slog.String("action", string(action)),
						slog.String("path", r.URL.Path))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
