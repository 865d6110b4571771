package rbac

import (
	"fmt"
	"sort"

	"github.com/aegis-soc/aegis-soc/internal/shared"
)

// Service exposes the static permission model. It holds no mutable
// state after construction.
type Service struct {
	permissions []Permission
	roles       []Role
	rolesByID   map[string]Role
}

// NewService constructs a Service backed by the built-in catalog.
func NewService() *Service {
	return NewServiceWithCatalog(builtinPermissions, builtinRoles())
}

// NewServiceWithCatalog constructs a Service from an explicit catalog.
func NewServiceWithCatalog(permissions []Permission, roles []Role) *Service {
	byID := make(map[string]Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}
	return &Service{
		permissions: append([]Permission(nil), permissions...),
		roles:       append([]Role(nil), roles...),
		rolesByID:   byID,
	}
}

// ListPermissions returns all permissions in the catalog.
func (s *Service) ListPermissions() []Permission {
	return append([]Permission(nil), s.permissions...)
}

// ListRoles returns all roles ordered by ascending privilege level,
// most privileged first.
func (s *Service) ListRoles() []Role {
	roles := append([]Role(nil), s.roles...)
	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].Level < roles[j].Level
	})
	return roles
}

// FindRole resolves a role by ID.
func (s *Service) FindRole(id string) (Role, error) {
	role, ok := s.rolesByID[id]
	if !ok {
		return Role{}, fmt.Errorf("rbac: role %s: %w", id, shared.ErrNotFound)
	}
	return role, nil
}

// HasPermission reports whether the snapshot grants the given action on
// the resource. A nil snapshot is treated as an empty set: snapshots
// are populated by a separate write path and a missing one must never
// crash a read path.
func HasPermission(snapshot []Permission, resource string, action Action) bool {
	for _, p := range snapshot {
		if p.Resource == resource && p.Action == action {
			return true
		}
	}
	return false
}
