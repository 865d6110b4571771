package rbac

// Action classifies what a permission allows on a resource.
type Action string

// Supported permission actions.
const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionExecute Action = "execute"
)

// Permission represents an atomic capability. Authorization checks
// operate on the (resource, action) pair, not the identifier.
type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Resource    string `json:"resource"`
	Action      Action `json:"action"`
}

// Role represents a named permission bundle with a privilege level.
// Lower level means higher privilege. Roles are immutable once
// constructed and are never deleted while users may reference them.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Level       int          `json:"level"`
	Permissions []Permission `json:"permissions"`
}
