package directory

import (
	"time"

	"github.com/aegis-soc/aegis-soc/internal/rbac"
)

// User represents an operator account. Permissions is the snapshot of
// the bound role's permission set taken at assignment time; checks run
// against it, never against a live role lookup.
type User struct {
	ID          string            `json:"id"`
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	FirstName   string            `json:"firstName"`
	LastName    string            `json:"lastName"`
	Department  string            `json:"department"`
	RoleID      string            `json:"roleId"`
	Permissions []rbac.Permission `json:"permissions"`
	IsActive    bool              `json:"isActive"`
	CreatedAt   time.Time         `json:"createdAt"`
	CreatedBy   string            `json:"createdBy"`
	LastLogin   *time.Time        `json:"lastLogin,omitempty"`
}

// CreateUserInput carries the fields required to provision an account.
type CreateUserInput struct {
	Username   string `json:"username" validate:"required,min=3"`
	Email      string `json:"email" validate:"required,email"`
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Department string `json:"department"`
	RoleID     string `json:"roleId" validate:"required"`
}

// UserUpdate describes a partial update. Nil fields keep their prior
// values; a supplied RoleID recomputes the permission snapshot from the
// new role's current permission set.
type UserUpdate struct {
	Email      *string    `json:"email,omitempty"`
	FirstName  *string    `json:"firstName,omitempty"`
	LastName   *string    `json:"lastName,omitempty"`
	Department *string    `json:"department,omitempty"`
	RoleID     *string    `json:"roleId,omitempty"`
	LastLogin  *time.Time `json:"-"`
}
