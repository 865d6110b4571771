package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aegis-soc/aegis-soc/internal/rbac"
	"github.com/aegis-soc/aegis-soc/internal/shared"
)

// Service handles operator account business logic.
type Service struct {
	repo     RepositoryPort
	roles    *rbac.Service
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, roles *rbac.Service) *Service {
	return &Service{
		repo:     repo,
		roles:    roles,
		validate: validator.New(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create provisions a new active account. Username and email must be
// unique across all accounts, deactivated ones included, and the role
// must resolve in the catalog. The permission snapshot is copied from
// the role at this moment.
func (s *Service) Create(ctx context.Context, input CreateUserInput, createdBy string) (User, error) {
	if err := s.validate.Struct(input); err != nil {
		return User{}, fmt.Errorf("directory: %v: %w", err, shared.ErrValidation)
	}
	role, err := s.roles.FindRole(input.RoleID)
	if err != nil {
		return User{}, err
	}
	user := User{
		ID:          s.newID(),
		Username:    input.Username,
		Email:       input.Email,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Department:  input.Department,
		RoleID:      role.ID,
		Permissions: append([]rbac.Permission(nil), role.Permissions...),
		IsActive:    true,
		CreatedAt:   s.now(),
		CreatedBy:   createdBy,
	}
	if err := s.repo.Insert(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Update applies a partial update. Only supplied fields are
// overwritten. A supplied role replaces the permission snapshot with
// the new role's set; nothing is merged with the old one.
func (s *Service) Update(ctx context.Context, userID string, update UserUpdate) (User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.Department != nil {
		user.Department = *update.Department
	}
	if update.RoleID != nil {
		role, err := s.roles.FindRole(*update.RoleID)
		if err != nil {
			return User{}, err
		}
		user.RoleID = role.ID
		user.Permissions = append([]rbac.Permission(nil), role.Permissions...)
	}
	if update.LastLogin != nil {
		t := *update.LastLogin
		user.LastLogin = &t
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Deactivate performs a logical delete: the record is retained for
// audit history and keeps its username and email reserved.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	user.IsActive = false
	return s.repo.Update(ctx, user)
}

// ListActive returns active accounts only.
func (s *Service) ListActive(ctx context.Context) ([]User, error) {
	return s.repo.ListActive(ctx)
}

// FindByUsername resolves an account by username regardless of the
// isActive flag. Used by the authentication flow.
func (s *Service) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.repo.FindByUsername(ctx, username)
}

// RecordLogin stamps the account's last successful login.
func (s *Service) RecordLogin(ctx context.Context, userID string, at time.Time) (User, error) {
	return s.Update(ctx, userID, UserUpdate{LastLogin: &at})
}
