package directory

import "context"

// RepositoryPort defines data access methods for operator accounts.
// Lookups return records regardless of the isActive flag; usernames and
// emails stay reserved by deactivated accounts.
type RepositoryPort interface {
	Insert(ctx context.Context, user User) error
	Update(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	ListActive(ctx context.Context) ([]User, error)
}
