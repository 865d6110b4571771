package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-soc/aegis-soc/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, email, first_name, last_name, department, role_id, permissions, is_active, created_at, created_by, last_login`

// Insert persists a new account. Unique violations on username or
// email map to the conflict sentinel.
func (r *Repository) Insert(ctx context.Context, user User) error {
	perms, err := json.Marshal(user.Permissions)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.Department,
		user.RoleID, perms, user.IsActive, user.CreatedAt, user.CreatedBy, user.LastLogin)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("directory: username or email taken: %w", shared.ErrConflict)
		}
		return err
	}
	return nil
}

// Update rewrites the full account row.
func (r *Repository) Update(ctx context.Context, user User) error {
	perms, err := json.Marshal(user.Permissions)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE users SET
		username = $2, email = $3, first_name = $4, last_name = $5, department = $6,
		role_id = $7, permissions = $8, is_active = $9, last_login = $10
		WHERE id = $1`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.Department,
		user.RoleID, perms, user.IsActive, user.LastLogin)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("directory: username or email taken: %w", shared.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("directory: user %s: %w", user.ID, shared.ErrNotFound)
	}
	return nil
}

// FindByID fetches an account by ID, active or not.
func (r *Repository) FindByID(ctx context.Context, id string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("directory: user %s: %w", id, shared.ErrNotFound)
		}
		return User{}, err
	}
	return user, nil
}

// FindByUsername fetches an account by username, active or not.
func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("directory: username %s: %w", username, shared.ErrNotFound)
		}
		return User{}, err
	}
	return user, nil
}

// ListActive returns active accounts ordered by creation time.
func (r *Repository) ListActive(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE is_active ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	var perms []byte
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName,
		&user.Department, &user.RoleID, &perms, &user.IsActive, &user.CreatedAt,
		&user.CreatedBy, &user.LastLogin); err != nil {
		return User{}, err
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &user.Permissions); err != nil {
			return User{}, err
		}
	}
	return user, nil
}
