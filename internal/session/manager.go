package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aegis-soc/aegis-soc/internal/directory"
	"github.com/aegis-soc/aegis-soc/internal/rbac"
	"github.com/aegis-soc/aegis-soc/internal/shared"
)

// DefaultSnapshotKey is the well-known KV key for the persisted session.
const DefaultSnapshotKey = "aegis:session:current"

// CredentialVerifier delegates password verification to an external
// identity provider. The core never sees a password hash. A nil
// verifier means lookup-only login.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) error
}

// Credentials carries a login attempt.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is the single authenticated identity held by the console.
type Session struct {
	User          directory.User `json:"user"`
	EstablishedAt time.Time      `json:"establishedAt"`
}

// Manager owns the current session. It is the only writer; a mutex
// preserves the single-writer guarantee on a multi-threaded host.
type Manager struct {
	mu        sync.Mutex
	current   *Session
	store     KV
	key       string
	directory *directory.Service
	verifier  CredentialVerifier
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time
}

// NewManager constructs a Manager. verifier may be nil.
func NewManager(logger *slog.Logger, dir *directory.Service, store KV, verifier CredentialVerifier) *Manager {
	return &Manager{
		store:     store,
		key:       DefaultSnapshotKey,
		directory: dir,
		verifier:  verifier,
		logger:    logger,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// Login authenticates by username against active accounts. Unknown and
// inactive usernames fail with the same generic error so the response
// does not reveal which accounts exist.
func (m *Manager) Login(ctx context.Context, creds Credentials) (directory.User, error) {
	if err := m.validate.Struct(creds); err != nil {
		return directory.User{}, fmt.Errorf("session: %v: %w", err, shared.ErrValidation)
	}

	user, err := m.directory.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return directory.User{}, shared.ErrInvalidCredentials
		}
		// A store outage is not a credential failure; surface it as
		// such so the operator does not get told the password is wrong.
		return directory.User{}, fmt.Errorf("session: lookup account: %v: %w", err, shared.ErrUnavailable)
	}
	if !user.IsActive {
		return directory.User{}, shared.ErrInvalidCredentials
	}
	if m.verifier != nil {
		if err := m.verifier.Verify(ctx, creds.Username, creds.Password); err != nil {
			return directory.User{}, shared.ErrInvalidCredentials
		}
	}

	at := m.now()
	stamped, err := m.directory.RecordLogin(ctx, user.ID, at)
	if err != nil {
		m.logWarn("record last login", err)
		stamped = user
		stamped.LastLogin = &at
	}

	sess := &Session{User: stamped, EstablishedAt: at}
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	if err := m.persist(ctx, sess); err != nil {
		m.logWarn("persist session snapshot", err)
	}
	return stamped, nil
}

// Logout clears the in-memory session and removes the persisted
// snapshot. Calling it with no active session is a no-op.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if err := m.store.Remove(ctx, m.key); err != nil {
		m.logWarn("remove session snapshot", err)
	}
}

// Current returns the session user, restoring from the persisted
// snapshot when no in-memory session exists. Restoration failure never
// raises: a corrupt snapshot is discarded and absence is reported.
func (m *Manager) Current(ctx context.Context) (directory.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current.User, true
	}

	raw, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		m.logWarn("read session snapshot", err)
		return directory.User{}, false
	}
	if !ok {
		return directory.User{}, false
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.User.ID == "" {
		if removeErr := m.store.Remove(ctx, m.key); removeErr != nil {
			m.logWarn("discard corrupt session snapshot", removeErr)
		}
		return directory.User{}, false
	}

	m.current = &sess
	return sess.User, true
}

// HasPermission reports whether the user's permission snapshot grants
// the (resource, action) pair. The stored snapshot is consulted, never
// a live role lookup: role changes do not retroactively affect
// already-assigned users until their record is explicitly updated.
func (m *Manager) HasPermission(user directory.User, resource string, action rbac.Action) bool {
	return rbac.HasPermission(user.Permissions, resource, action)
}

// CanManageUsers reports whether the user may administer accounts.
func (m *Manager) CanManageUsers(user directory.User) bool {
	return m.HasPermission(user, "users", rbac.ActionWrite)
}

// CurrentSnapshot implements rbac.SnapshotSource.
func (m *Manager) CurrentSnapshot(ctx context.Context) ([]rbac.Permission, bool) {
	user, ok := m.Current(ctx)
	if !ok {
		return nil, false
	}
	return user.Permissions, true
}

// CurrentUserID implements directory.Actor.
func (m *Manager) CurrentUserID(ctx context.Context) (string, bool) {
	user, ok := m.Current(ctx)
	if !ok {
		return "", false
	}
	return user.ID, true
}

func (m *Manager) persist(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.key, string(data))
}

func (m *Manager) logWarn(msg string, err error) {
	if m.logger != nil {
		m.logger.Warn(msg, slog.Any("error", err))
	}
}
