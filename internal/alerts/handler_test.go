package alerts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aegis-soc/aegis-soc/internal/livesync"
	"github.com/aegis-soc/aegis-soc/internal/rbac"
	"github.com/aegis-soc/aegis-soc/internal/shared"
)

type memoryAlertStore struct {
	mu     sync.Mutex
	alerts map[string]Alert
	order  []string
}

func newMemoryAlertStore() *memoryAlertStore {
	return &memoryAlertStore{alerts: make(map[string]Alert)}
}

func (s *memoryAlertStore) Insert(ctx context.Context, alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = alert
	s.order = append(s.order, alert.ID)
	return nil
}

func (s *memoryAlertStore) Acknowledge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return fmt.Errorf("alerts: alert %s: %w", id, shared.ErrNotFound)
	}
	alert.Acknowledged = true
	s.alerts[id] = alert
	return nil
}

func (s *memoryAlertStore) Resolve(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return fmt.Errorf("alerts: alert %s: %w", id, shared.ErrNotFound)
	}
	alert.Status = StatusResolved
	s.alerts[id] = alert
	return nil
}

func (s *memoryAlertStore) CountOpenBySeverity(ctx context.Context) (map[Severity]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Severity]int64)
	for _, alert := range s.alerts {
		if alert.Status != StatusResolved {
			counts[alert.Severity]++
		}
	}
	return counts, nil
}

func (s *memoryAlertStore) CountUnacknowledged(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, alert := range s.alerts {
		if !alert.Acknowledged {
			count++
		}
	}
	return count, nil
}

// Fetch implements livesync.Source so a real synchronizer handle can
// back the view routes.
func (s *memoryAlertStore) Fetch(ctx context.Context) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Alert, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.alerts[id])
	}
	return out, nil
}

func (s *memoryAlertStore) get(id string) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	return alert, ok
}

type idleFeed struct{}

func (idleFeed) Subscribe(ctx context.Context, key string) (livesync.Subscription, error) {
	return idleSubscription{events: make(chan livesync.Event)}, nil
}

type idleSubscription struct {
	events chan livesync.Event
}

func (s idleSubscription) Events() <-chan livesync.Event { return s.events }
func (s idleSubscription) Close() error                  { return nil }

type roleSource struct {
	roleID string
}

func (s roleSource) CurrentSnapshot(ctx context.Context) ([]rbac.Permission, bool) {
	if s.roleID == "" {
		return nil, false
	}
	role, err := rbac.NewService().FindRole(s.roleID)
	if err != nil {
		return nil, false
	}
	return role.Permissions, true
}

func newAlertsRouter(t *testing.T, store *memoryAlertStore, roleID string) *chi.Mux {
	t.Helper()
	s := livesync.New[Alert](nil, store, idleFeed{}, nil, livesync.Config{Collection: Collection})
	handle, err := s.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(handle.Stop)
	require.Eventually(t, func() bool {
		return handle.Status() == livesync.StatusConnected
	}, time.Second, 5*time.Millisecond)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, store, handle, rbac.Middleware{Source: roleSource{roleID: roleID}})
	router := chi.NewRouter()
	router.Route("/alerts", handler.MountRoutes)
	return router
}

func seedAlert(t *testing.T, store *memoryAlertStore, id string, severity Severity) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), Alert{
		ID:        id,
		Title:     "alert " + id,
		Severity:  severity,
		Status:    StatusOpen,
		Timestamp: time.Now().UTC(),
	}))
}

func TestAlertRoutesRequireSession(t *testing.T) {
	router := newAlertsRouter(t, newMemoryAlertStore(), "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestViewerCanReadButNotTriage(t *testing.T) {
	store := newMemoryAlertStore()
	seedAlert(t, store, "a1", SeverityHigh)
	router := newAlertsRouter(t, store, "r4")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/a1/acknowledge", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts",
		strings.NewReader(`{"title":"x","severity":"low"}`)))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateAlertValidation(t *testing.T) {
	router := newAlertsRouter(t, newMemoryAlertStore(), "r3")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts",
		strings.NewReader(`{"description":"no title or severity"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAlertPersists(t *testing.T) {
	store := newMemoryAlertStore()
	router := newAlertsRouter(t, store, "r3")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts",
		strings.NewReader(`{"title":"Port scan","severity":"medium","source":"ids"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	fetched, err := store.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	require.Equal(t, "Port scan", fetched[0].Title)
	require.Equal(t, StatusOpen, fetched[0].Status)
	require.NotEmpty(t, fetched[0].ID)
}

func TestAcknowledgeAndResolve(t *testing.T) {
	store := newMemoryAlertStore()
	seedAlert(t, store, "a1", SeverityCritical)
	router := newAlertsRouter(t, store, "r3")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/a1/acknowledge", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	alert, ok := store.get("a1")
	require.True(t, ok)
	require.True(t, alert.Acknowledged)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/a1/resolve", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	alert, _ = store.get("a1")
	require.Equal(t, StatusResolved, alert.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/missing/acknowledge", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOverviewAggregates(t *testing.T) {
	store := newMemoryAlertStore()
	seedAlert(t, store, "a1", SeverityCritical)
	seedAlert(t, store, "a2", SeverityCritical)
	seedAlert(t, store, "a3", SeverityLow)
	require.NoError(t, store.Acknowledge(context.Background(), "a1"))
	router := newAlertsRouter(t, store, "r4")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/overview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"critical":2`)
	require.Contains(t, rec.Body.String(), `"unacknowledged":2`)
}

func TestStoreMutationsAnnounceOnFeed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	feed := livesync.NewRedisFeed(client)
	sub, err := feed.Subscribe(context.Background(), Collection)
	require.NoError(t, err)
	defer sub.Close()

	store := NewStore(nil, livesync.NewPublisher(client), nil)
	for _, kind := range []livesync.EventKind{livesync.KindInsert, livesync.KindUpdate, livesync.KindDelete} {
		store.announce(context.Background(), kind)
		select {
		case event := <-sub.Events():
			require.Equal(t, kind, event.Kind)
		case <-time.After(time.Second):
			t.Fatalf("no change event for kind %s", kind)
		}
	}
}

func TestAnnounceSwallowsPublishFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Close())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewStore(nil, livesync.NewPublisher(client), logger)
	// Must not panic or surface the error.
	store.announce(context.Background(), livesync.KindInsert)
}
