// Package livesync keeps a locally readable copy of a remote mutable
// collection current without requiring the consumer to poll. An
// initial bulk fetch populates the collection; every change-feed event
// triggers a full re-query whose result replaces the collection
// wholesale, so readers always see a complete, internally consistent
// snapshot as of the last observed change.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a change-feed notification.
type EventKind string

// Change-feed event kinds.
const (
	KindInsert EventKind = "insert"
	KindUpdate EventKind = "update"
	KindDelete EventKind = "delete"
)

// Event signals that the remote collection changed. It carries no row
// data and is treated as a pure trigger, never a data source.
type Event struct {
	Kind EventKind `json:"kind"`
}

// Source performs the full query of the remote collection, ordered by
// descending timestamp.
type Source[T any] interface {
	Fetch(ctx context.Context) ([]T, error)
}

// Feed delivers change notifications scoped to a collection key.
type Feed interface {
	Subscribe(ctx context.Context, key string) (Subscription, error)
}

// Subscription is an established change-notification stream.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Status describes the synchronizer's connection to the backend.
type Status string

// Synchronizer statuses.
const (
	StatusConnected Status = "connected"
	StatusDegraded  Status = "degraded"
	StatusStopped   Status = "stopped"
)

// Observer receives lifecycle callbacks. All methods may be called
// from internal goroutines.
type Observer interface {
	RefreshApplied(collection string, records int)
	StatusChanged(collection string, status Status)
}

// Config tunes a Synchronizer.
type Config struct {
	// Collection is the change-feed key of the mirrored collection.
	Collection string
	// FetchTimeout bounds a single remote query.
	FetchTimeout time.Duration
	// RetryBackoff is the initial delay between retries; it doubles
	// per attempt.
	RetryBackoff time.Duration
	// MaxRetries is the per-operation retry budget before the
	// synchronizer reports a degraded status. It keeps trying after
	// that: the contract is eventual consistency, not fail-fast.
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	return c
}

// Synchronizer mirrors one remote collection per Start call.
type Synchronizer[T any] struct {
	source   Source[T]
	feed     Feed
	logger   *slog.Logger
	observer Observer
	cfg      Config
}

// New constructs a Synchronizer. observer may be nil.
func New[T any](logger *slog.Logger, source Source[T], feed Feed, observer Observer, cfg Config) *Synchronizer[T] {
	return &Synchronizer[T]{
		source:   source,
		feed:     feed,
		logger:   logger,
		observer: observer,
		cfg:      cfg.withDefaults(),
	}
}

// Handle reads the synced collection and tears the subscription down.
type Handle[T any] struct {
	ID string

	mu      sync.RWMutex
	records []T
	status  Status

	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Snapshot returns a copy of the current collection.
func (h *Handle[T]) Snapshot() []T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]T(nil), h.records...)
}

// Status reports the current connection status.
func (h *Handle[T]) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Stop tears the subscription down. It is idempotent and never fails:
// the worst outcome of a failed unsubscribe is a harmless extra
// subscription, so errors are swallowed rather than propagated.
func (h *Handle[T]) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		h.mu.Lock()
		h.status = StatusStopped
		h.mu.Unlock()
	})
}

// Start performs the initial load and establishes the change-feed
// subscription. The initial fetch runs concurrently with the event
// loop: refreshes are deliberately not serialized, the last one to
// complete wins (see package doc).
func (s *Synchronizer[T]) Start(ctx context.Context) (*Handle[T], error) {
	if s.source == nil || s.feed == nil {
		return nil, errors.New("livesync: source and feed are required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle[T]{
		ID:     uuid.NewString(),
		status: StatusConnected,
		cancel: cancel,
	}

	go s.refresh(runCtx, h)
	go s.run(runCtx, h)

	return h, nil
}

// run owns the subscription: it (re)subscribes with backoff and spawns
// a refresh per received event.
func (s *Synchronizer[T]) run(ctx context.Context, h *Handle[T]) {
	for {
		sub, err := s.subscribe(ctx, h)
		if err != nil {
			// Only when ctx is done; subscribe retries internally.
			return
		}
		s.consume(ctx, h, sub)
		if err := sub.Close(); err != nil {
			s.logDebug("close subscription", err)
		}
		select {
		case <-ctx.Done():
			return
		default:
			// Feed dropped; resubscribe.
		}
	}
}

func (s *Synchronizer[T]) subscribe(ctx context.Context, h *Handle[T]) (Subscription, error) {
	backoff := s.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sub, err := s.feed.Subscribe(ctx, s.cfg.Collection)
		if err == nil {
			s.setStatus(h, StatusConnected)
			return sub, nil
		}
		if attempt+1 >= s.cfg.MaxRetries {
			s.setStatus(h, StatusDegraded)
		}
		s.logWarn("subscribe change feed", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (s *Synchronizer[T]) consume(ctx context.Context, h *Handle[T], sub Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
			// The event is a trigger only; refetch everything.
			go s.refresh(ctx, h)
		}
	}
}

// refresh re-queries the whole collection and replaces the local copy.
// Concurrent refreshes may overlap; whichever completes last wins.
func (s *Synchronizer[T]) refresh(ctx context.Context, h *Handle[T]) {
	backoff := s.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return
		}
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		records, err := s.source.Fetch(fetchCtx)
		cancel()
		if err == nil {
			h.mu.Lock()
			stopped := h.status == StatusStopped
			recovered := false
			if !stopped {
				h.records = records
				recovered = h.status != StatusConnected
				h.status = StatusConnected
			}
			h.mu.Unlock()
			if !stopped && s.observer != nil {
				if recovered {
					s.observer.StatusChanged(s.cfg.Collection, StatusConnected)
				}
				s.observer.RefreshApplied(s.cfg.Collection, len(records))
			}
			return
		}
		s.logWarn("refresh collection", fmt.Errorf("attempt %d: %w", attempt+1, err))
		if attempt+1 >= s.cfg.MaxRetries {
			s.setStatus(h, StatusDegraded)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (s *Synchronizer[T]) setStatus(h *Handle[T], status Status) {
	h.mu.Lock()
	if h.status == StatusStopped || h.status == status {
		h.mu.Unlock()
		return
	}
	h.status = status
	h.mu.Unlock()
	if s.observer != nil {
		s.observer.StatusChanged(s.cfg.Collection, status)
	}
}

func (s *Synchronizer[T]) logWarn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.String("collection", s.cfg.Collection), slog.Any("error", err))
	}
}

func (s *Synchronizer[T]) logDebug(msg string, err error) {
	if s.logger != nil {
		s.logger.Debug(msg, slog.String("collection", s.cfg.Collection), slog.Any("error", err))
	}
}
