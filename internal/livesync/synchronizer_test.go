package livesync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aegis-soc/aegis-soc/internal/shared"
)

type record struct {
	ID        string
	Timestamp time.Time
}

// stubSource returns canned result sets in sequence. An optional gate
// channel per call lets a test hold a fetch open.
type stubSource struct {
	mu      sync.Mutex
	results [][]record
	errs    []error
	gates   []chan struct{}
	calls   int
}

func (s *stubSource) Fetch(ctx context.Context) ([]record, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	var gate chan struct{}
	if call < len(s.gates) {
		gate = s.gates[call]
	}
	var err error
	if call < len(s.errs) {
		err = s.errs[call]
	}
	var out []record
	idx := call
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	if idx >= 0 {
		out = append([]record(nil), s.results[idx]...)
	}
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubFeed struct {
	mu   sync.Mutex
	subs []chan Event
}

func (f *stubFeed) Subscribe(ctx context.Context, key string) (Subscription, error) {
	ch := make(chan Event, 16)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return &stubSubscription{events: ch}, nil
}

func (f *stubFeed) Notify(kind EventKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- Event{Kind: kind}
	}
}

type stubSubscription struct {
	events chan Event
	once   sync.Once
}

func (s *stubSubscription) Events() <-chan Event { return s.events }

func (s *stubSubscription) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type recordingObserver struct {
	mu        sync.Mutex
	refreshes int
	statuses  []Status
}

func (o *recordingObserver) RefreshApplied(collection string, records int) {
	o.mu.Lock()
	o.refreshes++
	o.mu.Unlock()
}

func (o *recordingObserver) StatusChanged(collection string, status Status) {
	o.mu.Lock()
	o.statuses = append(o.statuses, status)
	o.mu.Unlock()
}

func (o *recordingObserver) lastStatus() (Status, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.statuses) == 0 {
		return "", false
	}
	return o.statuses[len(o.statuses)-1], true
}

func fastConfig() Config {
	return Config{
		Collection:   "alerts.changed",
		FetchTimeout: time.Second,
		RetryBackoff: 5 * time.Millisecond,
		MaxRetries:   2,
	}
}

func descRecords(ids ...string) []record {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]record, len(ids))
	for i, id := range ids {
		out[i] = record{ID: id, Timestamp: base.Add(-time.Duration(i) * time.Minute)}
	}
	return out
}

func TestStartRequiresSourceAndFeed(t *testing.T) {
	s := New[record](nil, nil, nil, nil, fastConfig())
	_, err := s.Start(context.Background())
	require.Error(t, err)
}

func TestInitialLoadPopulatesSnapshot(t *testing.T) {
	source := &stubSource{results: [][]record{descRecords("a3", "a2", "a1")}}
	s := New[record](nil, source, &stubFeed{}, nil, fastConfig())

	handle, err := s.Start(context.Background())
	require.NoError(t, err)
	defer handle.Stop()

	require.Eventually(t, func() bool {
		return len(handle.Snapshot()) == 3
	}, time.Second, 5*time.Millisecond)

	snapshot := handle.Snapshot()
	require.Equal(t, "a3", snapshot[0].ID)
	require.Equal(t, "a1", snapshot[2].ID)
	// Source ordering is preserved as-is, newest first.
	require.True(t, snapshot[0].Timestamp.After(snapshot[1].Timestamp))
	require.Equal(t, StatusConnected, handle.Status())
}

func TestEventTriggersSingleRequery(t *testing.T) {
	source := &stubSource{results: [][]record{
		descRecords("a1"),
		descRecords("a2", "a1"),
	}}
	feed := &stubFeed{}
	observer := &recordingObserver{}
	s := New[record](nil, source, feed, observer, fastConfig())

	handle, err := s.Start(context.Background())
	require.NoError(t, err)
	defer handle.Stop()

	require.Eventually(t, func() bool {
		return source.callCount() == 1 && len(handle.Snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	feed.Notify(KindInsert)

	require.Eventually(t, func() bool {
		return len(handle.Snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "a2", handle.Snapshot()[0].ID)

	// Exactly one re-query per event, no polling in between.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, source.callCount())
}

func TestRefreshFailureDegradesThenRecovers(t *testing.T) {
	source := &stubSource{
		results: [][]record{nil, nil, descRecords("a1")},
		errs:    []error{shared.ErrUnavailable, shared.ErrUnavailable, nil},
	}
	feed := &stubFeed{}
	observer := &recordingObserver{}
	s := New[record](nil, source, feed, observer, fastConfig())

	handle, err := s.Start(context.Background())
	require.NoError(t, err)
	defer handle.Stop()

	// Two failed attempts exhaust the retry budget.
	require.Eventually(t, func() bool {
		return handle.Status() == StatusDegraded
	}, time.Second, 5*time.Millisecond)

	// The next change event re-queries and restores the connection.
	feed.Notify(KindUpdate)
	require.Eventually(t, func() bool {
		return handle.Status() == StatusConnected && len(handle.Snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	last, ok := observer.lastStatus()
	require.True(t, ok)
	require.Equal(t, StatusConnected, last)
}

func TestStopIsIdempotent(t *testing.T) {
	source := &stubSource{results: [][]record{descRecords("a1")}}
	s := New[record](nil, source, &stubFeed{}, nil, fastConfig())

	handle, err := s.Start(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(handle.Snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	handle.Stop()
	require.Equal(t, StatusStopped, handle.Status())
	handle.Stop()
	require.Equal(t, StatusStopped, handle.Status())

	// The last snapshot stays readable after teardown.
	require.Len(t, handle.Snapshot(), 1)
}

func TestRefreshAfterStopIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	source := &stubSource{
		results: [][]record{descRecords("a1")},
		gates:   []chan struct{}{gate},
	}
	s := New[record](nil, source, &stubFeed{}, nil, fastConfig())

	handle, err := s.Start(context.Background())
	require.NoError(t, err)

	handle.Stop()
	close(gate)

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, handle.Snapshot())
	require.Equal(t, StatusStopped, handle.Status())
}

func TestLastRefreshToCompleteWins(t *testing.T) {
	slow := make(chan struct{})
	source := &stubSource{
		results: [][]record{
			descRecords("stale"),
			descRecords("fresh", "stale"),
		},
		gates: []chan struct{}{slow, nil},
	}
	feed := &stubFeed{}
	cfg := fastConfig()
	cfg.FetchTimeout = 5 * time.Second
	s := New[record](nil, source, feed, nil, cfg)

	handle, err := s.Start(context.Background())
	require.NoError(t, err)
	defer handle.Stop()

	// Let the event-triggered refresh finish while the initial load
	// is still in flight.
	require.Eventually(t, func() bool {
		return source.callCount() == 1
	}, time.Second, 5*time.Millisecond)
	feed.Notify(KindInsert)
	require.Eventually(t, func() bool {
		return len(handle.Snapshot()) == 2
	}, time.Second, 5*time.Millisecond)

	// The straggler now completes and overwrites the newer result:
	// refreshes are not serialized, the last to finish wins.
	close(slow)
	require.Eventually(t, func() bool {
		snapshot := handle.Snapshot()
		return len(snapshot) == 1 && snapshot[0].ID == "stale"
	}, time.Second, 5*time.Millisecond)
}

func TestRedisFeedDeliversPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	feed := NewRedisFeed(client)
	sub, err := feed.Subscribe(context.Background(), "alerts.changed")
	require.NoError(t, err)
	defer sub.Close()

	publisher := NewPublisher(client)
	require.NoError(t, publisher.Publish(context.Background(), "alerts.changed", KindInsert))

	select {
	case event := <-sub.Events():
		require.Equal(t, KindInsert, event.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestRedisFeedTreatsMalformedPayloadAsTrigger(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	feed := NewRedisFeed(client)
	sub, err := feed.Subscribe(context.Background(), "alerts.changed")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.Publish(context.Background(), "alerts.changed", "not json").Err())

	select {
	case event := <-sub.Events():
		require.Empty(t, event.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
	}
}
