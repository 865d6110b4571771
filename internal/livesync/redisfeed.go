package livesync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aegis-soc/aegis-soc/internal/shared"
)

// RedisFeed implements Feed on Redis pub/sub channels.
type RedisFeed struct {
	client *redis.Client
}

// NewRedisFeed constructs a Redis backed change feed.
func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

// Subscribe opens the pub/sub channel for the collection key.
func (f *RedisFeed) Subscribe(ctx context.Context, key string) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, key)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("livesync: subscribe %s: %v: %w", key, err, shared.ErrUnavailable)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event),
	}
	go sub.forward(ctx)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

// Close tears the channel down. Closing an already-closed subscription
// reports no error beyond the underlying client's.
func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

func (s *redisSubscription) forward(ctx context.Context) {
	defer close(s.events)
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			// Payloads carry at most a kind; anything unreadable is
			// still a valid trigger.
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				event = Event{}
			}
			select {
			case s.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Publisher announces collection changes on the feed channel. Mutating
// store operations call it so live views refresh.
type Publisher struct {
	client *redis.Client
}

// NewPublisher constructs a Publisher.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish emits a change event for the collection key.
func (p *Publisher) Publish(ctx context.Context, key string, kind EventKind) error {
	payload, err := json.Marshal(Event{Kind: kind})
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("livesync: publish %s: %v: %w", key, err, shared.ErrUnavailable)
	}
	return nil
}
