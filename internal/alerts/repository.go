package alerts

import "context"

// StorePort defines the persistence operations the alert endpoints
// drive. The pgx Store satisfies it.
type StorePort interface {
	Insert(ctx context.Context, alert Alert) error
	Acknowledge(ctx context.Context, id string) error
	Resolve(ctx context.Context, id string) error
	CountOpenBySeverity(ctx context.Context) (map[Severity]int64, error)
	CountUnacknowledged(ctx context.Context) (int64, error)
}
