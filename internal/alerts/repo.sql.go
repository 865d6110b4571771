package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-soc/aegis-soc/internal/livesync"
	"github.com/aegis-soc/aegis-soc/internal/shared"
)

// Store provides PostgreSQL backed persistence for alerts. Mutations
// publish a change-feed event so synchronized views refresh; publish
// failures are logged, never surfaced, since the write itself is
// already durable.
type Store struct {
	pool      *pgxpool.Pool
	publisher *livesync.Publisher
	logger    *slog.Logger
}

// NewStore constructs a Store. publisher may be nil (no feed).
func NewStore(pool *pgxpool.Pool, publisher *livesync.Publisher, logger *slog.Logger) *Store {
	return &Store{pool: pool, publisher: publisher, logger: logger}
}

const alertColumns = `id, title, description, severity, status, source, acknowledged, timestamp`

// Fetch returns the full collection ordered by descending timestamp.
// It implements livesync.Source.
func (s *Store) Fetch(ctx context.Context) ([]Alert, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY timestamp DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("alerts: fetch: %v: %w", err, shared.ErrUnavailable)
	}
	defer rows.Close()
	var records []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Severity, &a.Status, &a.Source, &a.Acknowledged, &a.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("alerts: fetch: %v: %w", err, shared.ErrUnavailable)
	}
	return records, nil
}

// Insert persists a new alert.
func (s *Store) Insert(ctx context.Context, alert Alert) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		alert.ID, alert.Title, alert.Description, alert.Severity, alert.Status,
		alert.Source, alert.Acknowledged, alert.Timestamp)
	if err != nil {
		return err
	}
	s.announce(ctx, livesync.KindInsert)
	return nil
}

// Acknowledge marks an alert as acknowledged.
func (s *Store) Acknowledge(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET acknowledged = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alerts: alert %s: %w", id, shared.ErrNotFound)
	}
	s.announce(ctx, livesync.KindUpdate)
	return nil
}

// Resolve marks an alert as resolved.
func (s *Store) Resolve(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET status = $2 WHERE id = $1`, id, StatusResolved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alerts: alert %s: %w", id, shared.ErrNotFound)
	}
	s.announce(ctx, livesync.KindUpdate)
	return nil
}

// PruneResolved deletes resolved alerts older than the cutoff and
// returns the number of rows removed.
func (s *Store) PruneResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alerts WHERE status = $1 AND timestamp < $2`, StatusResolved, cutoff)
	if err != nil {
		return 0, err
	}
	removed := tag.RowsAffected()
	if removed > 0 {
		s.announce(ctx, livesync.KindDelete)
	}
	return removed, nil
}

// CountOpenBySeverity aggregates unresolved alerts per severity.
func (s *Store) CountOpenBySeverity(ctx context.Context) (map[Severity]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT severity, COUNT(*) FROM alerts WHERE status <> $1 GROUP BY severity`, StatusResolved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Severity]int64)
	for rows.Next() {
		var severity Severity
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		counts[severity] = count
	}
	return counts, rows.Err()
}

// CountUnacknowledged counts alerts awaiting acknowledgement.
func (s *Store) CountUnacknowledged(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts WHERE NOT acknowledged`).Scan(&count)
	return count, err
}

func (s *Store) announce(ctx context.Context, kind livesync.EventKind) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, Collection, kind); err != nil && s.logger != nil {
		s.logger.Warn("publish alert change", slog.Any("error", err))
	}
}
