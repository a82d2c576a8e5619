package store

import (
	"context"
	"fmt"
	"time"
)

// IncrementRateCounter atomically adds one hit to the (key, bucket) counter
// and returns the new total. The row is created on first use.
func (s *Store) IncrementRateCounter(ctx context.Context, keyID, bucket string, expiresAt time.Time) (int64, error) {
	expiresAt = expiresAt.UTC()

	if s.dialect.name == DriverMySQL {
		// LAST_INSERT_ID(expr) hands the post-increment value back through
		// the OK packet of the same statement.
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO rate_limit_counters (api_key_id, bucket, hits, expires_at)
			 VALUES (?, ?, LAST_INSERT_ID(1), ?)
			 ON DUPLICATE KEY UPDATE hits = LAST_INSERT_ID(hits + 1)`,
			keyID, bucket, expiresAt)
		if err != nil {
			return 0, fmt.Errorf("increment rate counter: %w", err)
		}
		hits, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("read rate counter: %w", err)
		}
		return hits, nil
	}

	var hits int64
	err := s.db.GetContext(ctx, &hits, s.q(
		`INSERT INTO rate_limit_counters (api_key_id, bucket, hits, expires_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (api_key_id, bucket) DO UPDATE SET hits = rate_limit_counters.hits + 1
		 RETURNING hits`),
		keyID, bucket, expiresAt)
	if err != nil {
		return 0, fmt.Errorf("increment rate counter: %w", err)
	}
	return hits, nil
}

// PruneRateCounters deletes counters whose window expired before t.
func (s *Store) PruneRateCounters(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM rate_limit_counters WHERE expires_at < ?`), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune rate counters: %w", err)
	}
	return res.RowsAffected()
}
