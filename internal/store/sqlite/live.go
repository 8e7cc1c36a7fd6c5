package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vovakirdan/eventlify-server/internal/store"
)

// GetLiveCount returns the persisted live attendance of an event.
func (s *SQLiteStore) GetLiveCount(ctx context.Context, eventID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT live_count FROM events WHERE id = ?`, eventID).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("query live count: %w", err)
	}
	return n, nil
}

// IncrementLiveCount adds delta in a single statement, flooring at zero.
func (s *SQLiteStore) IncrementLiveCount(ctx context.Context, eventID string, delta int64) (int64, error) {
	query := `
		UPDATE events SET live_count = MAX(live_count + ?, 0)
		WHERE id = ?
		RETURNING live_count
	`
	var n int64
	if err := s.db.QueryRowContext(ctx, query, delta, eventID).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("increment live count: %w", err)
	}
	return n, nil
}

// ResetLiveCounts zeroes every non-zero live count.
func (s *SQLiteStore) ResetLiveCounts(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE events SET live_count = 0 WHERE live_count <> 0`)
	if err != nil {
		return 0, fmt.Errorf("reset live counts: %w", err)
	}
	return rowsAffected(res)
}
