package postgres

import (
	"context"
	"fmt"
	"time"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/storage"
)

// StateStore implements storage.StateStore using PostgreSQL.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new StateStore.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// LastLoadedDate returns the persisted cursor, ok=false if never written.
func (s *StateStore) LastLoadedDate(ctx context.Context) (time.Time, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT value_text FROM system.state WHERE key = $1`, storage.CursorKey)

	var value string
	if err := row.Scan(&value); err != nil {
		if isNotFoundError(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("read cursor: %w", err)
	}

	d, err := time.ParseInLocation(domain.DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse cursor %q: %w", value, err)
	}
	return d, true, nil
}

// SetLastLoadedDate overwrites the cursor.
func (s *StateStore) SetLastLoadedDate(ctx context.Context, d time.Time) error {
	_, err := s.pool.Exec(ctx, upsertCursorSQL, storage.CursorKey, d.Format(domain.DateLayout))
	if err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}
