package postgres

import (
	"context"
	"fmt"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/storage"
)

// TrackedPositionStore implements storage.TrackedPositionStore using
// PostgreSQL.
type TrackedPositionStore struct {
	pool *Pool
}

// NewTrackedPositionStore creates a new TrackedPositionStore.
func NewTrackedPositionStore(pool *Pool) *TrackedPositionStore {
	return &TrackedPositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrackedPositionStore = (*TrackedPositionStore)(nil)

// Put creates the guard record. Returns ErrDuplicateKey if a record for
// (ticker, label) exists.
func (s *TrackedPositionStore) Put(ctx context.Context, tp *domain.TrackedPosition) error {
	query := `
		INSERT INTO tracked_positions (ticker, label, order_id, payload, updated_at_ms)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query, tp.Ticker, tp.Label, tp.OrderID, tp.Payload, tp.UpdatedAtMs)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert tracked position: %w", err)
	}
	return nil
}

// Update replaces the payload of an existing record, or ErrNotFound.
func (s *TrackedPositionStore) Update(ctx context.Context, tp *domain.TrackedPosition) error {
	query := `
		UPDATE tracked_positions
		SET order_id = $3, payload = $4, updated_at_ms = $5
		WHERE ticker = $1 AND label = $2
	`

	tag, err := s.pool.Exec(ctx, query, tp.Ticker, tp.Label, tp.OrderID, tp.Payload, tp.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("update tracked position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Get returns the record for (ticker, label), or ErrNotFound.
func (s *TrackedPositionStore) Get(ctx context.Context, ticker, label string) (*domain.TrackedPosition, error) {
	query := `
		SELECT ticker, label, order_id, payload, updated_at_ms
		FROM tracked_positions
		WHERE ticker = $1 AND label = $2
	`

	var tp domain.TrackedPosition
	err := s.pool.QueryRow(ctx, query, ticker, label).Scan(
		&tp.Ticker, &tp.Label, &tp.OrderID, &tp.Payload, &tp.UpdatedAtMs,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get tracked position: %w", err)
	}
	return &tp, nil
}

// Delete removes the record for (ticker, label). Missing records are fine.
func (s *TrackedPositionStore) Delete(ctx context.Context, ticker, label string) error {
	query := `DELETE FROM tracked_positions WHERE ticker = $1 AND label = $2`

	if _, err := s.pool.Exec(ctx, query, ticker, label); err != nil {
		return fmt.Errorf("delete tracked position: %w", err)
	}
	return nil
}

// List returns all tracked positions.
func (s *TrackedPositionStore) List(ctx context.Context) ([]*domain.TrackedPosition, error) {
	query := `
		SELECT ticker, label, order_id, payload, updated_at_ms
		FROM tracked_positions
		ORDER BY ticker ASC, label ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tracked positions: %w", err)
	}
	defer rows.Close()

	var tracked []*domain.TrackedPosition
	for rows.Next() {
		var tp domain.TrackedPosition
		err := rows.Scan(&tp.Ticker, &tp.Label, &tp.OrderID, &tp.Payload, &tp.UpdatedAtMs)
		if err != nil {
			return nil, fmt.Errorf("scan tracked position: %w", err)
		}
		tracked = append(tracked, &tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked positions: %w", err)
	}
	return tracked, nil
}
