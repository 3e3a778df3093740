// Package storage defines persistence interfaces for closed orders, result
// aggregates and live tracked positions. Implementations live in the
// memory, clickhouse and postgres subpackages.
package storage

import (
	"context"

	"futures-backtest-lab/internal/domain"
)

// OrderStore persists closed position orders. Append-only: closed orders
// are immutable, inserting an existing ID returns ErrDuplicateKey.
type OrderStore interface {
	// Insert stores one closed order.
	Insert(ctx context.Context, order *domain.PositionOrder) error

	// InsertBatch stores many closed orders in one round trip.
	InsertBatch(ctx context.Context, orders []*domain.PositionOrder) error

	// GetByID returns the order with the given ID, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.PositionOrder, error)

	// GetByLabel returns all orders produced under a strategy label,
	// ordered by close time ASC.
	GetByLabel(ctx context.Context, label string) ([]*domain.PositionOrder, error)

	// GetByTickerLabel narrows GetByLabel to one instrument.
	GetByTickerLabel(ctx context.Context, ticker, label string) ([]*domain.PositionOrder, error)
}

// ResultStore persists finalized backtest aggregates. Append-only.
type ResultStore interface {
	// Insert stores one finalized result row.
	Insert(ctx context.Context, result *domain.BacktestResult) error

	// GetByLabel returns all stored results for a strategy label.
	GetByLabel(ctx context.Context, label string) ([]*domain.BacktestResult, error)
}

// TrackedPositionStore holds the guard records of live simulated positions.
// At most one record per (ticker, label); Put returns ErrDuplicateKey when
// a record already exists, which is how duplicate intents are rejected.
type TrackedPositionStore interface {
	// Put creates the guard record for a position.
	Put(ctx context.Context, tp *domain.TrackedPosition) error

	// Update replaces the payload of an existing record, or ErrNotFound.
	Update(ctx context.Context, tp *domain.TrackedPosition) error

	// Get returns the record for (ticker, label), or ErrNotFound.
	Get(ctx context.Context, ticker, label string) (*domain.TrackedPosition, error)

	// Delete removes the record for (ticker, label). Deleting a missing
	// record is not an error.
	Delete(ctx context.Context, ticker, label string) error

	// List returns all tracked positions.
	List(ctx context.Context) ([]*domain.TrackedPosition, error)
}
