package metrics

import (
	"context"
	"errors"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/storage"
)

// ErrNoOrders is returned when there are no closed orders to aggregate.
var ErrNoOrders = errors.New("no closed orders available for aggregation")

// Aggregator persists finalized backtest results: the closed orders go to
// the order store, the computed aggregate row to the result store.
type Aggregator struct {
	orderStore  storage.OrderStore
	resultStore storage.ResultStore
}

// NewAggregator creates a new result aggregator.
func NewAggregator(orderStore storage.OrderStore, resultStore storage.ResultStore) *Aggregator {
	return &Aggregator{
		orderStore:  orderStore,
		resultStore: resultStore,
	}
}

// StoreResult finalizes and persists one backtest result. Metrics are
// recomputed before storing so the persisted row always matches the orders.
// Returns ErrNoOrders when the result holds no closed orders.
func (a *Aggregator) StoreResult(ctx context.Context, r *domain.BacktestResult) error {
	if len(r.Orders) == 0 {
		return ErrNoOrders
	}

	InitMetrics(r)

	if err := a.orderStore.InsertBatch(ctx, r.Orders); err != nil {
		return err
	}
	return a.resultStore.Insert(ctx, r)
}

// StoreAggregateOnly persists the aggregate row without re-inserting its
// orders. Used for combined and commission-adjusted variants whose orders
// are already stored under the per-instrument results.
func (a *Aggregator) StoreAggregateOnly(ctx context.Context, r *domain.BacktestResult) error {
	if len(r.Orders) == 0 {
		return ErrNoOrders
	}
	InitMetrics(r)
	return a.resultStore.Insert(ctx, r)
}

// RecomputeFromStore loads the closed orders for a strategy label (optionally
// narrowed to one ticker) and rebuilds the aggregate from scratch. Used to
// cross-check persisted aggregate rows against their orders.
func (a *Aggregator) RecomputeFromStore(ctx context.Context, label, ticker string) (*domain.BacktestResult, error) {
	var (
		orders []*domain.PositionOrder
		err    error
	)
	if ticker == "" {
		orders, err = a.orderStore.GetByLabel(ctx, label)
	} else {
		orders, err = a.orderStore.GetByTickerLabel(ctx, ticker, label)
	}
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}

	r := &domain.BacktestResult{Ticker: ticker, Label: label, Orders: orders}
	InitMetrics(r)
	return r, nil
}
