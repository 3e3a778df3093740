package memory

import (
	"context"
	"sync"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
// Results are keyed by (label, ticker, with_commissions).
type ResultStore struct {
	mu   sync.RWMutex
	data map[resultKey]*domain.BacktestResult
}

type resultKey struct {
	label           string
	ticker          string
	withCommissions bool
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		data: make(map[resultKey]*domain.BacktestResult),
	}
}

// Insert stores a finalized result. Returns ErrDuplicateKey if a result for
// the same (label, ticker, with_commissions) exists.
func (s *ResultStore) Insert(_ context.Context, r *domain.BacktestResult) error {
	if r == nil || r.Label == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := resultKey{label: r.Label, ticker: r.Ticker, withCommissions: r.WithCommissions}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = cloneResult(r)
	return nil
}

// GetByLabel retrieves all stored results for a strategy label.
func (s *ResultStore) GetByLabel(_ context.Context, label string) ([]*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BacktestResult
	for key, r := range s.data {
		if key.label == label {
			result = append(result, cloneResult(r))
		}
	}

	return result, nil
}

func cloneResult(r *domain.BacktestResult) *domain.BacktestResult {
	clone := *r
	clone.Orders = make([]*domain.PositionOrder, len(r.Orders))
	for i, o := range r.Orders {
		clone.Orders[i] = o.Clone()
	}
	return &clone
}

var _ storage.ResultStore = (*ResultStore)(nil)
