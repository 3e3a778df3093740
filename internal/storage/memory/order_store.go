package memory

import (
	"context"
	"sort"
	"sync"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PositionOrder // keyed by order ID
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		data: make(map[string]*domain.PositionOrder),
	}
}

// Insert adds a closed order. Returns ErrDuplicateKey if the ID exists.
func (s *OrderStore) Insert(_ context.Context, o *domain.PositionOrder) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[o.ID] = o.Clone()
	return nil
}

// InsertBatch adds multiple orders atomically. Fails the entire batch on any
// duplicate, existing or intra-batch.
func (s *OrderStore) InsertBatch(_ context.Context, orders []*domain.PositionOrder) error {
	if len(orders) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if o == nil || o.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[o.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[o.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[o.ID] = struct{}{}
	}

	for _, o := range orders {
		s.data[o.ID] = o.Clone()
	}

	return nil
}

// GetByID retrieves an order by its ID. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(_ context.Context, id string) (*domain.PositionOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return o.Clone(), nil
}

// GetByLabel retrieves all orders for a strategy label, ordered by close time ASC.
func (s *OrderStore) GetByLabel(_ context.Context, label string) ([]*domain.PositionOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PositionOrder
	for _, o := range s.data {
		if o.Label == label {
			result = append(result, o.Clone())
		}
	}

	sortByCloseTime(result)
	return result, nil
}

// GetByTickerLabel retrieves all orders for one instrument under a strategy
// label, ordered by close time ASC.
func (s *OrderStore) GetByTickerLabel(_ context.Context, ticker, label string) ([]*domain.PositionOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PositionOrder
	for _, o := range s.data {
		if o.Ticker == ticker && o.Label == label {
			result = append(result, o.Clone())
		}
	}

	sortByCloseTime(result)
	return result, nil
}

func sortByCloseTime(orders []*domain.PositionOrder) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CloseTimeMs != orders[j].CloseTimeMs {
			return orders[i].CloseTimeMs < orders[j].CloseTimeMs
		}
		return orders[i].ID < orders[j].ID
	})
}

var _ storage.OrderStore = (*OrderStore)(nil)
