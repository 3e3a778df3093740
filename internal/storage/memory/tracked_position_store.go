package memory

import (
	"context"
	"sort"
	"sync"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/storage"
)

// TrackedPositionStore is an in-memory implementation of
// storage.TrackedPositionStore.
type TrackedPositionStore struct {
	mu   sync.RWMutex
	data map[trackedKey]*domain.TrackedPosition
}

type trackedKey struct {
	ticker string
	label  string
}

// NewTrackedPositionStore creates a new in-memory tracked position store.
func NewTrackedPositionStore() *TrackedPositionStore {
	return &TrackedPositionStore{
		data: make(map[trackedKey]*domain.TrackedPosition),
	}
}

// Put creates the guard record. Returns ErrDuplicateKey when a record for
// (ticker, label) already exists.
func (s *TrackedPositionStore) Put(_ context.Context, tp *domain.TrackedPosition) error {
	if tp == nil || tp.Ticker == "" || tp.Label == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := trackedKey{ticker: tp.Ticker, label: tp.Label}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = cloneTracked(tp)
	return nil
}

// Update replaces an existing record. Returns ErrNotFound if missing.
func (s *TrackedPositionStore) Update(_ context.Context, tp *domain.TrackedPosition) error {
	if tp == nil || tp.Ticker == "" || tp.Label == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := trackedKey{ticker: tp.Ticker, label: tp.Label}
	if _, exists := s.data[key]; !exists {
		return storage.ErrNotFound
	}

	s.data[key] = cloneTracked(tp)
	return nil
}

// Get retrieves the record for (ticker, label). Returns ErrNotFound if missing.
func (s *TrackedPositionStore) Get(_ context.Context, ticker, label string) (*domain.TrackedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tp, exists := s.data[trackedKey{ticker: ticker, label: label}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return cloneTracked(tp), nil
}

// Delete removes the record for (ticker, label). Missing records are ignored.
func (s *TrackedPositionStore) Delete(_ context.Context, ticker, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, trackedKey{ticker: ticker, label: label})
	return nil
}

// List returns all tracked positions ordered by ticker, label.
func (s *TrackedPositionStore) List(_ context.Context) ([]*domain.TrackedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TrackedPosition, 0, len(s.data))
	for _, tp := range s.data {
		result = append(result, cloneTracked(tp))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Ticker != result[j].Ticker {
			return result[i].Ticker < result[j].Ticker
		}
		return result[i].Label < result[j].Label
	})

	return result, nil
}

func cloneTracked(tp *domain.TrackedPosition) *domain.TrackedPosition {
	clone := *tp
	clone.Payload = append([]byte(nil), tp.Payload...)
	return &clone
}

var _ storage.TrackedPositionStore = (*TrackedPositionStore)(nil)
