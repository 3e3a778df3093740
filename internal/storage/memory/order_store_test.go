package memory

import (
	"context"
	"errors"
	"testing"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/storage"
)

func order(id, ticker, label string, closeTimeMs int64) *domain.PositionOrder {
	return &domain.PositionOrder{
		ID:          id,
		Ticker:      ticker,
		Label:       label,
		Direction:   domain.DirectionLong,
		Status:      domain.StatusClosed,
		CloseTimeMs: closeTimeMs,
	}
}

func TestOrderStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()

	o := order("a", "ETHUSDT", "TEST", 1000)
	if err := store.Insert(ctx, o); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "a")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Ticker != "ETHUSDT" {
		t.Errorf("unexpected order: %+v", got)
	}

	// The store hands out copies.
	got.Ticker = "MUTATED"
	again, _ := store.GetByID(ctx, "a")
	if again.Ticker != "ETHUSDT" {
		t.Error("store leaked its internal order")
	}

	if err := store.Insert(ctx, order("a", "ETHUSDT", "TEST", 1000)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Insert(ctx, &domain.PositionOrder{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for an empty ID, got %v", err)
	}
}

func TestOrderStore_InsertBatchAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()

	if err := store.Insert(ctx, order("a", "ETHUSDT", "TEST", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// The batch contains a duplicate of an existing ID: nothing lands.
	err := store.InsertBatch(ctx, []*domain.PositionOrder{
		order("b", "ETHUSDT", "TEST", 2000),
		order("a", "ETHUSDT", "TEST", 1000),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "b"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("failed batch left a partial write")
	}

	// Intra-batch duplicates fail too.
	err = store.InsertBatch(ctx, []*domain.PositionOrder{
		order("c", "ETHUSDT", "TEST", 3000),
		order("c", "ETHUSDT", "TEST", 3000),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestOrderStore_LabelQueries(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()

	err := store.InsertBatch(ctx, []*domain.PositionOrder{
		order("c", "SOLUSDT", "TEST", 3000),
		order("a", "ETHUSDT", "TEST", 1000),
		order("b", "ETHUSDT", "TEST", 2000),
		order("d", "ETHUSDT", "OTHER", 500),
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	byLabel, err := store.GetByLabel(ctx, "TEST")
	if err != nil {
		t.Fatalf("GetByLabel failed: %v", err)
	}
	if len(byLabel) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(byLabel))
	}
	// Ordered by close time ASC.
	for i := 1; i < len(byLabel); i++ {
		if byLabel[i-1].CloseTimeMs > byLabel[i].CloseTimeMs {
			t.Errorf("orders out of close-time order at %d", i)
		}
	}

	byTicker, err := store.GetByTickerLabel(ctx, "ETHUSDT", "TEST")
	if err != nil {
		t.Fatalf("GetByTickerLabel failed: %v", err)
	}
	if len(byTicker) != 2 {
		t.Errorf("expected 2 orders, got %d", len(byTicker))
	}
}
