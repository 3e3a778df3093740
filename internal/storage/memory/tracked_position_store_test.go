package memory

import (
	"context"
	"errors"
	"testing"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/storage"
)

func tracked(ticker, label, orderID string) *domain.TrackedPosition {
	return &domain.TrackedPosition{
		Ticker:  ticker,
		Label:   label,
		OrderID: orderID,
		Payload: []byte(`{"order_id":"` + orderID + `"}`),
	}
}

func TestTrackedPositionStore_PutGuards(t *testing.T) {
	ctx := context.Background()
	store := NewTrackedPositionStore()

	if err := store.Put(ctx, tracked("ETHUSDT", "TEST", "o1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// Same (ticker, label) is rejected even for a different order.
	if err := store.Put(ctx, tracked("ETHUSDT", "TEST", "o2")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	// Different label on the same ticker is a distinct position.
	if err := store.Put(ctx, tracked("ETHUSDT", "OTHER", "o3")); err != nil {
		t.Errorf("Put failed: %v", err)
	}
}

func TestTrackedPositionStore_UpdateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewTrackedPositionStore()

	if err := store.Update(ctx, tracked("ETHUSDT", "TEST", "o1")); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an update without a record, got %v", err)
	}

	if err := store.Put(ctx, tracked("ETHUSDT", "TEST", "o1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	updated := tracked("ETHUSDT", "TEST", "o1")
	updated.UpdatedAtMs = 12345
	if err := store.Update(ctx, updated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.Get(ctx, "ETHUSDT", "TEST")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UpdatedAtMs != 12345 {
		t.Errorf("update not applied: %+v", got)
	}

	// Returned payloads are copies.
	got.Payload[0] = 'X'
	again, _ := store.Get(ctx, "ETHUSDT", "TEST")
	if again.Payload[0] == 'X' {
		t.Error("store leaked its internal payload")
	}
}

func TestTrackedPositionStore_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	store := NewTrackedPositionStore()

	if err := store.Put(ctx, tracked("SOLUSDT", "TEST", "o2")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, tracked("ETHUSDT", "TEST", "o1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Ticker != "ETHUSDT" || list[1].Ticker != "SOLUSDT" {
		t.Errorf("unexpected listing order: %+v", list)
	}

	if err := store.Delete(ctx, "ETHUSDT", "TEST"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "ETHUSDT", "TEST"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	// Deleting again is not an error.
	if err := store.Delete(ctx, "ETHUSDT", "TEST"); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
}
