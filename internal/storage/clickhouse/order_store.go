package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/storage"
)

// OrderStore implements storage.OrderStore using ClickHouse.
type OrderStore struct {
	conn *Conn
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(conn *Conn) *OrderStore {
	return &OrderStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

const orderColumns = `
	id, ticker, label, description, direction, mode, status,
	leverage, quantity, order_price,
	stop_loss, take_profit_price,
	trailing_stop_percent, trailing_activation_pct, trailing_activation_price,
	creation_time_ms, open_time_ms, open_price,
	close_time_ms, close_price, close_reason,
	profit_amount, profit_percent, profit_in_quote, positive
`

// Insert adds a closed order. Returns ErrDuplicateKey if the ID exists.
func (s *OrderStore) Insert(ctx context.Context, order *domain.PositionOrder) error {
	exists, err := s.exists(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO closed_orders ("+orderColumns+")")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	if err := appendOrder(batch, order); err != nil {
		return fmt.Errorf("append order: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert closed order: %w", err)
	}
	return nil
}

// InsertBatch adds multiple closed orders. Fails the entire batch on any
// duplicate, intra-batch or against stored rows.
func (s *OrderStore) InsertBatch(ctx context.Context, orders []*domain.PositionOrder) error {
	if len(orders) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(orders))
	for _, order := range orders {
		if _, dup := seen[order.ID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[order.ID] = struct{}{}
	}

	for _, order := range orders {
		exists, err := s.exists(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO closed_orders ("+orderColumns+")")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, order := range orders {
		if err := appendOrder(batch, order); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByID retrieves one order, or ErrNotFound.
func (s *OrderStore) GetByID(ctx context.Context, id string) (*domain.PositionOrder, error) {
	query := "SELECT " + orderColumns + " FROM closed_orders WHERE id = ? LIMIT 1"

	row := s.conn.QueryRow(ctx, query, id)
	order, err := scanOrderRow(row)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	return order, nil
}

// GetByLabel retrieves all orders of a strategy label, close time ASC.
func (s *OrderStore) GetByLabel(ctx context.Context, label string) ([]*domain.PositionOrder, error) {
	query := "SELECT " + orderColumns + " FROM closed_orders WHERE label = ? ORDER BY close_time_ms ASC, id ASC"

	rows, err := s.conn.Query(ctx, query, label)
	if err != nil {
		return nil, fmt.Errorf("query by label: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetByTickerLabel narrows GetByLabel to one instrument.
func (s *OrderStore) GetByTickerLabel(ctx context.Context, ticker, label string) ([]*domain.PositionOrder, error) {
	query := "SELECT " + orderColumns + " FROM closed_orders WHERE ticker = ? AND label = ? ORDER BY close_time_ms ASC, id ASC"

	rows, err := s.conn.Query(ctx, query, ticker, label)
	if err != nil {
		return nil, fmt.Errorf("query by ticker and label: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// exists checks if an order with the given ID is already stored.
func (s *OrderStore) exists(ctx context.Context, id string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, "SELECT count(*) FROM closed_orders WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func appendOrder(batch driver.Batch, o *domain.PositionOrder) error {
	return batch.Append(
		o.ID, o.Ticker, o.Label, o.Description, string(o.Direction), string(o.Mode), string(o.Status),
		int64(o.Leverage), o.Quantity, o.OrderPrice,
		o.StopLoss, o.TakeProfitPrice,
		o.TrailingStopPercent, o.TrailingActivationPct, o.TrailingActivationPrice,
		o.CreationTimeMs, o.OpenTimeMs, o.OpenPrice,
		o.CloseTimeMs, o.ClosePrice, string(o.CloseReason),
		o.ProfitAmount, o.ProfitPercent, o.ProfitInQuote, o.PositiveOrder,
	)
}

// rowScanner covers both driver.Row and driver.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderRow(row rowScanner) (*domain.PositionOrder, error) {
	var (
		o                   domain.PositionOrder
		direction, mode     string
		status, closeReason string
		leverage            int64
	)
	err := row.Scan(
		&o.ID, &o.Ticker, &o.Label, &o.Description, &direction, &mode, &status,
		&leverage, &o.Quantity, &o.OrderPrice,
		&o.StopLoss, &o.TakeProfitPrice,
		&o.TrailingStopPercent, &o.TrailingActivationPct, &o.TrailingActivationPrice,
		&o.CreationTimeMs, &o.OpenTimeMs, &o.OpenPrice,
		&o.CloseTimeMs, &o.ClosePrice, &closeReason,
		&o.ProfitAmount, &o.ProfitPercent, &o.ProfitInQuote, &o.PositiveOrder,
	)
	if err != nil {
		return nil, err
	}

	o.Direction = domain.Direction(direction)
	o.Mode = domain.OrderMode(mode)
	o.Status = domain.OrderStatus(status)
	o.CloseReason = domain.CloseReason(closeReason)
	o.Leverage = int(leverage)
	return &o, nil
}

func scanOrders(rows driver.Rows) ([]*domain.PositionOrder, error) {
	var orders []*domain.PositionOrder
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}
