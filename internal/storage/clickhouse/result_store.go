package clickhouse

import (
	"context"
	"fmt"
	"time"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/storage"
)

// ResultStore implements storage.ResultStore using ClickHouse. Result rows
// hold the aggregates only; the orders behind them live in closed_orders.
type ResultStore struct {
	conn *Conn
}

// NewResultStore creates a new ResultStore.
func NewResultStore(conn *Conn) *ResultStore {
	return &ResultStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// Insert adds a finalized result row. Returns ErrDuplicateKey when a row
// for (label, ticker, with_commissions) already exists.
func (s *ResultStore) Insert(ctx context.Context, r *domain.BacktestResult) error {
	exists, err := s.exists(ctx, r.Label, r.Ticker, r.WithCommissions)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO backtest_results (
			label, ticker, with_commissions, orders_count,
			profit, average_profit, success,
			historic_dd, historic_dd_time_ms,
			relative_dd, relative_dd_start_ms, relative_dd_end_ms,
			target_score, profit_p75, profit_p95,
			created_at_ms
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?,
			?, ?,
			?, ?, ?,
			?, ?, ?,
			?
		)
	`

	err = s.conn.Exec(ctx, query,
		r.Label, r.Ticker, r.WithCommissions, int64(len(r.Orders)),
		r.Profit, r.AverageProfit, r.Success,
		r.Drawdown.HistoricDD, r.Drawdown.HistoricDDTimeMs,
		r.Drawdown.RelativeDD, r.Drawdown.RelativeDDStartMs, r.Drawdown.RelativeDDEndMs,
		r.TargetScore, r.ProfitP75, r.ProfitP95,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert backtest result: %w", err)
	}
	return nil
}

// GetByLabel retrieves all result rows of a strategy label. Rows come back
// without their orders; use the order store to load those.
func (s *ResultStore) GetByLabel(ctx context.Context, label string) ([]*domain.BacktestResult, error) {
	query := `
		SELECT
			label, ticker, with_commissions,
			profit, average_profit, success,
			historic_dd, historic_dd_time_ms,
			relative_dd, relative_dd_start_ms, relative_dd_end_ms,
			target_score, profit_p75, profit_p95
		FROM backtest_results
		WHERE label = ?
		ORDER BY ticker ASC, with_commissions ASC
	`

	rows, err := s.conn.Query(ctx, query, label)
	if err != nil {
		return nil, fmt.Errorf("query by label: %w", err)
	}
	defer rows.Close()

	var results []*domain.BacktestResult
	for rows.Next() {
		var r domain.BacktestResult
		err := rows.Scan(
			&r.Label, &r.Ticker, &r.WithCommissions,
			&r.Profit, &r.AverageProfit, &r.Success,
			&r.Drawdown.HistoricDD, &r.Drawdown.HistoricDDTimeMs,
			&r.Drawdown.RelativeDD, &r.Drawdown.RelativeDDStartMs, &r.Drawdown.RelativeDDEndMs,
			&r.TargetScore, &r.ProfitP75, &r.ProfitP95,
		)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// exists checks if a result row with the given key is already stored.
func (s *ResultStore) exists(ctx context.Context, label, ticker string, withCommissions bool) (bool, error) {
	query := `
		SELECT count(*) FROM backtest_results
		WHERE label = ? AND ticker = ? AND with_commissions = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, label, ticker, withCommissions).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
