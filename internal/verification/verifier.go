// Package verification cross-checks persisted orders and aggregates
// against an independent replay of the lifecycle engine.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/metrics"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// ErrIntegrity is returned when two independently computed views of the
// same data disagree.
var ErrIntegrity = errors.New("integrity check failed")

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single order.
type VerificationResult struct {
	OrderID     string            // verified order ID
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalOrders     int                  // total orders verified
	MatchedOrders   int                  // orders that matched exactly
	DivergentOrders int                  // orders with divergences
	Results         []VerificationResult // individual results
}

// Verifier re-executes stored orders and compares the outcome.
type Verifier interface {
	// VerifyOrder verifies a single closed order by ID: it replays the
	// position over the same candles and compares all fields.
	VerifyOrder(ctx context.Context, orderID string) (*VerificationResult, error)

	// VerifyLabel verifies every stored order of a strategy label.
	VerifyLabel(ctx context.Context, label string) (*VerificationReport, error)
}

// CompareOrders compares a stored and a replayed order and returns the
// divergences. Uses FloatTolerance for float64 comparisons.
func CompareOrders(stored, replayed *domain.PositionOrder) []FieldDivergence {
	var divergences []FieldDivergence

	addIf := func(field string, mismatch bool, expected, actual interface{}) {
		if mismatch {
			divergences = append(divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
		}
	}

	addIf("ID", stored.ID != replayed.ID, stored.ID, replayed.ID)
	addIf("Ticker", stored.Ticker != replayed.Ticker, stored.Ticker, replayed.Ticker)
	addIf("Label", stored.Label != replayed.Label, stored.Label, replayed.Label)
	addIf("Direction", stored.Direction != replayed.Direction, stored.Direction, replayed.Direction)

	addIf("OpenTimeMs", stored.OpenTimeMs != replayed.OpenTimeMs, stored.OpenTimeMs, replayed.OpenTimeMs)
	addIf("OpenPrice", !floatEquals(stored.OpenPrice, replayed.OpenPrice), stored.OpenPrice, replayed.OpenPrice)

	addIf("CloseTimeMs", stored.CloseTimeMs != replayed.CloseTimeMs, stored.CloseTimeMs, replayed.CloseTimeMs)
	addIf("ClosePrice", !floatEquals(stored.ClosePrice, replayed.ClosePrice), stored.ClosePrice, replayed.ClosePrice)
	addIf("CloseReason", stored.CloseReason != replayed.CloseReason, stored.CloseReason, replayed.CloseReason)

	addIf("ProfitAmount", !floatEquals(stored.ProfitAmount, replayed.ProfitAmount), stored.ProfitAmount, replayed.ProfitAmount)
	addIf("ProfitPercent", !floatEquals(stored.ProfitPercent, replayed.ProfitPercent), stored.ProfitPercent, replayed.ProfitPercent)
	addIf("ProfitInQuote", !floatEquals(stored.ProfitInQuote, replayed.ProfitInQuote), stored.ProfitInQuote, replayed.ProfitInQuote)
	addIf("PositiveOrder", stored.PositiveOrder != replayed.PositiveOrder, stored.PositiveOrder, replayed.PositiveOrder)

	return divergences
}

// VerifyAggregate recomputes a result's metrics from its orders and checks
// them against the stored values. Returns ErrIntegrity (wrapped with the
// first divergent field) on mismatch.
func VerifyAggregate(stored *domain.BacktestResult) error {
	recomputed := &domain.BacktestResult{
		Ticker: stored.Ticker,
		Label:  stored.Label,
		Orders: stored.Orders,
	}
	metrics.InitMetrics(recomputed)

	if divs := compareAggregates(stored, recomputed); len(divs) > 0 {
		return fmt.Errorf("%w: aggregate field %s diverges", ErrIntegrity, divs[0].Field)
	}
	return nil
}

func compareAggregates(stored, recomputed *domain.BacktestResult) []FieldDivergence {
	var divergences []FieldDivergence

	addIf := func(field string, mismatch bool, expected, actual interface{}) {
		if mismatch {
			divergences = append(divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
		}
	}

	addIf("Profit", !floatEquals(stored.Profit, recomputed.Profit), stored.Profit, recomputed.Profit)
	addIf("AverageProfit", !floatEquals(stored.AverageProfit, recomputed.AverageProfit), stored.AverageProfit, recomputed.AverageProfit)
	addIf("Success", !floatEquals(stored.Success, recomputed.Success), stored.Success, recomputed.Success)
	addIf("TargetScore", !floatEquals(stored.TargetScore, recomputed.TargetScore), stored.TargetScore, recomputed.TargetScore)
	addIf("HistoricDD", !floatEquals(stored.Drawdown.HistoricDD, recomputed.Drawdown.HistoricDD), stored.Drawdown.HistoricDD, recomputed.Drawdown.HistoricDD)
	addIf("RelativeDD", !floatEquals(stored.Drawdown.RelativeDD, recomputed.Drawdown.RelativeDD), stored.Drawdown.RelativeDD, recomputed.Drawdown.RelativeDD)
	addIf("ProfitP75", !floatEquals(stored.ProfitP75, recomputed.ProfitP75), stored.ProfitP75, recomputed.ProfitP75)
	addIf("ProfitP95", !floatEquals(stored.ProfitP95, recomputed.ProfitP95), stored.ProfitP95, recomputed.ProfitP95)

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
