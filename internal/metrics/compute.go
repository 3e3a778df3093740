// Package metrics computes result aggregates over closed position orders:
// profit totals, drawdown, percentiles and the comparison score.
package metrics

import (
	"errors"
	"sort"

	"futures-backtest-lab/internal/domain"
)

// DefaultCommissionPercent is the round-trip exchange commission applied by
// the commission-adjusted result variant (0.08 means 0.08%).
const DefaultCommissionPercent = 0.08

// ErrCommissionsApplied is returned when commission adjustment is requested
// on a result that already has it.
var ErrCommissionsApplied = errors.New("commissions already applied")

const msPerDay = 24 * 60 * 60 * 1000

// InitMetrics recomputes every aggregate field of the result from its orders.
// Orders are sorted by close time ASC, ID ASC before the order-dependent
// passes, so recomputing over the same orders always yields the same values.
func InitMetrics(r *domain.BacktestResult) {
	n := len(r.Orders)
	if n == 0 {
		r.Profit = 0
		r.AverageProfit = 0
		r.Success = 0
		r.Drawdown = domain.Drawdown{}
		r.TargetScore = 0
		r.ProfitP75 = 0
		r.ProfitP95 = 0
		return
	}

	sorted := make([]*domain.PositionOrder, n)
	copy(sorted, r.Orders)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CloseTimeMs != sorted[j].CloseTimeMs {
			return sorted[i].CloseTimeMs < sorted[j].CloseTimeMs
		}
		return sorted[i].ID < sorted[j].ID
	})

	profit := 0.0
	positive := 0
	profits := make([]float64, n)
	for i, o := range sorted {
		profit += o.ProfitPercent
		profits[i] = o.ProfitPercent
		if o.ProfitPercent > 0 {
			positive++
		}
	}

	sortedProfits := make([]float64, n)
	copy(sortedProfits, profits)
	sort.Float64s(sortedProfits)

	r.Profit = profit
	r.AverageProfit = profit / float64(n)
	r.Success = float64(positive) / float64(n)
	r.Drawdown = computeDrawdown(sorted)
	r.ProfitP75 = computePercentile(sortedProfits, 0.75)
	r.ProfitP95 = computePercentile(sortedProfits, 0.95)
	r.TargetScore = computeTargetScore(r)
}

// computeDrawdown walks orders in close-time order tracking cumulative
// profit. The historic drawdown is the lowest cumulative value seen; the
// relative drawdown is the worst drop measured from the running all-time
// high, with the close times of the peak and trough orders.
func computeDrawdown(sorted []*domain.PositionOrder) domain.Drawdown {
	var dd domain.Drawdown

	currentProfit := 0.0
	maxHistoricProfit := 0.0
	maxHistoricProfitTimeMs := int64(0)
	minRelativeProfit := 0.0

	for _, o := range sorted {
		currentProfit += o.ProfitPercent

		if currentProfit <= dd.HistoricDD {
			dd.HistoricDD = currentProfit
			dd.HistoricDDTimeMs = o.CloseTimeMs
		}

		if currentProfit >= maxHistoricProfit {
			maxHistoricProfit = currentProfit
			maxHistoricProfitTimeMs = o.CloseTimeMs
			minRelativeProfit = currentProfit
		} else if currentProfit <= minRelativeProfit {
			minRelativeProfit = currentProfit
			relativeDD := currentProfit - maxHistoricProfit
			if relativeDD < dd.RelativeDD {
				dd.RelativeDD = relativeDD
				dd.RelativeDDStartMs = maxHistoricProfitTimeMs
				dd.RelativeDDEndMs = o.CloseTimeMs
			}
		}
	}

	return dd
}

// computeTargetScore scores a result for cross-strategy comparison:
// 100 * (profit / relative_dd^2) / total_days. Results with no orders, no
// relative drawdown or non-positive profit score zero so degenerate runs
// never outrank real ones. total_days spans the first to last order open
// date, inclusive.
func computeTargetScore(r *domain.BacktestResult) float64 {
	if len(r.Orders) == 0 || r.Drawdown.RelativeDD == 0 || r.Profit <= 0 {
		return 0
	}

	firstDay := r.Orders[0].OpenTimeMs / msPerDay
	lastDay := firstDay
	for _, o := range r.Orders {
		day := o.OpenTimeMs / msPerDay
		if day < firstDay {
			firstDay = day
		}
		if day > lastDay {
			lastDay = day
		}
	}
	totalDays := float64(lastDay-firstDay) + 1

	relDD := r.Drawdown.RelativeDD
	return 100 * (r.Profit / (relDD * relDD)) / totalDays
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.75 = 75th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// WithCommission returns a commission-adjusted copy of the result: every
// order's profit fraction is reduced by pct percent and all aggregates are
// recomputed. The input result is not modified.
func WithCommission(r *domain.BacktestResult, pct float64) (*domain.BacktestResult, error) {
	if r.WithCommissions {
		return nil, ErrCommissionsApplied
	}

	adjusted := &domain.BacktestResult{
		Ticker:          r.Ticker,
		Label:           r.Label,
		Orders:          make([]*domain.PositionOrder, len(r.Orders)),
		WithCommissions: true,
	}
	for i, o := range r.Orders {
		clone := o.Clone()
		clone.ProfitPercent -= pct / 100
		adjusted.Orders[i] = clone
	}

	InitMetrics(adjusted)
	return adjusted, nil
}

// Merge concatenates the orders of several per-instrument results into one
// combined result and recomputes metrics over the union. Finalized
// aggregates are never merged field-wise.
func Merge(label string, results []*domain.BacktestResult) *domain.BacktestResult {
	merged := &domain.BacktestResult{Label: label}
	for _, r := range results {
		merged.Orders = append(merged.Orders, r.Orders...)
	}
	InitMetrics(merged)
	return merged
}
