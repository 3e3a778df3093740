package metrics

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"futures-backtest-lab/internal/domain"
)

const tolerance = 1e-9

// closedOrder builds a closed order with the given profit fraction. Open and
// close times are spread by index so the drawdown walk has a stable order.
func closedOrder(id string, profitPercent float64, closeTimeMs int64) *domain.PositionOrder {
	return &domain.PositionOrder{
		ID:            id,
		Ticker:        "ETHUSDT",
		Label:         "TEST",
		Direction:     domain.DirectionLong,
		Status:        domain.StatusClosed,
		Leverage:      1,
		Quantity:      10,
		OpenTimeMs:    closeTimeMs - 3600000,
		CloseTimeMs:   closeTimeMs,
		ProfitPercent: profitPercent,
		PositiveOrder: profitPercent > 0,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestInitMetrics_EmptyResult(t *testing.T) {
	r := &domain.BacktestResult{Label: "TEST"}
	InitMetrics(r)

	if r.Profit != 0 || r.AverageProfit != 0 || r.Success != 0 {
		t.Errorf("expected zero aggregates, got profit=%g avg=%g success=%g", r.Profit, r.AverageProfit, r.Success)
	}
	if r.Drawdown != (domain.Drawdown{}) {
		t.Errorf("expected zero drawdown, got %+v", r.Drawdown)
	}
	if r.TargetScore != 0 {
		t.Errorf("expected zero score, got %g", r.TargetScore)
	}
}

func TestInitMetrics_Aggregates(t *testing.T) {
	r := &domain.BacktestResult{
		Label: "TEST",
		Orders: []*domain.PositionOrder{
			closedOrder("a", 0.02, 1000),
			closedOrder("b", -0.01, 2000),
			closedOrder("c", 0.03, 3000),
			closedOrder("d", -0.02, 4000),
		},
	}
	InitMetrics(r)

	// 0.02 - 0.01 + 0.03 - 0.02 = 0.02
	if !approx(r.Profit, 0.02) {
		t.Errorf("expected profit 0.02, got %g", r.Profit)
	}
	if !approx(r.AverageProfit, 0.005) {
		t.Errorf("expected average 0.005, got %g", r.AverageProfit)
	}
	// 2 of 4 positive.
	if !approx(r.Success, 0.5) {
		t.Errorf("expected success 0.5, got %g", r.Success)
	}
}

func TestInitMetrics_Idempotent(t *testing.T) {
	r := &domain.BacktestResult{
		Label: "TEST",
		Orders: []*domain.PositionOrder{
			closedOrder("a", 0.02, 1000),
			closedOrder("b", -0.03, 2000),
		},
	}
	InitMetrics(r)
	first := *r
	first.Orders = nil

	InitMetrics(r)
	second := *r
	second.Orders = nil

	if !reflect.DeepEqual(first, second) {
		t.Errorf("recompute changed aggregates:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestComputeDrawdown_Walk(t *testing.T) {
	// Cumulative walk: 0.05, 0.02, 0.08, 0.03, 0.01, 0.06.
	// Historic DD never goes below zero here; relative DD is the drop from
	// the 0.08 peak down to 0.01: -0.07.
	r := &domain.BacktestResult{
		Label: "TEST",
		Orders: []*domain.PositionOrder{
			closedOrder("a", 0.05, 1000),
			closedOrder("b", -0.03, 2000),
			closedOrder("c", 0.06, 3000),
			closedOrder("d", -0.05, 4000),
			closedOrder("e", -0.02, 5000),
			closedOrder("f", 0.05, 6000),
		},
	}
	InitMetrics(r)

	if r.Drawdown.HistoricDD != 0 {
		t.Errorf("expected historic dd 0, got %g", r.Drawdown.HistoricDD)
	}
	if !approx(r.Drawdown.RelativeDD, -0.07) {
		t.Errorf("expected relative dd -0.07, got %g", r.Drawdown.RelativeDD)
	}
	if r.Drawdown.RelativeDDStartMs != 3000 {
		t.Errorf("expected peak at 3000, got %d", r.Drawdown.RelativeDDStartMs)
	}
	if r.Drawdown.RelativeDDEndMs != 5000 {
		t.Errorf("expected trough at 5000, got %d", r.Drawdown.RelativeDDEndMs)
	}
}

func TestComputeDrawdown_HistoricBelowZero(t *testing.T) {
	// Cumulative walk: -0.04, -0.06, -0.01.
	r := &domain.BacktestResult{
		Label: "TEST",
		Orders: []*domain.PositionOrder{
			closedOrder("a", -0.04, 1000),
			closedOrder("b", -0.02, 2000),
			closedOrder("c", 0.05, 3000),
		},
	}
	InitMetrics(r)

	if !approx(r.Drawdown.HistoricDD, -0.06) {
		t.Errorf("expected historic dd -0.06, got %g", r.Drawdown.HistoricDD)
	}
	if r.Drawdown.HistoricDDTimeMs != 2000 {
		t.Errorf("expected historic dd time 2000, got %d", r.Drawdown.HistoricDDTimeMs)
	}
	// The all-time high is the implicit starting zero, so the drop to -0.06
	// is also the relative drawdown.
	if !approx(r.Drawdown.RelativeDD, -0.06) {
		t.Errorf("expected relative dd -0.06, got %g", r.Drawdown.RelativeDD)
	}
}

func TestTargetScore_DegenerateRunsScoreZero(t *testing.T) {
	// Monotonically rising equity has no relative drawdown: score stays
	// zero no matter the profit.
	r := &domain.BacktestResult{
		Label: "TEST",
		Orders: []*domain.PositionOrder{
			closedOrder("a", 0.02, 1000),
			closedOrder("b", 0.02, 2*86400000),
		},
	}
	InitMetrics(r)

	if r.Drawdown.RelativeDD != 0 {
		t.Fatalf("expected zero relative dd, got %g", r.Drawdown.RelativeDD)
	}
	if r.TargetScore != 0 {
		t.Errorf("expected score 0, got %g", r.TargetScore)
	}

	// Losing runs score zero too.
	r = &domain.BacktestResult{
		Label: "TEST",
		Orders: []*domain.PositionOrder{
			closedOrder("a", 0.02, 1000),
			closedOrder("b", -0.05, 2000),
		},
	}
	InitMetrics(r)
	if r.TargetScore != 0 {
		t.Errorf("expected score 0 for losing run, got %g", r.TargetScore)
	}
}

func TestTargetScore_Formula(t *testing.T) {
	// Orders open on day 0 and day 2: total days = 3.
	// Walk: 0.06, 0.02, 0.05. Relative dd = -0.04. Profit = 0.05.
	a := closedOrder("a", 0.06, 3600000)
	b := closedOrder("b", -0.04, 7200000)
	c := closedOrder("c", 0.03, 2*86400000+3600000)
	a.OpenTimeMs = 1000
	b.OpenTimeMs = 2000
	c.OpenTimeMs = 2 * 86400000

	r := &domain.BacktestResult{Label: "TEST", Orders: []*domain.PositionOrder{a, b, c}}
	InitMetrics(r)

	// 100 * (0.05 / 0.04^2) / 3
	want := 100 * (0.05 / (0.04 * 0.04)) / 3
	if !approx(r.TargetScore, want) {
		t.Errorf("expected score %g, got %g", want, r.TargetScore)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	// idx = 0.75 * 4 = 3 exactly.
	if got := computePercentile(sorted, 0.75); !approx(got, 4) {
		t.Errorf("expected p75 4, got %g", got)
	}
	// idx = 0.95 * 4 = 3.8 -> 4 + 0.8*(5-4) = 4.8.
	if got := computePercentile(sorted, 0.95); !approx(got, 4.8) {
		t.Errorf("expected p95 4.8, got %g", got)
	}
	if got := computePercentile([]float64{7}, 0.75); got != 7 {
		t.Errorf("expected single-element percentile 7, got %g", got)
	}
	if got := computePercentile(nil, 0.75); got != 0 {
		t.Errorf("expected empty percentile 0, got %g", got)
	}
}

func TestWithCommission(t *testing.T) {
	r := &domain.BacktestResult{
		Label: "TEST",
		Orders: []*domain.PositionOrder{
			closedOrder("a", 0.02, 1000),
			closedOrder("b", -0.01, 2000),
		},
	}
	InitMetrics(r)

	adjusted, err := WithCommission(r, DefaultCommissionPercent)
	if err != nil {
		t.Fatalf("WithCommission failed: %v", err)
	}
	if !adjusted.WithCommissions {
		t.Error("adjusted result not flagged")
	}
	// 0.08% round trip -> each profit fraction drops by 0.0008.
	if !approx(adjusted.Orders[0].ProfitPercent, 0.0192) {
		t.Errorf("expected adjusted profit 0.0192, got %g", adjusted.Orders[0].ProfitPercent)
	}
	if !approx(adjusted.Profit, 0.02-0.01-2*0.0008) {
		t.Errorf("expected adjusted total %g, got %g", 0.02-0.01-2*0.0008, adjusted.Profit)
	}

	// The source result is untouched.
	if !approx(r.Orders[0].ProfitPercent, 0.02) {
		t.Errorf("source order mutated: %g", r.Orders[0].ProfitPercent)
	}
	if r.WithCommissions {
		t.Error("source result flagged")
	}

	// Applying twice is an error.
	if _, err := WithCommission(adjusted, DefaultCommissionPercent); !errors.Is(err, ErrCommissionsApplied) {
		t.Errorf("expected ErrCommissionsApplied, got %v", err)
	}
}

func TestMerge(t *testing.T) {
	eth := &domain.BacktestResult{
		Ticker: "ETHUSDT",
		Label:  "TEST",
		Orders: []*domain.PositionOrder{closedOrder("a", 0.02, 1000)},
	}
	sol := &domain.BacktestResult{
		Ticker: "SOLUSDT",
		Label:  "TEST",
		Orders: []*domain.PositionOrder{closedOrder("b", -0.01, 2000)},
	}

	merged := Merge("TEST", []*domain.BacktestResult{eth, sol})

	if merged.Ticker != "" {
		t.Errorf("merged result should not carry a ticker, got %q", merged.Ticker)
	}
	if len(merged.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(merged.Orders))
	}
	if !approx(merged.Profit, 0.01) {
		t.Errorf("expected merged profit 0.01, got %g", merged.Profit)
	}
}
