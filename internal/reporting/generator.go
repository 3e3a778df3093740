package reporting

import (
	"sort"
	"time"

	"futures-backtest-lab/internal/backtest"
	"futures-backtest-lab/internal/domain"
)

// Generator builds reports from run summaries.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over the given run summaries. Rows are sorted by
// label; within a label the combined row comes first, then instruments in
// ticker order.
func (g *Generator) Generate(summaries []*backtest.RunSummary) *Report {
	report := &Report{
		GeneratedAt:   g.now(),
		StrategyCount: len(summaries),
	}

	for _, s := range summaries {
		if s.Combined != nil {
			report.Summaries = append(report.Summaries, resultRow(s.Label, CombinedTicker, s.Combined))
		}

		tickers := make([]string, 0, len(s.PerInstrument))
		for ticker := range s.PerInstrument {
			tickers = append(tickers, ticker)
		}
		sort.Strings(tickers)
		for _, ticker := range tickers {
			report.Summaries = append(report.Summaries, resultRow(s.Label, ticker, s.PerInstrument[ticker]))
		}

		skipped := make([]string, 0, len(s.Skipped))
		for ticker := range s.Skipped {
			skipped = append(skipped, ticker)
		}
		sort.Strings(skipped)
		for _, ticker := range skipped {
			report.Skipped = append(report.Skipped, SkippedRow{
				Label:  s.Label,
				Ticker: ticker,
				Reason: s.Skipped[ticker].Error(),
			})
		}
	}

	sort.SliceStable(report.Summaries, func(i, j int) bool {
		return report.Summaries[i].Label < report.Summaries[j].Label
	})
	sort.SliceStable(report.Skipped, func(i, j int) bool {
		if report.Skipped[i].Label != report.Skipped[j].Label {
			return report.Skipped[i].Label < report.Skipped[j].Label
		}
		return report.Skipped[i].Ticker < report.Skipped[j].Ticker
	})

	return report
}

func resultRow(label, ticker string, r *domain.BacktestResult) SummaryRow {
	return SummaryRow{
		Label:             label,
		Ticker:            ticker,
		Orders:            len(r.Orders),
		Profit:            r.Profit,
		AverageProfit:     r.AverageProfit,
		Success:           r.Success,
		HistoricDD:        r.Drawdown.HistoricDD,
		HistoricDDTimeMs:  r.Drawdown.HistoricDDTimeMs,
		RelativeDD:        r.Drawdown.RelativeDD,
		RelativeDDStartMs: r.Drawdown.RelativeDDStartMs,
		RelativeDDEndMs:   r.Drawdown.RelativeDDEndMs,
		TargetScore:       r.TargetScore,
		ProfitP75:         r.ProfitP75,
		ProfitP95:         r.ProfitP95,
		WithCommissions:   r.WithCommissions,
	}
}
