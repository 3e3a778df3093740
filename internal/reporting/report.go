// Package reporting renders backtest run summaries as Markdown and CSV.
package reporting

import "time"

// Report is the rendered view of one or more backtest runs.
type Report struct {
	// Metadata
	GeneratedAt   time.Time
	StrategyCount int

	// Summaries, one row per (label, ticker), with the combined row first
	// within each label.
	Summaries []SummaryRow

	// Skipped instruments with the failure reason.
	Skipped []SkippedRow
}

// CombinedTicker marks a label's cross-instrument row.
const CombinedTicker = "TOTAL"

// SummaryRow is one result in the report.
type SummaryRow struct {
	Label  string
	Ticker string // CombinedTicker for the merged row
	Orders int

	Profit        float64
	AverageProfit float64
	Success       float64 // fraction of positive orders

	HistoricDD        float64
	HistoricDDTimeMs  int64
	RelativeDD        float64
	RelativeDDStartMs int64
	RelativeDDEndMs   int64

	TargetScore float64
	ProfitP75   float64
	ProfitP95   float64

	WithCommissions bool
}

// SkippedRow records one instrument that failed during a run.
type SkippedRow struct {
	Label  string
	Ticker string
	Reason string
}
