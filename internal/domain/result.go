package domain

// Drawdown holds the historic and relative drawdown of an order sequence.
// Both values are expressed as cumulative profit fractions and are <= 0.
type Drawdown struct {
	HistoricDD       float64 // lowest cumulative profit seen
	HistoricDDTimeMs int64   // close time of the order that set it (ms)

	RelativeDD        float64 // worst peak-to-trough move
	RelativeDDStartMs int64   // close time of the peak order (ms)
	RelativeDDEndMs   int64   // close time of the trough order (ms)
}

// BacktestResult aggregates the closed orders of one replay together with
// the metrics computed over them. Metrics are only meaningful after
// metrics.InitMetrics has run.
type BacktestResult struct {
	Ticker string // instrument, empty for merged multi-instrument results
	Label  string // strategy label

	Orders []*PositionOrder // closed orders, owned by the result

	Profit        float64 // sum of order profit fractions
	AverageProfit float64 // Profit / len(Orders)
	Success       float64 // share of orders with positive profit (0-1)
	Drawdown      Drawdown
	TargetScore   float64 // composite comparison score
	ProfitP75     float64 // 75th percentile of order profits
	ProfitP95     float64 // 95th percentile of order profits

	WithCommissions bool // true once commission adjustment was applied
}
