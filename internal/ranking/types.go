// Package ranking orders comparative backtest runs by target score and
// flags runs whose aggregates are too degenerate to rank.
package ranking

// Verdict classifies a ranked run.
type Verdict string

const (
	// VerdictRanked means the run produced a usable score.
	VerdictRanked Verdict = "RANKED"
	// VerdictDegenerate means the score is zero: no orders, no relative
	// drawdown, or a non-positive total profit.
	VerdictDegenerate Verdict = "DEGENERATE"
)

// Entry is one strategy in a ranking.
type Entry struct {
	Rank       int     // 1-based; degenerate entries rank after all ranked ones
	Label      string  // strategy label
	Score      float64 // target score of the combined result
	Profit     float64 // combined total profit
	RelativeDD float64 // combined relative drawdown (<= 0)
	Orders     int     // combined closed order count
	Success    float64 // combined success rate
	Verdict    Verdict
}

// Ranking is the ordered outcome of a comparative run.
type Ranking struct {
	Entries []Entry // all strategies, best first
	Podium  []Entry // top entries with VerdictRanked, at most three
}
