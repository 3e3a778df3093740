package ranking

import (
	"sort"

	"futures-backtest-lab/internal/backtest"
)

// Evaluator ranks comparative run summaries.
type Evaluator struct{}

// NewEvaluator creates a ranking evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate ranks run summaries by the combined target score, best first.
// Ties break on total profit, then on the shallower relative drawdown.
// Runs with a zero score are flagged degenerate and sort after every
// ranked run.
func (e *Evaluator) Evaluate(summaries []*backtest.RunSummary) *Ranking {
	entries := make([]Entry, 0, len(summaries))
	for _, s := range summaries {
		entry := Entry{
			Label:      s.Label,
			Score:      s.Combined.TargetScore,
			Profit:     s.Combined.Profit,
			RelativeDD: s.Combined.Drawdown.RelativeDD,
			Orders:     len(s.Combined.Orders),
			Success:    s.Combined.Success,
			Verdict:    VerdictRanked,
		}
		if entry.Score == 0 {
			entry.Verdict = VerdictDegenerate
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Verdict == VerdictDegenerate) != (b.Verdict == VerdictDegenerate) {
			return a.Verdict != VerdictDegenerate
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Profit != b.Profit {
			return a.Profit > b.Profit
		}
		// RelativeDD is <= 0, closer to zero is better.
		return a.RelativeDD > b.RelativeDD
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	podium := make([]Entry, 0, 3)
	for _, entry := range entries {
		if entry.Verdict != VerdictRanked || len(podium) == 3 {
			break
		}
		podium = append(podium, entry)
	}

	return &Ranking{Entries: entries, Podium: podium}
}
