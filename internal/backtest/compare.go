package backtest

import (
	"context"
	"errors"
	"fmt"

	"futures-backtest-lab/internal/strategy"
)

// Comparative run errors.
var (
	ErrDuplicateLabel   = errors.New("comparative run requires unique strategy labels")
	ErrIntervalMismatch = errors.New("comparative run requires a single candle interval")
	ErrNoStrategies     = errors.New("comparative run requires at least one strategy")
)

// RunComparative replays several strategies over the same instruments and
// candle fetch pass. Every strategy sees the identical history, so their
// summaries are directly comparable. Strategies must carry unique labels
// and share one candle interval.
func (d *Driver) RunComparative(ctx context.Context, strats []strategy.Strategy, tickers []string, startTimeMs int64) ([]*RunSummary, error) {
	if len(strats) == 0 {
		return nil, ErrNoStrategies
	}

	labels := make(map[string]struct{}, len(strats))
	interval := strats[0].Interval()
	for _, strat := range strats {
		if _, exists := labels[strat.Label()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLabel, strat.Label())
		}
		labels[strat.Label()] = struct{}{}

		if strat.Interval() != interval {
			return nil, fmt.Errorf("%w: %s vs %s", ErrIntervalMismatch, strat.Interval(), interval)
		}
	}

	// One cache for the whole comparison: the first strategy fetches,
	// the rest replay the cached series.
	cache := d.cache
	if cache == nil {
		cache = NewCandleCache()
	}

	summaries := make([]*RunSummary, 0, len(strats))
	for _, strat := range strats {
		summary, err := d.runWithCache(ctx, cache, strat, tickers, startTimeMs)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}
