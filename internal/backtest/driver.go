// Package backtest replays strategies over historical candles: one open
// position per instrument, trailing-stop tracking through the lifecycle
// engine and parallel replay across instruments.
package backtest

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/idhash"
	"futures-backtest-lab/internal/lifecycle"
	"futures-backtest-lab/internal/marketdata"
	"futures-backtest-lab/internal/metrics"
	"futures-backtest-lab/internal/strategy"
)

// DefaultIndexTicker is the market index instrument handed to strategies
// that request index candles.
const DefaultIndexTicker = "BTCUSDT"

// Options configures a Driver.
type Options struct {
	// Source fetches candle histories. Required.
	Source marketdata.CandleSource

	// Cache is reused across invocations when set; otherwise every Run
	// gets a fresh cache scoped to that invocation.
	Cache *CandleCache

	// Workers bounds the parallel instrument replays.
	// Defaults to runtime.NumCPU().
	Workers int

	// IndexTicker is the market index instrument.
	// Defaults to DefaultIndexTicker.
	IndexTicker string

	// Log receives per-instrument progress and skip warnings.
	Log zerolog.Logger
}

// Driver replays strategies over candle history.
type Driver struct {
	source      marketdata.CandleSource
	cache       *CandleCache
	workers     int
	indexTicker string
	log         zerolog.Logger
}

// NewDriver creates a backtest driver.
func NewDriver(opts Options) *Driver {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	indexTicker := opts.IndexTicker
	if indexTicker == "" {
		indexTicker = DefaultIndexTicker
	}

	return &Driver{
		source:      opts.Source,
		cache:       opts.Cache,
		workers:     workers,
		indexTicker: indexTicker,
		log:         opts.Log,
	}
}

// RunSummary holds the outcome of one strategy replay across instruments.
type RunSummary struct {
	Label         string
	PerInstrument map[string]*domain.BacktestResult
	Combined      *domain.BacktestResult

	// Skipped maps instruments that failed (fetch or strategy error) to
	// the failure. Skipped instruments do not contribute orders.
	Skipped map[string]error
}

// Run replays one strategy over every instrument in parallel and merges the
// per-instrument results into a combined one. Instruments whose candle
// fetch or strategy evaluation fails are logged, recorded in Skipped and
// left out of the merge; Run only errors when the context is cancelled or
// the index series cannot be fetched.
func (d *Driver) Run(ctx context.Context, strat strategy.Strategy, tickers []string, startTimeMs int64) (*RunSummary, error) {
	cache := d.cache
	if cache == nil {
		cache = NewCandleCache()
	}
	return d.runWithCache(ctx, cache, strat, tickers, startTimeMs)
}

func (d *Driver) runWithCache(ctx context.Context, cache *CandleCache, strat strategy.Strategy, tickers []string, startTimeMs int64) (*RunSummary, error) {
	summary := &RunSummary{
		Label:         strat.Label(),
		PerInstrument: make(map[string]*domain.BacktestResult),
		Skipped:       make(map[string]error),
	}

	// The index series is shared by every worker, fetch it up front.
	var indexCandles []*domain.Candle
	if strat.Capabilities().NeedsIndexCandles {
		var err error
		indexCandles, err = d.fetchCandles(ctx, cache, d.indexTicker, strat.Interval(), startTimeMs)
		if err != nil {
			return nil, err
		}
	}

	type instrumentOutcome struct {
		ticker string
		result *domain.BacktestResult
		err    error
	}

	jobs := make(chan string)
	outcomes := make(chan instrumentOutcome)

	var wg sync.WaitGroup
	for w := 0; w < d.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				result, err := d.replayInstrument(ctx, cache, strat, ticker, startTimeMs, indexCandles)
				select {
				case outcomes <- instrumentOutcome{ticker: ticker, result: result, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, ticker := range tickers {
			select {
			case jobs <- ticker:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for outcome := range outcomes {
		if outcome.err != nil {
			d.log.Warn().Str("ticker", outcome.ticker).Str("label", summary.Label).Err(outcome.err).Msg("skipping instrument")
			summary.Skipped[outcome.ticker] = outcome.err
			continue
		}
		d.log.Info().Str("ticker", outcome.ticker).Str("label", summary.Label).Int("orders", len(outcome.result.Orders)).Msg("instrument replay finished")
		summary.PerInstrument[outcome.ticker] = outcome.result
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	perInstrument := make([]*domain.BacktestResult, 0, len(summary.PerInstrument))
	for _, r := range summary.PerInstrument {
		perInstrument = append(perInstrument, r)
	}
	summary.Combined = metrics.Merge(summary.Label, perInstrument)

	return summary, nil
}

// fetchCandles returns the cached series for (ticker, interval) or fetches
// and caches it.
func (d *Driver) fetchCandles(ctx context.Context, cache *CandleCache, ticker, interval string, startTimeMs int64) ([]*domain.Candle, error) {
	if candles, ok := cache.Get(ticker, interval); ok {
		return candles, nil
	}

	candles, err := d.source.Candles(ctx, ticker, interval, startTimeMs)
	if err != nil {
		return nil, err
	}

	cache.Put(ticker, interval, candles)
	return candles, nil
}

// replayInstrument runs the candle-by-candle replay for one instrument.
// With no open position the strategy is consulted over the preceding
// window; with one the position advances using the two fully closed candles
// before the cursor. Replay state is local to this call, so instrument
// replays run concurrently without sharing.
func (d *Driver) replayInstrument(ctx context.Context, cache *CandleCache, strat strategy.Strategy, ticker string, startTimeMs int64, indexCandles []*domain.Candle) (*domain.BacktestResult, error) {
	candles, err := d.fetchCandles(ctx, cache, ticker, strat.Interval(), startTimeMs)
	if err != nil {
		return nil, err
	}

	if preparer, ok := strat.(strategy.CandlePreparer); ok {
		if err := preparer.PrepareCandles(ctx, candles); err != nil {
			return nil, err
		}
	}

	caps := strat.Capabilities()
	start := caps.WarmupCandles
	if start < caps.WindowSize {
		start = caps.WindowSize
	}
	if start < 2 {
		start = 2
	}

	result := &domain.BacktestResult{Ticker: ticker, Label: strat.Label()}

	var (
		order         *domain.PositionOrder
		state         *lifecycle.TrailingState
		previousOrder *domain.PositionOrder
	)

	for i := start; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if order == nil {
			window := candles[i-caps.WindowSize : i]

			input := &strategy.Input{Candles: window}
			if caps.NeedsIndexCandles {
				if len(indexCandles) < i {
					// Index history is shorter than the instrument's,
					// no signal can be evaluated at this cursor.
					continue
				}
				input.IndexCandles = indexCandles[i-caps.WindowSize : i]
			}
			if caps.NeedsPreviousOrder {
				input.PreviousOrder = previousOrder
			}

			intent, err := strat.Analyze(ctx, input)
			if err != nil {
				return nil, err
			}
			if intent == nil {
				continue
			}

			entryCandle := window[len(window)-1]
			st, err := lifecycle.Open(intent, entryCandle)
			if err != nil {
				return nil, err
			}

			intent.Mode = domain.ModeBacktest
			intent.ID = idhash.ComputeOrderID(ticker, intent.Label, string(intent.Direction), intent.OpenTimeMs)
			order, state = intent, st
			continue
		}

		if lifecycle.Advance(order, state, candles[i-2], candles[i-1]) {
			result.Orders = append(result.Orders, order)
			previousOrder = order
			order, state = nil, nil
		}
	}

	// A position still open when the history ends is discarded, only
	// closed orders count.
	metrics.InitMetrics(result)
	return result, nil
}
