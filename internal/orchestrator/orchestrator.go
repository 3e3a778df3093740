// Package orchestrator coordinates a full evaluation run:
// replay → commission adjustment → persistence → ranking → report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"futures-backtest-lab/internal/backtest"
	"futures-backtest-lab/internal/marketdata"
	"futures-backtest-lab/internal/metrics"
	"futures-backtest-lab/internal/ranking"
	"futures-backtest-lab/internal/reporting"
	"futures-backtest-lab/internal/storage"
	"futures-backtest-lab/internal/strategy"
)

// Options for creating an Orchestrator.
type Options struct {
	// Required
	Source      marketdata.CandleSource
	OrderStore  storage.OrderStore
	ResultStore storage.ResultStore
	Strategies  []strategy.Strategy
	Instruments []string
	StartTimeMs int64

	// Optional
	IndexTicker       string  // default backtest.DefaultIndexTicker
	Workers           int     // default NumCPU
	CommissionPercent float64 // default metrics.DefaultCommissionPercent
	Log               zerolog.Logger
}

// Orchestrator runs the evaluation phases in order.
type Orchestrator struct {
	source      marketdata.CandleSource
	orderStore  storage.OrderStore
	resultStore storage.ResultStore
	strategies  []strategy.Strategy
	instruments []string
	startTimeMs int64

	indexTicker   string
	workers       int
	commissionPct float64
	log           zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	commissionPct := opts.CommissionPercent
	if commissionPct <= 0 {
		commissionPct = metrics.DefaultCommissionPercent
	}

	return &Orchestrator{
		source:        opts.Source,
		orderStore:    opts.OrderStore,
		resultStore:   opts.ResultStore,
		strategies:    opts.Strategies,
		instruments:   opts.Instruments,
		startTimeMs:   opts.StartTimeMs,
		indexTicker:   opts.IndexTicker,
		workers:       opts.Workers,
		commissionPct: commissionPct,
		log:           opts.Log,
	}
}

// RunResult contains the outcome of a full run.
type RunResult struct {
	Summaries []*backtest.RunSummary
	Ranking   *ranking.Ranking
	Report    *reporting.Report
	Errors    []string
}

// Run executes the full evaluation. Phases:
//
//  1. Replay every strategy over every instrument.
//  2. Build the commission-adjusted variant of each combined result.
//  3. Persist orders and aggregates.
//  4. Rank strategies by target score.
//  5. Generate the report.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	o.log.Info().Int("strategies", len(o.strategies)).Int("instruments", len(o.instruments)).Msg("phase 1: replaying instruments")
	driver := backtest.NewDriver(backtest.Options{
		Source:      o.source,
		Workers:     o.workers,
		IndexTicker: o.indexTicker,
		Log:         o.log,
	})
	summaries, err := driver.RunComparative(ctx, o.strategies, o.instruments, o.startTimeMs)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (replay) failed: %w", err)
	}
	result.Summaries = summaries

	o.log.Info().Float64("pct", o.commissionPct).Msg("phase 2: applying commissions")
	adjusted := make([]*backtest.RunSummary, 0, len(summaries))
	for _, s := range summaries {
		if len(s.Combined.Orders) == 0 {
			continue
		}
		withCommission, err := metrics.WithCommission(s.Combined, o.commissionPct)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("commission %s: %v", s.Label, err))
			continue
		}
		adjusted = append(adjusted, &backtest.RunSummary{Label: s.Label, Combined: withCommission})
	}

	o.log.Info().Msg("phase 3: persisting results")
	persisted, persistErrs := o.persist(ctx, summaries, adjusted)
	result.Errors = append(result.Errors, persistErrs...)
	o.log.Info().Int("results", persisted).Int("errors", len(persistErrs)).Msg("persisted aggregates")

	o.log.Info().Msg("phase 4: ranking strategies")
	result.Ranking = ranking.NewEvaluator().Evaluate(summaries)

	o.log.Info().Msg("phase 5: generating report")
	result.Report = reporting.NewGenerator().Generate(summaries)

	return result, nil
}

// persist stores per-instrument results with their orders, then the combined
// and commission-adjusted aggregate rows. Empty results are skipped, as are
// orders already stored by an earlier run.
func (o *Orchestrator) persist(ctx context.Context, summaries, adjusted []*backtest.RunSummary) (int, []string) {
	aggregator := metrics.NewAggregator(o.orderStore, o.resultStore)

	var persisted int
	var errs []string

	store := func(label, ticker string, fn func() error) {
		err := fn()
		switch {
		case err == nil:
			persisted++
		case errors.Is(err, metrics.ErrNoOrders):
		case errors.Is(err, storage.ErrDuplicateKey):
		default:
			errs = append(errs, fmt.Sprintf("persist %s/%s: %v", label, ticker, err))
		}
	}

	for _, s := range summaries {
		for ticker, r := range s.PerInstrument {
			r := r
			store(s.Label, ticker, func() error { return aggregator.StoreResult(ctx, r) })
		}
		combined := s.Combined
		store(s.Label, reporting.CombinedTicker, func() error { return aggregator.StoreAggregateOnly(ctx, combined) })
	}
	for _, s := range adjusted {
		combined := s.Combined
		store(s.Label, reporting.CombinedTicker, func() error { return aggregator.StoreAggregateOnly(ctx, combined) })
	}

	return persisted, errs
}
