// Package simulation tracks live paper-trading positions: it opens order
// intents against the current mark price and polls the market until the
// lifecycle engine closes them. All state between polls lives in the
// serialized task payload, not in process memory.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"futures-backtest-lab/internal/alerts"
	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/lifecycle"
	"futures-backtest-lab/internal/marketdata"
	"futures-backtest-lab/internal/storage"
)

// ErrTrackingExpired is returned when a position exceeded the staleness
// bounds and tracking was abandoned. The order stays open; disposition is
// up to the operator.
var ErrTrackingExpired = errors.New("position tracking expired")

// RunnerOptions configures a simulation Runner.
type RunnerOptions struct {
	Quoter    marketdata.PriceQuoter        // mark price source. Required.
	Tracked   storage.TrackedPositionStore  // guard + payload persistence. Required.
	Orders    storage.OrderStore            // closed order sink. Required.
	Scheduler Scheduler                     // refresh re-enqueueing. Required.
	Notifier  alerts.Notifier               // defaults to alerts.Nop{}
	Log       zerolog.Logger

	// RefreshInterval is the base delay between polls. Default 3s.
	RefreshInterval time.Duration

	// RefreshJitter spreads polls out by ±jitter. Default 1s.
	RefreshJitter time.Duration

	// MaxConsecutiveFailures bounds quote failures before tracking is
	// abandoned. Default 5.
	MaxConsecutiveFailures int

	// MaxTrackedAge bounds how long a position may stay tracked.
	// Default 72h.
	MaxTrackedAge time.Duration
}

// Runner drives live position tracking.
type Runner struct {
	quoter    marketdata.PriceQuoter
	tracked   storage.TrackedPositionStore
	orders    storage.OrderStore
	scheduler Scheduler
	notifier  alerts.Notifier
	log       zerolog.Logger

	refreshInterval time.Duration
	refreshJitter   time.Duration
	maxFailures     int
	maxTrackedAge   time.Duration
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = alerts.Nop{}
	}
	refreshInterval := opts.RefreshInterval
	if refreshInterval <= 0 {
		refreshInterval = 3 * time.Second
	}
	refreshJitter := opts.RefreshJitter
	if refreshJitter < 0 {
		refreshJitter = 0
	} else if opts.RefreshJitter == 0 {
		refreshJitter = 1 * time.Second
	}
	maxFailures := opts.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	maxTrackedAge := opts.MaxTrackedAge
	if maxTrackedAge <= 0 {
		maxTrackedAge = 72 * time.Hour
	}

	return &Runner{
		quoter:          opts.Quoter,
		tracked:         opts.Tracked,
		orders:          opts.Orders,
		scheduler:       opts.Scheduler,
		notifier:        notifier,
		log:             opts.Log,
		refreshInterval: refreshInterval,
		refreshJitter:   refreshJitter,
		maxFailures:     maxFailures,
		maxTrackedAge:   maxTrackedAge,
	}
}

// Track opens an order intent at the current mark price and starts polling
// it. Returns storage.ErrDuplicateKey when a position with the same
// (ticker, label) is already tracked; the caller logs and drops the intent.
func (r *Runner) Track(ctx context.Context, order *domain.PositionOrder) error {
	// 1. Quote the entry price and open the position on that tick.
	price, priceMs, err := r.quoter.MarkPrice(ctx, order.Ticker)
	if err != nil {
		return fmt.Errorf("entry quote: %w", err)
	}
	order.OrderPrice = price

	tick := domain.TickCandle(order.Ticker, priceMs, price)
	state, err := lifecycle.Open(order, tick)
	if err != nil {
		return err
	}

	order.Mode = domain.ModeSimulated
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	// 2. Build the first refresh payload.
	payload := &TaskPayload{
		OrderID:     order.ID,
		Ticker:      order.Ticker,
		Label:       order.Label,
		Direction:   order.Direction,
		Leverage:    order.Leverage,
		Quantity:    order.Quantity,
		OrderPrice:  order.OrderPrice,
		OpenTimeMs:  order.OpenTimeMs,
		OpenPrice:   order.OpenPrice,
		State:       *state,
		LastPrice:   price,
		LastPriceMs: priceMs,
	}
	data, err := payload.Marshal()
	if err != nil {
		return err
	}

	// 3. Take the duplicate guard. ErrDuplicateKey means another position
	//    with this (ticker, label) is already live.
	tp := &domain.TrackedPosition{
		Ticker:      order.Ticker,
		Label:       order.Label,
		OrderID:     order.ID,
		Payload:     data,
		UpdatedAtMs: time.Now().UnixMilli(),
	}
	if err := r.tracked.Put(ctx, tp); err != nil {
		return err
	}

	// 4. Announce and schedule the first refresh.
	if err := r.notifier.NotifyOpen(ctx, order); err != nil {
		r.log.Warn().Str("ticker", order.Ticker).Err(err).Msg("open alert failed")
	}

	r.log.Info().Str("ticker", order.Ticker).Str("label", order.Label).Str("order_id", order.ID).Float64("entry", price).Msg("tracking position")

	return r.scheduler.Schedule(ctx, payload, r.jitteredDelay())
}

// Refresh advances one tracked position by one poll. Steps:
//
//  1. Abandon tracking when the position is older than MaxTrackedAge.
//  2. Quote the mark price; repeated failures abandon tracking.
//  3. Advance the lifecycle engine with the prior and current ticks.
//  4. Closed: persist the order, drop the guard, announce the exit.
//  5. Still open: persist the updated payload and re-schedule.
func (r *Runner) Refresh(ctx context.Context, payload *TaskPayload) error {
	order := payload.Order()

	if time.Now().UnixMilli()-payload.OpenTimeMs > r.maxTrackedAge.Milliseconds() {
		return r.expire(ctx, payload, "position exceeded max tracked age")
	}

	price, priceMs, err := r.quoter.MarkPrice(ctx, order.Ticker)
	if err != nil {
		payload.Failures++
		r.log.Warn().Str("ticker", order.Ticker).Int("failures", payload.Failures).Err(err).Msg("quote failed")

		if payload.Failures >= r.maxFailures {
			return r.expire(ctx, payload, fmt.Sprintf("%d consecutive quote failures", payload.Failures))
		}
		return r.scheduler.Schedule(ctx, payload, r.jitteredDelay())
	}
	payload.Failures = 0

	prior := domain.TickCandle(order.Ticker, payload.LastPriceMs, payload.LastPrice)
	current := domain.TickCandle(order.Ticker, priceMs, price)

	state := payload.State
	closed := lifecycle.Advance(order, &state, prior, current)

	if closed {
		if err := r.orders.Insert(ctx, order); err != nil {
			return fmt.Errorf("persist closed order: %w", err)
		}
		if err := r.tracked.Delete(ctx, order.Ticker, order.Label); err != nil {
			return fmt.Errorf("drop tracking guard: %w", err)
		}
		if err := r.notifier.NotifyClose(ctx, order); err != nil {
			r.log.Warn().Str("ticker", order.Ticker).Err(err).Msg("close alert failed")
		}

		r.log.Info().Str("ticker", order.Ticker).Str("label", order.Label).Str("reason", string(order.CloseReason)).Float64("profit_pct", order.ProfitPercent*100).Msg("position closed")
		return nil
	}

	payload.State = state
	payload.LastPrice = price
	payload.LastPriceMs = priceMs

	data, err := payload.Marshal()
	if err != nil {
		return err
	}
	tp := &domain.TrackedPosition{
		Ticker:      order.Ticker,
		Label:       order.Label,
		OrderID:     order.ID,
		Payload:     data,
		UpdatedAtMs: time.Now().UnixMilli(),
	}
	if err := r.tracked.Update(ctx, tp); err != nil {
		return fmt.Errorf("persist tracking state: %w", err)
	}

	return r.scheduler.Schedule(ctx, payload, r.jitteredDelay())
}

// Resume re-schedules every persisted tracked position. Called on startup
// so positions survive process restarts.
func (r *Runner) Resume(ctx context.Context) error {
	tracked, err := r.tracked.List(ctx)
	if err != nil {
		return err
	}

	for _, tp := range tracked {
		payload, err := UnmarshalPayload(tp.Payload)
		if err != nil {
			r.log.Warn().Str("ticker", tp.Ticker).Str("label", tp.Label).Err(err).Msg("dropping undecodable tracked position")
			if err := r.tracked.Delete(ctx, tp.Ticker, tp.Label); err != nil {
				return err
			}
			continue
		}
		if err := r.scheduler.Schedule(ctx, payload, r.jitteredDelay()); err != nil {
			return err
		}
		r.log.Info().Str("ticker", tp.Ticker).Str("label", tp.Label).Msg("resumed tracked position")
	}

	return nil
}

// expire abandons tracking: drop the guard, warn, leave the order open.
func (r *Runner) expire(ctx context.Context, payload *TaskPayload, reason string) error {
	if err := r.tracked.Delete(ctx, payload.Ticker, payload.Label); err != nil {
		return err
	}

	detail := fmt.Sprintf("order %s on %s (%s): %s", payload.OrderID, payload.Ticker, payload.Label, reason)
	if err := r.notifier.NotifyWarning(ctx, "tracking expired", detail); err != nil {
		r.log.Warn().Err(err).Msg("expiry alert failed")
	}
	r.log.Warn().Str("ticker", payload.Ticker).Str("label", payload.Label).Str("reason", reason).Msg("tracking expired")

	return ErrTrackingExpired
}

// jitteredDelay spreads polls around the base interval so simultaneous
// positions do not hit the quote source in lockstep.
func (r *Runner) jitteredDelay() time.Duration {
	if r.refreshJitter == 0 {
		return r.refreshInterval
	}
	offset := time.Duration(rand.Int63n(int64(2*r.refreshJitter))) - r.refreshJitter
	delay := r.refreshInterval + offset
	if delay < 0 {
		delay = 0
	}
	return delay
}
