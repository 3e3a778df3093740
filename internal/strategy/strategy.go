// Package strategy defines the entry-signal interface the backtest driver
// and the live simulation evaluate, plus the concrete strategies shipped
// with the module.
package strategy

import (
	"context"

	"futures-backtest-lab/internal/domain"
)

// Capabilities declares up front what a strategy needs from the driver.
// The driver uses it to size the candle window and to decide which optional
// inputs to populate; strategies never get inputs they did not ask for.
type Capabilities struct {
	// WarmupCandles is the first candle index the driver may evaluate.
	// Everything before it only feeds indicator warm-up.
	WarmupCandles int

	// WindowSize is how many preceding candles Analyze receives.
	WindowSize int

	// NeedsIndexCandles requests the market index series (BTCUSDT) cut to
	// the same window.
	NeedsIndexCandles bool

	// NeedsPreviousOrder requests the previously closed order of this
	// strategy on the same instrument.
	NeedsPreviousOrder bool
}

// Input holds the data for one Analyze call. Optional fields are populated
// only when the corresponding capability is set.
type Input struct {
	Candles       []*domain.Candle      // window of WindowSize candles, oldest first
	IndexCandles  []*domain.Candle      // index series over the same window
	PreviousOrder *domain.PositionOrder // last closed order, nil if none yet
}

// Strategy produces position order intents from candle windows.
type Strategy interface {
	// Label identifies the strategy (including its parameters) in orders,
	// results and reports.
	Label() string

	// Interval returns the candle interval the strategy works on ("1h").
	Interval() string

	// Capabilities declares the strategy's input requirements.
	Capabilities() Capabilities

	// Analyze inspects the window and returns an order intent, or nil when
	// there is no entry signal. The returned order has Status Created; the
	// caller opens it.
	Analyze(ctx context.Context, input *Input) (*domain.PositionOrder, error)
}

// CandlePreparer is implemented by strategies that precompute indicators
// over the full candle series before a replay starts.
type CandlePreparer interface {
	PrepareCandles(ctx context.Context, candles []*domain.Candle) error
}
