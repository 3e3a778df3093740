package strategy

import (
	"context"
	"fmt"

	"futures-backtest-lab/internal/domain"
)

// IndexDivergenceStrategy trades relative strength against the market
// index: when the instrument rallies over the window while the index falls
// (or the reverse), the divergence tends to revert. It sits out one signal
// after a losing order on the same instrument.
type IndexDivergenceStrategy struct {
	interval        string
	divergencePct   float64 // minimum gap between instrument and index move
	quantity        float64
	leverage        int
	stopLossPct     float64
	takeProfitPct   float64
	trailingStopPct *float64
	windowSize      int
}

// NewIndexDivergenceStrategy creates an index divergence strategy.
func NewIndexDivergenceStrategy(interval string, divergencePct, quantity float64, leverage int, stopLossPct, takeProfitPct float64, trailingStopPct *float64, windowSize int) *IndexDivergenceStrategy {
	return &IndexDivergenceStrategy{
		interval:        interval,
		divergencePct:   divergencePct,
		quantity:        quantity,
		leverage:        leverage,
		stopLossPct:     stopLossPct,
		takeProfitPct:   takeProfitPct,
		trailingStopPct: trailingStopPct,
		windowSize:      windowSize,
	}
}

// Label returns the strategy identifier including its parameters.
func (s *IndexDivergenceStrategy) Label() string {
	return fmt.Sprintf("INDEX_DIVERGENCE_%s_div%.1f_sl%.1f_tp%.1f", s.interval, s.divergencePct, s.stopLossPct, s.takeProfitPct)
}

// Interval returns the candle interval the strategy works on.
func (s *IndexDivergenceStrategy) Interval() string {
	return s.interval
}

// Capabilities declares the input requirements: this strategy needs the
// index series and its own previous order.
func (s *IndexDivergenceStrategy) Capabilities() Capabilities {
	return Capabilities{
		WarmupCandles:      s.windowSize,
		WindowSize:         s.windowSize,
		NeedsIndexCandles:  true,
		NeedsPreviousOrder: true,
	}
}

// Analyze compares the window move of the instrument against the index and
// fades the divergence when it exceeds the configured threshold.
func (s *IndexDivergenceStrategy) Analyze(_ context.Context, input *Input) (*domain.PositionOrder, error) {
	if len(input.Candles) < 2 || len(input.IndexCandles) < 2 {
		return nil, nil
	}

	// Cool-down: skip the signal right after a losing order.
	if input.PreviousOrder != nil && !input.PreviousOrder.PositiveOrder {
		last := input.Candles[len(input.Candles)-1]
		if last.OpenTimeMs-input.PreviousOrder.CloseTimeMs < windowSpanMs(input.Candles) {
			return nil, nil
		}
	}

	instrMove := windowMovePercent(input.Candles)
	indexMove := windowMovePercent(input.IndexCandles)
	divergence := instrMove - indexMove

	var direction domain.Direction
	switch {
	case divergence >= s.divergencePct:
		direction = domain.DirectionShort // instrument overextended vs index
	case divergence <= -s.divergencePct:
		direction = domain.DirectionLong // instrument lagging the index
	default:
		return nil, nil
	}

	last := input.Candles[len(input.Candles)-1]
	entry := last.Close

	var stopLoss, takeProfit float64
	if direction == domain.DirectionLong {
		stopLoss = entry * (1 - s.stopLossPct/100)
		takeProfit = entry * (1 + s.takeProfitPct/100)
	} else {
		stopLoss = entry * (1 + s.stopLossPct/100)
		takeProfit = entry * (1 - s.takeProfitPct/100)
	}

	return &domain.PositionOrder{
		Ticker:              last.Ticker,
		Label:               s.Label(),
		Description:         fmt.Sprintf("divergence %.2f%% vs index", divergence),
		Direction:           direction,
		Status:              domain.StatusCreated,
		Leverage:            s.leverage,
		Quantity:            s.quantity,
		OrderPrice:          entry,
		StopLoss:            &stopLoss,
		TakeProfitPrice:     &takeProfit,
		TrailingStopPercent: s.trailingStopPct,
		CreationTimeMs:      last.CloseTimeMs,
	}, nil
}

// windowMovePercent is the close-to-close move over the window, in percent.
func windowMovePercent(candles []*domain.Candle) float64 {
	first := candles[0]
	last := candles[len(candles)-1]
	return (last.Close - first.Close) / first.Close * 100
}

// windowSpanMs is the time covered by the window, used as the cool-down.
func windowSpanMs(candles []*domain.Candle) int64 {
	return candles[len(candles)-1].CloseTimeMs - candles[0].OpenTimeMs
}
