package strategy

import (
	"context"
	"fmt"

	"futures-backtest-lab/internal/domain"
)

// ShadowReversalStrategy enters against an exhausted move: a hammer candle
// whose wick dominates the range suggests the move that produced the wick
// ran out of sellers (or buyers). A low hammer opens a Long, a high hammer
// opens a Short. Exits are delegated entirely to the trailing stop.
type ShadowReversalStrategy struct {
	interval         string
	minShadowPercent float64 // dominant wick share of the range (0-100)
	quantity         float64
	leverage         int
	stopLossPct      float64
	trailingStopPct  float64
	activationPct    *float64
}

// NewShadowReversalStrategy creates a shadow reversal strategy.
func NewShadowReversalStrategy(interval string, minShadowPercent, quantity float64, leverage int, stopLossPct, trailingStopPct float64, activationPct *float64) *ShadowReversalStrategy {
	return &ShadowReversalStrategy{
		interval:         interval,
		minShadowPercent: minShadowPercent,
		quantity:         quantity,
		leverage:         leverage,
		stopLossPct:      stopLossPct,
		trailingStopPct:  trailingStopPct,
		activationPct:    activationPct,
	}
}

// Label returns the strategy identifier including its parameters.
func (s *ShadowReversalStrategy) Label() string {
	return fmt.Sprintf("SHADOW_REVERSAL_%s_shadow%.0f_sl%.1f_ts%.1f", s.interval, s.minShadowPercent, s.stopLossPct, s.trailingStopPct)
}

// Interval returns the candle interval the strategy works on.
func (s *ShadowReversalStrategy) Interval() string {
	return s.interval
}

// Capabilities declares the input requirements.
func (s *ShadowReversalStrategy) Capabilities() Capabilities {
	return Capabilities{
		WarmupCandles: 3,
		WindowSize:    3,
	}
}

// Analyze returns a Long intent on a low hammer and a Short intent on a
// high hammer, when the dominant wick is large enough.
func (s *ShadowReversalStrategy) Analyze(_ context.Context, input *Input) (*domain.PositionOrder, error) {
	last := input.Candles[len(input.Candles)-1]

	var direction domain.Direction
	switch {
	case last.IsLowHammer && last.LowerShadowPercent >= s.minShadowPercent:
		direction = domain.DirectionLong
	case last.IsHighHammer && last.UpperShadowPercent >= s.minShadowPercent:
		direction = domain.DirectionShort
	default:
		return nil, nil
	}

	entry := last.Close
	var stopLoss float64
	if direction == domain.DirectionLong {
		stopLoss = entry * (1 - s.stopLossPct/100)
	} else {
		stopLoss = entry * (1 + s.stopLossPct/100)
	}
	trailPct := s.trailingStopPct

	return &domain.PositionOrder{
		Ticker:                last.Ticker,
		Label:                 s.Label(),
		Description:           fmt.Sprintf("hammer wick %.1f%% of range", maxShadowPercent(last)),
		Direction:             direction,
		Status:                domain.StatusCreated,
		Leverage:              s.leverage,
		Quantity:              s.quantity,
		OrderPrice:            entry,
		StopLoss:              &stopLoss,
		TrailingStopPercent:   &trailPct,
		TrailingActivationPct: s.activationPct,
		CreationTimeMs:        last.CloseTimeMs,
	}, nil
}

func maxShadowPercent(c *domain.Candle) float64 {
	if c.LowerShadowPercent > c.UpperShadowPercent {
		return c.LowerShadowPercent
	}
	return c.UpperShadowPercent
}
