package backtest

import (
	"context"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/strategy"
)

// StubStrategy is a scripted strategy for testing. It returns the queued
// intents in order, one per Analyze call that matches the trigger time, and
// records every window it saw.
type StubStrategy struct {
	label    string
	interval string
	caps     strategy.Capabilities

	// intents are handed out when the window's last candle close time
	// matches the key.
	intents map[int64]*domain.PositionOrder

	windows [][]*domain.Candle
}

// NewStubStrategy creates a stub with the given capabilities.
func NewStubStrategy(label, interval string, caps strategy.Capabilities) *StubStrategy {
	return &StubStrategy{
		label:    label,
		interval: interval,
		caps:     caps,
		intents:  make(map[int64]*domain.PositionOrder),
	}
}

// QueueIntent schedules an intent to be returned when the window ends at
// closeTimeMs.
func (s *StubStrategy) QueueIntent(closeTimeMs int64, order *domain.PositionOrder) {
	s.intents[closeTimeMs] = order
}

// Label returns the stub's label.
func (s *StubStrategy) Label() string {
	return s.label
}

// Interval returns the stub's candle interval.
func (s *StubStrategy) Interval() string {
	return s.interval
}

// Capabilities returns the configured capabilities.
func (s *StubStrategy) Capabilities() strategy.Capabilities {
	return s.caps
}

// Analyze records the window and returns the queued intent for it, if any.
func (s *StubStrategy) Analyze(_ context.Context, input *strategy.Input) (*domain.PositionOrder, error) {
	s.windows = append(s.windows, input.Candles)

	last := input.Candles[len(input.Candles)-1]
	if intent, ok := s.intents[last.CloseTimeMs]; ok {
		delete(s.intents, last.CloseTimeMs)
		return intent, nil
	}
	return nil, nil
}

// Windows returns the analyzed windows for test verification.
func (s *StubStrategy) Windows() [][]*domain.Candle {
	return s.windows
}

// Ensure StubStrategy implements Strategy
var _ strategy.Strategy = (*StubStrategy)(nil)
