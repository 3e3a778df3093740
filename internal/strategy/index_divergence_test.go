package strategy

import (
	"context"
	"testing"

	"futures-backtest-lab/internal/domain"
)

// trendWindow builds n candles walking the close linearly from first to last.
func trendWindow(ticker string, n int, first, last float64) []*domain.Candle {
	candles := make([]*domain.Candle, n)
	step := (last - first) / float64(n-1)
	for i := 0; i < n; i++ {
		c := first + float64(i)*step
		openMs := int64(i) * 60000
		candles[i] = domain.NewCandle(ticker, openMs, openMs+60000, c, c, c, c, 0, 0, 0)
	}
	return candles
}

func TestIndexDivergence_ShortOnOverextension(t *testing.T) {
	strat := NewIndexDivergenceStrategy("1h", 2, 100, 2, 1.5, 3, nil, 10)

	// Instrument +5% while the index is flat: fade it Short.
	input := &Input{
		Candles:      trendWindow("ETHUSDT", 10, 100, 105),
		IndexCandles: trendWindow("BTCUSDT", 10, 50000, 50000),
	}
	intent, err := strat.Analyze(context.Background(), input)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if intent == nil {
		t.Fatal("expected a Short intent")
	}
	if intent.Direction != domain.DirectionShort {
		t.Errorf("expected Short, got %s", intent.Direction)
	}
	if intent.OrderPrice != 105 {
		t.Errorf("expected entry 105, got %g", intent.OrderPrice)
	}
	// Short: stop above, target below.
	if *intent.StopLoss <= 105 || *intent.TakeProfitPrice >= 105 {
		t.Errorf("short levels inverted: stop %g target %g", *intent.StopLoss, *intent.TakeProfitPrice)
	}
}

func TestIndexDivergence_LongOnLag(t *testing.T) {
	strat := NewIndexDivergenceStrategy("1h", 2, 100, 2, 1.5, 3, nil, 10)

	// Instrument flat while the index rallies: catch up Long.
	input := &Input{
		Candles:      trendWindow("ETHUSDT", 10, 100, 100),
		IndexCandles: trendWindow("BTCUSDT", 10, 50000, 52500),
	}
	intent, err := strat.Analyze(context.Background(), input)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if intent == nil {
		t.Fatal("expected a Long intent")
	}
	if intent.Direction != domain.DirectionLong {
		t.Errorf("expected Long, got %s", intent.Direction)
	}
}

func TestIndexDivergence_BelowThreshold(t *testing.T) {
	strat := NewIndexDivergenceStrategy("1h", 2, 100, 2, 1.5, 3, nil, 10)

	// Both up about the same: no edge.
	input := &Input{
		Candles:      trendWindow("ETHUSDT", 10, 100, 101),
		IndexCandles: trendWindow("BTCUSDT", 10, 50000, 50400),
	}
	intent, err := strat.Analyze(context.Background(), input)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if intent != nil {
		t.Errorf("expected no intent, got %+v", intent)
	}
}

func TestIndexDivergence_CoolDownAfterLoss(t *testing.T) {
	strat := NewIndexDivergenceStrategy("1h", 2, 100, 2, 1.5, 3, nil, 10)

	candles := trendWindow("ETHUSDT", 10, 100, 105)
	input := &Input{
		Candles:      candles,
		IndexCandles: trendWindow("BTCUSDT", 10, 50000, 50000),
		// A losing order that closed inside the window span blocks the
		// signal.
		PreviousOrder: &domain.PositionOrder{
			PositiveOrder: false,
			CloseTimeMs:   candles[len(candles)-1].OpenTimeMs,
		},
	}
	intent, err := strat.Analyze(context.Background(), input)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if intent != nil {
		t.Error("expected the cool-down to suppress the signal")
	}

	// A winning previous order does not block.
	input.PreviousOrder = &domain.PositionOrder{PositiveOrder: true, CloseTimeMs: input.PreviousOrder.CloseTimeMs}
	intent, err = strat.Analyze(context.Background(), input)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if intent == nil {
		t.Error("winning previous order should not suppress the signal")
	}

	// An old losing order is past the cool-down.
	input.PreviousOrder = &domain.PositionOrder{PositiveOrder: false, CloseTimeMs: -windowSpanMs(candles) * 2}
	intent, err = strat.Analyze(context.Background(), input)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if intent == nil {
		t.Error("stale losing order should not suppress the signal")
	}
}
