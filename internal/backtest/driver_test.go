package backtest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/marketdata"
	"futures-backtest-lab/internal/strategy"
)

// stubSource serves pre-built candle series and counts fetches per ticker.
type stubSource struct {
	mu      sync.Mutex
	series  map[string][]*domain.Candle
	fetches map[string]int
	fail    map[string]error
}

func newStubSource() *stubSource {
	return &stubSource{
		series:  make(map[string][]*domain.Candle),
		fetches: make(map[string]int),
		fail:    make(map[string]error),
	}
}

func (s *stubSource) Candles(_ context.Context, ticker, _ string, _ int64) ([]*domain.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches[ticker]++
	if err, ok := s.fail[ticker]; ok {
		return nil, &marketdata.FetchError{Ticker: ticker, Err: err}
	}
	return s.series[ticker], nil
}

var _ marketdata.CandleSource = (*stubSource)(nil)

// flatSeries builds n candles at a constant price, one minute apart.
func flatSeries(ticker string, n int, price float64) []*domain.Candle {
	candles := make([]*domain.Candle, n)
	for i := 0; i < n; i++ {
		openMs := int64(i) * 60000
		candles[i] = domain.NewCandle(ticker, openMs, openMs+60000, price, price, price, price, 1, 1, 1)
	}
	return candles
}

func ptr(v float64) *float64 {
	return &v
}

func closeTimeAt(i int) int64 {
	return int64(i)*60000 + 60000
}

func TestRun_OpensAndClosesOnePosition(t *testing.T) {
	// 20 flat candles at 100, except a dip to 94 at index 12. The intent
	// opens at index 9 with stop 95: the dip closes it.
	source := newStubSource()
	candles := flatSeries("ETHUSDT", 20, 100)
	candles[12] = domain.NewCandle("ETHUSDT", 12*60000, 13*60000, 100, 100, 94, 95, 1, 1, 1)
	source.series["ETHUSDT"] = candles

	strat := NewStubStrategy("STUB", "1m", strategy.Capabilities{WindowSize: 5})
	strat.QueueIntent(closeTimeAt(9), &domain.PositionOrder{
		Ticker:     "ETHUSDT",
		Label:      "STUB",
		Direction:  domain.DirectionLong,
		Leverage:   1,
		Quantity:   10,
		OrderPrice: 100,
		StopLoss:   ptr(95.0),
	})

	driver := NewDriver(Options{Source: source, Workers: 1})
	summary, err := driver.Run(context.Background(), strat, []string{"ETHUSDT"}, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result := summary.PerInstrument["ETHUSDT"]
	if result == nil {
		t.Fatal("no result for ETHUSDT")
	}
	if len(result.Orders) != 1 {
		t.Fatalf("expected 1 closed order, got %d", len(result.Orders))
	}

	order := result.Orders[0]
	if order.Status != domain.StatusClosed {
		t.Errorf("expected Closed, got %s", order.Status)
	}
	// The intent fills on the last candle of its window.
	if order.OpenTimeMs != closeTimeAt(9) {
		t.Errorf("expected open time %d, got %d", closeTimeAt(9), order.OpenTimeMs)
	}
	if order.CloseReason != domain.CloseReasonStoploss {
		t.Errorf("expected Stoploss, got %s", order.CloseReason)
	}
	if order.ClosePrice != 95 {
		t.Errorf("expected close at 95, got %g", order.ClosePrice)
	}
	// The dip candle becomes the replay's current candle one cursor step
	// after its index.
	if order.CloseTimeMs != closeTimeAt(12) {
		t.Errorf("expected close time %d, got %d", closeTimeAt(12), order.CloseTimeMs)
	}
	if order.Mode != domain.ModeBacktest {
		t.Errorf("expected Backtest mode, got %s", order.Mode)
	}
	if order.ID == "" {
		t.Error("order has no deterministic ID")
	}
	if summary.Combined == nil || len(summary.Combined.Orders) != 1 {
		t.Error("combined result missing the order")
	}
}

func TestRun_WindowsSlideOverHistory(t *testing.T) {
	source := newStubSource()
	source.series["ETHUSDT"] = flatSeries("ETHUSDT", 10, 100)

	strat := NewStubStrategy("STUB", "1m", strategy.Capabilities{WindowSize: 4})
	driver := NewDriver(Options{Source: source, Workers: 1})

	if _, err := driver.Run(context.Background(), strat, []string{"ETHUSDT"}, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	windows := strat.Windows()
	// Cursor runs from index 4 (the window size) to 9: six windows.
	if len(windows) != 6 {
		t.Fatalf("expected 6 windows, got %d", len(windows))
	}
	for i, window := range windows {
		if len(window) != 4 {
			t.Errorf("window %d has %d candles", i, len(window))
		}
	}
	// First window covers candles 0..3.
	if windows[0][0].OpenTimeMs != 0 || windows[0][3].CloseTimeMs != closeTimeAt(3) {
		t.Errorf("first window misaligned: %d..%d", windows[0][0].OpenTimeMs, windows[0][3].CloseTimeMs)
	}
}

func TestRun_OpenAtEndIsDiscarded(t *testing.T) {
	source := newStubSource()
	source.series["ETHUSDT"] = flatSeries("ETHUSDT", 12, 100)

	strat := NewStubStrategy("STUB", "1m", strategy.Capabilities{WindowSize: 3})
	// Stop far below the flat price: the position never closes.
	strat.QueueIntent(closeTimeAt(5), &domain.PositionOrder{
		Ticker:     "ETHUSDT",
		Label:      "STUB",
		Direction:  domain.DirectionLong,
		Leverage:   1,
		Quantity:   10,
		OrderPrice: 100,
		StopLoss:   ptr(50.0),
	})

	driver := NewDriver(Options{Source: source, Workers: 1})
	summary, err := driver.Run(context.Background(), strat, []string{"ETHUSDT"}, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(summary.PerInstrument["ETHUSDT"].Orders) != 0 {
		t.Error("open position at history end should not count")
	}
}

func TestRun_SkipsFailedInstruments(t *testing.T) {
	source := newStubSource()
	source.series["ETHUSDT"] = flatSeries("ETHUSDT", 10, 100)
	source.fail["SOLUSDT"] = errors.New("boom")

	strat := NewStubStrategy("STUB", "1m", strategy.Capabilities{WindowSize: 3})
	driver := NewDriver(Options{Source: source, Workers: 2})

	summary, err := driver.Run(context.Background(), strat, []string{"ETHUSDT", "SOLUSDT"}, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, ok := summary.PerInstrument["ETHUSDT"]; !ok {
		t.Error("healthy instrument missing from results")
	}
	if _, ok := summary.Skipped["SOLUSDT"]; !ok {
		t.Error("failed instrument not recorded as skipped")
	}
	var fetchErr *marketdata.FetchError
	if !errors.As(summary.Skipped["SOLUSDT"], &fetchErr) {
		t.Errorf("expected a FetchError, got %v", summary.Skipped["SOLUSDT"])
	}
}

func TestRunComparative_Validations(t *testing.T) {
	driver := NewDriver(Options{Source: newStubSource()})
	ctx := context.Background()

	if _, err := driver.RunComparative(ctx, nil, []string{"ETHUSDT"}, 0); !errors.Is(err, ErrNoStrategies) {
		t.Errorf("expected ErrNoStrategies, got %v", err)
	}

	a := NewStubStrategy("SAME", "1m", strategy.Capabilities{WindowSize: 3})
	b := NewStubStrategy("SAME", "1m", strategy.Capabilities{WindowSize: 3})
	if _, err := driver.RunComparative(ctx, []strategy.Strategy{a, b}, []string{"ETHUSDT"}, 0); !errors.Is(err, ErrDuplicateLabel) {
		t.Errorf("expected ErrDuplicateLabel, got %v", err)
	}

	c := NewStubStrategy("C", "1m", strategy.Capabilities{WindowSize: 3})
	d := NewStubStrategy("D", "1h", strategy.Capabilities{WindowSize: 3})
	if _, err := driver.RunComparative(ctx, []strategy.Strategy{c, d}, []string{"ETHUSDT"}, 0); !errors.Is(err, ErrIntervalMismatch) {
		t.Errorf("expected ErrIntervalMismatch, got %v", err)
	}
}

func TestRunComparative_SharesCandleFetches(t *testing.T) {
	source := newStubSource()
	source.series["ETHUSDT"] = flatSeries("ETHUSDT", 10, 100)

	a := NewStubStrategy("A", "1m", strategy.Capabilities{WindowSize: 3})
	b := NewStubStrategy("B", "1m", strategy.Capabilities{WindowSize: 3})

	driver := NewDriver(Options{Source: source, Workers: 1})
	summaries, err := driver.RunComparative(context.Background(), []strategy.Strategy{a, b}, []string{"ETHUSDT"}, 0)
	if err != nil {
		t.Fatalf("RunComparative failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	// The second strategy replays the cached series.
	if source.fetches["ETHUSDT"] != 1 {
		t.Errorf("expected 1 fetch, got %d", source.fetches["ETHUSDT"])
	}
}

func TestRun_IndexCandlesCutToWindow(t *testing.T) {
	source := newStubSource()
	source.series["ETHUSDT"] = flatSeries("ETHUSDT", 10, 100)
	source.series[DefaultIndexTicker] = flatSeries(DefaultIndexTicker, 10, 50000)

	strat := NewStubStrategy("STUB", "1m", strategy.Capabilities{WindowSize: 3, NeedsIndexCandles: true})
	driver := NewDriver(Options{Source: source, Workers: 1})

	if _, err := driver.Run(context.Background(), strat, []string{"ETHUSDT"}, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if source.fetches[DefaultIndexTicker] != 1 {
		t.Errorf("expected 1 index fetch, got %d", source.fetches[DefaultIndexTicker])
	}
}

func TestRun_IndexFetchFailureAborts(t *testing.T) {
	source := newStubSource()
	source.series["ETHUSDT"] = flatSeries("ETHUSDT", 10, 100)
	source.fail[DefaultIndexTicker] = errors.New("boom")

	strat := NewStubStrategy("STUB", "1m", strategy.Capabilities{WindowSize: 3, NeedsIndexCandles: true})
	driver := NewDriver(Options{Source: source, Workers: 1})

	if _, err := driver.Run(context.Background(), strat, []string{"ETHUSDT"}, 0); err == nil {
		t.Fatal("expected an error when the index series cannot be fetched")
	}
}
