package marketdata

import (
	"errors"
	"sort"

	"futures-backtest-lab/internal/domain"
)

// ErrNoCandleData is returned by series lookups over an empty series.
var ErrNoCandleData = errors.New("no candle data available")

// CandleSeries wraps a time-ordered candle slice with lookup helpers.
// The replay verifier uses it to cut the exact candle range an order lived
// through out of a stored history.
type CandleSeries struct {
	candles []*domain.Candle // ordered by close time ASC
}

// NewCandleSeries builds a series, sorting the candles by close time ASC.
func NewCandleSeries(candles []*domain.Candle) *CandleSeries {
	sorted := make([]*domain.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CloseTimeMs < sorted[j].CloseTimeMs
	})
	return &CandleSeries{candles: sorted}
}

// Candles returns the underlying ordered slice.
func (s *CandleSeries) Candles() []*domain.Candle {
	return s.candles
}

// Len returns the number of candles in the series.
func (s *CandleSeries) Len() int {
	return len(s.candles)
}

// At returns the candle at index i.
func (s *CandleSeries) At(i int) *domain.Candle {
	return s.candles[i]
}

// IndexAtOrAfter returns the index of the first candle whose close time is
// at or after target. Returns ErrNoCandleData on an empty series and the
// series length when every candle closes before target.
func (s *CandleSeries) IndexAtOrAfter(target int64) (int, error) {
	if len(s.candles) == 0 {
		return 0, ErrNoCandleData
	}
	idx := sort.Search(len(s.candles), func(i int) bool {
		return s.candles[i].CloseTimeMs >= target
	})
	return idx, nil
}

// Between returns the candles whose close times fall in [startMs, endMs].
func (s *CandleSeries) Between(startMs, endMs int64) ([]*domain.Candle, error) {
	from, err := s.IndexAtOrAfter(startMs)
	if err != nil {
		return nil, err
	}
	to := sort.Search(len(s.candles), func(i int) bool {
		return s.candles[i].CloseTimeMs > endMs
	})
	if from >= to {
		return nil, nil
	}
	return s.candles[from:to], nil
}
