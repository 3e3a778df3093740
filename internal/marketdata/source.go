// Package marketdata provides candle and mark-price access for the backtest
// driver and the live simulation: a REST candle source, a websocket
// mark-price stream and series lookup helpers.
package marketdata

import (
	"context"
	"errors"
	"fmt"

	"futures-backtest-lab/internal/domain"
)

// ErrNoQuote is returned when a quoter has no price for an instrument yet.
var ErrNoQuote = errors.New("no quote available")

// FetchError wraps a transport failure while fetching market data for one
// instrument. The backtest driver logs it and skips the instrument.
type FetchError struct {
	Ticker string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch market data for %s: %v", e.Ticker, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CandleSource fetches the full candle history of an instrument from a
// start time up to the present.
type CandleSource interface {
	// Candles returns candles ordered by open time ASC. Errors are
	// *FetchError values wrapping the transport failure.
	Candles(ctx context.Context, ticker, interval string, startTimeMs int64) ([]*domain.Candle, error)
}

// PriceQuoter returns the current mark price of an instrument.
type PriceQuoter interface {
	// MarkPrice returns the latest mark price and its timestamp (ms).
	MarkPrice(ctx context.Context, ticker string) (float64, int64, error)
}
