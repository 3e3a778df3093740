package lifecycle

import "errors"

// Validation errors returned by Open. Both mean the protective level sits on
// the wrong side of the entry price and would trigger on the first candle.
var (
	ErrInvalidStopLoss   = errors.New("stop-loss price is on the wrong side of the entry price")
	ErrInvalidTakeProfit = errors.New("take-profit price is on the wrong side of the entry price")
)
