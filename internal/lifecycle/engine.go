// Package lifecycle implements the position state machine: opening an order
// intent against a candle and advancing the open position candle by candle
// until a protective level closes it.
//
// The same transition function drives both the synchronous backtest replay
// and the asynchronous live simulation; the live path feeds degenerate
// single-price candles (domain.TickCandle) and persists the TrailingState
// between polls instead of holding it in memory.
package lifecycle

import (
	"math"

	"futures-backtest-lab/internal/domain"
)

// Normalized level sentinels. Missing optional levels become prices no trade
// can reach, which keeps the close checks uniform and the state
// JSON-serializable.
const (
	neverBelow = 0.0
	neverAbove = math.MaxFloat64
)

// TrailingState carries the per-position state between Advance calls.
// All levels are normalized absolute prices; the zero value is not valid,
// states are produced by Open.
type TrailingState struct {
	Boundary          float64 `json:"boundary"`           // current trailing stop level
	StopLoss          float64 `json:"stop_loss"`          // normalized stop level
	TakeProfit        float64 `json:"take_profit"`        // normalized take-profit level
	TrailPercent      float64 `json:"trail_percent"`      // trailing distance, percent of entry; <= 0 disables trailing
	ActivationPercent float64 `json:"activation_percent"` // price move that arms the trailing stop, percent of entry
}

// Open validates an order intent against the candle it would fill on,
// normalizes the optional protective parameters and returns the seeded
// trailing state. The order is mutated: status becomes Open, open time and
// price are taken from the candle close.
//
// Normalization rules:
//  1. An activation price is translated to an activation percent relative
//     to the entry price.
//  2. A missing activation means the trailing stop is armed immediately and
//     the boundary is seeded one trailing distance away from the entry.
//  3. A missing trailing distance disables trailing entirely.
//  4. Missing stop-loss or take-profit levels become unreachable sentinels.
func Open(order *domain.PositionOrder, current *domain.Candle) (*TrailingState, error) {
	state := &TrailingState{}

	if order.TrailingActivationPct != nil {
		state.ActivationPercent = *order.TrailingActivationPct
	} else if order.TrailingActivationPrice != nil {
		state.ActivationPercent = 100 * math.Abs(order.OrderPrice-*order.TrailingActivationPrice) / order.OrderPrice
	}

	if order.TrailingStopPercent != nil {
		state.TrailPercent = *order.TrailingStopPercent
	}
	trailInc := order.OrderPrice * state.TrailPercent / 100

	if order.Direction == domain.DirectionLong {
		state.Boundary = neverBelow
		if state.ActivationPercent == 0 && state.TrailPercent > 0 {
			state.Boundary = order.OrderPrice - trailInc
		}

		if order.StopLoss == nil {
			state.StopLoss = neverBelow
		} else if *order.StopLoss >= order.OrderPrice {
			return nil, ErrInvalidStopLoss
		} else {
			state.StopLoss = *order.StopLoss
		}

		if order.TakeProfitPrice == nil {
			state.TakeProfit = neverAbove
		} else if *order.TakeProfitPrice <= order.OrderPrice {
			return nil, ErrInvalidTakeProfit
		} else {
			state.TakeProfit = *order.TakeProfitPrice
		}
	} else {
		state.Boundary = neverAbove
		if state.ActivationPercent == 0 && state.TrailPercent > 0 {
			state.Boundary = order.OrderPrice + trailInc
		}

		if order.StopLoss == nil {
			state.StopLoss = neverAbove
		} else if *order.StopLoss <= order.OrderPrice {
			return nil, ErrInvalidStopLoss
		} else {
			state.StopLoss = *order.StopLoss
		}

		if order.TakeProfitPrice == nil {
			state.TakeProfit = neverBelow
		} else if *order.TakeProfitPrice >= order.OrderPrice {
			return nil, ErrInvalidTakeProfit
		} else {
			state.TakeProfit = *order.TakeProfitPrice
		}
	}

	order.Status = domain.StatusOpen
	order.OpenTimeMs = current.CloseTimeMs
	order.OpenPrice = current.Close

	return state, nil
}

// Advance moves the position forward by one candle. The trailing boundary is
// recomputed from the PRIOR candle's extreme (the candle the market has
// fully confirmed); close conditions are evaluated against the CURRENT
// candle's extremes. The boundary only ever tightens: it never decreases for
// a Long nor increases for a Short.
//
// When several levels are breached inside the same candle the trailing stop
// wins over the stop-loss, which wins over the take-profit. On close the
// order's close price is the exact trigger level, the close time is the
// current candle's close time, status becomes Closed and the profit metrics
// are computed. Returns true when the order closed.
func Advance(order *domain.PositionOrder, state *TrailingState, prior, current *domain.Candle) bool {
	trailInc := order.OrderPrice * state.TrailPercent / 100
	activationInc := order.OrderPrice * state.ActivationPercent / 100

	var trailingHit, stopHit, takeProfitHit bool

	if order.Direction == domain.DirectionLong {
		if state.TrailPercent > 0 {
			activationPrice := order.OrderPrice + activationInc
			if prior.High >= activationPrice && prior.CloseTimeMs > order.OpenTimeMs {
				if candidate := prior.High - trailInc; candidate > state.Boundary {
					state.Boundary = candidate
				}
			}
		}

		trailingHit = current.Low <= state.Boundary
		stopHit = current.Low <= state.StopLoss
		takeProfitHit = current.High >= state.TakeProfit
	} else {
		if state.TrailPercent > 0 {
			activationPrice := order.OrderPrice - activationInc
			if prior.Low <= activationPrice && prior.CloseTimeMs > order.OpenTimeMs {
				if candidate := prior.Low + trailInc; candidate < state.Boundary {
					state.Boundary = candidate
				}
			}
		}

		trailingHit = current.High >= state.Boundary
		stopHit = current.High >= state.StopLoss
		takeProfitHit = current.Low <= state.TakeProfit
	}

	switch {
	case trailingHit:
		closeOrder(order, current, state.Boundary, domain.CloseReasonTrailingStop)
	case stopHit:
		closeOrder(order, current, state.StopLoss, domain.CloseReasonStoploss)
	case takeProfitHit:
		closeOrder(order, current, state.TakeProfit, domain.CloseReasonTakeProfit)
	default:
		return false
	}

	return true
}

func closeOrder(order *domain.PositionOrder, current *domain.Candle, level float64, reason domain.CloseReason) {
	order.ClosePrice = level
	order.CloseReason = reason
	order.CloseTimeMs = current.CloseTimeMs
	order.Status = domain.StatusClosed
	order.UpdateMetrics()
}
