package domain

// Direction of a position.
type Direction string

const (
	DirectionLong  Direction = "Long"
	DirectionShort Direction = "Short"
)

// OrderStatus tracks the position lifecycle.
type OrderStatus string

const (
	StatusCreated OrderStatus = "Created" // intent produced, not yet opened
	StatusOpen    OrderStatus = "Open"    // position active
	StatusClosed  OrderStatus = "Closed"  // position closed, record immutable
)

// OrderMode distinguishes how an order was produced.
type OrderMode string

const (
	ModeBacktest  OrderMode = "Backtest"
	ModeSimulated OrderMode = "Simulated"
	ModeReal      OrderMode = "Real"
)

// CloseReason identifies which protective level closed a position.
type CloseReason string

const (
	CloseReasonStoploss     CloseReason = "Stoploss"
	CloseReasonTrailingStop CloseReason = "TrailingStop"
	CloseReasonTakeProfit   CloseReason = "TakeProfit"
)

// PositionOrder represents one position from intent through close.
// Optional intent parameters are pointers; the lifecycle engine normalizes
// them when the position opens. Once Status is Closed the record is
// append-only and must not be mutated.
type PositionOrder struct {
	ID          string // uuid for live orders, deterministic hash for backtests
	Ticker      string // instrument symbol
	Label       string // strategy label that produced the intent
	Description string // free-form strategy annotation

	Direction Direction
	Mode      OrderMode
	Status    OrderStatus

	Leverage   int     // >= 1
	Quantity   float64 // position size in quote units
	OrderPrice float64 // intended entry price

	StopLoss                *float64 // protective stop level
	TakeProfitPrice         *float64 // profit target level
	TrailingStopPercent     *float64 // trailing distance as percent of entry
	TrailingActivationPct   *float64 // trailing arms once price moves this percent
	TrailingActivationPrice *float64 // alternative to the percent form
	CreationTimeMs          int64    // intent creation (ms, UTC)

	// Open position info, set by the lifecycle engine.
	OpenTimeMs int64
	OpenPrice  float64

	// Closed position info, set by the lifecycle engine.
	CloseTimeMs int64
	ClosePrice  float64
	CloseReason CloseReason

	// Derived metrics, valid once closed.
	ProfitAmount  float64 // close-open price move in position direction
	ProfitPercent float64 // ProfitAmount / OpenPrice (fraction, not percent)
	ProfitInQuote float64 // Quantity * ProfitPercent * Leverage
	PositiveOrder bool
}

// UpdateMetrics recomputes the derived profit fields from the open and close
// prices. Safe to call repeatedly; it only reads prices and position info.
func (o *PositionOrder) UpdateMetrics() {
	if o.OpenPrice == 0 || o.ClosePrice == 0 {
		return
	}

	if o.Direction == DirectionLong {
		o.ProfitAmount = o.ClosePrice - o.OpenPrice
	} else {
		o.ProfitAmount = o.OpenPrice - o.ClosePrice
	}

	o.ProfitPercent = o.ProfitAmount / o.OpenPrice
	o.PositiveOrder = o.ProfitAmount > 0
	o.ProfitInQuote = o.Quantity * o.ProfitPercent * float64(o.Leverage)
}

// PotentialROE projects the leveraged return if the take-profit level is hit.
// Returns false when no take-profit is set.
func (o *PositionOrder) PotentialROE() (float64, bool) {
	if o.TakeProfitPrice == nil {
		return 0, false
	}
	roe := (*o.TakeProfitPrice - o.OrderPrice) / o.OrderPrice * 100 * float64(o.Leverage)
	if o.Direction == DirectionShort {
		roe = -roe
	}
	return roe, true
}

// PotentialLoss projects the leveraged loss if the stop-loss level is hit.
// Returns false when no stop-loss is set.
func (o *PositionOrder) PotentialLoss() (float64, bool) {
	if o.StopLoss == nil {
		return 0, false
	}
	loss := (*o.StopLoss - o.OrderPrice) / o.OrderPrice * 100 * float64(o.Leverage)
	if o.Direction == DirectionLong {
		loss = -loss
	}
	return loss, true
}

// Clone returns a deep copy of the order.
func (o *PositionOrder) Clone() *PositionOrder {
	clone := *o
	clone.StopLoss = clonePtr(o.StopLoss)
	clone.TakeProfitPrice = clonePtr(o.TakeProfitPrice)
	clone.TrailingStopPercent = clonePtr(o.TrailingStopPercent)
	clone.TrailingActivationPct = clonePtr(o.TrailingActivationPct)
	clone.TrailingActivationPrice = clonePtr(o.TrailingActivationPrice)
	return &clone
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
