package simulation

import (
	"encoding/json"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/lifecycle"
)

// TaskPayload is the serialized state of one tracked position. It carries
// everything a refresh needs, so any worker can pick the task up and the
// simulation survives process restarts. Stored as the tracked-position
// payload and re-enqueued with every refresh.
type TaskPayload struct {
	OrderID    string           `json:"order_id"`
	Ticker     string           `json:"ticker"`
	Label      string           `json:"label"`
	Direction  domain.Direction `json:"direction"`
	Leverage   int              `json:"leverage"`
	Quantity   float64          `json:"quantity"`
	OrderPrice float64          `json:"order_price"`
	OpenTimeMs int64            `json:"open_time_ms"`
	OpenPrice  float64          `json:"open_price"`

	State lifecycle.TrailingState `json:"state"`

	// Last observed mark price, the prior tick of the next advance.
	LastPrice   float64 `json:"last_price"`
	LastPriceMs int64   `json:"last_price_ms"`

	// Failures counts consecutive quote failures.
	Failures int `json:"failures"`
}

// Marshal serializes the payload.
func (p *TaskPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPayload deserializes a payload.
func UnmarshalPayload(data []byte) (*TaskPayload, error) {
	var p TaskPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Order rebuilds the open order the payload tracks.
func (p *TaskPayload) Order() *domain.PositionOrder {
	return &domain.PositionOrder{
		ID:         p.OrderID,
		Ticker:     p.Ticker,
		Label:      p.Label,
		Direction:  p.Direction,
		Mode:       domain.ModeSimulated,
		Status:     domain.StatusOpen,
		Leverage:   p.Leverage,
		Quantity:   p.Quantity,
		OrderPrice: p.OrderPrice,
		OpenTimeMs: p.OpenTimeMs,
		OpenPrice:  p.OpenPrice,
	}
}
