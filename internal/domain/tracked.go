package domain

// TrackedPosition is the persisted guard record for one live simulated
// position. At most one row may exist per (Ticker, Label); the payload is
// the serialized refresh task so tracking survives process restarts.
type TrackedPosition struct {
	Ticker      string // instrument symbol
	Label       string // strategy label
	OrderID     string // order being tracked
	Payload     []byte // serialized refresh task (JSON)
	UpdatedAtMs int64  // last refresh time (ms, UTC)
}
