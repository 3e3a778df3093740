// Package alerts delivers position notifications. Delivery is best-effort:
// callers log failures and carry on, a lost alert never blocks tracking.
package alerts

import (
	"context"

	"futures-backtest-lab/internal/domain"
)

// Notifier announces position lifecycle events.
type Notifier interface {
	// NotifyOpen announces a newly opened position.
	NotifyOpen(ctx context.Context, order *domain.PositionOrder) error

	// NotifyClose announces a closed position.
	NotifyClose(ctx context.Context, order *domain.PositionOrder) error

	// NotifyWarning announces an operational problem (tracking expired,
	// repeated quote failures).
	NotifyWarning(ctx context.Context, subject, detail string) error
}

// Nop is a Notifier that discards everything.
type Nop struct{}

func (Nop) NotifyOpen(context.Context, *domain.PositionOrder) error  { return nil }
func (Nop) NotifyClose(context.Context, *domain.PositionOrder) error { return nil }
func (Nop) NotifyWarning(context.Context, string, string) error      { return nil }

var _ Notifier = Nop{}
