package verification

import (
	"context"
	"fmt"

	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/lifecycle"
	"futures-backtest-lab/internal/marketdata"
	"futures-backtest-lab/internal/storage"
)

// replayLookbackMs pads the candle fetch so the entry candle is always in
// range even when the source aligns the start time to interval boundaries.
const replayLookbackMs int64 = 24 * 60 * 60 * 1000

// ReplayVerifier verifies stored orders by replaying them through the
// lifecycle engine over candles fetched fresh from the source.
type ReplayVerifier struct {
	orders   storage.OrderStore
	source   marketdata.CandleSource
	interval string
}

// NewReplayVerifier creates a replay verifier for orders produced on the
// given candle interval.
func NewReplayVerifier(orders storage.OrderStore, source marketdata.CandleSource, interval string) *ReplayVerifier {
	return &ReplayVerifier{orders: orders, source: source, interval: interval}
}

// VerifyOrder replays a single stored order and compares every field.
func (v *ReplayVerifier) VerifyOrder(ctx context.Context, orderID string) (*VerificationResult, error) {
	stored, err := v.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return v.verify(ctx, stored)
}

// VerifyLabel replays every stored order of a strategy label.
func (v *ReplayVerifier) VerifyLabel(ctx context.Context, label string) (*VerificationReport, error) {
	orders, err := v.orders.GetByLabel(ctx, label)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{TotalOrders: len(orders)}
	for _, stored := range orders {
		result, err := v.verify(ctx, stored)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", stored.ID, err)
		}
		if result.Match {
			report.MatchedOrders++
		} else {
			report.DivergentOrders++
		}
		report.Results = append(report.Results, *result)
	}
	return report, nil
}

func (v *ReplayVerifier) verify(ctx context.Context, stored *domain.PositionOrder) (*VerificationResult, error) {
	candles, err := v.source.Candles(ctx, stored.Ticker, v.interval, stored.OpenTimeMs-replayLookbackMs)
	if err != nil {
		return nil, err
	}

	replayed, err := v.replay(stored, marketdata.NewCandleSeries(candles))
	if err != nil {
		return nil, err
	}

	divergences := CompareOrders(stored, replayed)
	return &VerificationResult{
		OrderID:     stored.ID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// replay re-opens the stored order's intent on its entry candle and walks
// the engine forward until it closes.
func (v *ReplayVerifier) replay(stored *domain.PositionOrder, series *marketdata.CandleSeries) (*domain.PositionOrder, error) {
	entryIdx, err := series.IndexAtOrAfter(stored.OpenTimeMs)
	if err != nil {
		return nil, err
	}
	if entryIdx >= series.Len() || series.At(entryIdx).CloseTimeMs != stored.OpenTimeMs {
		return nil, fmt.Errorf("%w: no candle closes at the stored open time %d", ErrIntegrity, stored.OpenTimeMs)
	}

	order := stored.Clone()
	order.Status = domain.StatusCreated
	order.OpenTimeMs = 0
	order.OpenPrice = 0
	order.CloseTimeMs = 0
	order.ClosePrice = 0
	order.CloseReason = ""
	order.ProfitAmount = 0
	order.ProfitPercent = 0
	order.ProfitInQuote = 0
	order.PositiveOrder = false

	state, err := lifecycle.Open(order, series.At(entryIdx))
	if err != nil {
		return nil, fmt.Errorf("%w: reopening order: %v", ErrIntegrity, err)
	}

	for j := entryIdx + 1; j < series.Len(); j++ {
		if lifecycle.Advance(order, state, series.At(j-1), series.At(j)) {
			return order, nil
		}
	}
	return nil, fmt.Errorf("%w: replay never closed the order", ErrIntegrity)
}

var _ Verifier = (*ReplayVerifier)(nil)
