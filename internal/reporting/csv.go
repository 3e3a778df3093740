package reporting

import (
	"fmt"
	"strings"

	"futures-backtest-lab/internal/domain"
)

// RenderOrdersCSV renders closed orders as a CSV string.
func RenderOrdersCSV(orders []*domain.PositionOrder) string {
	var sb strings.Builder

	sb.WriteString("id,ticker,label,direction,leverage,quantity,open_time_ms,open_price,")
	sb.WriteString("close_time_ms,close_price,close_reason,profit_percent,profit_in_quote,positive\n")

	for _, o := range orders {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%.8f,%d,%.8f,%d,%.8f,%s,%.8f,%.8f,%t\n",
			o.ID,
			o.Ticker,
			o.Label,
			o.Direction,
			o.Leverage,
			o.Quantity,
			o.OpenTimeMs,
			o.OpenPrice,
			o.CloseTimeMs,
			o.ClosePrice,
			o.CloseReason,
			o.ProfitPercent,
			o.ProfitInQuote,
			o.PositiveOrder,
		))
	}

	return sb.String()
}
