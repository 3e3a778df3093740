package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategies: %d\n\n", r.StrategyCount))

	sb.WriteString("## Summaries\n\n")
	if len(r.Summaries) > 0 {
		sb.WriteString("| Strategy | Ticker | Orders | Profit | Avg | Success | DD | RelDD | Score | P75 | P95 |\n")
		sb.WriteString("|----------|--------|--------|--------|-----|---------|----|-------|-------|-----|-----|\n")
		for _, row := range r.Summaries {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.4f | %.4f | %.2f%% | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
				row.Label, row.Ticker, row.Orders,
				row.Profit, row.AverageProfit, row.Success*100,
				row.HistoricDD, row.RelativeDD,
				row.TargetScore, row.ProfitP75, row.ProfitP95))
		}
	} else {
		sb.WriteString("No results available.\n")
	}
	sb.WriteString("\n")

	if len(r.Skipped) > 0 {
		sb.WriteString("## Skipped Instruments\n\n")
		for _, row := range r.Skipped {
			sb.WriteString(fmt.Sprintf("- %s / %s: %s\n", row.Label, row.Ticker, row.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// SummaryLine renders one row as a single log-friendly line.
func SummaryLine(row SummaryRow) string {
	return fmt.Sprintf("Prof: %.4f | Avg: %.4f | Orders: %d | Success: %.2f%% | DD: %.4f (%s) | RelDD: %.4f (%s : %s) | Score: %.4f | P75: %.4f | P95: %.4f",
		row.Profit,
		row.AverageProfit,
		row.Orders,
		row.Success*100,
		row.HistoricDD,
		formatDay(row.HistoricDDTimeMs),
		row.RelativeDD,
		formatDay(row.RelativeDDStartMs),
		formatDay(row.RelativeDDEndMs),
		row.TargetScore,
		row.ProfitP75,
		row.ProfitP95,
	)
}

func formatDay(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}
