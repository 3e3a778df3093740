package ranking

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a Ranking as a Markdown string.
func RenderMarkdown(r *Ranking) string {
	var sb strings.Builder

	sb.WriteString("# Strategy Ranking\n\n")

	// Podium
	sb.WriteString("## Podium\n\n")
	if len(r.Podium) > 0 {
		for i, entry := range r.Podium {
			sb.WriteString(fmt.Sprintf("%d. **%s** score %.4f (profit %.4f over %d orders)\n",
				i+1, entry.Label, entry.Score, entry.Profit, entry.Orders))
		}
	} else {
		sb.WriteString("No strategy produced a usable score.\n")
	}
	sb.WriteString("\n")

	// Full table
	sb.WriteString("## All Strategies\n\n")
	sb.WriteString("| Rank | Strategy | Score | Profit | Orders | Success | RelDD | Verdict |\n")
	sb.WriteString("|------|----------|-------|--------|--------|---------|-------|--------|\n")
	for _, entry := range r.Entries {
		sb.WriteString(fmt.Sprintf("| %d | %s | %.4f | %.4f | %d | %.2f%% | %.4f | %s |\n",
			entry.Rank, entry.Label, entry.Score, entry.Profit,
			entry.Orders, entry.Success*100, entry.RelativeDD, entry.Verdict))
	}
	sb.WriteString("\n")

	degenerate := 0
	for _, entry := range r.Entries {
		if entry.Verdict == VerdictDegenerate {
			degenerate++
		}
	}
	sb.WriteString(fmt.Sprintf("Ranked: %d/%d (degenerate: %d)\n",
		len(r.Entries)-degenerate, len(r.Entries), degenerate))

	return sb.String()
}
