package recommend

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/arbsim/ledgerd/internal/metrics"
	"github.com/arbsim/ledgerd/internal/models"
)

// executionRateFloor is the fraction of trades that must actually execute
// before the report flags an execution problem.
const executionRateFloor = 0.8

// Narrative produces the multi-section text report for a session. It is
// deterministic given its inputs and has no side effects.
func Narrative(session models.SessionSummary, m models.TradeMetrics) string {
	var b strings.Builder

	b.WriteString("PERFORMANCE SUMMARY\n")
	b.WriteString(fmt.Sprintf("Overall: %s (%.2f%% ROI over %d trades, %.2f%% win rate)\n",
		roiBucket(session.RoiPct), session.RoiPct, session.TotalTrades, session.WinRatePct))

	if len(m.ByStrategy) > 0 {
		b.WriteString("\nSTRATEGY BREAKDOWN\n")
		for _, tag := range sortedStrategies(m.ByStrategy) {
			agg := m.ByStrategy[tag]
			b.WriteString(fmt.Sprintf("- %s: %d trades, %.2f%% win rate, %s USD pnl, profit factor %.2f\n",
				tag, agg.Trades, agg.WinRatePct, agg.Pnl.StringFixed(2), agg.ProfitFactor))
		}

		best, worst := bestAndWorstStrategy(m.ByStrategy)
		if best != "" {
			b.WriteString(fmt.Sprintf("\nBest performer: %s (%s USD)\n", best, m.ByStrategy[best].Pnl.StringFixed(2)))
		}
		if worst != "" && worst != best {
			b.WriteString(fmt.Sprintf("Worst performer: %s (%s USD)\n", worst, m.ByStrategy[worst].Pnl.StringFixed(2)))
		}
	}

	if hour, ok := metrics.BestBucket(m.ByHour, metrics.MinBucketTrades); ok {
		b.WriteString(fmt.Sprintf("\nMost profitable hour (UTC): %02d:00 (%s USD over %d trades)\n",
			hour, m.ByHour[hour].Pnl.StringFixed(2), m.ByHour[hour].Trades))
	}
	if hour, ok := metrics.WorstBucket(m.ByHour, metrics.MinBucketTrades); ok && m.ByHour[hour].Pnl.IsNegative() {
		b.WriteString(fmt.Sprintf("Least profitable hour (UTC): %02d:00 (%s USD over %d trades)\n",
			hour, m.ByHour[hour].Pnl.StringFixed(2), m.ByHour[hour].Trades))
	}

	if session.TotalTrades > 0 {
		rate := float64(session.TotalTrades-session.FailedTrades) / float64(session.TotalTrades)
		if rate < executionRateFloor {
			b.WriteString(fmt.Sprintf("\nEXECUTION WARNING\nOnly %.0f%% of trades executed successfully (%d of %d failed). Execution reliability needs attention before tuning strategy parameters.\n",
				rate*100, session.FailedTrades, session.TotalTrades))
		}
	}

	return b.String()
}

func roiBucket(roiPct float64) string {
	switch {
	case roiPct > 10:
		return "strong performance"
	case roiPct >= 0:
		return "positive performance"
	case roiPct >= -20:
		return "moderate loss"
	default:
		return "significant loss"
	}
}

func bestAndWorstStrategy(byStrategy map[string]models.StrategyAggregate) (best, worst string) {
	bestPnl := decimal.Zero
	worstPnl := decimal.Zero
	// Sorted iteration keeps ties deterministic.
	for _, tag := range sortedStrategies(byStrategy) {
		pnl := byStrategy[tag].Pnl
		if best == "" || pnl.GreaterThan(bestPnl) {
			best, bestPnl = tag, pnl
		}
		if worst == "" || pnl.LessThan(worstPnl) {
			worst, worstPnl = tag, pnl
		}
	}
	return best, worst
}
