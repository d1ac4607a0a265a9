package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbsim/ledgerd/internal/models"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func dp(v string) *decimal.Decimal {
	dec := decimal.RequireFromString(v)
	return &dec
}

func trade(id, strategy string, outcome models.Outcome, profit string, createdAt time.Time) models.TradeRecord {
	t := models.TradeRecord{
		ID:              id,
		TradingMode:     "paper",
		Strategy:        strategy,
		Outcome:         outcome,
		PositionSizeUsd: d("20"),
		CreatedAt:       createdAt,
	}
	if profit != "" {
		t.ActualProfitUsd = dp(profit)
	}
	return t
}

func TestSnapshotExampleScenario(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	trades := []models.TradeRecord{
		trade("t1", "kalshi_single", models.OutcomeWon, "10", base),
		trade("t2", "kalshi_single", models.OutcomeLost, "-5", base.Add(time.Minute)),
		trade("t3", "kalshi_single", models.OutcomeLost, "-3", base.Add(2*time.Minute)),
	}

	snap := Snapshot(trades, d("100"))

	assert.True(t, snap.SimulatedBalance.Equal(d("102")), "balance: %s", snap.SimulatedBalance)
	assert.True(t, snap.TotalPnl.Equal(d("2")))
	assert.Equal(t, 3, snap.TotalTrades)
	assert.Equal(t, 1, snap.WinningTrades)
	assert.Equal(t, 2, snap.LosingTrades)
	assert.InDelta(t, 33.33, snap.WinRatePct, 0.001)
	assert.InDelta(t, 2.0, snap.RoiPct, 0.001)
}

func TestCalculateExampleDrawdownAndStreak(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	trades := []models.TradeRecord{
		trade("t1", "kalshi_single", models.OutcomeWon, "10", base),
		trade("t2", "kalshi_single", models.OutcomeLost, "-5", base.Add(time.Minute)),
		trade("t3", "kalshi_single", models.OutcomeLost, "-3", base.Add(2*time.Minute)),
	}

	m := Calculate(trades, d("100"))

	assert.Equal(t, 2, m.ConsecutiveLosses)
	// Peak 110 after the win, trough 102: (110-102)/110*100.
	assert.InDelta(t, 7.27, m.MaxDrawdownPct, 0.01)
}

func TestCalculateIsIdempotent(t *testing.T) {
	base := time.Date(2025, 5, 2, 9, 30, 0, 0, time.UTC)
	trades := []models.TradeRecord{
		trade("t1", "cross_platform", models.OutcomeWon, "4.5", base),
		trade("t2", "cross_platform", models.OutcomeLost, "-2.25", base.Add(time.Hour)),
		trade("t3", "kalshi_single", models.OutcomePending, "", base.Add(2*time.Hour)),
	}

	first := Calculate(trades, d("250"))
	second := Calculate(trades, d("250"))

	assert.Equal(t, first, second)
}

func TestEmptyTradeSetYieldsZeroes(t *testing.T) {
	snap := Snapshot(nil, d("500"))
	assert.True(t, snap.SimulatedBalance.Equal(d("500")))
	assert.Zero(t, snap.TotalTrades)
	assert.Zero(t, snap.WinRatePct)

	m := Calculate(nil, d("500"))
	assert.Empty(t, m.ByStrategy)
	assert.Empty(t, m.ByHour)
	assert.Zero(t, m.ConsecutiveLosses)
	assert.Zero(t, m.MaxDrawdownPct)
	assert.True(t, m.LargestWin.IsZero())
	assert.True(t, m.LargestLoss.IsZero())
}

func TestWinRateZeroWhenOnlyPendingAndFailed(t *testing.T) {
	base := time.Now().UTC()
	trades := []models.TradeRecord{
		trade("t1", "kalshi_single", models.OutcomePending, "", base),
		trade("t2", "kalshi_single", models.OutcomeFailedExecution, "", base),
	}

	snap := Snapshot(trades, d("100"))
	assert.Zero(t, snap.WinRatePct)
	assert.Equal(t, 1, snap.FailedTrades)
	assert.Equal(t, 1, snap.PendingTrades)
	assert.True(t, snap.SimulatedBalance.Equal(d("100")))
}

func TestLossStreakResetByWin(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	outcomes := []models.Outcome{
		models.OutcomeLost, models.OutcomeLost, models.OutcomeLost,
		models.OutcomeWon,
		models.OutcomeLost, models.OutcomeLost,
	}
	var trades []models.TradeRecord
	for i, o := range outcomes {
		profit := "-1"
		if o == models.OutcomeWon {
			profit = "5"
		}
		trades = append(trades, trade(string(rune('a'+i)), "s", o, profit, base.Add(time.Duration(i)*time.Minute)))
	}

	m := Calculate(trades, d("100"))
	assert.Equal(t, 3, m.ConsecutiveLosses)
}

func TestLossStreakIgnoresPendingAndFailed(t *testing.T) {
	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	trades := []models.TradeRecord{
		trade("a", "s", models.OutcomeLost, "-1", base),
		trade("b", "s", models.OutcomePending, "", base.Add(time.Minute)),
		trade("c", "s", models.OutcomeFailedExecution, "", base.Add(2*time.Minute)),
		trade("d", "s", models.OutcomeLost, "-1", base.Add(3*time.Minute)),
	}

	m := Calculate(trades, d("100"))
	assert.Equal(t, 2, m.ConsecutiveLosses, "pending/failed must not reset the streak")
}

func TestMaxDrawdownZeroWhenBalanceNeverDips(t *testing.T) {
	base := time.Now().UTC()
	trades := []models.TradeRecord{
		trade("a", "s", models.OutcomeWon, "5", base),
		trade("b", "s", models.OutcomeWon, "3", base.Add(time.Minute)),
	}

	m := Calculate(trades, d("100"))
	assert.Zero(t, m.MaxDrawdownPct)
}

func TestMaxDrawdownSortsUnorderedInput(t *testing.T) {
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	// Reverse chronological input: the win happened first.
	trades := []models.TradeRecord{
		trade("late", "s", models.OutcomeLost, "-8", base.Add(time.Hour)),
		trade("early", "s", models.OutcomeWon, "10", base),
	}

	m := Calculate(trades, d("100"))
	// Chronological walk: 110 peak, then 102.
	assert.InDelta(t, 7.27, m.MaxDrawdownPct, 0.01)
}

func TestByStrategyAggregates(t *testing.T) {
	base := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	trades := []models.TradeRecord{
		trade("a", "kalshi_single", models.OutcomeWon, "10", base),
		trade("b", "kalshi_single", models.OutcomeWon, "6", base.Add(time.Minute)),
		trade("c", "kalshi_single", models.OutcomeLost, "-4", base.Add(2*time.Minute)),
		trade("d", "kalshi_single", models.OutcomeFailedExecution, "", base.Add(3*time.Minute)),
		trade("e", "cross_platform", models.OutcomeLost, "-2", base.Add(4*time.Minute)),
	}

	byStrategy := ByStrategy(trades)
	require.Len(t, byStrategy, 2)

	ks := byStrategy["kalshi_single"]
	assert.Equal(t, 4, ks.Trades)
	assert.Equal(t, 2, ks.Won)
	assert.Equal(t, 1, ks.Lost)
	assert.Equal(t, 1, ks.Failed)
	assert.True(t, ks.Pnl.Equal(d("12")), "pnl: %s", ks.Pnl)
	assert.True(t, ks.Volume.Equal(d("80")))
	assert.True(t, ks.AvgProfit.Equal(d("8")))
	assert.True(t, ks.AvgLoss.Equal(d("4")))
	assert.InDelta(t, 66.67, ks.WinRatePct, 0.01)
	assert.InDelta(t, 2.0, ks.ProfitFactor, 0.001)

	cp := byStrategy["cross_platform"]
	assert.Zero(t, cp.ProfitFactor, "profit factor is 0 without wins")
	assert.Zero(t, cp.WinRatePct)
}

func TestProfitFactorZeroWithoutLosses(t *testing.T) {
	base := time.Now().UTC()
	byStrategy := ByStrategy([]models.TradeRecord{
		trade("a", "s", models.OutcomeWon, "10", base),
	})
	assert.Zero(t, byStrategy["s"].ProfitFactor)
}

func TestTimeBuckets(t *testing.T) {
	// Monday 14:00 and 16:00 UTC, Tuesday 14:00 UTC.
	mon14 := time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC)
	mon16 := time.Date(2025, 3, 10, 16, 10, 0, 0, time.UTC)
	tue14 := time.Date(2025, 3, 11, 14, 30, 0, 0, time.UTC)

	trades := []models.TradeRecord{
		trade("a", "s", models.OutcomeWon, "3", mon14),
		trade("b", "s", models.OutcomeLost, "-1", mon16),
		trade("c", "s", models.OutcomeWon, "2", tue14),
	}

	m := Calculate(trades, d("100"))

	require.Contains(t, m.ByHour, 14)
	assert.Equal(t, 2, m.ByHour[14].Trades)
	assert.True(t, m.ByHour[14].Pnl.Equal(d("5")))

	require.Contains(t, m.ByDayOfWeek, int(time.Monday))
	assert.Equal(t, 2, m.ByDayOfWeek[int(time.Monday)].Trades)
	assert.True(t, m.ByDayOfWeek[int(time.Monday)].Pnl.Equal(d("2")))
}

func TestLargestWinAndLoss(t *testing.T) {
	base := time.Now().UTC()
	trades := []models.TradeRecord{
		trade("a", "s", models.OutcomeWon, "12.5", base),
		trade("b", "s", models.OutcomeWon, "3", base.Add(time.Minute)),
		trade("c", "s", models.OutcomeLost, "-7.25", base.Add(2*time.Minute)),
	}

	m := Calculate(trades, d("100"))
	assert.True(t, m.LargestWin.Equal(d("12.5")))
	assert.True(t, m.LargestLoss.Equal(d("-7.25")))
}

func TestLargestWinOnAllNegativeSet(t *testing.T) {
	base := time.Now().UTC()
	trades := []models.TradeRecord{
		trade("a", "s", models.OutcomeLost, "-5", base),
		trade("b", "s", models.OutcomeLost, "-3", base.Add(time.Minute)),
		trade("c", "s", models.OutcomePending, "", base.Add(2*time.Minute)),
	}

	m := Calculate(trades, d("100"))
	// The extremes come from the settled profits themselves: the least bad
	// trade is the largest win, not zero.
	assert.True(t, m.LargestWin.Equal(d("-3")), "largest win: %s", m.LargestWin)
	assert.True(t, m.LargestLoss.Equal(d("-5")))
}

func TestBucketSelectionRequiresMinimumTrades(t *testing.T) {
	buckets := map[int]models.TimeBucket{
		9:  {Trades: 2, Pnl: d("50")},
		14: {Trades: 3, Pnl: d("5")},
		16: {Trades: 4, Pnl: d("-8")},
	}

	best, ok := BestBucket(buckets, MinBucketTrades)
	require.True(t, ok)
	assert.Equal(t, 14, best, "the 2-trade bucket is noise regardless of pnl")

	worst, ok := WorstBucket(buckets, MinBucketTrades)
	require.True(t, ok)
	assert.Equal(t, 16, worst)

	_, ok = BestBucket(map[int]models.TimeBucket{1: {Trades: 1}}, MinBucketTrades)
	assert.False(t, ok)
}
