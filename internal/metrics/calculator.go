// Package metrics turns a set of simulated trade records into aggregate
// statistics. Everything here is pure: the same trade set always produces
// the same output, and empty input yields zeroed aggregates rather than an
// error.
package metrics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/arbsim/ledgerd/internal/models"
)

// MinBucketTrades is the floor below which an hour/day bucket is treated as
// statistical noise and excluded from best/worst window selection.
const MinBucketTrades = 3

// Snapshot computes the live ledger's cumulative stats from the current
// trade set and its starting balance.
func Snapshot(trades []models.TradeRecord, startingBalance decimal.Decimal) models.StatsSnapshot {
	snap := models.StatsSnapshot{
		StartingBalance:  startingBalance,
		SimulatedBalance: startingBalance,
		TotalPnl:         decimal.Zero,
		TotalTrades:      len(trades),
	}

	for _, t := range trades {
		switch t.Outcome {
		case models.OutcomeWon:
			snap.WinningTrades++
		case models.OutcomeLost:
			snap.LosingTrades++
		case models.OutcomeFailedExecution:
			snap.FailedTrades++
		case models.OutcomePending:
			snap.PendingTrades++
		}
		if t.Outcome.CountsForBalance() {
			snap.TotalPnl = snap.TotalPnl.Add(t.Profit())
		}
	}

	snap.SimulatedBalance = startingBalance.Add(snap.TotalPnl)
	snap.WinRatePct = winRate(snap.WinningTrades, snap.LosingTrades)
	if startingBalance.IsPositive() {
		roi, _ := snap.TotalPnl.Div(startingBalance).Mul(decimal.NewFromInt(100)).Float64()
		snap.RoiPct = round2(roi)
	}

	return snap
}

// Calculate produces the full TradeMetrics for a trade set. Input order is
// not required; trades are sorted by creation time before any sequential
// analysis (streaks, drawdown).
func Calculate(trades []models.TradeRecord, startingBalance decimal.Decimal) models.TradeMetrics {
	m := models.TradeMetrics{
		ByStrategy:  ByStrategy(trades),
		ByHour:      make(map[int]models.TimeBucket),
		ByDayOfWeek: make(map[int]models.TimeBucket),
		LargestWin:  decimal.Zero,
		LargestLoss: decimal.Zero,
	}

	ordered := make([]models.TradeRecord, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	haveProfit := false
	for _, t := range ordered {
		hour := t.CreatedAt.UTC().Hour()
		day := int(t.CreatedAt.UTC().Weekday())

		hb := m.ByHour[hour]
		hb.Trades++
		hb.Pnl = hb.Pnl.Add(t.Profit())
		m.ByHour[hour] = hb

		db := m.ByDayOfWeek[day]
		db.Trades++
		db.Pnl = db.Pnl.Add(t.Profit())
		m.ByDayOfWeek[day] = db

		// Extremes over the settled profits themselves: an all-losing set
		// reports its least bad trade as the largest win.
		if t.ActualProfitUsd != nil {
			p := *t.ActualProfitUsd
			if !haveProfit {
				m.LargestWin, m.LargestLoss = p, p
				haveProfit = true
			} else {
				if p.GreaterThan(m.LargestWin) {
					m.LargestWin = p
				}
				if p.LessThan(m.LargestLoss) {
					m.LargestLoss = p
				}
			}
		}
	}

	m.ConsecutiveLosses = longestLossStreak(ordered)
	m.MaxDrawdownPct = maxDrawdown(ordered, startingBalance)

	return m
}

// ByStrategy rolls the trade set up per strategy tag: one pass accumulating
// counts and sums, a second pass deriving averages once the win/loss subsets
// are complete.
func ByStrategy(trades []models.TradeRecord) map[string]models.StrategyAggregate {
	type sums struct {
		agg      models.StrategyAggregate
		winTotal decimal.Decimal
		losTotal decimal.Decimal
	}

	acc := make(map[string]*sums)
	for _, t := range trades {
		s, ok := acc[t.Strategy]
		if !ok {
			s = &sums{agg: models.StrategyAggregate{
				Pnl:       decimal.Zero,
				Volume:    decimal.Zero,
				AvgProfit: decimal.Zero,
				AvgLoss:   decimal.Zero,
			}}
			acc[t.Strategy] = s
		}

		s.agg.Trades++
		s.agg.Volume = s.agg.Volume.Add(t.PositionSizeUsd)

		switch t.Outcome {
		case models.OutcomeWon:
			s.agg.Won++
			s.winTotal = s.winTotal.Add(t.Profit())
		case models.OutcomeLost:
			s.agg.Lost++
			s.losTotal = s.losTotal.Add(t.Profit().Abs())
		case models.OutcomeFailedExecution:
			s.agg.Failed++
		}
		if t.Outcome.CountsForBalance() {
			s.agg.Pnl = s.agg.Pnl.Add(t.Profit())
		}
	}

	out := make(map[string]models.StrategyAggregate, len(acc))
	for tag, s := range acc {
		if s.agg.Won > 0 {
			s.agg.AvgProfit = s.winTotal.Div(decimal.NewFromInt(int64(s.agg.Won)))
		}
		if s.agg.Lost > 0 {
			s.agg.AvgLoss = s.losTotal.Div(decimal.NewFromInt(int64(s.agg.Lost)))
		}
		s.agg.WinRatePct = winRate(s.agg.Won, s.agg.Lost)
		if s.agg.AvgLoss.IsPositive() {
			pf, _ := s.agg.AvgProfit.Div(s.agg.AvgLoss).Float64()
			s.agg.ProfitFactor = round2(pf)
		}
		out[tag] = s.agg
	}
	return out
}

// ByStrategyHistory applies the same aggregation rules to archived trades.
func ByStrategyHistory(trades []models.HistoryTrade) map[string]models.StrategyAggregate {
	live := make([]models.TradeRecord, len(trades))
	for i, t := range trades {
		live[i] = models.TradeRecord{
			ID:              t.ID,
			Strategy:        t.Strategy,
			Outcome:         t.Outcome,
			PositionSizeUsd: t.PositionSizeUsd,
			ActualProfitUsd: t.ActualProfitUsd,
			CreatedAt:       t.CreatedAt,
		}
	}
	return ByStrategy(live)
}

// longestLossStreak finds the longest run of consecutive lost outcomes in
// trade order. A won outcome resets the running counter; pending and failed
// executions neither extend nor reset it.
func longestLossStreak(ordered []models.TradeRecord) int {
	longest, run := 0, 0
	for _, t := range ordered {
		switch t.Outcome {
		case models.OutcomeLost:
			run++
			if run > longest {
				longest = run
			}
		case models.OutcomeWon:
			run = 0
		}
	}
	return longest
}

// maxDrawdown walks trades chronologically from the starting-balance
// baseline, tracking the peak balance and the largest percentage decline
// from it.
func maxDrawdown(ordered []models.TradeRecord, startingBalance decimal.Decimal) float64 {
	running := startingBalance
	peak := startingBalance
	worst := 0.0

	for _, t := range ordered {
		if !t.Outcome.CountsForBalance() {
			continue
		}
		running = running.Add(t.Profit())
		if running.GreaterThan(peak) {
			peak = running
			continue
		}
		if !peak.IsPositive() {
			continue
		}
		dd, _ := peak.Sub(running).Div(peak).Mul(decimal.NewFromInt(100)).Float64()
		if dd > worst {
			worst = dd
		}
	}

	return round2(worst)
}

// BestBucket returns the key of the most profitable bucket holding at least
// minTrades trades; ok is false when no bucket qualifies.
func BestBucket(buckets map[int]models.TimeBucket, minTrades int) (key int, ok bool) {
	best := decimal.Zero
	for k, b := range buckets {
		if b.Trades < minTrades {
			continue
		}
		if !ok || b.Pnl.GreaterThan(best) {
			key, best, ok = k, b.Pnl, true
		}
	}
	return key, ok
}

// WorstBucket mirrors BestBucket for the least profitable qualifying bucket.
func WorstBucket(buckets map[int]models.TimeBucket, minTrades int) (key int, ok bool) {
	worst := decimal.Zero
	for k, b := range buckets {
		if b.Trades < minTrades {
			continue
		}
		if !ok || b.Pnl.LessThan(worst) {
			key, worst, ok = k, b.Pnl, true
		}
	}
	return key, ok
}

func winRate(won, lost int) float64 {
	denom := won + lost
	if denom == 0 {
		return 0
	}
	return round2(float64(won) / float64(denom) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
