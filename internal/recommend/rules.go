// Package recommend derives rule-based tuning suggestions and a narrative
// performance report from session statistics. Every rule is an independent
// pure function; the engine composes them and drops the ones that do not
// fire. Thresholds are fixed constants of the rule set.
package recommend

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/arbsim/ledgerd/internal/config"
	"github.com/arbsim/ledgerd/internal/models"
)

// Rule thresholds. These are behavioral constants, not configuration.
const (
	roiReducePositionBelow   = -10.0
	winRateRaiseThresholdAt  = 50.0
	failedExecutionRatio     = 0.3
	disableStrategyPnlBelow  = -100.0
	disableStrategyMinTrades = 10
	drawdownProtectionAbove  = 30.0
	lossStreakProtectionOver = 5
)

// Rule inspects a session summary and its metrics and emits zero or more
// recommendations. Per-strategy rules emit one entry per qualifying strategy.
type Rule func(session models.SessionSummary, m models.TradeMetrics) []models.Recommendation

// Engine evaluates the fixed rule set. The ledger configuration supplies the
// current values that proposed config changes are derived from; the engine
// passes the keys through without validating them.
type Engine struct {
	cfg   config.LedgerConfig
	rules []Rule
}

func NewEngine(cfg config.LedgerConfig) *Engine {
	e := &Engine{cfg: cfg}
	e.rules = []Rule{
		e.reducePositionSize,
		e.raiseProfitThreshold,
		e.fixExecution,
		e.disableLosingStrategies,
		e.drawdownProtection,
		e.lossStreakProtection,
	}
	return e
}

// Evaluate runs every rule and returns the combined recommendation list.
// Rules are order-insensitive; the list order follows the fixed rule order
// so output is deterministic. An empty list is a valid result.
func (e *Engine) Evaluate(session models.SessionSummary, m models.TradeMetrics) []models.Recommendation {
	recs := make([]models.Recommendation, 0)
	for _, rule := range e.rules {
		recs = append(recs, rule(session, m)...)
	}
	return recs
}

func (e *Engine) reducePositionSize(session models.SessionSummary, _ models.TradeMetrics) []models.Recommendation {
	if session.RoiPct >= roiReducePositionBelow {
		return nil
	}
	return []models.Recommendation{{
		ID:          "reduce_position_size",
		Priority:    models.PriorityHigh,
		Category:    "risk_management",
		Title:       "Reduce position size",
		Description: fmt.Sprintf("Session ROI of %.2f%% indicates oversized positions for the current edge. Halving position limits reduces the damage of a losing stretch.", session.RoiPct),
		ConfigChanges: map[string]interface{}{
			"max_position_size_usd":  e.cfg.MaxPositionSizeUsd * 0.5,
			"max_total_exposure_usd": e.cfg.MaxTotalExposureUsd * 0.5,
		},
	}}
}

func (e *Engine) raiseProfitThreshold(session models.SessionSummary, _ models.TradeMetrics) []models.Recommendation {
	if session.WinRatePct >= winRateRaiseThresholdAt {
		return nil
	}
	return []models.Recommendation{{
		ID:          "increase_min_profit_threshold",
		Priority:    models.PriorityHigh,
		Category:    "strategy",
		Title:       "Increase minimum profit threshold",
		Description: fmt.Sprintf("Win rate of %.2f%% is below break-even territory. Requiring a larger expected edge per trade filters out the marginal entries.", session.WinRatePct),
		ConfigChanges: map[string]interface{}{
			"min_profit_threshold_pct": e.cfg.MinProfitThresholdPc * 1.5,
		},
	}}
}

func (e *Engine) fixExecution(_ models.SessionSummary, m models.TradeMetrics) []models.Recommendation {
	var recs []models.Recommendation
	for _, tag := range sortedStrategies(m.ByStrategy) {
		agg := m.ByStrategy[tag]
		if agg.Trades == 0 || float64(agg.Failed) <= failedExecutionRatio*float64(agg.Trades) {
			continue
		}
		recs = append(recs, models.Recommendation{
			ID:          fmt.Sprintf("fix_execution_%s", tag),
			Priority:    models.PriorityHigh,
			Category:    "execution",
			Title:       fmt.Sprintf("Fix execution for %s", tag),
			Description: fmt.Sprintf("Strategy %s failed to execute %d of %d trades. Check order sizing against available liquidity and API error logs for this platform.", tag, agg.Failed, agg.Trades),
		})
	}
	return recs
}

func (e *Engine) disableLosingStrategies(_ models.SessionSummary, m models.TradeMetrics) []models.Recommendation {
	var recs []models.Recommendation
	threshold := decimal.NewFromFloat(disableStrategyPnlBelow)
	for _, tag := range sortedStrategies(m.ByStrategy) {
		agg := m.ByStrategy[tag]
		if agg.Trades <= disableStrategyMinTrades || !agg.Pnl.LessThan(threshold) {
			continue
		}
		recs = append(recs, models.Recommendation{
			ID:          fmt.Sprintf("disable_strategy_%s", tag),
			Priority:    models.PriorityMedium,
			Category:    "strategy",
			Title:       fmt.Sprintf("Consider disabling %s", tag),
			Description: fmt.Sprintf("Strategy %s has lost %s USD over %d trades, a large enough sample to suggest the edge is not there.", tag, agg.Pnl.StringFixed(2), agg.Trades),
			ConfigChanges: map[string]interface{}{
				fmt.Sprintf("strategies.%s.enabled", tag): false,
			},
		})
	}
	return recs
}

func (e *Engine) drawdownProtection(_ models.SessionSummary, m models.TradeMetrics) []models.Recommendation {
	if m.MaxDrawdownPct <= drawdownProtectionAbove {
		return nil
	}
	return []models.Recommendation{{
		ID:          "add_drawdown_protection",
		Priority:    models.PriorityHigh,
		Category:    "risk_management",
		Title:       "Add drawdown protection",
		Description: fmt.Sprintf("Maximum drawdown reached %.2f%%. An automatic pause at 20%% drawdown keeps a bad run from compounding.", m.MaxDrawdownPct),
		ConfigChanges: map[string]interface{}{
			"auto_pause_drawdown_pct": 20,
		},
	}}
}

func (e *Engine) lossStreakProtection(_ models.SessionSummary, m models.TradeMetrics) []models.Recommendation {
	if m.ConsecutiveLosses <= lossStreakProtectionOver {
		return nil
	}
	return []models.Recommendation{{
		ID:          "add_loss_streak_protection",
		Priority:    models.PriorityMedium,
		Category:    "risk_management",
		Title:       "Add loss-streak protection",
		Description: fmt.Sprintf("The ledger recorded %d consecutive losses. Pausing after 5 losses in a row gives the operator a chance to review before resuming.", m.ConsecutiveLosses),
		ConfigChanges: map[string]interface{}{
			"pause_after_consecutive_losses": 5,
		},
	}}
}

func sortedStrategies(byStrategy map[string]models.StrategyAggregate) []string {
	tags := make([]string, 0, len(byStrategy))
	for tag := range byStrategy {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
