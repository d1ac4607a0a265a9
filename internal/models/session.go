package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SessionRecord is an immutable archive of one completed simulation run.
// It is created exactly once by the archiver and never mutated afterward.
type SessionRecord struct {
	SessionID           string                       `json:"session_id" db:"session_id"`
	TradingMode         string                       `json:"trading_mode" db:"trading_mode"`
	Status              string                       `json:"status" db:"status"`
	StartedAt           time.Time                    `json:"started_at" db:"started_at"`
	EndedAt             *time.Time                   `json:"ended_at" db:"ended_at"`
	StartingBalance     decimal.Decimal              `json:"starting_balance" db:"starting_balance"`
	EndingBalance       decimal.Decimal              `json:"ending_balance" db:"ending_balance"`
	TotalPnl            decimal.Decimal              `json:"total_pnl" db:"total_pnl"`
	RoiPct              float64                      `json:"roi_pct" db:"roi_pct"`
	TotalTrades         int                          `json:"total_trades" db:"total_trades"`
	WinningTrades       int                          `json:"winning_trades" db:"winning_trades"`
	LosingTrades        int                          `json:"losing_trades" db:"losing_trades"`
	FailedTrades        int                          `json:"failed_trades" db:"failed_trades"`
	WinRatePct          float64                      `json:"win_rate_pct" db:"win_rate_pct"`
	StrategiesUsed      []string                     `json:"strategies_used" db:"strategies_used"`
	StrategyPerformance map[string]StrategyAggregate `json:"strategy_performance" db:"strategy_performance"`
	ConfigSnapshot      json.RawMessage              `json:"config_snapshot,omitempty" db:"config_snapshot"`
	Notes               string                       `json:"notes,omitempty" db:"notes"`
}

// Summary extracts the fields the recommendation engine evaluates.
func (s SessionRecord) Summary() SessionSummary {
	return SessionSummary{
		RoiPct:       s.RoiPct,
		WinRatePct:   s.WinRatePct,
		TotalTrades:  s.TotalTrades,
		FailedTrades: s.FailedTrades,
	}
}

const (
	SessionStatusCompleted = "completed"
)
