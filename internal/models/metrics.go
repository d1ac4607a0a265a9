package models

import "github.com/shopspring/decimal"

// StatsSnapshot is the live ledger's cumulative picture, recomputed on demand
// from the current trade set rather than maintained incrementally.
type StatsSnapshot struct {
	TradingMode      string          `json:"trading_mode"`
	StartingBalance  decimal.Decimal `json:"starting_balance"`
	SimulatedBalance decimal.Decimal `json:"simulated_balance"`
	TotalPnl         decimal.Decimal `json:"total_pnl"`
	TotalTrades      int             `json:"total_trades"`
	WinningTrades    int             `json:"winning_trades"`
	LosingTrades     int             `json:"losing_trades"`
	FailedTrades     int             `json:"failed_trades"`
	PendingTrades    int             `json:"pending_trades"`
	WinRatePct       float64         `json:"win_rate_pct"`
	RoiPct           float64         `json:"roi_pct"`
}

// StrategyAggregate is the per-strategy rollup of a trade set.
type StrategyAggregate struct {
	Trades       int             `json:"trades"`
	Won          int             `json:"won"`
	Lost         int             `json:"lost"`
	Failed       int             `json:"failed"`
	Pnl          decimal.Decimal `json:"pnl"`
	Volume       decimal.Decimal `json:"volume"`
	AvgProfit    decimal.Decimal `json:"avg_profit"`
	AvgLoss      decimal.Decimal `json:"avg_loss"`
	WinRatePct   float64         `json:"win_rate_pct"`
	ProfitFactor float64         `json:"profit_factor"`
}

// TimeBucket accumulates trade count and pnl for one hour-of-day or
// day-of-week slot.
type TimeBucket struct {
	Trades int             `json:"trades"`
	Pnl    decimal.Decimal `json:"pnl"`
}

// TradeMetrics is the full analysis output of the metrics calculator.
type TradeMetrics struct {
	ByStrategy        map[string]StrategyAggregate `json:"by_strategy"`
	ByHour            map[int]TimeBucket           `json:"by_hour"`
	ByDayOfWeek       map[int]TimeBucket           `json:"by_day_of_week"`
	LargestWin        decimal.Decimal              `json:"largest_win"`
	LargestLoss       decimal.Decimal              `json:"largest_loss"`
	ConsecutiveLosses int                          `json:"consecutive_losses"`
	MaxDrawdownPct    float64                      `json:"max_drawdown_pct"`
}

// SessionSummary is the slice of a session the recommendation engine needs.
type SessionSummary struct {
	RoiPct       float64 `json:"roi_pct"`
	WinRatePct   float64 `json:"win_rate_pct"`
	TotalTrades  int     `json:"total_trades"`
	FailedTrades int     `json:"failed_trades"`
}
