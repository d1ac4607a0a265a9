package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is the settlement state of a simulated trade. Transitions are
// pending -> won | lost | failed_execution; terminal states never change.
type Outcome string

const (
	OutcomeWon             Outcome = "won"
	OutcomeLost            Outcome = "lost"
	OutcomePending         Outcome = "pending"
	OutcomeFailedExecution Outcome = "failed_execution"
)

// IsTerminal reports whether the outcome can no longer change.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeWon || o == OutcomeLost || o == OutcomeFailedExecution
}

// CountsForBalance reports whether the trade's profit contributes to the
// simulated balance. Pending and failed executions do not.
func (o Outcome) CountsForBalance() bool {
	return o == OutcomeWon || o == OutcomeLost
}

// TradeRecord is one simulated execution outcome in the live ledger.
// The platform-specific identifiers are opaque pass-through fields; the
// engine only inspects which one is populated.
type TradeRecord struct {
	ID                    string           `json:"id" db:"id"`
	TradingMode           string           `json:"trading_mode" db:"trading_mode"`
	Strategy              string           `json:"strategy" db:"strategy"`
	Outcome               Outcome          `json:"outcome" db:"outcome"`
	PositionSizeUsd       decimal.Decimal  `json:"position_size_usd" db:"position_size_usd"`
	ActualProfitUsd       *decimal.Decimal `json:"actual_profit_usd" db:"actual_profit_usd"`
	KalshiTicker          string           `json:"kalshi_ticker,omitempty" db:"kalshi_ticker"`
	KalshiMarketTitle     string           `json:"kalshi_market_title,omitempty" db:"kalshi_market_title"`
	PolymarketConditionID string           `json:"polymarket_condition_id,omitempty" db:"polymarket_condition_id"`
	PolymarketMarketTitle string           `json:"polymarket_market_title,omitempty" db:"polymarket_market_title"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
}

// Profit returns the realized profit, zero while unsettled.
func (t TradeRecord) Profit() decimal.Decimal {
	if t.ActualProfitUsd == nil {
		return decimal.Zero
	}
	return *t.ActualProfitUsd
}

// Platform derives the display platform from whichever identifier is set.
func (t TradeRecord) Platform() string {
	switch {
	case t.KalshiTicker != "":
		return "kalshi"
	case t.PolymarketConditionID != "":
		return "polymarket"
	default:
		return "unknown"
	}
}

// MarketTitle unifies the per-platform title fields for display.
func (t TradeRecord) MarketTitle() string {
	if t.KalshiMarketTitle != "" {
		return t.KalshiMarketTitle
	}
	return t.PolymarketMarketTitle
}

// HistoryTrade is an archived copy of a TradeRecord, keyed by session and
// with the per-platform display fields already unified.
type HistoryTrade struct {
	ID              string           `json:"id" db:"id"`
	SessionID       string           `json:"session_id" db:"session_id"`
	Strategy        string           `json:"strategy" db:"strategy"`
	Outcome         Outcome          `json:"outcome" db:"outcome"`
	PositionSizeUsd decimal.Decimal  `json:"position_size_usd" db:"position_size_usd"`
	ActualProfitUsd *decimal.Decimal `json:"actual_profit_usd" db:"actual_profit_usd"`
	Platform        string           `json:"platform" db:"platform"`
	MarketTitle     string           `json:"market_title" db:"market_title"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// Profit returns the realized profit, zero while unsettled.
func (t HistoryTrade) Profit() decimal.Decimal {
	if t.ActualProfitUsd == nil {
		return decimal.Zero
	}
	return *t.ActualProfitUsd
}
