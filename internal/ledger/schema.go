package ledger

import (
	"context"
	"fmt"
)

// Schema for the live ledger and the session history. Written in the common
// subset both PostgreSQL and SQLite accept; placeholders are rebound for
// SQLite inside the driver.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS simulated_trades (
		id TEXT PRIMARY KEY,
		trading_mode TEXT NOT NULL,
		strategy TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT 'pending',
		position_size_usd NUMERIC NOT NULL DEFAULT 0,
		actual_profit_usd NUMERIC,
		kalshi_ticker TEXT NOT NULL DEFAULT '',
		kalshi_market_title TEXT NOT NULL DEFAULT '',
		polymarket_condition_id TEXT NOT NULL DEFAULT '',
		polymarket_market_title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_simulated_trades_mode ON simulated_trades (trading_mode, created_at)`,
	`CREATE TABLE IF NOT EXISTS arbitrage_opportunities (
		id TEXT PRIMARY KEY,
		trading_mode TEXT NOT NULL,
		strategy TEXT NOT NULL DEFAULT '',
		detected_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS simulated_positions (
		id TEXT PRIMARY KEY,
		trading_mode TEXT NOT NULL,
		trade_id TEXT NOT NULL DEFAULT '',
		opened_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS simulation_stats (
		trading_mode TEXT PRIMARY KEY,
		starting_balance NUMERIC NOT NULL,
		session_trades INTEGER NOT NULL DEFAULT 0,
		session_opportunities INTEGER NOT NULL DEFAULT 0,
		daily_pnl NUMERIC NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS simulation_sessions (
		session_id TEXT PRIMARY KEY,
		trading_mode TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'completed',
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		starting_balance NUMERIC NOT NULL,
		ending_balance NUMERIC NOT NULL,
		total_pnl NUMERIC NOT NULL,
		roi_pct NUMERIC NOT NULL DEFAULT 0,
		total_trades INTEGER NOT NULL DEFAULT 0,
		winning_trades INTEGER NOT NULL DEFAULT 0,
		losing_trades INTEGER NOT NULL DEFAULT 0,
		failed_trades INTEGER NOT NULL DEFAULT 0,
		win_rate_pct NUMERIC NOT NULL DEFAULT 0,
		strategies_used TEXT NOT NULL DEFAULT '[]',
		strategy_performance TEXT NOT NULL DEFAULT '{}',
		config_snapshot TEXT,
		notes TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_simulation_sessions_ended ON simulation_sessions (trading_mode, ended_at)`,
	`CREATE TABLE IF NOT EXISTS session_trades (
		id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		strategy TEXT NOT NULL,
		outcome TEXT NOT NULL,
		position_size_usd NUMERIC NOT NULL DEFAULT 0,
		actual_profit_usd NUMERIC,
		platform TEXT NOT NULL DEFAULT 'unknown',
		market_title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (session_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_trades_session ON session_trades (session_id)`,
}

// EnsureSchema creates the ledger tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
