package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/arbsim/ledgerd/internal/database"
	"github.com/arbsim/ledgerd/internal/models"
)

var (
	// ErrNothingToArchive is returned when an archive is requested on an
	// empty live ledger.
	ErrNothingToArchive = errors.New("no trades to archive")

	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
)

// Store issues all ledger SQL against the shared DBPool. It has no caching:
// every read recomputes from the raw tables so corrected trade outcomes
// (pending settled to won/lost) are always reflected.
type Store struct {
	db database.DBPool
}

func NewStore(db database.DBPool) *Store {
	return &Store{db: db}
}

// Pool exposes the underlying pool for transaction control.
func (s *Store) Pool() database.DBPool {
	return s.db
}

const tradeColumns = `id, trading_mode, strategy, outcome, position_size_usd, actual_profit_usd,
	kalshi_ticker, kalshi_market_title, polymarket_condition_id, polymarket_market_title, created_at`

// ListTrades returns all live trades for a ledger scope, oldest first.
func (s *Store) ListTrades(ctx context.Context, scope string) ([]models.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM simulated_trades WHERE trading_mode = $1 ORDER BY created_at ASC`
	rows, err := s.db.Query(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		var profit sql.NullString
		if err := rows.Scan(&t.ID, &t.TradingMode, &t.Strategy, &t.Outcome, &t.PositionSizeUsd, &profit,
			&t.KalshiTicker, &t.KalshiMarketTitle, &t.PolymarketConditionID, &t.PolymarketMarketTitle, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if profit.Valid {
			d, err := decimal.NewFromString(profit.String)
			if err != nil {
				return nil, fmt.Errorf("invalid profit value for trade %s: %w", t.ID, err)
			}
			t.ActualProfitUsd = &d
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trades: %w", err)
	}
	return trades, nil
}

// InsertTrade records a new simulated trade in the live ledger.
func (s *Store) InsertTrade(ctx context.Context, t models.TradeRecord) error {
	query := `INSERT INTO simulated_trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	var profit any
	if t.ActualProfitUsd != nil {
		profit = t.ActualProfitUsd.String()
	}
	_, err := s.db.Exec(ctx, query, t.ID, t.TradingMode, t.Strategy, t.Outcome, t.PositionSizeUsd, profit,
		t.KalshiTicker, t.KalshiMarketTitle, t.PolymarketConditionID, t.PolymarketMarketTitle, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// SettleTrade moves a pending trade to a terminal outcome. Terminal trades
// are immutable; settling one is rejected by the WHERE clause.
func (s *Store) SettleTrade(ctx context.Context, id string, outcome models.Outcome, profit decimal.Decimal) error {
	if !outcome.IsTerminal() {
		return fmt.Errorf("outcome %q is not terminal", outcome)
	}
	query := `UPDATE simulated_trades SET outcome = $1, actual_profit_usd = $2 WHERE id = $3 AND outcome = 'pending'`
	res, err := s.db.Exec(ctx, query, outcome, profit.String(), id)
	if err != nil {
		return fmt.Errorf("failed to settle trade: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read settle result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("trade %s is not pending", id)
	}
	return nil
}

func (s *Store) countRows(ctx context.Context, table, scopeColumn, scope string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, table, scopeColumn)
	var count int
	if err := s.db.QueryRow(ctx, query, scope).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

func (s *Store) CountTrades(ctx context.Context, scope string) (int, error) {
	return s.countRows(ctx, "simulated_trades", "trading_mode", scope)
}

func (s *Store) CountOpportunities(ctx context.Context, scope string) (int, error) {
	return s.countRows(ctx, "arbitrage_opportunities", "trading_mode", scope)
}

func (s *Store) CountPositions(ctx context.Context, scope string) (int, error) {
	return s.countRows(ctx, "simulated_positions", "trading_mode", scope)
}

func (s *Store) CountStatsRows(ctx context.Context, scope string) (int, error) {
	return s.countRows(ctx, "simulation_stats", "trading_mode", scope)
}

// StartingBalance reads the live ledger's baseline from the stats row.
// A missing row falls back to the supplied default.
func (s *Store) StartingBalance(ctx context.Context, scope string, fallback decimal.Decimal) (decimal.Decimal, error) {
	query := `SELECT starting_balance FROM simulation_stats WHERE trading_mode = $1`
	var raw string
	err := s.db.QueryRow(ctx, query, scope).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return fallback, nil
		}
		return decimal.Zero, fmt.Errorf("failed to read starting balance: %w", err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid starting balance %q: %w", raw, err)
	}
	return balance, nil
}

// InsertSession writes the immutable session row. Runs against a Querier so
// the archiver can place it inside a transaction.
func (s *Store) InsertSession(ctx context.Context, q database.Querier, rec models.SessionRecord) error {
	strategies, err := json.Marshal(rec.StrategiesUsed)
	if err != nil {
		return fmt.Errorf("failed to marshal strategies: %w", err)
	}
	performance, err := json.Marshal(rec.StrategyPerformance)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy performance: %w", err)
	}

	var configSnapshot any
	if len(rec.ConfigSnapshot) > 0 {
		configSnapshot = string(rec.ConfigSnapshot)
	}
	var notes any
	if rec.Notes != "" {
		notes = rec.Notes
	}

	query := `INSERT INTO simulation_sessions (
		session_id, trading_mode, status, started_at, ended_at,
		starting_balance, ending_balance, total_pnl, roi_pct,
		total_trades, winning_trades, losing_trades, failed_trades, win_rate_pct,
		strategies_used, strategy_performance, config_snapshot, notes
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = q.Exec(ctx, query,
		rec.SessionID, rec.TradingMode, rec.Status, rec.StartedAt, rec.EndedAt,
		rec.StartingBalance.String(), rec.EndingBalance.String(), rec.TotalPnl.String(), rec.RoiPct,
		rec.TotalTrades, rec.WinningTrades, rec.LosingTrades, rec.FailedTrades, rec.WinRatePct,
		string(strategies), string(performance), configSnapshot, notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// CopyTradesToHistory copies live trades into the history table under the
// given session id, unifying the per-platform display fields.
func (s *Store) CopyTradesToHistory(ctx context.Context, q database.Querier, sessionID string, trades []models.TradeRecord) error {
	query := `INSERT INTO session_trades (
		id, session_id, strategy, outcome, position_size_usd, actual_profit_usd,
		platform, market_title, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, t := range trades {
		var profit any
		if t.ActualProfitUsd != nil {
			profit = t.ActualProfitUsd.String()
		}
		_, err := q.Exec(ctx, query,
			t.ID, sessionID, t.Strategy, t.Outcome, t.PositionSizeUsd.String(), profit,
			t.Platform(), t.MarketTitle(), t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to copy trade %s to history: %w", t.ID, err)
		}
	}
	return nil
}

func (s *Store) deleteScoped(ctx context.Context, table, scopeColumn, scope string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, scopeColumn)
	res, err := s.db.Exec(ctx, query, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result for %s: %w", table, err)
	}
	return affected, nil
}

func (s *Store) DeleteTrades(ctx context.Context, scope string) (int64, error) {
	return s.deleteScoped(ctx, "simulated_trades", "trading_mode", scope)
}

func (s *Store) DeleteOpportunities(ctx context.Context, scope string) (int64, error) {
	return s.deleteScoped(ctx, "arbitrage_opportunities", "trading_mode", scope)
}

func (s *Store) DeletePositions(ctx context.Context, scope string) (int64, error) {
	return s.deleteScoped(ctx, "simulated_positions", "trading_mode", scope)
}

func (s *Store) DeleteStats(ctx context.Context, scope string) (int64, error) {
	return s.deleteScoped(ctx, "simulation_stats", "trading_mode", scope)
}

// SeedStats resets the stats row for a scope to a fresh baseline with zeroed
// session counters.
func (s *Store) SeedStats(ctx context.Context, scope string, startingBalance decimal.Decimal) error {
	if _, err := s.DeleteStats(ctx, scope); err != nil {
		return err
	}
	query := `INSERT INTO simulation_stats (trading_mode, starting_balance, session_trades, session_opportunities, daily_pnl, updated_at)
		VALUES ($1, $2, 0, 0, 0, $3)`
	if _, err := s.db.Exec(ctx, query, scope, startingBalance.String(), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to seed stats row: %w", err)
	}
	return nil
}

// ResetSessionCounters zeroes the session-scoped counters without touching
// the balance baseline.
func (s *Store) ResetSessionCounters(ctx context.Context, scope string) error {
	query := `UPDATE simulation_stats SET session_trades = 0, session_opportunities = 0, daily_pnl = 0, updated_at = $1
		WHERE trading_mode = $2`
	if _, err := s.db.Exec(ctx, query, time.Now().UTC(), scope); err != nil {
		return fmt.Errorf("failed to reset session counters: %w", err)
	}
	return nil
}
