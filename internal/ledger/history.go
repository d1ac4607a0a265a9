package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/arbsim/ledgerd/internal/metrics"
	"github.com/arbsim/ledgerd/internal/models"
)

// History provides read-only access to archived sessions. Strategy
// breakdowns are recomputed from the archived trades on every read so a
// breakdown can never go stale relative to its trades.
type History struct {
	store *Store
}

func NewHistory(store *Store) *History {
	return &History{store: store}
}

// SessionDetail is the full view of one archived session.
type SessionDetail struct {
	Session           models.SessionRecord                `json:"session"`
	Trades            []models.HistoryTrade               `json:"trades"`
	StrategyBreakdown map[string]models.StrategyAggregate `json:"strategy_breakdown"`
}

const sessionColumns = `session_id, trading_mode, status, started_at, ended_at,
	starting_balance, ending_balance, total_pnl, roi_pct,
	total_trades, winning_trades, losing_trades, failed_trades, win_rate_pct,
	strategies_used, strategy_performance, config_snapshot, notes`

// ListSessions returns archived sessions for a scope, most recently ended
// first, sessions without an end time last. An empty statusFilter matches
// every status. The limit defaults to 50 and caps at 200.
func (h *History) ListSessions(ctx context.Context, scope, statusFilter string, limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	} else if limit > 200 {
		limit = 200
	}

	// CASE ordering emulates NULLS LAST portably across postgres and sqlite.
	query := `SELECT ` + sessionColumns + ` FROM simulation_sessions
		WHERE trading_mode = $1 AND ($2 = '' OR status = $3)
		ORDER BY CASE WHEN ended_at IS NULL THEN 1 ELSE 0 END, ended_at DESC
		LIMIT $4`

	rows, err := h.store.Pool().Query(ctx, query, scope, statusFilter, statusFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.SessionRecord, 0)
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return sessions, nil
}

// GetSession loads one archived session with its trades and a freshly
// recomputed strategy breakdown.
func (h *History) GetSession(ctx context.Context, sessionID string) (*SessionDetail, error) {
	query := `SELECT ` + sessionColumns + ` FROM simulation_sessions WHERE session_id = $1`
	row := h.store.Pool().QueryRow(ctx, query, sessionID)

	rec, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	trades, err := h.sessionTrades(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &SessionDetail{
		Session:           rec,
		Trades:            trades,
		StrategyBreakdown: metrics.ByStrategyHistory(trades),
	}, nil
}

func (h *History) sessionTrades(ctx context.Context, sessionID string) ([]models.HistoryTrade, error) {
	query := `SELECT id, session_id, strategy, outcome, position_size_usd, actual_profit_usd,
		platform, market_title, created_at
		FROM session_trades WHERE session_id = $1 ORDER BY created_at ASC`

	rows, err := h.store.Pool().Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session trades: %w", err)
	}
	defer rows.Close()

	trades := make([]models.HistoryTrade, 0)
	for rows.Next() {
		var t models.HistoryTrade
		var profit sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Strategy, &t.Outcome, &t.PositionSizeUsd, &profit,
			&t.Platform, &t.MarketTitle, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session trade: %w", err)
		}
		if profit.Valid {
			d, err := decimal.NewFromString(profit.String)
			if err != nil {
				return nil, fmt.Errorf("invalid profit value for archived trade %s: %w", t.ID, err)
			}
			t.ActualProfitUsd = &d
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session trades: %w", err)
	}
	return trades, nil
}

// scanner is the shared Scan shape of database.Row and database.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (models.SessionRecord, error) {
	var rec models.SessionRecord
	var endedAt sql.NullTime
	var strategies, performance string
	var configSnapshot, notes sql.NullString

	err := sc.Scan(
		&rec.SessionID, &rec.TradingMode, &rec.Status, &rec.StartedAt, &endedAt,
		&rec.StartingBalance, &rec.EndingBalance, &rec.TotalPnl, &rec.RoiPct,
		&rec.TotalTrades, &rec.WinningTrades, &rec.LosingTrades, &rec.FailedTrades, &rec.WinRatePct,
		&strategies, &performance, &configSnapshot, &notes,
	)
	if err != nil {
		return rec, err
	}

	if endedAt.Valid {
		t := endedAt.Time.UTC()
		rec.EndedAt = &t
	}
	if err := json.Unmarshal([]byte(strategies), &rec.StrategiesUsed); err != nil {
		return rec, fmt.Errorf("invalid strategies_used for session %s: %w", rec.SessionID, err)
	}
	if err := json.Unmarshal([]byte(performance), &rec.StrategyPerformance); err != nil {
		return rec, fmt.Errorf("invalid strategy_performance for session %s: %w", rec.SessionID, err)
	}
	if configSnapshot.Valid {
		rec.ConfigSnapshot = json.RawMessage(configSnapshot.String)
	}
	if notes.Valid {
		rec.Notes = notes.String
	}
	rec.StartedAt = rec.StartedAt.UTC()

	return rec, nil
}
