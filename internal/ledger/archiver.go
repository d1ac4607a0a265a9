package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arbsim/ledgerd/internal/config"
	"github.com/arbsim/ledgerd/internal/logging"
	"github.com/arbsim/ledgerd/internal/metrics"
	"github.com/arbsim/ledgerd/internal/models"
)

// Archiver closes out a simulation run: it persists an immutable session
// snapshot plus trade copies, then resets the live ledger to a fresh
// starting balance. Archive and Reset are serialized per scope through the
// Locker; read-only callers are never blocked.
type Archiver struct {
	store  *Store
	locker Locker
	cfg    config.LedgerConfig
}

func NewArchiver(store *Store, locker Locker, cfg config.LedgerConfig) *Archiver {
	return &Archiver{store: store, locker: locker, cfg: cfg}
}

// ArchiveResult is the caller-visible outcome of an archive. A non-empty
// CleanupErrors means the session was committed but part of the live-state
// cleanup failed; the operator should run a reset for the scope.
type ArchiveResult struct {
	SessionID       string          `json:"session_id"`
	TradesArchived  int             `json:"trades_archived"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	EndingBalance   decimal.Decimal `json:"ending_balance"`
	TotalPnl        decimal.Decimal `json:"total_pnl"`
	RoiPct          float64         `json:"roi_pct"`
	CleanupErrors   []string        `json:"cleanup_errors,omitempty"`
}

// ResetResult reports what a hard reset destroyed and the reseeded balance.
type ResetResult struct {
	Deleted    ResetCounts     `json:"deleted"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

type ResetCounts struct {
	Trades        int `json:"trades"`
	Opportunities int `json:"opportunities"`
	Positions     int `json:"positions"`
	Stats         int `json:"stats"`
}

// Archive snapshots the live ledger into an immutable session record.
//
// The session row and trade copies are written inside one transaction: a
// failure there aborts before any live data is touched. Cleanup of the live
// tables after the commit is soft-fail; errors are collected into the result
// rather than invalidating the already-committed session.
func (a *Archiver) Archive(ctx context.Context, scope, notes string) (*ArchiveResult, error) {
	release, err := a.locker.Acquire(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer release()

	trades, err := a.store.ListTrades(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, ErrNothingToArchive
	}

	startingBalance, err := a.store.StartingBalance(ctx, scope, a.cfg.StartingBalance())
	if err != nil {
		return nil, err
	}

	snap := metrics.Snapshot(trades, startingBalance)
	byStrategy := metrics.ByStrategy(trades)

	strategies := make([]string, 0, len(byStrategy))
	for tag := range byStrategy {
		strategies = append(strategies, tag)
	}
	sort.Strings(strategies)

	// startedAt comes from the archived trades, not the engine clock; the
	// list is already ordered oldest first.
	startedAt := trades[0].CreatedAt
	endedAt := time.Now().UTC()

	configSnapshot, err := json.Marshal(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot configuration: %w", err)
	}

	record := models.SessionRecord{
		SessionID:           generateSessionID(),
		TradingMode:         scope,
		Status:              models.SessionStatusCompleted,
		StartedAt:           startedAt,
		EndedAt:             &endedAt,
		StartingBalance:     startingBalance,
		EndingBalance:       snap.SimulatedBalance,
		TotalPnl:            snap.TotalPnl,
		RoiPct:              snap.RoiPct,
		TotalTrades:         snap.TotalTrades,
		WinningTrades:       snap.WinningTrades,
		LosingTrades:        snap.LosingTrades,
		FailedTrades:        snap.FailedTrades,
		WinRatePct:          snap.WinRatePct,
		StrategiesUsed:      strategies,
		StrategyPerformance: byStrategy,
		ConfigSnapshot:      configSnapshot,
		Notes:               notes,
	}

	if err := a.persistSession(ctx, record, trades); err != nil {
		return nil, err
	}

	result := &ArchiveResult{
		SessionID:       record.SessionID,
		TradesArchived:  len(trades),
		StartingBalance: startingBalance,
		EndingBalance:   snap.SimulatedBalance,
		TotalPnl:        snap.TotalPnl,
		RoiPct:          snap.RoiPct,
	}

	// The session is committed; from here on failures degrade to a partial
	// success so the caller knows which cleanup to re-run.
	result.CleanupErrors = a.cleanupLiveState(ctx, scope)

	logging.WithFields(logging.Fields{
		"session_id":      record.SessionID,
		"scope":           scope,
		"trades_archived": len(trades),
		"total_pnl":       snap.TotalPnl.String(),
		"cleanup_errors":  len(result.CleanupErrors),
	}).Info("Archived simulation session")

	return result, nil
}

// persistSession writes the session row and history trade copies atomically.
func (a *Archiver) persistSession(ctx context.Context, record models.SessionRecord, trades []models.TradeRecord) error {
	tx, err := a.store.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}

	if err := a.store.InsertSession(ctx, tx, record); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := a.store.CopyTradesToHistory(ctx, tx, record.SessionID, trades); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}
	return nil
}

func (a *Archiver) cleanupLiveState(ctx context.Context, scope string) []string {
	var failures []string
	fail := func(step string, err error) {
		logging.WithError(err).Errorf("Archive cleanup step failed: %s", step)
		failures = append(failures, fmt.Sprintf("%s: %v", step, err))
	}

	if _, err := a.store.DeleteTrades(ctx, scope); err != nil {
		fail("delete live trades", err)
	}
	if _, err := a.store.DeleteOpportunities(ctx, scope); err != nil {
		fail("delete live opportunities", err)
	}
	if _, err := a.store.DeletePositions(ctx, scope); err != nil {
		fail("delete live positions", err)
	}
	// The balance baseline survives an archive; only the session counters are
	// zeroed. A hard reset is what reseeds the baseline.
	if err := a.store.ResetSessionCounters(ctx, scope); err != nil {
		fail("reset session counters", err)
	}

	return failures
}

// Reset discards the current simulation run without archiving anything.
// Pre-deletion counts are captured for the response before any row is
// removed.
func (a *Archiver) Reset(ctx context.Context, scope string) (*ResetResult, error) {
	release, err := a.locker.Acquire(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer release()

	var counts ResetCounts
	if counts.Trades, err = a.store.CountTrades(ctx, scope); err != nil {
		return nil, err
	}
	if counts.Opportunities, err = a.store.CountOpportunities(ctx, scope); err != nil {
		return nil, err
	}
	if counts.Positions, err = a.store.CountPositions(ctx, scope); err != nil {
		return nil, err
	}
	if counts.Stats, err = a.store.CountStatsRows(ctx, scope); err != nil {
		return nil, err
	}

	if _, err := a.store.DeleteTrades(ctx, scope); err != nil {
		return nil, err
	}
	if _, err := a.store.DeleteOpportunities(ctx, scope); err != nil {
		return nil, err
	}
	if _, err := a.store.DeletePositions(ctx, scope); err != nil {
		return nil, err
	}

	newBalance := a.cfg.StartingBalance()
	if err := a.store.SeedStats(ctx, scope, newBalance); err != nil {
		return nil, err
	}

	logging.WithFields(logging.Fields{
		"scope":       scope,
		"trades":      counts.Trades,
		"new_balance": newBalance.String(),
	}).Info("Reset simulation ledger")

	return &ResetResult{Deleted: counts, NewBalance: newBalance}, nil
}

func generateSessionID() string {
	return fmt.Sprintf("sess_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}
