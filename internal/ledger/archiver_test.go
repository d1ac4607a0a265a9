package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbsim/ledgerd/internal/config"
	"github.com/arbsim/ledgerd/internal/database"
	"github.com/arbsim/ledgerd/internal/models"
)

var tradeCols = []string{
	"id", "trading_mode", "strategy", "outcome", "position_size_usd", "actual_profit_usd",
	"kalshi_ticker", "kalshi_market_title", "polymarket_condition_id", "polymarket_market_title", "created_at",
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(database.NewMockDBPool(mock)), mock
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		DefaultMode:          "paper",
		StartingBalances:     map[string]float64{"kalshi": 60, "polymarket": 40},
		MaxPositionSizeUsd:   100,
		MaxTotalExposureUsd:  400,
		MinProfitThresholdPc: 2,
	}
}

func sampleTradeRows() *pgxmock.Rows {
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(tradeCols).
		AddRow("t1", "paper", "kalshi_single", models.OutcomeWon, "20", "10",
			"KX-FED-25", "Fed decision", "", "", base).
		AddRow("t2", "paper", "cross_platform", models.OutcomeLost, "20", "-5",
			"", "", "0xabc", "Election market", base.Add(time.Minute)).
		AddRow("t3", "paper", "kalshi_single", models.OutcomePending, "20", nil,
			"KX-CPI-25", "CPI print", "", "", base.Add(2*time.Minute))
}

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func expectCleanup(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("DELETE FROM simulated_trades").WithArgs("paper").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("DELETE FROM arbitrage_opportunities").WithArgs("paper").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM simulated_positions").WithArgs("paper").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("UPDATE simulation_stats").WithArgs(pgxmock.AnyArg(), "paper").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

func TestArchiveHappyPath(t *testing.T) {
	store, mock := newMockStore(t)
	archiver := NewArchiver(store, NewLocker(nil), testLedgerConfig())

	mock.ExpectQuery("FROM simulated_trades").WithArgs("paper").
		WillReturnRows(sampleTradeRows())
	mock.ExpectQuery("SELECT starting_balance FROM simulation_stats").WithArgs("paper").
		WillReturnRows(pgxmock.NewRows([]string{"starting_balance"}).AddRow("100"))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO simulation_sessions").WithArgs(anyArgs(18)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO session_trades").WithArgs(anyArgs(9)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()
	expectCleanup(mock)

	result, err := archiver.Archive(context.Background(), "paper", "end of week run")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, strings.HasPrefix(result.SessionID, "sess_"), "session id: %s", result.SessionID)
	assert.Equal(t, 3, result.TradesArchived)
	assert.True(t, result.StartingBalance.Equal(decimal.NewFromInt(100)))
	// Balance conservation: 100 + 10 - 5, the pending trade contributes nothing.
	assert.True(t, result.EndingBalance.Equal(decimal.NewFromInt(105)), "ending: %s", result.EndingBalance)
	assert.True(t, result.TotalPnl.Equal(decimal.NewFromInt(5)))
	assert.InDelta(t, 5.0, result.RoiPct, 0.001)
	assert.Empty(t, result.CleanupErrors)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveEmptyLedgerMutatesNothing(t *testing.T) {
	store, mock := newMockStore(t)
	archiver := NewArchiver(store, NewLocker(nil), testLedgerConfig())

	mock.ExpectQuery("FROM simulated_trades").WithArgs("paper").
		WillReturnRows(pgxmock.NewRows(tradeCols))

	result, err := archiver.Archive(context.Background(), "paper", "")
	assert.ErrorIs(t, err, ErrNothingToArchive)
	assert.Nil(t, result)

	// No session insert, no deletes: the only statement issued was the read.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveSessionWriteFailureAbortsBeforeCleanup(t *testing.T) {
	store, mock := newMockStore(t)
	archiver := NewArchiver(store, NewLocker(nil), testLedgerConfig())

	mock.ExpectQuery("FROM simulated_trades").WithArgs("paper").
		WillReturnRows(sampleTradeRows())
	mock.ExpectQuery("SELECT starting_balance FROM simulation_stats").WithArgs("paper").
		WillReturnRows(pgxmock.NewRows([]string{"starting_balance"}).AddRow("100"))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO simulation_sessions").WithArgs(anyArgs(18)...).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	result, err := archiver.Archive(context.Background(), "paper", "")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "disk full")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveCleanupFailureIsPartialSuccess(t *testing.T) {
	store, mock := newMockStore(t)
	archiver := NewArchiver(store, NewLocker(nil), testLedgerConfig())

	mock.ExpectQuery("FROM simulated_trades").WithArgs("paper").
		WillReturnRows(sampleTradeRows())
	mock.ExpectQuery("SELECT starting_balance FROM simulation_stats").WithArgs("paper").
		WillReturnRows(pgxmock.NewRows([]string{"starting_balance"}).AddRow("100"))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO simulation_sessions").WithArgs(anyArgs(18)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO session_trades").WithArgs(anyArgs(9)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	mock.ExpectExec("DELETE FROM simulated_trades").WithArgs("paper").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectExec("DELETE FROM arbitrage_opportunities").WithArgs("paper").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM simulated_positions").WithArgs("paper").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("UPDATE simulation_stats").WithArgs(pgxmock.AnyArg(), "paper").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	result, err := archiver.Archive(context.Background(), "paper", "")
	require.NoError(t, err, "a committed session survives cleanup failures")
	require.NotNil(t, result)
	require.Len(t, result.CleanupErrors, 1)
	assert.Contains(t, result.CleanupErrors[0], "delete live trades")
	assert.Contains(t, result.CleanupErrors[0], "connection reset")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveRejectedWhileScopeLocked(t *testing.T) {
	store, _ := newMockStore(t)
	locker := NewLocker(nil)
	archiver := NewArchiver(store, locker, testLedgerConfig())

	release, err := locker.Acquire(context.Background(), "paper")
	require.NoError(t, err)
	defer release()

	_, err = archiver.Archive(context.Background(), "paper", "")
	assert.ErrorIs(t, err, ErrLocked)

	// A different scope is unaffected by the held lock.
	otherRelease, err := locker.Acquire(context.Background(), "live")
	require.NoError(t, err)
	otherRelease()
}

func TestReset(t *testing.T) {
	store, mock := newMockStore(t)
	archiver := NewArchiver(store, NewLocker(nil), testLedgerConfig())

	mock.ExpectQuery("FROM simulated_trades").WithArgs("paper").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery("FROM arbitrage_opportunities").WithArgs("paper").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(34))
	mock.ExpectQuery("FROM simulated_positions").WithArgs("paper").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("FROM simulation_stats").WithArgs("paper").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectExec("DELETE FROM simulated_trades").WithArgs("paper").
		WillReturnResult(pgxmock.NewResult("DELETE", 12))
	mock.ExpectExec("DELETE FROM arbitrage_opportunities").WithArgs("paper").
		WillReturnResult(pgxmock.NewResult("DELETE", 34))
	mock.ExpectExec("DELETE FROM simulated_positions").WithArgs("paper").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM simulation_stats").WithArgs("paper").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO simulation_stats").WithArgs(anyArgs(3)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result, err := archiver.Reset(context.Background(), "paper")
	require.NoError(t, err)

	assert.Equal(t, ResetCounts{Trades: 12, Opportunities: 34, Positions: 2, Stats: 1}, result.Deleted)
	assert.True(t, result.NewBalance.Equal(decimal.NewFromInt(100)), "new balance: %s", result.NewBalance)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetFailureStopsEarly(t *testing.T) {
	store, mock := newMockStore(t)
	archiver := NewArchiver(store, NewLocker(nil), testLedgerConfig())

	mock.ExpectQuery("FROM simulated_trades").WithArgs("paper").
		WillReturnError(errors.New("timeout"))

	result, err := archiver.Reset(context.Background(), "paper")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSessionIDShape(t *testing.T) {
	id := generateSessionID()
	parts := strings.SplitN(id, "_", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "sess", parts[0])
	assert.Len(t, parts[2], 8)
	assert.NotEqual(t, generateSessionID(), id)
}
