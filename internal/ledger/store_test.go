package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbsim/ledgerd/internal/models"
)

func TestListTrades(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM simulated_trades").WithArgs("paper").
		WillReturnRows(sampleTradeRows())

	trades, err := store.ListTrades(context.Background(), "paper")
	require.NoError(t, err)
	require.Len(t, trades, 3)

	assert.Equal(t, "t1", trades[0].ID)
	assert.Equal(t, models.OutcomeWon, trades[0].Outcome)
	assert.True(t, trades[0].PositionSizeUsd.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, trades[0].ActualProfitUsd)
	assert.True(t, trades[0].ActualProfitUsd.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "kalshi", trades[0].Platform())
	assert.Equal(t, "Fed decision", trades[0].MarketTitle())

	assert.Equal(t, "polymarket", trades[1].Platform())
	assert.Equal(t, "Election market", trades[1].MarketTitle())

	assert.Nil(t, trades[2].ActualProfitUsd, "pending trades carry no profit")
	assert.True(t, trades[2].Profit().IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTrade(t *testing.T) {
	store, mock := newMockStore(t)

	profit := decimal.NewFromFloat(3.75)
	trade := models.TradeRecord{
		ID:              "t9",
		TradingMode:     "paper",
		Strategy:        "kalshi_single",
		Outcome:         models.OutcomeWon,
		PositionSizeUsd: decimal.NewFromInt(25),
		ActualProfitUsd: &profit,
		KalshiTicker:    "KX-GDP-25",
		CreatedAt:       time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO simulated_trades").
		WithArgs("t9", "paper", "kalshi_single", models.OutcomeWon, trade.PositionSizeUsd, "3.75",
			"KX-GDP-25", "", "", "", trade.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertTrade(context.Background(), trade))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleTradeRejectsNonTerminalOutcome(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.SettleTrade(context.Background(), "t1", models.OutcomePending, decimal.Zero)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not terminal")
}

func TestSettleTradeRequiresPendingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE simulated_trades").
		WithArgs(models.OutcomeWon, "4.5", "t1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SettleTrade(context.Background(), "t1", models.OutcomeWon, decimal.NewFromFloat(4.5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not pending")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleTrade(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE simulated_trades").
		WithArgs(models.OutcomeLost, "-2.25", "t4").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SettleTrade(context.Background(), "t4", models.OutcomeLost, decimal.NewFromFloat(-2.25)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartingBalanceFallsBackWithoutStatsRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT starting_balance FROM simulation_stats").WithArgs("paper").
		WillReturnError(pgx.ErrNoRows)

	balance, err := store.StartingBalance(context.Background(), "paper", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartingBalanceReadsStatsRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT starting_balance FROM simulation_stats").WithArgs("paper").
		WillReturnRows(pgxmock.NewRows([]string{"starting_balance"}).AddRow("750.50"))

	balance, err := store.StartingBalance(context.Background(), "paper", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromFloat(750.5)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartingBalanceRejectsGarbageValue(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT starting_balance FROM simulation_stats").WithArgs("paper").
		WillReturnRows(pgxmock.NewRows([]string{"starting_balance"}).AddRow("not-a-number"))

	_, err := store.StartingBalance(context.Background(), "paper", decimal.NewFromInt(1000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid starting balance")
}

func TestResetSessionCounters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE simulation_stats").WithArgs(pgxmock.AnyArg(), "paper").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.ResetSessionCounters(context.Background(), "paper"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedStats(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM simulation_stats").WithArgs("paper").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO simulation_stats").WithArgs(anyArgs(3)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SeedStats(context.Background(), "paper", decimal.NewFromInt(1000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
