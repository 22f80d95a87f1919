package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatescalp/internal/budget"
	"gatescalp/internal/exchange/gate"
	"gatescalp/internal/state"
)

type fakeBalances struct{ available decimal.Decimal }

func (f fakeBalances) GetBalance(ctx context.Context, currency string) (*gate.Balance, error) {
	return &gate.Balance{Currency: currency, Available: f.available}, nil
}

// fakeWorkerScript writes a shell script that ignores every CLI flag
// the manager passes it and just runs body, standing in for a real
// gatescalp --worker-mode subprocess in tests.
func fakeWorkerScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	content := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func newTestManager(t *testing.T, binary string) *Manager {
	t.Helper()
	st, err := state.New(filepath.Join(t.TempDir(), "shared_state.json"))
	require.NoError(t, err)
	coord := budget.New(fakeBalances{available: decimal.NewFromInt(1000)}, "USDT")
	return New(binary, st, coord, nil)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStartBotSpawnsWorkerAndRecordsStatus(t *testing.T) {
	m := newTestManager(t, fakeWorkerScript(t, "exit 0"))

	ok, err := m.StartBot(context.Background(), "BTC_USDT", decimal.NewFromInt(100), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, ok)

	waitUntil(t, 2*time.Second, func() bool {
		bots, _, err := m.StatusSummary()
		return err == nil && bots["BTC_USDT"].Status == "STOPPED"
	})
	assert.True(t, m.budgets.Allocated("BTC_USDT").IsZero(), "budget must be released once the worker exits")
}

func TestStartBotRefusesDoubleStartWhileRunning(t *testing.T) {
	m := newTestManager(t, fakeWorkerScript(t, "sleep 5"))

	ok, err := m.StartBot(context.Background(), "ETH_USDT", decimal.NewFromInt(50), decimal.NewFromInt(2))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.StartBot(context.Background(), "ETH_USDT", decimal.NewFromInt(50), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.False(t, ok, "a second start for a pair already running must be refused")

	m.StopBot("ETH_USDT")
}

func TestStartBotDeniedWhenBudgetInsufficient(t *testing.T) {
	st, err := state.New(filepath.Join(t.TempDir(), "shared_state.json"))
	require.NoError(t, err)
	coord := budget.New(fakeBalances{available: decimal.NewFromInt(2)}, "USDT")
	m := New(fakeWorkerScript(t, "sleep 5"), st, coord, nil)

	ok, err := m.StartBot(context.Background(), "SOL_USDT", decimal.NewFromInt(100), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStopBotTerminatesRunningWorkerAndFreesBudget(t *testing.T) {
	m := newTestManager(t, fakeWorkerScript(t, "sleep 30"))

	ok, err := m.StartBot(context.Background(), "XRP_USDT", decimal.NewFromInt(50), decimal.NewFromInt(2))
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, m.StopBot("XRP_USDT"))

	waitUntil(t, 2*time.Second, func() bool {
		bots, _, err := m.StatusSummary()
		if err != nil {
			return false
		}
		status := bots["XRP_USDT"].Status
		return status == "STOPPED" || status == "ERROR"
	})
	assert.True(t, m.budgets.Allocated("XRP_USDT").IsZero())
}

func TestStopBotReturnsFalseForUnknownPair(t *testing.T) {
	m := newTestManager(t, fakeWorkerScript(t, "exit 0"))
	assert.False(t, m.StopBot("DOGE_USDT"))
}
