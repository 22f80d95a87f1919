package state

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetBotStatusRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared_state.json")
	s, err := New(path)
	require.NoError(t, err)

	err = s.SetBotStatus(BotStatus{Pair: "BTC_USDT", Status: "RUNNING", AllocatedBudget: decimal.NewFromInt(50)})
	require.NoError(t, err)

	got, ok, err := s.GetBotStatus("BTC_USDT")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "RUNNING", got.Status)
	assert.True(t, got.AllocatedBudget.Equal(decimal.NewFromInt(50)))
}

func TestGetBotStatusMissingReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared_state.json")
	s, err := New(path)
	require.NoError(t, err)

	_, ok, err := s.GetBotStatus("ETH_USDT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBudgetInfoRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared_state.json")
	s, err := New(path)
	require.NoError(t, err)

	info := BudgetInfo{TotalUSDT: decimal.NewFromInt(100), AllocatedUSDT: decimal.NewFromInt(40), AvailableUSDT: decimal.NewFromInt(60)}
	require.NoError(t, s.SetBudgetInfo(info))

	got, err := s.GetBudgetInfo()
	require.NoError(t, err)
	assert.True(t, got.AvailableUSDT.Equal(decimal.NewFromInt(60)))
}

func TestConcurrentWritesFromSameProcessDontCorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared_state.json")
	s, err := New(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	pairs := []string{"BTC_USDT", "ETH_USDT", "SOL_USDT", "XRP_USDT"}
	for _, pair := range pairs {
		wg.Add(1)
		go func(pair string) {
			defer wg.Done()
			_ = s.SetBotStatus(BotStatus{Pair: pair, Status: "RUNNING"})
		}(pair)
	}
	wg.Wait()

	all, err := s.AllBots()
	require.NoError(t, err)
	assert.Len(t, all, len(pairs))
}

func TestRemoveBotDeletesEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared_state.json")
	s, err := New(path)
	require.NoError(t, err)

	require.NoError(t, s.SetBotStatus(BotStatus{Pair: "BTC_USDT", Status: "STOPPED"}))
	require.NoError(t, s.RemoveBot("BTC_USDT"))

	_, ok, err := s.GetBotStatus("BTC_USDT")
	require.NoError(t, err)
	assert.False(t, ok)
}
