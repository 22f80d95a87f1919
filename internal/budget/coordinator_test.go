package budget

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatescalp/internal/exchange/gate"
)

type fakeBalances struct {
	available decimal.Decimal
	locked    decimal.Decimal
}

func (f fakeBalances) GetBalance(ctx context.Context, currency string) (*gate.Balance, error) {
	return &gate.Balance{Currency: currency, Available: f.available, Locked: f.locked}, nil
}

func TestAllocateGrantsFullRequestWhenAvailable(t *testing.T) {
	c := New(fakeBalances{available: decimal.NewFromInt(100)}, "USDT")

	ok, granted, err := c.Allocate(context.Background(), "BTC_USDT", decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, granted.Equal(decimal.NewFromInt(40)))
}

func TestAllocatePartialWhenRequestExceedsAvailable(t *testing.T) {
	c := New(fakeBalances{available: decimal.NewFromInt(50)}, "USDT")

	ok, granted, err := c.Allocate(context.Background(), "ETH_USDT", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, granted.Equal(decimal.NewFromInt(45)), "expected 90%% of the 50 available, got %s", granted)
}

func TestAllocateFailsBelowMinimumTradeable(t *testing.T) {
	c := New(fakeBalances{available: decimal.NewFromInt(5)}, "USDT")

	ok, granted, err := c.Allocate(context.Background(), "SOL_USDT", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, granted.IsZero())
}

func TestAllocateAccountsForExistingAllocationsAcrossPairs(t *testing.T) {
	c := New(fakeBalances{available: decimal.NewFromInt(100)}, "USDT")

	ok, granted, err := c.Allocate(context.Background(), "BTC_USDT", decimal.NewFromInt(60))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, granted.Equal(decimal.NewFromInt(60)))

	ok, granted, err = c.Allocate(context.Background(), "ETH_USDT", decimal.NewFromInt(60))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, granted.Equal(decimal.NewFromInt(36)), "remaining 40 available, 90%% = 36")
}

func TestDeallocateFreesBudgetForNextAllocation(t *testing.T) {
	c := New(fakeBalances{available: decimal.NewFromInt(100)}, "USDT")

	_, _, err := c.Allocate(context.Background(), "BTC_USDT", decimal.NewFromInt(80))
	require.NoError(t, err)

	c.Deallocate("BTC_USDT")

	ok, granted, err := c.Allocate(context.Background(), "ETH_USDT", decimal.NewFromInt(80))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, granted.Equal(decimal.NewFromInt(80)))
}
