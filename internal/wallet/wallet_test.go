package wallet

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatescalp/internal/exchange/gate"
)

type fakeReader struct {
	balances map[string]decimal.Decimal
	calls    int
}

func (r *fakeReader) GetBalance(ctx context.Context, currency string) (*gate.Balance, error) {
	r.calls++
	return &gate.Balance{Currency: currency, Available: r.balances[currency]}, nil
}

type alwaysAllow struct{}

func (alwaysAllow) Confirm(string) bool { return true }

func TestAvailableCachesWithinTTL(t *testing.T) {
	r := &fakeReader{balances: map[string]decimal.Decimal{"USDT": decimal.NewFromInt(100)}}
	v := New(r, nil)

	_, err := v.Available(context.Background(), "USDT", false)
	require.NoError(t, err)
	_, err = v.Available(context.Background(), "USDT", false)
	require.NoError(t, err)

	assert.Equal(t, 1, r.calls, "second call within TTL must hit the cache")
}

func TestAvailableForceRefreshBypassesCache(t *testing.T) {
	r := &fakeReader{balances: map[string]decimal.Decimal{"USDT": decimal.NewFromInt(100)}}
	v := New(r, nil)

	_, _ = v.Available(context.Background(), "USDT", false)
	_, _ = v.Available(context.Background(), "USDT", true)

	assert.Equal(t, 2, r.calls)
}

func TestSuggestAffordableReturnsRequestedWhenAffordableAboveMinimum(t *testing.T) {
	r := &fakeReader{balances: map[string]decimal.Decimal{"USDT": decimal.NewFromInt(100)}}
	v := New(r, nil)

	got, err := v.SuggestAffordable(context.Background(), "USDT", decimal.NewFromInt(10), "BTC_USDT")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(got))

	_, blocked := v.IsBlocked("BTC_USDT")
	assert.False(t, blocked)
}

func TestSuggestAffordableBlocksWhenUnaffordableAndConfirmerDenies(t *testing.T) {
	r := &fakeReader{balances: map[string]decimal.Decimal{"USDT": decimal.Zero}}
	v := New(r, nil)

	got, err := v.SuggestAffordable(context.Background(), "USDT", decimal.NewFromInt(10), "BTC_USDT")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	reason, blocked := v.IsBlocked("BTC_USDT")
	assert.True(t, blocked)
	assert.NotEmpty(t, reason)
}

func TestSuggestAffordableUpscalesSubMinimumWhenConfirmerAllows(t *testing.T) {
	r := &fakeReader{balances: map[string]decimal.Decimal{"USDT": decimal.NewFromInt(100)}}
	v := New(r, alwaysAllow{})

	got, err := v.SuggestAffordable(context.Background(), "USDT", decimal.NewFromFloat(0.5), "BTC_USDT")
	require.NoError(t, err)
	assert.True(t, got.GreaterThan(decimal.NewFromFloat(0.5)), "must upscale to at least the minimum notional")
}

func TestBlockAndUnblockAreLastWriterWins(t *testing.T) {
	v := New(&fakeReader{}, nil)
	v.Block("BTC_USDT", "reason one")
	v.Block("BTC_USDT", "reason two")

	reason, blocked := v.IsBlocked("BTC_USDT")
	require.True(t, blocked)
	assert.Equal(t, "reason two", reason)

	v.Unblock("BTC_USDT")
	_, blocked = v.IsBlocked("BTC_USDT")
	assert.False(t, blocked)
}
