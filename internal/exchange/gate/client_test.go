package gate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatescalp/internal/ratelimit"
	"gatescalp/internal/retry"
	"gatescalp/internal/sleep"
	"gatescalp/internal/xerrors"
)

func newFastRetryManager() *retry.Manager {
	cfg := retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, ExponentialBase: 1, BackoffMultiplier: 1, Jitter: false}
	return retry.NewManager(cfg, func(err error) xerrors.Kind { return xerrors.KindOf(err) })
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)

	limiter := ratelimit.NewEnforcer(ratelimit.StrategySlidingWindow, ratelimit.VIP0Quotas())
	sleeper := sleep.New(sleep.DefaultAPILimits())

	c := New(Config{APIKey: "key", SecretKey: "secret", BaseURL: srv.URL, Timeout: 2 * time.Second}, limiter, sleeper)
	return c, srv
}

func TestGetTickerParsesFirstResult(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/spot/tickers", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("SIGN"))
		_ = json.NewEncoder(w).Encode([]Ticker{{CurrencyPair: "BTC_USDT", Last: decimal.NewFromFloat(50000.5)}})
	})
	defer srv.Close()

	ticker, err := c.GetTicker(t.Context(), "BTC_USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC_USDT", ticker.CurrencyPair)
	assert.True(t, decimal.NewFromFloat(50000.5).Equal(ticker.Last))
}

func TestDoRetriesOnServerErrorThenSucceeds(t *testing.T) {
	attempt := 0
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(apiError{Label: "SERVER_ERROR", Message: "boom"})
			return
		}
		_ = json.NewEncoder(w).Encode([]Ticker{{CurrencyPair: "BTC_USDT"}})
	})
	defer srv.Close()
	c.retry = newFastRetryManager()

	_, err := c.GetTicker(t.Context(), "BTC_USDT")
	require.NoError(t, err)
	assert.Equal(t, 2, attempt)
}

func TestPlaceSpotOrderInvalidatesBalanceCache(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/spot/accounts":
			_ = json.NewEncoder(w).Encode([]Balance{{Currency: "USDT", Available: decimal.NewFromInt(100)}})
		case r.Method == http.MethodPost && r.URL.Path == "/spot/orders":
			_ = json.NewEncoder(w).Encode(Order{ID: "1", Status: "open"})
		}
	})
	defer srv.Close()

	_, err := c.GetBalance(t.Context(), "USDT")
	require.NoError(t, err)

	_, err = c.PlaceSpotOrder(t.Context(), "BTC_USDT", "buy", "market", decimal.NewFromInt(1), decimal.Zero)
	require.NoError(t, err)

	_, ok := c.cache.Get("balances", time.Hour)
	assert.False(t, ok, "placing an order must invalidate the cached balance snapshot")
}

func TestClassifyHTTPErrorMapsRateLimitAndRetryAfter(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": {"2"}}}
	body, _ := json.Marshal(apiError{Label: "TOO_MANY_REQUESTS", Message: "slow down"})

	err := classifyHTTPError(resp, body)
	require.Error(t, err)
	assert.Equal(t, xerrors.KindRateLimit, xerrors.KindOf(err))
	var xe *xerrors.Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, 2.0, xe.RetryAfter)
}

func TestBestBookPriceUsesAskForBuySideAndBidForSellSide(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(OrderBook{
			Asks: [][2]decimal.Decimal{{decimal.NewFromInt(101), decimal.NewFromInt(1)}},
			Bids: [][2]decimal.Decimal{{decimal.NewFromInt(99), decimal.NewFromInt(1)}},
		})
	})
	defer srv.Close()

	ask, err := c.BestBookPrice(t.Context(), "BTC_USDT", "buy")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(101).Equal(ask))

	bid, err := c.BestBookPrice(t.Context(), "BTC_USDT", "sell")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(99).Equal(bid))
}
