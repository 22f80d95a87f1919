package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeMaxAppliesBurstAllowance(t *testing.T) {
	cfg := Config{MaxRequests: 10, Window: time.Second, BurstAllowance: 0.8}
	assert.Equal(t, 8, cfg.SafeMax())
}

func TestSlidingWindowBoundsRequestsWithinWindow(t *testing.T) {
	cfg := Config{MaxRequests: 10, Window: 50 * time.Millisecond, BurstAllowance: 0.8}
	l := NewSlidingWindowLimiter(cfg)

	allowed := 0
	for i := 0; i < 40; i++ {
		if l.CanMakeRequest() {
			l.RecordRequest()
			allowed++
		}
	}
	assert.LessOrEqual(t, allowed, cfg.SafeMax(), "sliding window must never admit more than safeMax within one window")
}

func TestSlidingWindowTimeUntilNextRequestAfterSaturation(t *testing.T) {
	cfg := Config{MaxRequests: 2, Window: 30 * time.Millisecond, BurstAllowance: 1.0}
	l := NewSlidingWindowLimiter(cfg)
	l.RecordRequest()
	l.RecordRequest()

	assert.False(t, l.CanMakeRequest())
	wait := l.TimeUntilNextRequest()
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, cfg.Window)
}

func TestTokenBucketBoundsBurst(t *testing.T) {
	cfg := Config{MaxRequests: 10, Window: time.Second, BurstAllowance: 0.8}
	l := NewTokenBucketLimiter(cfg)

	allowed := 0
	for i := 0; i < 40; i++ {
		if l.CanMakeRequest() {
			l.RecordRequest()
			allowed++
		}
	}
	assert.LessOrEqual(t, allowed, cfg.SafeMax())
}

func TestEnforcerUnknownCategoryAllows(t *testing.T) {
	e := NewEnforcer(StrategySlidingWindow, VIP0Quotas())
	require.True(t, e.CanMakeRequest(Category("unknown-category")))
}

func TestClassifierLiteralAndPrefixRules(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		method, path string
		want         Category
	}{
		{"GET", "/spot/tickers", CategoryPublic},
		{"POST", "/spot/orders", CategorySpotOrderPlace},
		{"PUT", "/spot/orders/123", CategorySpotOrderPlace},
		{"DELETE", "/spot/orders/123", CategorySpotOrderCancel},
		{"GET", "/spot/orders/123", CategorySpotOther},
		{"GET", "/spot/accounts", CategorySpotOther},
		{"POST", "/withdrawals", CategoryWalletWithdraw},
		{"GET", "/wallet/deposits", CategoryWalletOther},
		{"POST", "/futures/usdt/orders", CategoryFuturesOrder},
		{"DELETE", "/futures/usdt/orders/1", CategoryFuturesCancel},
		{"GET", "/futures/usdt/positions", CategoryFuturesOther},
		{"GET", "/something/unmapped", CategoryPublic},
	}

	for _, tc := range cases {
		got := c.Classify(tc.method, tc.path)
		assert.Equal(t, tc.want, got, "%s %s", tc.method, tc.path)

		// Idempotence law: same (path, method) always maps to the same category.
		again := c.Classify(tc.method, tc.path)
		assert.Equal(t, got, again)
	}
}
