package sleep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleepRefusesPastTotalBudget(t *testing.T) {
	m := New(Limits{MinSleep: time.Millisecond, MaxSleep: time.Second, MaxTotalWait: 10 * time.Millisecond})
	ok := m.Sleep(context.Background(), 5*time.Millisecond, ContextTradingCycle, false)
	require.True(t, ok)
	ok = m.Sleep(context.Background(), 20*time.Millisecond, ContextTradingCycle, false)
	assert.False(t, ok, "second sleep should be refused once it would exceed the total-wait budget")
}

func TestSanitizeClampsToContextCeiling(t *testing.T) {
	m := New(Limits{MinSleep: time.Millisecond, MaxSleep: time.Minute, MaxTotalWait: time.Hour})
	d := m.sanitize(time.Hour, ContextTradingCycle)
	assert.LessOrEqual(t, d, 30*time.Second, "trading-cycle ceiling is min(maxSleep, 30s)")

	d = m.sanitize(time.Hour, ContextCircuitBreak)
	assert.LessOrEqual(t, d, 600*time.Second, "circuit-breaker ceiling is 600s")
}

func TestConditionalSleepStopsWhenPredicateClears(t *testing.T) {
	m := New(DefaultTradingLimits())
	calls := 0
	predicate := func() bool {
		calls++
		return calls < 3
	}
	ok := m.ConditionalSleep(context.Background(), time.Millisecond, predicate, time.Second)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestConditionalSleepTimesOutOnUnboundedPredicate(t *testing.T) {
	m := New(Limits{MinSleep: time.Millisecond, MaxSleep: time.Second, MaxTotalWait: time.Hour})
	ok := m.ConditionalSleep(context.Background(), time.Millisecond, func() bool { return true }, 5*time.Millisecond)
	assert.False(t, ok, "an always-true predicate must not trap the loop")
}

func TestRateLimitSleepPrefersRetryAfterWithMargin(t *testing.T) {
	m := New(DefaultAPILimits())
	d := m.sanitize(time.Duration(10*1.2*float64(time.Second)), ContextAPIRetry)
	assert.Equal(t, 12*time.Second, d)
}

func TestCircuitBreakerSleepGrowsExponentially(t *testing.T) {
	base := 10 * time.Second
	mult := 1.0
	for i := 0; i < 3; i++ {
		mult *= 1.5
	}
	got := time.Duration(float64(base) * mult)
	assert.InDelta(t, float64(33750*time.Millisecond), float64(got), float64(time.Millisecond))
}

func TestStatsReflectCumulativeSleep(t *testing.T) {
	m := New(Limits{MinSleep: time.Millisecond, MaxSleep: time.Second, MaxTotalWait: time.Second})
	m.Sleep(context.Background(), 5*time.Millisecond, ContextTradingCycle, false)
	st := m.Stats()
	assert.Equal(t, 1, st.SleepCount)
	assert.Greater(t, st.TotalSleep, time.Duration(0))
	assert.Less(t, st.RemainingBudget, time.Second)
}
