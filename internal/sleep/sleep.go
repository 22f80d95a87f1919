// Package sleep implements the SafeSleepManager: every wait in the
// engine goes through here so no loop above it can busy-spin past a
// total-wait ceiling. Grounded on original_source/safe_sleep_manager.py.
package sleep

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Context selects the sanitization ceiling and adaptive formula applied
// to a sleep request.
type Context string

const (
	ContextAPIRetry      Context = "api_retry"
	ContextTradingCycle  Context = "trading_cycle"
	ContextErrorRecovery Context = "error_recovery"
	ContextCircuitBreak  Context = "circuit_breaker"
	ContextDataPolling   Context = "data_polling"
	ContextBalanceCheck  Context = "balance_check"
)

// Limits bounds every sleep this manager performs.
type Limits struct {
	MinSleep     time.Duration
	MaxSleep     time.Duration
	MaxTotalWait time.Duration
}

// DefaultTradingLimits matches the reference trading-loop manager.
func DefaultTradingLimits() Limits {
	return Limits{MinSleep: 100 * time.Millisecond, MaxSleep: 30 * time.Second, MaxTotalWait: time.Hour}
}

// DefaultAPILimits matches the reference API-retry manager.
func DefaultAPILimits() Limits {
	return Limits{MinSleep: 200 * time.Millisecond, MaxSleep: 300 * time.Second, MaxTotalWait: time.Hour}
}

// Manager is the safe-sleep session: it tracks cumulative wait time and
// refuses to sleep past MaxTotalWait.
type Manager struct {
	limits Limits

	mu        sync.Mutex
	totalWait time.Duration
	sessionAt time.Time
	count     int
}

func New(limits Limits) *Manager {
	return &Manager{limits: limits, sessionAt: time.Now()}
}

// Sleep blocks for a sanitized, optionally jittered duration, honoring
// ctx cancellation. It returns false without sleeping if the request
// would exceed the session's total-wait budget.
func (m *Manager) Sleep(ctx context.Context, duration time.Duration, sctx Context, jitter bool) bool {
	d := m.sanitize(duration, sctx)

	m.mu.Lock()
	if m.totalWait+d > m.limits.MaxTotalWait {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	if jitter && sctx != ContextCircuitBreak {
		factor := 0.9 + rand.Float64()*0.2 // ±10%
		d = time.Duration(float64(d) * factor)
		if d < m.limits.MinSleep {
			d = m.limits.MinSleep
		}
	}

	start := time.Now()
	select {
	case <-ctx.Done():
		m.record(time.Since(start))
		return false
	case <-time.After(d):
	}
	m.record(time.Since(start))
	return true
}

// AdaptiveSleep scales base by a context-specific formula before
// sleeping.
func (m *Manager) AdaptiveSleep(ctx context.Context, base time.Duration, failureCount int, sctx Context) bool {
	var d time.Duration
	switch sctx {
	case ContextAPIRetry:
		capped := failureCount
		if capped > 5 {
			capped = 5
		}
		d = base * time.Duration(1<<uint(capped))
	case ContextErrorRecovery:
		d = time.Duration(float64(base) * (1 + float64(failureCount)*0.5))
	case ContextDataPolling:
		d = time.Duration(float64(base) * 2.0)
	default:
		d = base
	}
	return m.Sleep(ctx, d, sctx, true)
}

// ConditionalSleep sleeps in short increments while predicate() holds,
// bounded by maxWait and a hard iteration cap so an unbounded predicate
// cannot trap it.
func (m *Manager) ConditionalSleep(ctx context.Context, duration time.Duration, predicate func() bool, maxWait time.Duration) bool {
	if predicate == nil {
		return m.Sleep(ctx, duration, ContextTradingCycle, true)
	}

	start := time.Now()
	step := duration
	if step < m.limits.MinSleep {
		step = m.limits.MinSleep
	}
	maxIterations := int(maxWait/step) + 1

	for i := 0; predicate() && i < maxIterations; i++ {
		elapsed := time.Since(start)
		if elapsed >= maxWait {
			return false
		}
		remaining := maxWait - elapsed
		iterStep := step
		if iterStep > remaining {
			iterStep = remaining
		}
		if !m.Sleep(ctx, iterStep, ContextTradingCycle, false) {
			return false
		}
	}
	return !predicate()
}

// CircuitBreakerSleep waits out a circuit-breaker cooldown with
// exponential backoff: 10s * 1.5^failures, capped at maxDelay.
func (m *Manager) CircuitBreakerSleep(ctx context.Context, failureCount int, maxDelay time.Duration) bool {
	base := 10 * time.Second
	mult := 1.0
	for i := 0; i < failureCount; i++ {
		mult *= 1.5
	}
	d := time.Duration(float64(base) * mult)
	if d > maxDelay {
		d = maxDelay
	}
	return m.Sleep(ctx, d, ContextCircuitBreak, true)
}

// RateLimitSleep waits out a 429, preferring the server's Retry-After
// hint (scaled by a 20% safety margin) and otherwise defaulting to 60s.
func (m *Manager) RateLimitSleep(ctx context.Context, retryAfterSeconds float64) bool {
	var d time.Duration
	if retryAfterSeconds > 0 {
		d = time.Duration(retryAfterSeconds * 1.2 * float64(time.Second))
	} else {
		d = 60 * time.Second
	}
	return m.Sleep(ctx, d, ContextAPIRetry, false)
}

func (m *Manager) sanitize(duration time.Duration, sctx Context) time.Duration {
	if duration <= 0 {
		return m.limits.MinSleep
	}

	var ceiling time.Duration
	switch sctx {
	case ContextCircuitBreak:
		ceiling = 600 * time.Second
	case ContextAPIRetry:
		ceiling = m.limits.MaxSleep
	default:
		ceiling = m.limits.MaxSleep
		if ceiling > 30*time.Second {
			ceiling = 30 * time.Second
		}
	}

	d := duration
	if d > ceiling {
		d = ceiling
	}
	if d < m.limits.MinSleep {
		d = m.limits.MinSleep
	}
	return d
}

func (m *Manager) record(actual time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalWait += actual
	m.count++
}

// Stats mirrors original_source/safe_sleep_manager.py::get_sleep_stats.
// Neither the engine's status snapshot nor MonitoringBus reads it.
type Stats struct {
	TotalSleep      time.Duration
	SessionDuration time.Duration
	SleepRatio      float64
	SleepCount      int
	RemainingBudget time.Duration
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessionDur := time.Since(m.sessionAt)
	ratio := 0.0
	if sessionDur > 0 {
		ratio = float64(m.totalWait) / float64(sessionDur)
	}
	remaining := m.limits.MaxTotalWait - m.totalWait
	if remaining < 0 {
		remaining = 0
	}
	return Stats{
		TotalSleep:      m.totalWait,
		SessionDuration: sessionDur,
		SleepRatio:      ratio,
		SleepCount:      m.count,
		RemainingBudget: remaining,
	}
}

// Reset clears cumulative sleep bookkeeping for a new session.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalWait = 0
	m.sessionAt = time.Now()
	m.count = 0
}
