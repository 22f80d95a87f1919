// Package breaker implements the per-exchange CircuitBreaker: a
// closed/open/halfOpen state machine extended from
// market_maker/internal/risk/circuit_breaker.go with the three-state
// behavior and closed-state secondary backoff of
// original_source/api_retry_manager.py::CircuitBreaker.
package breaker

import (
	"sync"
	"time"

	"gatescalp/internal/xerrors"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "halfOpen"
)

// Config tunes the breaker. Defaults: failure threshold 5, cooldown
// 60s; ProductionConfig raises the cooldown to 300s.
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	BackoffMultiplier float64
	MaxBackoff       time.Duration
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		Cooldown:          60 * time.Second,
		BackoffMultiplier: 1.5,
		MaxBackoff:        300 * time.Second,
	}
}

// ProductionConfig widens the cooldown to 300s for live trading.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.Cooldown = 300 * time.Second
	return cfg
}

// CircuitBreaker gates calls by recent failure history, with a
// secondary consecutive-failure backoff applied while still closed so
// a caller that strings together failures without ever reaching the
// trip threshold still slows down.
type CircuitBreaker struct {
	cfg Config

	mu                 sync.Mutex
	state              State
	failureCount       int
	consecutiveFailures int
	lastFailureAt      time.Time
	openedAt           time.Time
	byKind             map[xerrors.Kind]int
}

func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:    cfg,
		state:  StateClosed,
		byKind: make(map[xerrors.Kind]int),
	}
}

// RecordFailure tallies a failure by kind and trips the breaker once
// FailureThreshold consecutive failures have accumulated.
func (cb *CircuitBreaker) RecordFailure(kind xerrors.Kind) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.consecutiveFailures++
	cb.lastFailureAt = time.Now()
	cb.byKind[kind]++

	if cb.state == StateHalfOpen {
		cb.trip()
		return
	}
	if cb.state == StateClosed && cb.consecutiveFailures >= cb.cfg.FailureThreshold {
		cb.trip()
	}
}

// RecordSuccess resets consecutive-failure tracking and, from
// halfOpen, closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	if cb.state == StateHalfOpen {
		cb.state = StateClosed
		cb.failureCount = 0
		cb.byKind = make(map[xerrors.Kind]int)
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
}

// CanProceed reports whether a call may be attempted. From open it
// transitions to halfOpen once the cooldown elapses and lets that call
// through; while halfOpen every call is let through until the next
// recorded outcome closes or re-trips the breaker.
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if d := cb.closedBackoff(); d > 0 && time.Since(cb.lastFailureAt) < d {
			return false
		}
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.cfg.Cooldown {
			cb.state = StateHalfOpen
			return true
		}
		return false
	default: // StateHalfOpen
		return true
	}
}

// closedBackoff is the secondary throttle applied inside the closed
// state before the trip threshold is reached: cooldown base scaled by
// backoffMultiplier^(consecutiveFailures-1), capped at MaxBackoff.
func (cb *CircuitBreaker) closedBackoff() time.Duration {
	if cb.consecutiveFailures == 0 {
		return 0
	}
	base := cb.cfg.Cooldown
	mult := 1.0
	for i := 1; i < cb.consecutiveFailures; i++ {
		mult *= cb.cfg.BackoffMultiplier
	}
	d := time.Duration(float64(base) * mult)
	if d > cb.cfg.MaxBackoff {
		d = cb.cfg.MaxBackoff
	}
	return d
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Status is a point-in-time snapshot for monitoring/dashboards.
type Status struct {
	State               State
	FailureCount        int
	ConsecutiveFailures int
	OpenedAt            time.Time
	ByKind              map[xerrors.Kind]int
}

func (cb *CircuitBreaker) Status() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	byKind := make(map[xerrors.Kind]int, len(cb.byKind))
	for k, v := range cb.byKind {
		byKind[k] = v
	}
	return Status{
		State:               cb.state,
		FailureCount:        cb.failureCount,
		ConsecutiveFailures: cb.consecutiveFailures,
		OpenedAt:            cb.openedAt,
		ByKind:              byKind,
	}
}

// Reset forces the breaker back to closed, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureCount = 0
	cb.consecutiveFailures = 0
	cb.byKind = make(map[xerrors.Kind]int)
}
