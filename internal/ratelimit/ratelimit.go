// Package ratelimit implements the RateLimitEnforcer (per-category
// sliding-window or token-bucket limiting) and the EndpointClassifier
// that maps an HTTP call onto one of those categories. Grounded on
// original_source/rate_limit_manager.py.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Category is a Gate.io rate-limit bucket.
type Category string

const (
	CategoryPublic           Category = "public"
	CategorySpotOrderPlace   Category = "spot-order-place"
	CategorySpotOrderCancel  Category = "spot-order-cancel"
	CategorySpotOther        Category = "spot-other"
	CategoryWalletTransfer   Category = "wallet-transfer"
	CategoryWalletWithdraw   Category = "wallet-withdraw"
	CategoryWalletOther      Category = "wallet-other"
	CategoryFuturesOrder     Category = "futures-order"
	CategoryFuturesCancel    Category = "futures-cancel"
	CategoryFuturesOther     Category = "futures-other"
)

// Config is the VIP-0 quota for one category.
type Config struct {
	MaxRequests    int
	Window         time.Duration
	BurstAllowance float64
}

// SafeMax is floor(maxRequests * burstAllowance), the limit actually
// enforced.
func (c Config) SafeMax() int {
	allowance := c.BurstAllowance
	if allowance <= 0 {
		allowance = 0.8
	}
	n := int(float64(c.MaxRequests) * allowance)
	if n < 1 {
		n = 1
	}
	return n
}

// VIP0Quotas are the reference VIP-0 limits from spec §4.3.
func VIP0Quotas() map[Category]Config {
	return map[Category]Config{
		CategoryPublic:          {MaxRequests: 200, Window: 10 * time.Second, BurstAllowance: 0.8},
		CategorySpotOrderPlace:  {MaxRequests: 10, Window: time.Second, BurstAllowance: 0.8},
		CategorySpotOrderCancel: {MaxRequests: 200, Window: time.Second, BurstAllowance: 0.8},
		CategorySpotOther:       {MaxRequests: 200, Window: 10 * time.Second, BurstAllowance: 0.8},
		CategoryWalletTransfer:  {MaxRequests: 80, Window: 10 * time.Second, BurstAllowance: 0.8},
		CategoryWalletWithdraw:  {MaxRequests: 1, Window: 3 * time.Second, BurstAllowance: 0.8},
		CategoryWalletOther:     {MaxRequests: 200, Window: 10 * time.Second, BurstAllowance: 0.8},
		CategoryFuturesOrder:    {MaxRequests: 100, Window: time.Second, BurstAllowance: 0.8},
		CategoryFuturesCancel:   {MaxRequests: 200, Window: time.Second, BurstAllowance: 0.8},
		CategoryFuturesOther:    {MaxRequests: 200, Window: 10 * time.Second, BurstAllowance: 0.8},
	}
}

// Limiter is the per-category strategy interface. Implementations must
// not hold their lock while the caller sleeps.
type Limiter interface {
	CanMakeRequest() bool
	RecordRequest()
	TimeUntilNextRequest() time.Duration
}

// SlidingWindowLimiter prunes an ordered queue of request timestamps
// older than Config.Window on every call.
type SlidingWindowLimiter struct {
	cfg Config

	mu       sync.Mutex
	requests []time.Time
}

func NewSlidingWindowLimiter(cfg Config) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{cfg: cfg}
}

func (l *SlidingWindowLimiter) CanMakeRequest() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune()
	return len(l.requests) < l.cfg.SafeMax()
}

func (l *SlidingWindowLimiter) RecordRequest() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, time.Now())
	l.prune()
}

func (l *SlidingWindowLimiter) TimeUntilNextRequest() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune()
	if len(l.requests) < l.cfg.SafeMax() {
		return 0
	}
	oldest := l.requests[0]
	wait := oldest.Add(l.cfg.Window).Sub(time.Now())
	if wait < 0 {
		return 0
	}
	return wait
}

func (l *SlidingWindowLimiter) prune() {
	cutoff := time.Now().Add(-l.cfg.Window)
	i := 0
	for ; i < len(l.requests); i++ {
		if l.requests[i].After(cutoff) {
			break
		}
	}
	l.requests = l.requests[i:]
}

// TokenBucketLimiter wraps golang.org/x/time/rate: capacity SafeMax,
// refill rate SafeMax/Window per second.
type TokenBucketLimiter struct {
	lim *rate.Limiter
}

func NewTokenBucketLimiter(cfg Config) *TokenBucketLimiter {
	safeMax := cfg.SafeMax()
	refill := float64(safeMax) / cfg.Window.Seconds()
	return &TokenBucketLimiter{lim: rate.NewLimiter(rate.Limit(refill), safeMax)}
}

func (l *TokenBucketLimiter) CanMakeRequest() bool {
	r := l.lim.ReserveN(time.Now(), 1)
	ok := r.OK() && r.Delay() <= 0
	r.Cancel()
	return ok
}

func (l *TokenBucketLimiter) RecordRequest() {
	l.lim.Allow()
}

func (l *TokenBucketLimiter) TimeUntilNextRequest() time.Duration {
	r := l.lim.ReserveN(time.Now(), 1)
	d := r.Delay()
	r.Cancel()
	if d < 0 {
		return 0
	}
	return d
}

// Strategy selects which Limiter implementation new categories use.
type Strategy string

const (
	StrategySlidingWindow Strategy = "sliding_window"
	StrategyTokenBucket   Strategy = "token_bucket"
)

// Enforcer owns one Limiter per category.
type Enforcer struct {
	strategy Strategy
	mu       sync.RWMutex
	limiters map[Category]Limiter
	configs  map[Category]Config
}

func NewEnforcer(strategy Strategy, configs map[Category]Config) *Enforcer {
	if configs == nil {
		configs = VIP0Quotas()
	}
	e := &Enforcer{strategy: strategy, configs: configs, limiters: make(map[Category]Limiter)}
	for cat, cfg := range configs {
		e.limiters[cat] = e.build(cfg)
	}
	return e
}

func (e *Enforcer) build(cfg Config) Limiter {
	if e.strategy == StrategyTokenBucket {
		return NewTokenBucketLimiter(cfg)
	}
	return NewSlidingWindowLimiter(cfg)
}

func (e *Enforcer) CanMakeRequest(cat Category) bool {
	e.mu.RLock()
	l, ok := e.limiters[cat]
	e.mu.RUnlock()
	if !ok {
		return true
	}
	return l.CanMakeRequest()
}

func (e *Enforcer) RecordRequest(cat Category) {
	e.mu.RLock()
	l, ok := e.limiters[cat]
	e.mu.RUnlock()
	if !ok {
		return
	}
	l.RecordRequest()
}

func (e *Enforcer) TimeUntilNextRequest(cat Category) time.Duration {
	e.mu.RLock()
	l, ok := e.limiters[cat]
	e.mu.RUnlock()
	if !ok {
		return 0
	}
	return l.TimeUntilNextRequest()
}
