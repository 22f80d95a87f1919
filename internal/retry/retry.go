// Package retry implements the RetryManager: a bounded retry loop with
// typed error classification and exponential backoff, generalized from
// market_maker/pkg/retry/retry.go using the delay formula in
// original_source/api_retry_manager.py.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"

	"gatescalp/internal/sleep"
	"gatescalp/internal/xerrors"
)

// Config is the retry policy.
type Config struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	ExponentialBase   float64
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultConfig mirrors original_source/api_retry_manager.py::RetryConfig.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       5,
		BaseDelay:         time.Second,
		MaxDelay:          60 * time.Second,
		ExponentialBase:   2.0,
		BackoffMultiplier: 1.5,
		Jitter:            true,
	}
}

// Attempt records one try, per spec §3's retry attempt record.
type Attempt struct {
	Number    int
	Kind      xerrors.Kind
	Delay     time.Duration
	At        time.Time
	ErrorText string
}

// RateLimitChecker lets RetryManager consult the local rate limiter
// before sleeping and skip an attempt (without consuming it) if the
// limiter is already in cooldown.
type RateLimitChecker interface {
	CanMakeRequest() bool
}

// Classifier assigns an xerrors.Kind to an error. Manager's built-in
// classification applies when classifier is nil or returns "".
type Classifier func(error) xerrors.Kind

// Sleeper is satisfied by *internal/sleep.Manager; tests can supply a
// fake with no real delay.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration, sctx sleep.Context, jitter bool) bool
}

var networkPattern = regexp.MustCompile(`(?i)connection|network|timeout|dns`)

// Classify applies spec §4.5's ordered rules: caller classifier, then
// HTTP status, then error text, then unknown.
func Classify(err error, statusCode int, custom Classifier) xerrors.Kind {
	if custom != nil {
		if k := custom(err); k != "" {
			return k
		}
	}
	switch {
	case statusCode == http.StatusTooManyRequests:
		return xerrors.KindRateLimit
	case statusCode >= 500 && statusCode < 600:
		return xerrors.KindServer
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return xerrors.KindTimeout
	}
	if err != nil && networkPattern.MatchString(err.Error()) {
		return xerrors.KindNetwork
	}
	return xerrors.KindUnknown
}

// Delay computes the backoff per spec §4.5: base * exponentialBase^(n-1)
// * backoffMultiplier, capped at maxDelay; rate-limit errors floor at
// 60s and prefer retryAfterSeconds*1.2 when present; ±20% jitter when
// enabled; 100ms floor on the final result.
func Delay(cfg Config, attempt int, kind xerrors.Kind, retryAfterSeconds float64) time.Duration {
	if attempt <= 0 {
		return 0
	}

	if kind == xerrors.KindRateLimit && retryAfterSeconds > 0 {
		d := time.Duration(retryAfterSeconds * 1.2 * float64(time.Second))
		if d < 60*time.Second {
			d = 60 * time.Second
		}
		return applyJitter(cfg, d)
	}

	base := float64(cfg.BaseDelay) * pow(cfg.ExponentialBase, float64(attempt-1))
	d := time.Duration(base * cfg.BackoffMultiplier)

	if kind == xerrors.KindRateLimit && d < 60*time.Second {
		d = 60 * time.Second
	}
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return applyJitter(cfg, d)
}

func applyJitter(cfg Config, d time.Duration) time.Duration {
	if cfg.Jitter {
		jitterRange := float64(d) * 0.2
		d += time.Duration(rand.Float64()*2*jitterRange - jitterRange)
	}
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}

func pow(base, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	return result
}

// Manager wraps a thunk with the bounded retry loop.
type Manager struct {
	cfg        Config
	classifier Classifier
}

func NewManager(cfg Config, classifier Classifier) *Manager {
	return &Manager{cfg: cfg, classifier: classifier}
}

// maxRateLimitSkips bounds the "limiter in cooldown, skip without
// consuming a retry" loop so a stuck limiter cannot spin forever.
const maxRateLimitSkips = 1000

// Do executes fn up to cfg.MaxAttempts times, sleeping between
// failures via sleeper and consulting limiter (if non-nil) before each
// sleep. It returns the attempt history and the last error if every
// attempt failed.
func (m *Manager) Do(ctx context.Context, sleeper Sleeper, limiter RateLimitChecker, statusCoder func(error) int, fn func() error) ([]Attempt, error) {
	var attempts []Attempt
	var lastErr error

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if limiter != nil {
			skips := 0
			for !limiter.CanMakeRequest() && skips < maxRateLimitSkips {
				if sleeper != nil {
					sleeper.Sleep(ctx, 100*time.Millisecond, sleep.ContextAPIRetry, false)
				}
				skips++
				select {
				case <-ctx.Done():
					return attempts, ctx.Err()
				default:
				}
			}
		}

		err := fn()
		if err == nil {
			return attempts, nil
		}
		lastErr = err

		statusCode := 0
		if statusCoder != nil {
			statusCode = statusCoder(err)
		}
		kind := Classify(err, statusCode, m.classifier)

		if !kind.Retryable() {
			attempts = append(attempts, Attempt{Number: attempt, Kind: kind, At: time.Now(), ErrorText: err.Error()})
			return attempts, err
		}

		if attempt == m.cfg.MaxAttempts {
			attempts = append(attempts, Attempt{Number: attempt, Kind: kind, At: time.Now(), ErrorText: err.Error()})
			break
		}

		retryAfter := retryAfterOf(err)
		delay := Delay(m.cfg, attempt, kind, retryAfter)
		attempts = append(attempts, Attempt{Number: attempt, Kind: kind, Delay: delay, At: time.Now(), ErrorText: err.Error()})

		if sleeper != nil {
			if !sleeper.Sleep(ctx, delay, sleepContextFor(kind), true) {
				return attempts, lastErr
			}
		}
	}

	return attempts, lastErr
}

func sleepContextFor(kind xerrors.Kind) sleep.Context {
	return sleep.ContextAPIRetry
}

func retryAfterOf(err error) float64 {
	var xe *xerrors.Error
	if errors.As(err, &xe) {
		return xe.RetryAfter
	}
	return 0
}

// IsNetworkLike is exposed for callers building custom classifiers that
// want to reuse the text-matching rule.
func IsNetworkLike(s string) bool {
	return networkPattern.MatchString(strings.ToLower(s))
}
