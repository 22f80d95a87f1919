// Package xerrors defines the error-kind taxonomy shared by the retry
// manager, circuit breaker, and order pipeline so a failure is
// classified exactly once.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind is the category a failure is classified into. It is evaluated by
// internal/retry's classifier and carried through to monitoring events
// and circuit-breaker failure tallies.
type Kind string

const (
	KindNetwork             Kind = "network"
	KindRateLimit           Kind = "rateLimit"
	KindServer              Kind = "server"
	KindTimeout             Kind = "timeout"
	KindAPI                 Kind = "api"
	KindInsufficientBalance Kind = "insufficientBalance"
	KindMinOrderValue       Kind = "minOrderValue"
	KindValidation          Kind = "validation"
	KindUnknown             Kind = "unknown"
)

// Retryable reports whether RetryManager should keep retrying errors of
// this kind per spec §7's propagation policy.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindServer, KindTimeout, KindRateLimit, KindUnknown:
		return true
	default:
		return false
	}
}

// Error wraps a cause with a classification and, for rate-limit errors,
// the exchange-supplied retry hint.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter float64 // seconds, rate-limit only; 0 if absent
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a classification to an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithRetryAfter attaches the server-reported retry hint, in seconds.
func (e *Error) WithRetryAfter(seconds float64) *Error {
	e.RetryAfter = seconds
	return e
}

// KindOf extracts the Kind from err, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind
	}
	return KindUnknown
}
