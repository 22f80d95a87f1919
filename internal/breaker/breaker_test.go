package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatescalp/internal/xerrors"
)

func TestTripsAfterConsecutiveFailuresReachThreshold(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, Cooldown: time.Hour, BackoffMultiplier: 1, MaxBackoff: time.Hour})

	assert.True(t, cb.CanProceed())
	cb.RecordFailure(xerrors.KindNetwork)
	cb.RecordFailure(xerrors.KindNetwork)
	require.Equal(t, StateClosed, cb.State())
	cb.RecordFailure(xerrors.KindNetwork)

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.CanProceed())
}

func TestSuccessResetsConsecutiveCountBeforeTrip(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, Cooldown: time.Hour, BackoffMultiplier: 1, MaxBackoff: time.Hour})
	cb.RecordFailure(xerrors.KindNetwork)
	cb.RecordFailure(xerrors.KindNetwork)
	cb.RecordSuccess()
	cb.RecordFailure(xerrors.KindNetwork)

	assert.Equal(t, StateClosed, cb.State(), "success must reset the consecutive-failure streak")
}

func TestOpenTransitionsToHalfOpenAfterCooldown(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, Cooldown: 10 * time.Millisecond, BackoffMultiplier: 1, MaxBackoff: time.Second})
	cb.RecordFailure(xerrors.KindNetwork)
	require.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.CanProceed())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, cb.CanProceed())
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestHalfOpenFailureReopensImmediately(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, Cooldown: 10 * time.Millisecond, BackoffMultiplier: 1, MaxBackoff: time.Second})
	cb.RecordFailure(xerrors.KindNetwork)
	time.Sleep(15 * time.Millisecond)
	require.True(t, cb.CanProceed())
	require.Equal(t, StateHalfOpen, cb.State())

	cb.RecordFailure(xerrors.KindNetwork)
	assert.Equal(t, StateOpen, cb.State())
}

func TestHalfOpenSuccessClosesAndClearsCounters(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, Cooldown: 10 * time.Millisecond, BackoffMultiplier: 1, MaxBackoff: time.Second})
	cb.RecordFailure(xerrors.KindNetwork)
	time.Sleep(15 * time.Millisecond)
	require.True(t, cb.CanProceed())

	cb.RecordSuccess()
	status := cb.Status()
	assert.Equal(t, StateClosed, status.State)
	assert.Equal(t, 0, status.FailureCount)
}

func TestClosedStateSecondaryBackoffThrottlesBelowThreshold(t *testing.T) {
	cb := New(Config{FailureThreshold: 10, Cooldown: time.Hour, BackoffMultiplier: 2, MaxBackoff: time.Hour})
	cb.RecordFailure(xerrors.KindNetwork)

	assert.False(t, cb.CanProceed(), "a single failure should still impose the closed-state secondary backoff")
	assert.Equal(t, StateClosed, cb.State())
}

func TestStatusTracksFailuresByKind(t *testing.T) {
	cb := New(DefaultConfig())
	cb.RecordFailure(xerrors.KindNetwork)
	cb.RecordFailure(xerrors.KindNetwork)
	cb.RecordFailure(xerrors.KindTimeout)

	status := cb.Status()
	assert.Equal(t, 2, status.ByKind[xerrors.KindNetwork])
	assert.Equal(t, 1, status.ByKind[xerrors.KindTimeout])
	assert.Equal(t, 3, status.FailureCount)
}

func TestResetClearsState(t *testing.T) {
	cb := New(Config{FailureThreshold: 1, Cooldown: time.Hour, BackoffMultiplier: 1, MaxBackoff: time.Hour})
	cb.RecordFailure(xerrors.KindNetwork)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.CanProceed())
}
