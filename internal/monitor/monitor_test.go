package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []Event
}

func (h *recordingHandler) HandleAlert(e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition never became true")
}

func TestEmitThrottlesRepeatedNonCriticalEvents(t *testing.T) {
	h := &recordingHandler{}
	b := NewBus([]AlertHandler{h})
	b.throttleInterval = time.Hour

	b.Emit(Event{Type: EventAPIError, Severity: SeverityWarning, Source: "x", Message: "one"})
	b.Emit(Event{Type: EventAPIError, Severity: SeverityWarning, Source: "x", Message: "two"})

	waitFor(t, func() bool { return h.count() >= 1 })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.count(), "second alert of same type+source within the throttle window must be dropped")
}

func TestEmitNeverThrottlesCritical(t *testing.T) {
	h := &recordingHandler{}
	b := NewBus([]AlertHandler{h})
	b.throttleInterval = time.Hour

	b.Emit(Event{Type: EventCircuitBreaker, Severity: SeverityCritical, Source: "x", Message: "one"})
	b.Emit(Event{Type: EventCircuitBreaker, Severity: SeverityCritical, Source: "x", Message: "two"})

	waitFor(t, func() bool { return h.count() >= 2 })
}

func TestSubscribersReceiveMatchingEventType(t *testing.T) {
	b := NewBus(nil)
	received := make(chan Event, 1)
	b.Subscribe(EventRateLimit, func(e Event) { received <- e })

	b.Emit(Event{Type: EventRateLimit, Severity: SeverityWarning, Source: "api", Message: "slow down"})

	select {
	case e := <-received:
		assert.Equal(t, EventRateLimit, e.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber was never invoked")
	}
}

func TestFailureDetectorFlagsConsecutiveFailures(t *testing.T) {
	d := NewFailureDetector(100)
	var last []Pattern
	for i := 0; i < 10; i++ {
		last = d.Record(EventTradeFailure, false, nil)
	}

	found := false
	for _, p := range last {
		if p.Type == "consecutive_failures" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFailureDetectorNeedsMinimumHistory(t *testing.T) {
	d := NewFailureDetector(100)
	for i := 0; i < 4; i++ {
		patterns := d.Record(EventTradeFailure, false, nil)
		assert.Empty(t, patterns, "must not alert before the minimum history of 10 events")
	}
}

func TestFailureDetectorFlagsHighFailureRateWithoutConsecutiveRun(t *testing.T) {
	d := NewFailureDetector(100)
	var last []Pattern
	for i := 0; i < 20; i++ {
		success := i%2 == 0
		last = d.Record(EventTradeFailure, success, nil)
	}

	found := false
	for _, p := range last {
		if p.Type == "high_failure_rate" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetectAnomaliesFlagsHighErrorRate(t *testing.T) {
	a := LogAnalysis{TotalEvents: 10, ErrorCount: 5}
	anomalies := detectAnomalies(a)
	require.NotEmpty(t, anomalies)
	assert.Equal(t, "high_error_rate", anomalies[0].Type)
}

func TestDetectAnomaliesFlagsPerformanceDegradation(t *testing.T) {
	older := make([]float64, 10)
	recent := make([]float64, 10)
	for i := range older {
		older[i] = 1.0
		recent[i] = 0.5
	}
	a := LogAnalysis{Profits: append(older, recent...)}

	anomalies := detectAnomalies(a)
	found := false
	for _, an := range anomalies {
		if an.Type == "performance_degradation" {
			found = true
		}
	}
	assert.True(t, found)
}
