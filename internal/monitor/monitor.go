// Package monitor implements the MonitoringBus: throttled alert
// dispatch, failure-pattern detection, and log-file anomaly scanning,
// generalized from original_source/advanced_monitoring_system.py.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alitto/pond"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

type EventType string

const (
	EventTradeSuccess          EventType = "trade_success"
	EventTradeFailure          EventType = "trade_failure"
	EventAPIError              EventType = "api_error"
	EventCircuitBreaker        EventType = "circuit_breaker"
	EventRateLimit             EventType = "rate_limit"
	EventBalanceLow            EventType = "balance_low"
	EventPerformanceDegraded   EventType = "performance_degradation"
	EventAnomalyDetected       EventType = "anomaly_detected"
)

// Event is an immutable monitoring record.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Severity  Severity
	Source    string
	Message   string
	Metadata  map[string]any
}

func (e Event) throttleKey() string {
	return string(e.Type) + "|" + e.Source
}

// AlertHandler delivers an event somewhere; failure is logged, not
// propagated, so one broken handler cannot block the others.
type AlertHandler interface {
	HandleAlert(Event) error
}

// ConsoleAlertHandler writes a one-line summary via slog.
type ConsoleAlertHandler struct {
	Logger *slog.Logger
}

func NewConsoleAlertHandler(logger *slog.Logger) *ConsoleAlertHandler {
	return &ConsoleAlertHandler{Logger: logger}
}

func (h *ConsoleAlertHandler) HandleAlert(e Event) error {
	h.Logger.Warn("alert", "severity", e.Severity, "source", e.Source, "type", e.Type, "message", e.Message)
	return nil
}

// FileAlertHandler appends each event as one NDJSON line.
type FileAlertHandler struct {
	mu   sync.Mutex
	path string
}

func NewFileAlertHandler(path string) *FileAlertHandler {
	return &FileAlertHandler{path: path}
}

func (h *FileAlertHandler) HandleAlert(e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(struct {
		Timestamp time.Time      `json:"timestamp"`
		Type      EventType      `json:"type"`
		Severity  Severity       `json:"severity"`
		Source    string         `json:"source"`
		Message   string         `json:"message"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{e.Timestamp, e.Type, e.Severity, e.Source, e.Message, e.Metadata})
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// Bus is the MonitoringBus: throttled, non-blocking event dispatch over
// a bounded pond worker pool, plus an Observer-pattern subscriber list.
type Bus struct {
	handlers []AlertHandler

	throttleMu       sync.Mutex
	lastAlertAt      map[string]time.Time
	throttleInterval time.Duration

	subMu       sync.RWMutex
	subscribers map[EventType][]func(Event)

	pool *pond.WorkerPool

	detector *FailureDetector
}

// NewBus builds a bus dispatching onto a bounded worker pool; events
// submitted once the pool is saturated are dropped rather than
// blocking the caller (the trading loop must never stall on alerting).
func NewBus(handlers []AlertHandler) *Bus {
	return &Bus{
		handlers:         handlers,
		lastAlertAt:      make(map[string]time.Time),
		throttleInterval: 5 * time.Minute,
		subscribers:      make(map[EventType][]func(Event)),
		pool:             pond.New(4, 256, pond.MinWorkers(1)),
		detector:         NewFailureDetector(100),
	}
}

func (b *Bus) Subscribe(t EventType, cb func(Event)) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], cb)
}

// Emit dispatches e, unless a non-critical event of the same
// (type, source) fired within the throttle interval.
func (b *Bus) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	key := e.throttleKey()
	b.throttleMu.Lock()
	last, seen := b.lastAlertAt[key]
	if seen && e.Severity != SeverityCritical && time.Since(last) < b.throttleInterval {
		b.throttleMu.Unlock()
		return
	}
	b.lastAlertAt[key] = e.Timestamp
	b.throttleMu.Unlock()

	if !b.pool.TrySubmit(func() { b.dispatch(e) }) {
		return
	}
}

func (b *Bus) dispatch(e Event) {
	for _, h := range b.handlers {
		_ = h.HandleAlert(e)
	}

	b.subMu.RLock()
	subs := append([]func(Event){}, b.subscribers[e.Type]...)
	b.subMu.RUnlock()
	for _, cb := range subs {
		cb(e)
	}
}

// RecordTradeEvent feeds the failure-pattern detector and emits the
// corresponding trade event.
func (b *Bus) RecordTradeEvent(success bool, pair string, profit float64, executionTime time.Duration, errMessage string) {
	eventType := EventTradeSuccess
	severity := SeverityInfo
	if !success {
		eventType = EventTradeFailure
		severity = SeverityWarning
	}

	meta := map[string]any{"pair": pair, "profit": profit, "execution_time_ms": executionTime.Milliseconds()}
	if !success && errMessage != "" {
		meta["error"] = errMessage
	}

	for _, pattern := range b.detector.Record(eventType, success, meta) {
		b.emitPattern(pattern)
	}

	msg := fmt.Sprintf("trade %s for %s", map[bool]string{true: "succeeded", false: "failed"}[success], pair)
	if success {
		msg += fmt.Sprintf(" profit=%.8f", profit)
	}
	b.Emit(Event{Type: eventType, Severity: severity, Source: "trading_bot_" + pair, Message: msg, Metadata: meta})
}

// RecordAPIEvent records an API call outcome and feeds the detector.
func (b *Bus) RecordAPIEvent(endpoint string, success bool, responseTime time.Duration, errMessage string, rateLimited bool) {
	var eventType EventType
	var severity Severity
	var msg string

	switch {
	case rateLimited:
		eventType, severity, msg = EventRateLimit, SeverityWarning, "rate limited on "+endpoint
	case success:
		eventType, severity, msg = EventTradeSuccess, SeverityInfo, "api call to "+endpoint+" succeeded"
	default:
		eventType, severity, msg = EventAPIError, SeverityError, "api call to "+endpoint+" failed: "+errMessage
	}

	meta := map[string]any{"endpoint": endpoint, "response_time_ms": responseTime.Milliseconds(), "is_rate_limited": rateLimited}
	if errMessage != "" {
		meta["error"] = errMessage
	}

	for _, pattern := range b.detector.Record(eventType, success && !rateLimited, meta) {
		b.emitPattern(pattern)
	}

	b.Emit(Event{Type: eventType, Severity: severity, Source: "api_client", Message: msg, Metadata: meta})
}

// RecordCircuitBreakerEvent is always critical and never throttled out
// of existence (the throttle map still records it, but severity
// CRITICAL bypasses the check in Emit).
func (b *Bus) RecordCircuitBreakerEvent(source string, failureCount int, cooldown time.Duration) {
	b.Emit(Event{
		Type:     EventCircuitBreaker,
		Severity: SeverityCritical,
		Source:   source,
		Message:  fmt.Sprintf("circuit breaker activated after %d failures", failureCount),
		Metadata: map[string]any{"failure_count": failureCount, "cooldown_seconds": cooldown.Seconds()},
	})
}

func (b *Bus) emitPattern(p Pattern) {
	b.Emit(Event{
		Type:     EventAnomalyDetected,
		Severity: p.Severity,
		Source:   "failure_detector",
		Message:  "pattern detected: " + p.Description,
		Metadata: map[string]any{"pattern_type": p.Type, "value": p.Value},
	})
}

// RunLogAnalysis polls analyzer on interval, emitting each anomaly it
// surfaces over the bus, until ctx is cancelled. Grounded on
// original_source/advanced_monitoring_system.py's monitoring loop,
// which re-scans recent logs on a fixed cadence rather than per-event.
func (b *Bus) RunLogAnalysis(ctx context.Context, analyzer *LogAnalyzer, interval, lookback time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			analysis, err := analyzer.AnalyzeRecent(lookback)
			if err != nil {
				continue
			}
			for _, p := range analysis.Anomalies {
				b.emitPattern(p)
			}
		}
	}
}

// Stop drains the dispatch pool.
func (b *Bus) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		b.pool.StopAndWait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
