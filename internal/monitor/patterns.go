package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Pattern is an early-warning signal raised by FailureDetector.
type Pattern struct {
	Type        string
	Severity    Severity
	Value       any
	Description string
}

type record struct {
	at      time.Time
	etype   EventType
	success bool
	meta    map[string]any
}

// FailureDetector is a fixed-size ring of recent events used to catch
// failure clustering before it escalates, grounded on
// original_source/advanced_monitoring_system.py::FailurePatternDetector.
type FailureDetector struct {
	mu      sync.Mutex
	window  int
	history []record

	consecutiveThreshold int
	failureRateThreshold float64
	timeoutThreshold     int
}

func NewFailureDetector(window int) *FailureDetector {
	if window <= 0 {
		window = 100
	}
	return &FailureDetector{
		window:                window,
		consecutiveThreshold:  5,
		failureRateThreshold:  0.3,
		timeoutThreshold:      10,
	}
}

// Record appends one outcome and returns every pattern present in the
// trailing window (at most the last 20 records); a pattern that
// persists is returned again on later calls.
func (d *FailureDetector) Record(etype EventType, success bool, meta map[string]any) []Pattern {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.history = append(d.history, record{at: time.Now(), etype: etype, success: success, meta: meta})
	if len(d.history) > d.window {
		d.history = d.history[len(d.history)-d.window:]
	}

	if len(d.history) < 10 {
		return nil
	}

	tail := d.history
	if len(tail) > 20 {
		tail = tail[len(tail)-20:]
	}

	var patterns []Pattern

	if n := consecutiveFailures(tail); n >= d.consecutiveThreshold {
		patterns = append(patterns, Pattern{
			Type:        "consecutive_failures",
			Severity:    SeverityCritical,
			Value:       n,
			Description: fmt.Sprintf("%d consecutive failures detected", n),
		})
	}

	failures := 0
	for _, r := range tail {
		if !r.success {
			failures++
		}
	}
	rate := float64(failures) / float64(len(tail))
	if rate >= d.failureRateThreshold {
		sev := SeverityWarning
		if rate >= 0.5 {
			sev = SeverityCritical
		}
		patterns = append(patterns, Pattern{
			Type:        "high_failure_rate",
			Severity:    sev,
			Value:       rate,
			Description: fmt.Sprintf("high failure rate: %.0f%%", rate*100),
		})
	}

	timeouts := 0
	for _, r := range tail {
		if r.etype != EventAPIError {
			continue
		}
		if msg, ok := r.meta["error"].(string); ok && strings.Contains(strings.ToLower(msg), "timeout") {
			timeouts++
		}
	}
	if timeouts >= d.timeoutThreshold {
		patterns = append(patterns, Pattern{
			Type:        "api_timeout_cluster",
			Severity:    SeverityWarning,
			Value:       timeouts,
			Description: fmt.Sprintf("api timeout cluster: %d timeouts", timeouts),
		})
	}

	return patterns
}

func consecutiveFailures(events []record) int {
	n := 0
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].success {
			break
		}
		n++
	}
	return n
}

