package monitor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

var logPatterns = map[string]*regexp.Regexp{
	"trade_success":  regexp.MustCompile(`SELL.*profit=([0-9.-]+)`),
	"trade_failure":  regexp.MustCompile(`(?i)error|failed`),
	"api_error":      regexp.MustCompile(`(?i)api.*(?:failed|error|timeout)`),
	"rate_limit":     regexp.MustCompile(`(?i)rate limit`),
	"circuit_breaker": regexp.MustCompile(`(?i)circuit breaker`),
}

// LogAnalysis summarizes a scan of a log directory, per
// original_source/advanced_monitoring_system.py::LogAnalyzer.
type LogAnalysis struct {
	TotalEvents      int
	ErrorCount       int
	SuccessCount     int
	APIFailures      int
	RateLimits       int
	CircuitBreakers  int
	Profits          []float64
	Anomalies        []Pattern
}

// LogAnalyzer scans *.log files under a directory for known patterns.
type LogAnalyzer struct {
	dir string
}

func NewLogAnalyzer(dir string) *LogAnalyzer {
	return &LogAnalyzer{dir: dir}
}

// AnalyzeRecent scans files modified within the lookback window.
func (a *LogAnalyzer) AnalyzeRecent(lookback time.Duration) (LogAnalysis, error) {
	var analysis LogAnalysis

	files, err := a.recentFiles(lookback)
	if err != nil {
		return analysis, err
	}

	for _, f := range files {
		if err := a.scanFile(f, &analysis); err != nil {
			continue
		}
	}

	analysis.Anomalies = detectAnomalies(analysis)
	return analysis, nil
}

func (a *LogAnalyzer) recentFiles(lookback time.Duration) ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-lookback)
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			files = append(files, filepath.Join(a.dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (a *LogAnalyzer) scanFile(path string, analysis *LogAnalysis) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		for _, name := range []string{"trade_success", "api_error", "rate_limit", "circuit_breaker", "trade_failure"} {
			re := logPatterns[name]
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			analysis.TotalEvents++
			switch name {
			case "trade_success":
				analysis.SuccessCount++
				if len(m) > 1 {
					if p, err := strconv.ParseFloat(m[1], 64); err == nil {
						analysis.Profits = append(analysis.Profits, p)
					}
				}
			case "trade_failure", "api_error":
				analysis.ErrorCount++
				if name == "api_error" {
					analysis.APIFailures++
				}
			case "rate_limit":
				analysis.RateLimits++
			case "circuit_breaker":
				analysis.CircuitBreakers++
			}
			break
		}
	}
	return scanner.Err()
}

func detectAnomalies(a LogAnalysis) []Pattern {
	var anomalies []Pattern

	if a.TotalEvents > 0 {
		errRate := float64(a.ErrorCount) / float64(a.TotalEvents)
		if errRate > 0.2 {
			sev := SeverityWarning
			if errRate >= 0.5 {
				sev = SeverityCritical
			}
			anomalies = append(anomalies, Pattern{
				Type: "high_error_rate", Severity: sev, Value: errRate,
				Description: fmt.Sprintf("high error rate: %.0f%%", errRate*100),
			})
		}
	}

	if a.RateLimits > 5 {
		anomalies = append(anomalies, Pattern{
			Type: "frequent_rate_limiting", Severity: SeverityWarning, Value: a.RateLimits,
			Description: fmt.Sprintf("frequent rate limiting: %d hits", a.RateLimits),
		})
	}

	if a.CircuitBreakers > 3 {
		anomalies = append(anomalies, Pattern{
			Type: "multiple_circuit_breakers", Severity: SeverityCritical, Value: a.CircuitBreakers,
			Description: fmt.Sprintf("multiple circuit breaker triggers: %d", a.CircuitBreakers),
		})
	}

	if len(a.Profits) > 10 {
		recent := a.Profits[len(a.Profits)-10:]
		var older []float64
		if len(a.Profits) >= 20 {
			older = a.Profits[len(a.Profits)-20 : len(a.Profits)-10]
		} else {
			older = a.Profits[:len(a.Profits)-10]
		}
		if len(older) > 0 {
			recentAvg, olderAvg := mean(recent), mean(older)
			if olderAvg != 0 && recentAvg < olderAvg*0.7 {
				anomalies = append(anomalies, Pattern{
					Type: "performance_degradation", Severity: SeverityWarning,
					Value:       map[string]float64{"recent": recentAvg, "older": olderAvg},
					Description: fmt.Sprintf("performance decline: %.8f vs %.8f", recentAvg, olderAvg),
				})
			}
		}
	}

	return anomalies
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
