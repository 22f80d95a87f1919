package monitor

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	MetricTradesTotal        = "gatescalp_trades_total"
	MetricTradesFailedTotal  = "gatescalp_trades_failed_total"
	MetricPnLRealizedTotal   = "gatescalp_pnl_realized_total"
	MetricOrdersPlacedTotal  = "gatescalp_orders_placed_total"
	MetricAPIFailuresTotal   = "gatescalp_api_failures_total"
	MetricRateLimitHits      = "gatescalp_rate_limit_hits_total"
	MetricCircuitBreakerOpen = "gatescalp_circuit_breaker_open"
	MetricActiveSessions     = "gatescalp_active_sessions"
)

// Metrics holds the process-wide OTel instruments, generalized from
// market_maker/pkg/telemetry/metrics.go's instrument-holder pattern.
// Only the metrics signal is wired (no trace/log export): SPEC_FULL.md
// carries no tracing or log-export requirement.
type Metrics struct {
	TradesTotal        metric.Int64Counter
	TradesFailedTotal  metric.Int64Counter
	PnLRealizedTotal   metric.Float64Counter
	OrdersPlacedTotal  metric.Int64Counter
	APIFailuresTotal   metric.Int64Counter
	RateLimitHits      metric.Int64Counter
	CircuitBreakerOpen metric.Int64ObservableGauge
	ActiveSessions     metric.Int64ObservableGauge

	mu              sync.RWMutex
	breakerOpenByID map[string]int64
	sessionsByPair  map[string]int64
}

var (
	globalMetrics *Metrics
	initOnce      sync.Once
)

func GetMetrics() *Metrics {
	initOnce.Do(func() {
		globalMetrics = &Metrics{
			breakerOpenByID: make(map[string]int64),
			sessionsByPair:  make(map[string]int64),
		}
	})
	return globalMetrics
}

func (m *Metrics) init(meter metric.Meter) error {
	var err error

	if m.TradesTotal, err = meter.Int64Counter(MetricTradesTotal, metric.WithDescription("Total completed trades")); err != nil {
		return err
	}
	if m.TradesFailedTotal, err = meter.Int64Counter(MetricTradesFailedTotal, metric.WithDescription("Total failed trades")); err != nil {
		return err
	}
	if m.PnLRealizedTotal, err = meter.Float64Counter(MetricPnLRealizedTotal, metric.WithDescription("Cumulative realized P&L in quote currency")); err != nil {
		return err
	}
	if m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total orders placed")); err != nil {
		return err
	}
	if m.APIFailuresTotal, err = meter.Int64Counter(MetricAPIFailuresTotal, metric.WithDescription("Total exchange API failures")); err != nil {
		return err
	}
	if m.RateLimitHits, err = meter.Int64Counter(MetricRateLimitHits, metric.WithDescription("Total rate-limit rejections")); err != nil {
		return err
	}

	m.CircuitBreakerOpen, err = meter.Int64ObservableGauge(MetricCircuitBreakerOpen, metric.WithDescription("1 if the circuit breaker for this id is open"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for id, v := range m.breakerOpenByID {
				o.Observe(v, metric.WithAttributes(attribute.String("breaker_id", id)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.ActiveSessions, err = meter.Int64ObservableGauge(MetricActiveSessions, metric.WithDescription("Active worker sessions per pair"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for pair, v := range m.sessionsByPair {
				o.Observe(v, metric.WithAttributes(attribute.String("pair", pair)))
			}
			return nil
		}))
	return err
}

func (m *Metrics) SetCircuitBreakerOpen(id string, open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if open {
		m.breakerOpenByID[id] = 1
	} else {
		m.breakerOpenByID[id] = 0
	}
}

func (m *Metrics) SetActiveSessions(pair string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsByPair[pair] = count
}

// Telemetry owns the MeterProvider lifecycle.
type Telemetry struct {
	mp *sdkmetric.MeterProvider
}

// SetupTelemetry wires a Prometheus exporter behind the OTel metrics
// SDK, grounded on market_maker/pkg/telemetry/otel.go's Setup, trimmed
// to the metrics signal only.
func SetupTelemetry(serviceName string) (*Telemetry, error) {
	ctx := context.Background()

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("monitor: create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("monitor: create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	if err := GetMetrics().init(mp.Meter(serviceName)); err != nil {
		return nil, fmt.Errorf("monitor: init instruments: %w", err)
	}

	return &Telemetry{mp: mp}, nil
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.mp.Shutdown(ctx)
}
