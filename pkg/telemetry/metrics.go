package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/project-seraphim/inference-gateway/pkg/domain"
)

var (
	metricsOnce     sync.Once
	metricsInitErr  error
	dispatchCounter metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	fallbackCounter metric.Int64Counter
)

// DispatchMetrics captures the fields recorded for one backend dispatch
// attempt. Primary and fallback attempts are recorded separately, each
// with its own outcome.
type DispatchMetrics struct {
	Variant  domain.Variant
	Reason   domain.Reason
	Outcome  domain.Outcome
	Fallback bool
	Duration time.Duration
}

// RecordDispatch emits counters and a latency histogram describing one
// dispatch attempt through the global meter provider. A no-op unless an
// operator wires a meter provider into the process.
func RecordDispatch(ctx context.Context, m DispatchMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("gateway.variant", string(m.Variant)),
		attribute.String("gateway.reason", string(m.Reason)),
		attribute.String("gateway.outcome", string(m.Outcome)),
		attribute.Bool("gateway.fallback", m.Fallback),
	}

	dispatchCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if m.Duration > 0 {
		dispatchLatency.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if m.Fallback {
		fallbackCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("gateway.dispatch")

		dispatchCounter, metricsInitErr = meter.Int64Counter(
			"gateway.dispatch.total",
			metric.WithDescription("Backend dispatch attempts partitioned by variant and outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		dispatchLatency, metricsInitErr = meter.Float64Histogram(
			"gateway.dispatch.duration_ms",
			metric.WithDescription("Observed backend dispatch latency"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		fallbackCounter, metricsInitErr = meter.Int64Counter(
			"gateway.fallback.total",
			metric.WithDescription("Fallback dispatch attempts partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
	})

	return metricsInitErr
}
