package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/maheshrc27/reelpilot"

// Metrics holds the publish pipeline instruments. Without a configured
// provider every instrument is a no-op.
type Metrics struct {
	PublishAttempts     metric.Int64Counter
	PublishDuration     metric.Float64Histogram
	CommentsPosted      metric.Int64Counter
	SchedulerCycles     metric.Int64Counter
	AutopilotRuns       metric.Int64Counter
	CaptionFallbacks    metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	publishAttempts, err := meter.Int64Counter(
		"instagram.publish.attempts",
		metric.WithDescription("Publish attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	publishDuration, err := meter.Float64Histogram(
		"instagram.publish.duration",
		metric.WithDescription("Publish duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	commentsPosted, err := meter.Int64Counter(
		"instagram.comments.total",
		metric.WithDescription("Follow-up comments by kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	schedulerCycles, err := meter.Int64Counter(
		"scheduler.cycles.total",
		metric.WithDescription("Scheduler cycles by outcome"),
	)
	if err != nil {
		return nil, err
	}

	autopilotRuns, err := meter.Int64Counter(
		"autopilot.runs.total",
		metric.WithDescription("Autopilot cycles by outcome"),
	)
	if err != nil {
		return nil, err
	}

	captionFallbacks, err := meter.Int64Counter(
		"caption.fallbacks.total",
		metric.WithDescription("Caption requests answered by the local fallback"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		PublishAttempts:     publishAttempts,
		PublishDuration:     publishDuration,
		CommentsPosted:      commentsPosted,
		SchedulerCycles:     schedulerCycles,
		AutopilotRuns:       autopilotRuns,
		CaptionFallbacks:    captionFallbacks,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// NewNoopMetrics returns instruments backed by the global provider, ignoring
// registration errors. Used by tests and as a fallback.
func NewNoopMetrics() *Metrics {
	m, err := InitMetrics()
	if err != nil {
		return &Metrics{}
	}
	return m
}

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

func (m *Metrics) RecordPublish(ctx context.Context, mode, outcome string, seconds float64) {
	if m == nil || m.PublishAttempts == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("publish.mode", mode),
		attribute.String("publish.outcome", outcome),
	)
	m.PublishAttempts.Add(ctx, 1, attrs)
	m.PublishDuration.Record(ctx, seconds, attrs)
}

func (m *Metrics) RecordComment(ctx context.Context, kind string, posted bool) {
	if m == nil || m.CommentsPosted == nil {
		return
	}
	m.CommentsPosted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("comment.kind", kind),
		attribute.Bool("comment.posted", posted),
	))
}

func (m *Metrics) RecordSchedulerCycle(ctx context.Context, err error) {
	if m == nil || m.SchedulerCycles == nil {
		return
	}
	m.SchedulerCycles.Add(ctx, 1, metric.WithAttributes(attribute.Bool("scheduler.error", err != nil)))
}

func (m *Metrics) RecordAutopilotRun(ctx context.Context, success bool) {
	if m == nil || m.AutopilotRuns == nil {
		return
	}
	m.AutopilotRuns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("autopilot.success", success)))
}

func (m *Metrics) RecordCaptionFallback(ctx context.Context, provider, reason string) {
	if m == nil || m.CaptionFallbacks == nil {
		return
	}
	m.CaptionFallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("caption.provider", provider),
		attribute.String("caption.reason", reason),
	))
}

func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil || m.CircuitBreakerState == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}
