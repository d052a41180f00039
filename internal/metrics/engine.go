package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics defines the interface for recording authorization engine
// metrics: operation counts and durations, plus decision outcomes.
type EngineMetrics interface {
	// RecordOperation records an engine operation with its status.
	// Operation examples: "register", "grant", "decide", "reconcile"
	// Status examples: "success", "error"
	RecordOperation(ctx context.Context, operation, status string)

	// RecordDuration records the duration of an engine operation with its status.
	// Duration is recorded in seconds as a histogram for percentile calculations.
	RecordDuration(ctx context.Context, operation string, duration time.Duration, status string)

	// RecordDecision records the outcome of an authorization query
	// ("granted" or "denied").
	RecordDecision(ctx context.Context, outcome string)
}

// engineMetrics implements EngineMetrics using OpenTelemetry metrics.
type engineMetrics struct {
	operationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
	decisionCounter  metric.Int64Counter
}

// NewEngineMetrics creates a new EngineMetrics implementation using the provided meter provider.
// The namespace parameter is used as a prefix for all metric names (e.g., "authorizir").
// Returns error if meters cannot be initialized.
func NewEngineMetrics(meterProvider metric.MeterProvider, namespace string) (EngineMetrics, error) {
	meter := meterProvider.Meter(namespace)

	// Create counter for total operations
	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of engine operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	// Create histogram for operation durations
	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of engine operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	// Create counter for authorization decisions
	decisionCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_decisions_total", namespace),
		metric.WithDescription("Total number of authorization decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision counter: %w", err)
	}

	return &engineMetrics{
		operationCounter: operationCounter,
		durationHisto:    durationHisto,
		decisionCounter:  decisionCounter,
	}, nil
}

// RecordOperation increments the operation counter with operation and status labels.
func (e *engineMetrics) RecordOperation(ctx context.Context, operation, status string) {
	e.operationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordDuration records the operation duration in seconds with operation and status labels.
func (e *engineMetrics) RecordDuration(
	ctx context.Context,
	operation string,
	duration time.Duration,
	status string,
) {
	e.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordDecision increments the decision counter with the outcome label.
func (e *engineMetrics) RecordDecision(ctx context.Context, outcome string) {
	e.decisionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
		),
	)
}
