package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider    *metric.MeterProvider
	meter            otelmetric.Meter
	stageCounter     otelmetric.Int64Counter
	stageDuration    otelmetric.Float64Histogram
	inferenceCounter otelmetric.Int64Counter
	tokenCounter     otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	stageCounter, _ := meter.Int64Counter(
		"pipeline.stages.processed",
		otelmetric.WithDescription("Number of pipeline stages processed"),
	)

	stageDuration, _ := meter.Float64Histogram(
		"pipeline.stage.duration",
		otelmetric.WithDescription("Pipeline stage duration"),
		otelmetric.WithUnit("ms"),
	)

	inferenceCounter, _ := meter.Int64Counter(
		"inference.calls",
		otelmetric.WithDescription("Number of external inference calls"),
	)

	tokenCounter, _ := meter.Int64Counter(
		"inference.tokens",
		otelmetric.WithDescription("Estimated tokens spent on inference"),
	)

	return &Observability{
		meterProvider:    provider,
		meter:            meter,
		stageCounter:     stageCounter,
		stageDuration:    stageDuration,
		inferenceCounter: inferenceCounter,
		tokenCounter:     tokenCounter,
	}
}

// RecordStage counts one stage completion. Status is one of success,
// fallback, failed.
func (o *Observability) RecordStage(ctx context.Context, stage, status string, duration time.Duration) {
	if o.stageCounter != nil {
		o.stageCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		))
	}
	if o.stageDuration != nil {
		o.stageDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		))
	}
}

// RecordInference counts one external call by caller label and outcome.
func (o *Observability) RecordInference(ctx context.Context, caller, outcome string, cached bool) {
	if o.inferenceCounter != nil {
		o.inferenceCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("caller", caller),
			attribute.String("outcome", outcome),
			attribute.Bool("cached", cached),
		))
	}
}

// AddTokens accumulates estimated token spend.
func (o *Observability) AddTokens(ctx context.Context, n int64) {
	if o.tokenCounter != nil {
		o.tokenCounter.Add(ctx, n)
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
