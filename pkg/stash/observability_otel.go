package stash

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// OTelObserver implements Observer using OpenTelemetry metrics, and
// annotates the span already active in the context (if any) with cache
// events. This provides automatic integration with OTLP exporters (Jaeger,
// Tempo, Datadog, etc.).
//
// Example:
//
//	meter := otel.Meter("stash")
//	observer, _ := stash.NewOTelObserver(meter)
//	engine, err := stash.New(dir, stash.WithObserver(observer))
type OTelObserver struct {
	queries      metric.Int64Counter
	runs         metric.Int64Counter
	restores     metric.Int64Counter
	saves        metric.Int64Counter
	archiveBytes metric.Int64Histogram
	evictions    metric.Int64Counter
}

// NewOTelObserver creates an OpenTelemetry observer.
func NewOTelObserver(meter metric.Meter) (*OTelObserver, error) {
	queries, err := meter.Int64Counter(
		"stash.queries",
		metric.WithDescription("Number of metadata store queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queries counter: %w", err)
	}

	runs, err := meter.Int64Counter(
		"stash.runs",
		metric.WithDescription("Number of operation executions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	restores, err := meter.Int64Counter(
		"stash.restores",
		metric.WithDescription("Number of archive restorations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create restores counter: %w", err)
	}

	saves, err := meter.Int64Counter(
		"stash.saves",
		metric.WithDescription("Number of cache entries stored"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create saves counter: %w", err)
	}

	archiveBytes, err := meter.Int64Histogram(
		"stash.archive.bytes",
		metric.WithDescription("Size of stored archives in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive bytes histogram: %w", err)
	}

	evictions, err := meter.Int64Counter(
		"stash.evictions",
		metric.WithDescription("Number of cache entries evicted"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create evictions counter: %w", err)
	}

	return &OTelObserver{
		queries:      queries,
		runs:         runs,
		restores:     restores,
		saves:        saves,
		archiveBytes: archiveBytes,
		evictions:    evictions,
	}, nil
}

func (o *OTelObserver) OnSync(ctx context.Context) {
	trace.SpanFromContext(ctx).AddEvent("stash.sync")
}

func (o *OTelObserver) OnQuery(ctx context.Context, event *QueryEvent) {
	o.queries.Add(ctx, 1)
	trace.SpanFromContext(ctx).AddEvent("stash.query",
		trace.WithAttributes(attribute.String("action", event.Query.Action)),
	)
}

func (o *OTelObserver) OnRun(ctx context.Context, event *RunEvent) {
	action := event.Operation.ActionName()
	o.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	trace.SpanFromContext(ctx).AddEvent("stash.run",
		trace.WithAttributes(attribute.String("action", action)),
	)
}

func (o *OTelObserver) OnRestore(ctx context.Context, event *RestoreEvent) {
	o.restores.Add(ctx, 1)
	trace.SpanFromContext(ctx).AddEvent("stash.restore",
		trace.WithAttributes(
			attribute.String("action", event.Result.Action),
			attribute.String("archive_file", event.Result.ArchiveFile),
		),
	)
}

func (o *OTelObserver) OnStore(ctx context.Context, event *StoreEvent) {
	trace.SpanFromContext(ctx).AddEvent("stash.store",
		trace.WithAttributes(attribute.String("action", event.Operation.ActionName())),
	)
}

func (o *OTelObserver) OnSaved(ctx context.Context, event *SavedEvent) {
	o.saves.Add(ctx, 1)
	o.archiveBytes.Record(ctx, event.Result.FileSize)
	trace.SpanFromContext(ctx).AddEvent("stash.saved",
		trace.WithAttributes(
			attribute.String("action", event.Result.Action),
			attribute.Int64("file_size", event.Result.FileSize),
		),
	)
}

func (o *OTelObserver) OnCleanup(ctx context.Context, event *CleanupEvent) {
	if event.Removed > 0 {
		o.evictions.Add(ctx, int64(event.Removed))
	}
	trace.SpanFromContext(ctx).AddEvent("stash.cleanup",
		trace.WithAttributes(
			attribute.Int64("current_bytes", event.CurrentBytes),
			attribute.Int64("allowed_bytes", event.AllowedBytes),
			attribute.Int("removed", event.Removed),
		),
	)
}
