package stash

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver implements Observer using Prometheus metrics. This is
// useful if you're already using Prometheus for monitoring.
//
// Example:
//
//	observer := stash.NewPrometheusObserver("my_service", prometheus.DefaultRegisterer)
//	engine, err := stash.New(dir, stash.WithObserver(observer))
type PrometheusObserver struct {
	queries      prometheus.Counter
	runs         *prometheus.CounterVec
	restores     prometheus.Counter
	saves        prometheus.Counter
	archiveBytes prometheus.Histogram
	evictions    prometheus.Counter
	cacheBytes   prometheus.Gauge
}

// NewPrometheusObserver creates a Prometheus observer with the given
// namespace. All metrics will be prefixed with "{namespace}_stash_".
//
// Example:
//
//	observer := NewPrometheusObserver("myapp", prometheus.DefaultRegisterer)
//	// Creates metrics like: myapp_stash_queries_total
func NewPrometheusObserver(namespace string, registerer prometheus.Registerer) *PrometheusObserver {
	if namespace == "" {
		namespace = "stash"
	}

	queries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stash",
		Name:      "queries_total",
		Help:      "Total number of metadata store queries",
	})

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stash",
		Name:      "runs_total",
		Help:      "Total number of operation executions",
	}, []string{"action"})

	restores := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stash",
		Name:      "restores_total",
		Help:      "Total number of archive restorations",
	})

	saves := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stash",
		Name:      "saves_total",
		Help:      "Total number of cache entries stored",
	})

	archiveBytes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stash",
		Name:      "archive_bytes",
		Help:      "Size distribution of stored archives in bytes",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB .. ~256MiB
	})

	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stash",
		Name:      "evictions_total",
		Help:      "Total number of cache entries evicted",
	})

	cacheBytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stash",
		Name:      "cache_bytes",
		Help:      "Total archive bytes tracked at the last maintenance pass",
	})

	registerer.MustRegister(
		queries,
		runs,
		restores,
		saves,
		archiveBytes,
		evictions,
		cacheBytes,
	)

	return &PrometheusObserver{
		queries:      queries,
		runs:         runs,
		restores:     restores,
		saves:        saves,
		archiveBytes: archiveBytes,
		evictions:    evictions,
		cacheBytes:   cacheBytes,
	}
}

func (o *PrometheusObserver) OnSync(ctx context.Context) {
	// Nothing to record until cleanup reports totals.
}

func (o *PrometheusObserver) OnQuery(ctx context.Context, event *QueryEvent) {
	o.queries.Inc()
}

func (o *PrometheusObserver) OnRun(ctx context.Context, event *RunEvent) {
	o.runs.WithLabelValues(event.Operation.ActionName()).Inc()
}

func (o *PrometheusObserver) OnRestore(ctx context.Context, event *RestoreEvent) {
	o.restores.Inc()
}

func (o *PrometheusObserver) OnStore(ctx context.Context, event *StoreEvent) {
	// Counted on OnSaved, once the entry is fully persisted.
}

func (o *PrometheusObserver) OnSaved(ctx context.Context, event *SavedEvent) {
	o.saves.Inc()
	o.archiveBytes.Observe(float64(event.Result.FileSize))
}

func (o *PrometheusObserver) OnCleanup(ctx context.Context, event *CleanupEvent) {
	o.evictions.Add(float64(event.Removed))
	o.cacheBytes.Set(float64(event.CurrentBytes))
}
