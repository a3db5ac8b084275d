package stash

import (
	"context"
	"log/slog"
)

// SlogObserver implements Observer using Go's structured logging (log/slog).
// This emits structured logs for all cache engine events.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	observer := stash.NewSlogObserver(logger, slog.LevelInfo)
//	engine, err := stash.New(dir, stash.WithObserver(observer))
type SlogObserver struct {
	logger   *slog.Logger
	minLevel slog.Level
}

// NewSlogObserver creates an observer that logs to the given slog.Logger.
// Only events at or above minLevel will be logged.
func NewSlogObserver(logger *slog.Logger, minLevel slog.Level) *SlogObserver {
	return &SlogObserver{
		logger:   logger,
		minLevel: minLevel,
	}
}

func (o *SlogObserver) OnSync(ctx context.Context) {
	if o.minLevel <= slog.LevelDebug {
		o.logger.DebugContext(ctx, "cache sync started")
	}
}

func (o *SlogObserver) OnQuery(ctx context.Context, event *QueryEvent) {
	if o.minLevel <= slog.LevelDebug {
		o.logger.DebugContext(ctx, "cache query",
			slog.String("action", event.Query.Action),
			slog.String("input_fingerprint", event.Query.InputFingerprint),
			slog.String("output_fingerprint", event.Query.OutputFingerprint),
		)
	}
}

func (o *SlogObserver) OnRun(ctx context.Context, event *RunEvent) {
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "operation running",
			slog.String("action", event.Operation.ActionName()),
		)
	}
}

func (o *SlogObserver) OnRestore(ctx context.Context, event *RestoreEvent) {
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "operation restoring from cache",
			slog.String("action", event.Operation.ActionName()),
			slog.String("archive_file", event.Result.ArchiveFile),
			slog.Int64("file_size", event.Result.FileSize),
		)
	}
}

func (o *SlogObserver) OnStore(ctx context.Context, event *StoreEvent) {
	if o.minLevel <= slog.LevelDebug {
		o.logger.DebugContext(ctx, "archiving operation outputs",
			slog.String("action", event.Operation.ActionName()),
		)
	}
}

func (o *SlogObserver) OnSaved(ctx context.Context, event *SavedEvent) {
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "cache entry saved",
			slog.String("action", event.Result.Action),
			slog.String("archive_file", event.Result.ArchiveFile),
			slog.Int64("file_size", event.Result.FileSize),
			slog.Duration("runtime", event.Result.Runtime),
		)
	}
}

func (o *SlogObserver) OnCleanup(ctx context.Context, event *CleanupEvent) {
	if event.Removed > 0 {
		if o.minLevel <= slog.LevelInfo {
			o.logger.InfoContext(ctx, "cache entries evicted",
				slog.Int64("current_bytes", event.CurrentBytes),
				slog.Int64("allowed_bytes", event.AllowedBytes),
				slog.Int("removed", event.Removed),
			)
		}
	} else {
		if o.minLevel <= slog.LevelDebug {
			o.logger.DebugContext(ctx, "cache within budget",
				slog.Int64("current_bytes", event.CurrentBytes),
				slog.Int64("allowed_bytes", event.AllowedBytes),
			)
		}
	}
}
