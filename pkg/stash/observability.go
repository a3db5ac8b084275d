package stash

import "context"

// Observer is the hook interface for observing cache engine events.
// Implementations can emit metrics, logs, or traces to their observability
// backend.
//
// All Observer methods are called synchronously during engine operations, so
// implementations should be fast and non-blocking; return values are never
// consumed. For expensive sinks, buffer events and process them
// asynchronously.
//
// Example implementations:
//   - Prometheus metrics collector
//   - OpenTelemetry meter/span annotator
//   - Structured logger (slog)
type Observer interface {
	// OnSync is called at the start of each maintenance pass.
	OnSync(ctx context.Context)

	// OnQuery is called when the engine queries the metadata store.
	OnQuery(ctx context.Context, event *QueryEvent)

	// OnRun is called before an operation's callable executes.
	OnRun(ctx context.Context, event *RunEvent)

	// OnRestore is called before a cached archive is extracted.
	OnRestore(ctx context.Context, event *RestoreEvent)

	// OnStore is called before an operation's outputs are archived.
	OnStore(ctx context.Context, event *StoreEvent)

	// OnSaved is called after a new cache entry is fully persisted.
	OnSaved(ctx context.Context, event *SavedEvent)

	// OnCleanup is called after the eviction step of a maintenance pass.
	OnCleanup(ctx context.Context, event *CleanupEvent)
}

// QueryEvent is emitted when the metadata store is queried.
type QueryEvent struct {
	// Query is the match predicate used for the lookup.
	Query Query
}

// RunEvent is emitted before an operation's callable executes.
type RunEvent struct {
	Operation Operation
}

// RestoreEvent is emitted before a cached archive is extracted.
type RestoreEvent struct {
	Operation Operation
	Result    Result
}

// StoreEvent is emitted before an operation's outputs are archived.
type StoreEvent struct {
	Operation Operation
}

// SavedEvent is emitted after a cache entry is persisted.
type SavedEvent struct {
	Operation Operation
	Result    Result
}

// CleanupEvent is emitted after eviction runs.
type CleanupEvent struct {
	// CurrentBytes is the total archive size before eviction.
	CurrentBytes int64

	// AllowedBytes is the configured budget; 0 means unlimited.
	AllowedBytes int64

	// Removed is how many entries eviction selected.
	Removed int
}

// NoOpObserver is a no-op implementation of Observer. Useful as a base for
// partial implementations.
type NoOpObserver struct{}

func (NoOpObserver) OnSync(ctx context.Context)                         {}
func (NoOpObserver) OnQuery(ctx context.Context, event *QueryEvent)     {}
func (NoOpObserver) OnRun(ctx context.Context, event *RunEvent)         {}
func (NoOpObserver) OnRestore(ctx context.Context, event *RestoreEvent) {}
func (NoOpObserver) OnStore(ctx context.Context, event *StoreEvent)     {}
func (NoOpObserver) OnSaved(ctx context.Context, event *SavedEvent)     {}
func (NoOpObserver) OnCleanup(ctx context.Context, event *CleanupEvent) {}

// MultiObserver combines multiple observers into one. Events are sent to
// all observers in order.
type MultiObserver struct {
	Observers []Observer
}

func (m *MultiObserver) OnSync(ctx context.Context) {
	for _, obs := range m.Observers {
		obs.OnSync(ctx)
	}
}

func (m *MultiObserver) OnQuery(ctx context.Context, event *QueryEvent) {
	for _, obs := range m.Observers {
		obs.OnQuery(ctx, event)
	}
}

func (m *MultiObserver) OnRun(ctx context.Context, event *RunEvent) {
	for _, obs := range m.Observers {
		obs.OnRun(ctx, event)
	}
}

func (m *MultiObserver) OnRestore(ctx context.Context, event *RestoreEvent) {
	for _, obs := range m.Observers {
		obs.OnRestore(ctx, event)
	}
}

func (m *MultiObserver) OnStore(ctx context.Context, event *StoreEvent) {
	for _, obs := range m.Observers {
		obs.OnStore(ctx, event)
	}
}

func (m *MultiObserver) OnSaved(ctx context.Context, event *SavedEvent) {
	for _, obs := range m.Observers {
		obs.OnSaved(ctx, event)
	}
}

func (m *MultiObserver) OnCleanup(ctx context.Context, event *CleanupEvent) {
	for _, obs := range m.Observers {
		obs.OnCleanup(ctx, event)
	}
}
