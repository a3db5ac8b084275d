package stash

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultDocumentName is the metadata document's filename inside the
// workspace when no explicit store is configured.
const DefaultDocumentName = "stash.json"

// Engine is the cache engine: it fingerprints operations, decides hit or
// miss against the metadata store, archives and restores outputs, and keeps
// total archive size under budget.
//
// One engine owns one workspace directory and one store handle for its
// lifetime. The engine's methods may be called from multiple goroutines;
// all workspace mutation funnels through Sync, Store, and Restore.
type Engine struct {
	dir           string
	store         Store
	fingerprinter Fingerprinter
	codec         ArchiveCodec
	observer      Observer
	maxBytes      int64
	compress      bool
	workDir       string
	now           func() time.Time

	syncGroup singleflight.Group
}

// New creates an Engine rooted at the workspace directory dir.
func New(dir string, opts ...Option) (*Engine, error) {
	if dir == "" {
		return nil, errors.New("stash: workspace dir is empty")
	}
	e := &Engine{
		dir:           dir,
		fingerprinter: NewDigestFingerprinter(),
		codec:         TarCodec{},
		observer:      NoOpObserver{},
		workDir:       ".",
		now:           time.Now,
	}
	for _, opt := range opts {
		if err := opt.apply(e); err != nil {
			return nil, err
		}
	}
	if e.store == nil {
		e.store = NewDocumentStore(filepath.Join(dir, DefaultDocumentName))
	}
	return e, nil
}

// Dir returns the workspace directory.
func (e *Engine) Dir() string {
	return e.dir
}

// Restored is the outcome of a successful Restore.
type Restored struct {
	// Result is the cache entry that was restored.
	Result Result

	// Runtime is how long extraction took.
	Runtime time.Duration
}

// Saved is the outcome of a successful Store or Run.
type Saved struct {
	// Result is the newly persisted cache entry.
	Result Result

	// Runtime is how long the operation's callable took.
	Runtime time.Duration

	// StoreRuntime is how long archiving and persisting took.
	StoreRuntime time.Duration
}

// Pending is the handle returned by RunDetached while archival completes in
// the background.
type Pending struct {
	// Runtime is how long the operation's callable took; available
	// immediately.
	Runtime time.Duration

	done  chan struct{}
	saved *Saved
	err   error
}

// Wait blocks until archival finishes and returns its outcome.
func (p *Pending) Wait() (*Saved, error) {
	<-p.done
	return p.saved, p.err
}

// operationKey is the resolved lookup key for one operation.
type operationKey struct {
	action   string
	inputFP  string
	outputFP string
	workDir  string
}

func (e *Engine) key(op Operation) (operationKey, error) {
	workDir := op.WorkDir
	if workDir == "" {
		workDir = e.workDir
	}
	files, envNames := splitInputs(op.Inputs)
	fileFP, err := e.fingerprinter.Fingerprint(files, workDir)
	if err != nil {
		return operationKey{}, err
	}
	return operationKey{
		action:   op.ActionName(),
		inputFP:  envDigest(fileFP, envNames),
		outputFP: shapeDigest(op.Outputs),
		workDir:  workDir,
	}, nil
}

func (e *Engine) compressed(op Operation) bool {
	if op.Compress != nil {
		return *op.Compress
	}
	return e.compress
}

// Lookup computes the operation's fingerprints and returns the matching
// non-expired cache entry, or nil on a miss.
//
// A matching record whose archive file is absent from disk is treated as a
// miss, not an error: the stale record is dropped best-effort so the cache
// self-heals after partial deletion.
func (e *Engine) Lookup(ctx context.Context, op Operation) (*Result, error) {
	if err := e.Sync(ctx); err != nil {
		return nil, err
	}
	key, err := e.key(op)
	if err != nil {
		return nil, err
	}
	return e.lookupKey(ctx, key)
}

func (e *Engine) lookupKey(ctx context.Context, key operationKey) (*Result, error) {
	q := Query{
		Action:            key.action,
		InputFingerprint:  key.inputFP,
		OutputFingerprint: key.outputFP,
		Now:               e.now(),
	}
	e.observer.OnQuery(ctx, &QueryEvent{Query: q})

	r, err := e.store.FindOne(ctx, q)
	if err != nil || r == nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(e.dir, r.ArchiveFile)); err != nil {
		_ = e.store.RemoveIDs(ctx, r.ID)
		return nil, nil
	}
	return r, nil
}

// Restore extracts the operation's cached outputs into its working
// directory. It returns ErrNotCached when Lookup reports a miss. An
// extraction failure is propagated as-is: a corrupt or partial archive
// leaves workspace state ambiguous and must not be masked.
func (e *Engine) Restore(ctx context.Context, op Operation) (*Restored, error) {
	if err := e.Sync(ctx); err != nil {
		return nil, err
	}
	key, err := e.key(op)
	if err != nil {
		return nil, err
	}
	r, err := e.lookupKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotCached, key.action)
	}

	e.observer.OnRestore(ctx, &RestoreEvent{Operation: op, Result: *r})

	start := e.now()
	archivePath := filepath.Join(e.dir, r.ArchiveFile)
	if err := e.codec.Extract(archivePath, key.workDir); err != nil {
		return nil, &ArchiveError{Op: "extract", Path: r.ArchiveFile, Cause: err}
	}
	return &Restored{Result: *r, Runtime: e.now().Sub(start)}, nil
}

// Store archives the operation's declared outputs and persists a new cache
// entry. It is called after the operation's callable has already executed
// successfully; runtime is how long that execution took.
func (e *Engine) Store(ctx context.Context, op Operation, runtime time.Duration) (*Saved, error) {
	if err := e.Sync(ctx); err != nil {
		return nil, err
	}
	key, err := e.key(op)
	if err != nil {
		return nil, err
	}

	compressed := e.compressed(op)
	created := e.now()
	r := Result{
		Action:            key.action,
		InputFingerprint:  key.inputFP,
		OutputFingerprint: key.outputFP,
		Runtime:           runtime,
		Created:           created,
		Compressed:        compressed,
	}
	if op.TTL != 0 {
		r.Expires = created.Add(op.TTL)
	}

	name, err := archiveName(e.dir, key.action, key.inputFP, compressed)
	if err != nil {
		return nil, err
	}
	r.ArchiveFile = name

	e.observer.OnStore(ctx, &StoreEvent{Operation: op})

	storeStart := e.now()
	archivePath := filepath.Join(e.dir, name)
	sink, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &ArchiveError{Op: "write", Path: name, Cause: err}
	}
	written, err := e.codec.Write(op.Outputs, key.workDir, sink, compressed)
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(archivePath)
		return nil, &ArchiveError{Op: "write", Path: name, Cause: err}
	}
	r.FileSize = written
	if written == 0 {
		// Codec did not count; fall back to a best-effort stat. A failed
		// stat leaves FileSize zero rather than failing the store.
		if info, statErr := os.Stat(archivePath); statErr == nil {
			r.FileSize = info.Size()
		}
	}

	if err := e.store.Insert(ctx, &r); err != nil {
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("stash: persisting result: %w", err)
	}
	if err := e.Sync(ctx); err != nil {
		return nil, err
	}

	e.observer.OnSaved(ctx, &SavedEvent{Operation: op, Result: r})
	return &Saved{
		Result:       r,
		Runtime:      runtime,
		StoreRuntime: e.now().Sub(storeStart),
	}, nil
}

// Run executes the operation's callable, times it, and stores the outputs.
func (e *Engine) Run(ctx context.Context, op Operation) (*Saved, error) {
	runtime, err := e.exec(ctx, op)
	if err != nil {
		return nil, err
	}
	return e.Store(ctx, op, runtime)
}

// RunDetached executes the operation's callable and returns as soon as it
// completes; archiving continues in the background. The returned Pending
// resolves when the entry has been persisted, for callers who don't need to
// block on archival but want eventual confirmation.
func (e *Engine) RunDetached(ctx context.Context, op Operation) (*Pending, error) {
	runtime, err := e.exec(ctx, op)
	if err != nil {
		return nil, err
	}
	p := &Pending{
		Runtime: runtime,
		done:    make(chan struct{}),
	}
	// Archival always runs to completion; a cancellation after the callable
	// finished must not leave a half-written entry behind.
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(p.done)
		p.saved, p.err = e.Store(bg, op, runtime)
	}()
	return p, nil
}

func (e *Engine) exec(ctx context.Context, op Operation) (time.Duration, error) {
	if op.Exec == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingExec, op.ActionName())
	}
	if err := e.Sync(ctx); err != nil {
		return 0, err
	}
	e.observer.OnRun(ctx, &RunEvent{Operation: op})
	start := e.now()
	if err := op.Exec(ctx); err != nil {
		return 0, fmt.Errorf("stash: operation %s: %w", op.ActionName(), err)
	}
	return e.now().Sub(start), nil
}

// Sync runs the maintenance pass: ensure the workspace directory exists,
// reconcile the store, drop expired entries, evict down to the size budget,
// and delete orphaned archive files.
//
// Sync is reentrant-safe: a caller invoking it while a pass is already in
// flight awaits that pass instead of starting a duplicate one.
func (e *Engine) Sync(ctx context.Context) error {
	_, err, _ := e.syncGroup.Do("sync", func() (any, error) {
		return nil, e.syncPass(ctx)
	})
	return err
}

func (e *Engine) syncPass(ctx context.Context) error {
	e.observer.OnSync(ctx)

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("stash: creating workspace: %w", err)
	}
	if err := e.store.Sync(ctx); err != nil {
		return fmt.Errorf("stash: syncing store: %w", err)
	}

	now := e.now()
	expired, err := e.expiredResults(ctx, now)
	if err != nil {
		return err
	}
	e.removeResults(ctx, expired)

	all, err := e.store.All(ctx)
	if err != nil {
		return err
	}
	var total int64
	for _, r := range all {
		total += r.FileSize
	}
	var victims []Result
	if e.maxBytes > 0 {
		victims = selectForRemoval(all, e.maxBytes, total)
		e.removeResults(ctx, victims)
	}
	e.observer.OnCleanup(ctx, &CleanupEvent{
		CurrentBytes: total,
		AllowedBytes: e.maxBytes,
		Removed:      len(victims),
	})

	e.cleanOrphans(ctx)
	return nil
}

func (e *Engine) expiredResults(ctx context.Context, now time.Time) ([]Result, error) {
	all, err := e.store.All(ctx)
	if err != nil {
		return nil, err
	}
	var expired []Result
	for _, r := range all {
		if r.Expired(now) {
			expired = append(expired, r)
		}
	}
	return expired, nil
}

// removeResults drops records and their archive files. File deletion is
// best-effort: a file that cannot be removed must not abort the pass, and a
// leftover blob is picked up by a later orphan sweep.
func (e *Engine) removeResults(ctx context.Context, results []Result) {
	if len(results) == 0 {
		return
	}
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ID
		_ = os.Remove(filepath.Join(e.dir, r.ArchiveFile))
	}
	_ = e.store.RemoveIDs(ctx, ids...)
}

// cleanOrphans deletes on-disk archive files with no corresponding record,
// using an allow-list of all currently tracked filenames. Best-effort.
func (e *Engine) cleanOrphans(ctx context.Context) {
	all, err := e.store.All(ctx)
	if err != nil {
		return
	}
	tracked := make(map[string]struct{}, len(all))
	for _, r := range all {
		tracked[r.ArchiveFile] = struct{}{}
	}
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isArchiveFile(name) {
			continue
		}
		if _, ok := tracked[name]; ok {
			continue
		}
		_ = os.Remove(filepath.Join(e.dir, name))
	}
}
