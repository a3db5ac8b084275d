package stash

import (
	"context"
	"time"
)

// Query selects a non-expired record by the lookup key triple. Action is
// always part of the key: two operations differing only by action never
// match each other's results, even with identical fingerprints.
type Query struct {
	Action            string
	InputFingerprint  string
	OutputFingerprint string

	// Now is the instant expiry is evaluated against.
	Now time.Time
}

// Matches reports whether r satisfies the query.
func (q Query) Matches(r Result) bool {
	return r.Action == q.Action &&
		r.InputFingerprint == q.InputFingerprint &&
		r.OutputFingerprint == q.OutputFingerprint &&
		!r.Expired(q.Now)
}

// Store is an ordered collection of Results persisted across process
// restarts.
//
// Implementations must be safe for concurrent use. Insert assigns the
// record's ID; FindOne returns the first match in insertion order, or nil.
// The engine owns its store handle for the engine's lifetime and serializes
// all mutation through its own entry points.
type Store interface {
	// Sync opens or reconciles the backing storage. It must be idempotent
	// and reflect writes made before a process restart.
	Sync(ctx context.Context) error

	// All returns every record in insertion order.
	All(ctx context.Context) ([]Result, error)

	// Insert persists a new record and assigns its ID.
	Insert(ctx context.Context, r *Result) error

	// FindOne returns the first record matching q, or nil.
	FindOne(ctx context.Context, q Query) (*Result, error)

	// RemoveWhere deletes every record the predicate selects and returns
	// how many were removed.
	RemoveWhere(ctx context.Context, pred func(Result) bool) (int, error)

	// RemoveIDs deletes records by ID. Unknown IDs are ignored.
	RemoveIDs(ctx context.Context, ids ...int64) error
}
