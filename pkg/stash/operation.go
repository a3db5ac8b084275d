package stash

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Operation describes one cacheable unit of work.
//
// Inputs and Outputs are interpreted relative to WorkDir (or the engine's
// default working directory when WorkDir is empty). An input of the form
// "$NAME" refers to the environment variable NAME rather than a file; its
// literal value participates in the fingerprint, so changing the variable
// invalidates the cache just like changing a file would.
type Operation struct {
	// Action identifies a family of cache entries. If empty, it is derived
	// deterministically from the sorted input and output lists.
	Action string

	// Inputs are the paths, glob patterns, and $NAME environment references
	// the operation reads.
	Inputs []string

	// Outputs are the paths and glob patterns the operation produces.
	Outputs []string

	// TTL bounds the lifetime of the cache entry. 0 means the entry never
	// expires by time. A negative TTL produces an already-expired entry,
	// which the next maintenance pass drops.
	TTL time.Duration

	// Compress overrides the engine's default compression setting when
	// non-nil.
	Compress *bool

	// WorkDir is the base path against which relative inputs and outputs
	// resolve. Empty means the engine default.
	WorkDir string

	// Exec runs the operation. Required for Engine.Run and flow execution;
	// Lookup, Restore, and Store work without it.
	Exec func(ctx context.Context) error
}

// EnvPrefix marks an input entry as an environment variable reference.
const EnvPrefix = "$"

// ActionName returns the explicit Action, or the derived
// "<inputs> > <outputs>" identifier when none was set.
func (op Operation) ActionName() string {
	if op.Action != "" {
		return op.Action
	}
	inputs := append([]string(nil), op.Inputs...)
	outputs := append([]string(nil), op.Outputs...)
	sort.Strings(inputs)
	sort.Strings(outputs)
	return strings.Join(inputs, " ") + " > " + strings.Join(outputs, " ")
}

// splitInputs separates file patterns from $NAME environment references,
// preserving declaration order within each group.
func splitInputs(inputs []string) (files, envNames []string) {
	for _, in := range inputs {
		if strings.HasPrefix(in, EnvPrefix) {
			envNames = append(envNames, strings.TrimPrefix(in, EnvPrefix))
			continue
		}
		files = append(files, in)
	}
	return files, envNames
}
