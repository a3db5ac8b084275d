package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"stash/pkg/stash"
)

// Status is a step's resolved decision.
type Status int

const (
	// StatusUnresolved means evaluation has not decided yet.
	StatusUnresolved Status = iota

	// StatusRun means the step's callable executes.
	StatusRun

	// StatusRestore means the step's outputs are restored from cache.
	StatusRestore

	// StatusSkip means the step does nothing: its output is unneeded
	// because a later step's cached result already exists.
	StatusSkip
)

func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusRun:
		return "run"
	case StatusRestore:
		return "restore"
	case StatusSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// step wraps either a cacheable operation or an opaque callable.
type step struct {
	name         string
	op           *stash.Operation
	call         func(ctx context.Context) error
	intermediate bool

	status    Status
	evaluated bool
	executed  bool

	// forward is the index of the later step whose cached result made this
	// step skippable, or -1.
	forward int
}

// StepInfo is a read-only view of a step for introspection.
type StepInfo struct {
	Name         string
	Status       Status
	Intermediate bool

	// Forward is the index of the step this one was skipped in favor of,
	// or -1.
	Forward int
}

// Option configures a Flow.
type Option interface {
	apply(*Flow)
}

type optionFunc func(*Flow)

func (f optionFunc) apply(fl *Flow) {
	f(fl)
}

// WithLogger sets a logger for per-step decision logging.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(f *Flow) {
		f.logger = logger
	})
}

// Flow is an ordered sequence of steps executed against one cache engine.
//
// Steps are owned by the flow for the duration of one Run batch and are not
// reused across batches; add fresh steps for each run. Flow is not safe for
// concurrent use.
type Flow struct {
	engine *stash.Engine
	logger *slog.Logger
	steps  []*step
}

// New creates an empty flow bound to the engine.
func New(engine *stash.Engine, opts ...Option) *Flow {
	f := &Flow{engine: engine}
	for _, opt := range opts {
		opt.apply(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	return f
}

// Add appends a final (non-intermediate) cacheable step.
func (f *Flow) Add(op stash.Operation) *Flow {
	f.steps = append(f.steps, &step{
		name:    op.ActionName(),
		op:      &op,
		forward: -1,
	})
	return f
}

// AddIntermediate appends a cacheable step whose output may turn out to be
// unnecessary if a later step is already fully cached.
func (f *Flow) AddIntermediate(op stash.Operation) *Flow {
	f.steps = append(f.steps, &step{
		name:         op.ActionName(),
		op:           &op,
		intermediate: true,
		forward:      -1,
	})
	return f
}

// AddCall appends a non-cacheable callable step. Such steps always run.
func (f *Flow) AddCall(name string, fn func(ctx context.Context) error) *Flow {
	f.steps = append(f.steps, &step{
		name:    name,
		call:    fn,
		forward: -1,
	})
	return f
}

// Steps returns a snapshot of every step's resolution state.
func (f *Flow) Steps() []StepInfo {
	infos := make([]StepInfo, len(f.steps))
	for i, s := range f.steps {
		infos[i] = StepInfo{
			Name:         s.name,
			Status:       s.status,
			Intermediate: s.intermediate,
			Forward:      s.forward,
		}
	}
	return infos
}

// Run evaluates any newly added steps and executes the whole batch in
// declaration order. Every step executes exactly one of run, restore, or
// skip; execution is strictly sequential because a later step may read
// files an earlier step just wrote.
func (f *Flow) Run(ctx context.Context) error {
	if err := f.evaluate(ctx); err != nil {
		return err
	}
	for i, s := range f.steps {
		if s.status == StatusUnresolved {
			return &UnresolvedStepError{Index: i, Name: s.name}
		}
	}
	return f.execute(ctx)
}

// evaluate decides each unevaluated step's status. Final steps resolve
// through a cache lookup; immediately afterwards, earlier intermediate
// steps they depend on are resolved: skipped when the final step restores,
// looked up themselves when it runs. Intermediates no final step claims
// default to skip.
func (f *Flow) evaluate(ctx context.Context) error {
	for i, s := range f.steps {
		if s.evaluated || s.intermediate {
			continue
		}
		if err := f.resolve(ctx, s); err != nil {
			return err
		}
		s.evaluated = true
		if err := f.resolveDependencies(ctx, i, s); err != nil {
			return err
		}
	}
	for _, s := range f.steps {
		if s.intermediate && !s.evaluated {
			s.status = StatusSkip
			s.evaluated = true
		}
	}
	return nil
}

// resolve decides run vs restore for a single step via the engine. A
// fingerprint failure counts as a miss rather than an error: on a cold
// pipeline a step's inputs do not exist until upstream steps produce them,
// so nothing cached can match and the step must run.
func (f *Flow) resolve(ctx context.Context, s *step) error {
	if s.op == nil {
		s.status = StatusRun
		return nil
	}
	r, err := f.engine.Lookup(ctx, *s.op)
	if err != nil {
		var fpErr *stash.FingerprintError
		if errors.As(err, &fpErr) {
			s.status = StatusRun
			return nil
		}
		return err
	}
	if r != nil {
		s.status = StatusRestore
	} else {
		s.status = StatusRun
	}
	return nil
}

// resolveDependencies resolves the intermediate dependencies of the final
// step at index i. The search is bounded to earlier-or-equal-indexed steps.
func (f *Flow) resolveDependencies(ctx context.Context, i int, final *step) error {
	if final.op == nil {
		return nil
	}
	for j := 0; j <= i; j++ {
		dep := f.steps[j]
		if !dep.intermediate || dep.evaluated || dep.status != StatusUnresolved || dep.op == nil {
			continue
		}
		if !dependsOn(final.op.Inputs, dep.op.Outputs) {
			continue
		}
		if final.status == StatusRestore {
			// The final step's result already exists, so this output is
			// unneeded: no run, no restore, side effects never happen.
			dep.status = StatusSkip
			dep.forward = i
		} else if err := f.resolve(ctx, dep); err != nil {
			return err
		}
		dep.evaluated = true
	}
	return nil
}

// dependsOn reports whether any declared input depends on any declared
// output pattern. Input path P depends on output pattern Q when P equals Q,
// or P starts with Q after stripping a trailing wildcard. This prefix
// heuristic can over- and under-match versus true glob semantics;
// tightening it would silently change which steps get skipped.
func dependsOn(inputs, outputs []string) bool {
	for _, in := range inputs {
		if strings.HasPrefix(in, stash.EnvPrefix) {
			continue
		}
		for _, out := range outputs {
			if in == out {
				return true
			}
			if prefix := strings.TrimSuffix(out, "*"); strings.HasPrefix(in, prefix) {
				return true
			}
		}
	}
	return false
}

func (f *Flow) execute(ctx context.Context) error {
	for i, s := range f.steps {
		if s.executed {
			continue
		}
		switch s.status {
		case StatusRun:
			f.logger.InfoContext(ctx, "flow step running", slog.Int("step", i), slog.String("name", s.name))
			if s.op != nil {
				if _, err := f.engine.Run(ctx, *s.op); err != nil {
					return err
				}
			} else if err := s.call(ctx); err != nil {
				return err
			}
		case StatusRestore:
			f.logger.InfoContext(ctx, "flow step restoring", slog.Int("step", i), slog.String("name", s.name))
			if _, err := f.engine.Restore(ctx, *s.op); err != nil {
				return err
			}
		case StatusSkip:
			f.logger.InfoContext(ctx, "flow step skipped",
				slog.Int("step", i),
				slog.String("name", s.name),
				slog.Int("forward", s.forward),
			)
		}
		s.executed = true
	}
	return nil
}
