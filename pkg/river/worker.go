// Package river provides integration between stash and River queue.
//
// It supplies a generic worker adapter that executes cache-aware flows as
// River jobs, handling context propagation for graceful shutdown and error
// classification for River's retry logic.
package river

import (
	"context"
	"errors"

	"github.com/riverqueue/river"

	"stash/pkg/flow"
)

// FlowWorker is a River worker that builds and runs a flow per job. It
// implements river.Worker for a specific JobArgs type.
//
// A fresh flow is built for every job because flow steps carry per-run
// resolution state and are not reused across batches.
type FlowWorker[Args river.JobArgs] struct {
	river.WorkerDefaults[Args]

	// Build constructs the flow to execute for the given job args.
	Build func(args Args) *flow.Flow
}

// NewFlowWorker creates a FlowWorker with the given flow builder.
func NewFlowWorker[Args river.JobArgs](build func(args Args) *flow.Flow) *FlowWorker[Args] {
	return &FlowWorker[Args]{Build: build}
}

// Work executes the flow for the given job.
func (w *FlowWorker[Args]) Work(ctx context.Context, job *river.Job[Args]) error {
	f := w.Build(job.Args)
	if err := f.Run(ctx); err != nil {
		return classifyError(err)
	}
	return nil
}

// classifyError converts flow errors to River-appropriate errors, helping
// River decide whether to retry or discard the job.
func classifyError(err error) error {
	// An unresolved step is a scheduler bug; retrying cannot help.
	var unresolved *flow.UnresolvedStepError
	if errors.As(err, &unresolved) {
		return river.JobCancel(err)
	}

	// Context cancellation - don't retry, the job was cancelled.
	if errors.Is(err, context.Canceled) {
		return river.JobCancel(err)
	}

	// Default: return error as-is, let River retry.
	return err
}
