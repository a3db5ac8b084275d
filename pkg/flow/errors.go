package flow

import "fmt"

// UnresolvedStepError reports that evaluation left a step without a
// decision. This is a scheduler invariant violation: it indicates a bug in
// the scheduler itself, is always fatal, and is never retried.
type UnresolvedStepError struct {
	// Index is the step's position in declaration order.
	Index int

	// Name identifies the step.
	Name string
}

func (e *UnresolvedStepError) Error() string {
	return fmt.Sprintf("flow: step %d (%s) left unresolved after evaluation", e.Index, e.Name)
}
