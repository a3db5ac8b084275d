// Package flow sequences cacheable operations into a pipeline.
//
// A [Flow] holds an ordered list of steps. Before executing, each step is
// resolved to exactly one of run, restore, or skip: a step runs when its
// inputs miss the cache, restores when they hit, and an intermediate step is
// skipped entirely when a later step that consumes its output is already
// fully cached, making the intermediate artifact provably unnecessary.
//
//	f := flow.New(engine)
//	f.AddIntermediate(fetch).
//	    AddIntermediate(compile).
//	    Add(pack)
//	err := f.Run(ctx)
//
// Steps execute strictly sequentially in declaration order, since a later
// step may depend on files an earlier step just wrote.
package flow
