// Package stash memoizes expensive file-producing operations.
//
// An [Operation] declares the inputs an arbitrary callable reads and the
// output files it produces. The [Engine] fingerprints the declared inputs,
// and on a repeat invocation with an unchanged fingerprint restores the
// previously archived outputs instead of executing the callable again.
//
// Cache entries are kept in a workspace directory: one archive file per
// entry plus a metadata record in a [Store]. The default store is a JSON
// document file inside the workspace; SQL, Postgres, and Redis backed
// stores are available for shared setups.
//
// # Quick start
//
//	engine, err := stash.New(".stash")
//	if err != nil {
//	    return err
//	}
//	saved, err := engine.Run(ctx, stash.Operation{
//	    Inputs:  []string{"src/*.c"},
//	    Outputs: []string{"bin/app"},
//	    Exec:    compile,
//	})
//
// Multi-step pipelines are sequenced by the flow package, which decides per
// step whether to run, restore from cache, or skip entirely.
package stash
