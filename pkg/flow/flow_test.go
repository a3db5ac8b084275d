package flow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stash/pkg/stash"
)

// pipeline is the classic three-stage shape: fetch produces sources under
// build/, compile turns them into an object, package turns the object into
// the distributable.
type pipeline struct {
	work   string
	engine *stash.Engine

	fetchRuns   int
	compileRuns int
	packageRuns int
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	work := t.TempDir()
	if err := os.WriteFile(filepath.Join(work, "remote.lock"), []byte("rev-1"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	engine, err := stash.New(t.TempDir(), stash.WithWorkDir(work))
	if err != nil {
		t.Fatalf("stash.New failed: %v", err)
	}
	return &pipeline{work: work, engine: engine}
}

func (p *pipeline) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(p.work, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s failed: %v", name, err)
	}
}

func (p *pipeline) fetch(t *testing.T) stash.Operation {
	return stash.Operation{
		Action:  "fetch",
		Inputs:  []string{"remote.lock"},
		Outputs: []string{"build/*"},
		Exec: func(ctx context.Context) error {
			p.fetchRuns++
			p.write(t, "build/src.c", "int main() {}")
			return nil
		},
	}
}

func (p *pipeline) compile(t *testing.T) stash.Operation {
	return stash.Operation{
		Action:  "compile",
		Inputs:  []string{"build/src.c"},
		Outputs: []string{"build/obj.o"},
		Exec: func(ctx context.Context) error {
			p.compileRuns++
			p.write(t, "build/obj.o", "OBJ")
			return nil
		},
	}
}

func (p *pipeline) pack(t *testing.T) stash.Operation {
	return stash.Operation{
		Action:  "package",
		Inputs:  []string{"build/obj.o"},
		Outputs: []string{"dist/app"},
		Exec: func(ctx context.Context) error {
			p.packageRuns++
			p.write(t, "dist/app", "APP")
			return nil
		},
	}
}

func (p *pipeline) flow(t *testing.T) *Flow {
	return New(p.engine).
		AddIntermediate(p.fetch(t)).
		AddIntermediate(p.compile(t)).
		Add(p.pack(t))
}

func assertStatuses(t *testing.T, f *Flow, want ...Status) {
	t.Helper()
	steps := f.Steps()
	if len(steps) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(steps))
	}
	for i, s := range steps {
		if s.Status != want[i] {
			t.Errorf("step %d (%s) status = %s, want %s", i, s.Name, s.Status, want[i])
		}
	}
}

func TestFlowColdRunExecutesAll(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	if err := p.flow(t).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if p.fetchRuns != 1 || p.compileRuns != 1 || p.packageRuns != 1 {
		t.Errorf("expected each stage to run once, got %d/%d/%d",
			p.fetchRuns, p.compileRuns, p.packageRuns)
	}
	if _, err := os.Stat(filepath.Join(p.work, "dist/app")); err != nil {
		t.Errorf("final output missing: %v", err)
	}
}

func TestFlowFullyCachedSkipsIntermediates(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	if err := p.flow(t).Run(ctx); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// Lose only the final output; the cached package entry makes both
	// intermediate stages unnecessary.
	if err := os.Remove(filepath.Join(p.work, "dist/app")); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	f := p.flow(t)
	if err := f.Run(ctx); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	assertStatuses(t, f, StatusSkip, StatusSkip, StatusRestore)
	if p.fetchRuns != 1 || p.compileRuns != 1 || p.packageRuns != 1 {
		t.Errorf("cached flow re-ran stages: %d/%d/%d",
			p.fetchRuns, p.compileRuns, p.packageRuns)
	}
	if _, err := os.Stat(filepath.Join(p.work, "dist/app")); err != nil {
		t.Errorf("final output not restored: %v", err)
	}

	steps := f.Steps()
	for i := range 2 {
		if steps[i].Forward != 2 {
			t.Errorf("step %d forward = %d, want 2", i, steps[i].Forward)
		}
	}
}

func TestFlowInvalidatedFinalRestoresIntermediates(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	if err := p.flow(t).Run(ctx); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// Invalidate only the package entry: give it an extra input the other
	// stages don't read, then change that input.
	p.write(t, "version.txt", "1.0")
	packV := p.pack(t)
	packV.Inputs = append(packV.Inputs, "version.txt")

	first := New(p.engine).
		AddIntermediate(p.fetch(t)).
		AddIntermediate(p.compile(t)).
		Add(packV)
	if err := first.Run(ctx); err != nil {
		t.Fatalf("versioned Run failed: %v", err)
	}
	packagesSoFar := p.packageRuns

	p.write(t, "version.txt", "2.0")
	packV2 := p.pack(t)
	packV2.Inputs = append(packV2.Inputs, "version.txt")

	f := New(p.engine).
		AddIntermediate(p.fetch(t)).
		AddIntermediate(p.compile(t)).
		Add(packV2)
	if err := f.Run(ctx); err != nil {
		t.Fatalf("invalidated Run failed: %v", err)
	}

	// The final stage misses and re-runs; its dependencies restore from
	// cache instead of re-running.
	assertStatuses(t, f, StatusRestore, StatusRestore, StatusRun)
	if p.packageRuns != packagesSoFar+1 {
		t.Errorf("package ran %d times, want %d", p.packageRuns, packagesSoFar+1)
	}
	if p.fetchRuns != 1 || p.compileRuns != 1 {
		t.Errorf("intermediates re-ran: fetch=%d compile=%d", p.fetchRuns, p.compileRuns)
	}
}

func TestFlowUnclaimedIntermediateSkips(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	ran := false
	unrelated := stash.Operation{
		Action:  "unrelated",
		Inputs:  []string{"remote.lock"},
		Outputs: []string{"scratch/tmp.bin"},
		Exec: func(ctx context.Context) error {
			ran = true
			return nil
		},
	}

	f := New(p.engine).
		AddIntermediate(unrelated).
		AddIntermediate(p.fetch(t)).
		AddIntermediate(p.compile(t)).
		Add(p.pack(t))
	if err := f.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	assertStatuses(t, f, StatusSkip, StatusRun, StatusRun, StatusRun)
	if ran {
		t.Error("unclaimed intermediate must not execute")
	}
}

func TestFlowRawCallableAlwaysRuns(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	calls := 0
	for range 2 {
		f := New(p.engine).AddCall("notify", func(ctx context.Context) error {
			calls++
			return nil
		})
		if err := f.Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("raw callable ran %d times, want 2", calls)
	}
}

func TestFlowCallableErrorStopsExecution(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	boom := errors.New("boom")
	reached := false
	f := New(p.engine).
		AddCall("explode", func(ctx context.Context) error { return boom }).
		AddCall("after", func(ctx context.Context) error {
			reached = true
			return nil
		})
	if err := f.Run(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if reached {
		t.Error("execution continued past a failed step")
	}
}

func TestFlowStepsSnapshot(t *testing.T) {
	p := newPipeline(t)
	f := p.flow(t)

	steps := f.Steps()
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	for i, s := range steps {
		if s.Status != StatusUnresolved {
			t.Errorf("step %d status = %s before Run, want unresolved", i, s.Status)
		}
	}
	if !steps[0].Intermediate || steps[2].Intermediate {
		t.Error("intermediate flags not reflected")
	}
}

func TestDependsOn(t *testing.T) {
	cases := []struct {
		inputs  []string
		outputs []string
		want    bool
	}{
		{[]string{"build/obj.o"}, []string{"build/obj.o"}, true},
		{[]string{"build/obj.o"}, []string{"build/*"}, true},
		{[]string{"build/deep/file"}, []string{"build/*"}, true},
		{[]string{"dist/app"}, []string{"build/*"}, false},
		{[]string{"$CC", "dist/app"}, []string{"$CC"}, false},
		{[]string{"builder.txt"}, []string{"build*"}, true},
		{[]string{}, []string{"build/*"}, false},
	}
	for _, c := range cases {
		if got := dependsOn(c.inputs, c.outputs); got != c.want {
			t.Errorf("dependsOn(%v, %v) = %v, want %v", c.inputs, c.outputs, got, c.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusUnresolved: "unresolved",
		StatusRun:        "run",
		StatusRestore:    "restore",
		StatusSkip:       "skip",
		Status(99):       "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
