package stash

import (
	"testing"
	"time"
)

func evictResult(id int64, action string, size int64, runtime time.Duration, created time.Time) Result {
	return Result{
		ID:       id,
		Action:   action,
		FileSize: size,
		Runtime:  runtime,
		Created:  created,
	}
}

func TestScoreOrdering(t *testing.T) {
	now := time.Now()

	small := evictResult(1, "a", 1_000, time.Second, now)
	large := evictResult(2, "b", 1_000_000, time.Second, now)
	if score(small, nil) <= score(large, nil) {
		t.Error("smaller archive should score higher than larger one")
	}

	cheap := evictResult(3, "c", 1_000, 10*time.Millisecond, now)
	expensive := evictResult(4, "d", 1_000, time.Minute, now)
	if score(expensive, nil) <= score(cheap, nil) {
		t.Error("expensive computation should score higher than cheap one")
	}

	old := evictResult(5, "e", 1_000, time.Second, now.Add(-90*24*time.Hour))
	fresh := evictResult(6, "f", 1_000, time.Second, now)
	if score(fresh, nil) <= score(old, nil) {
		t.Error("newer result should score higher than older one")
	}
}

func TestScoreRedundancyPenalty(t *testing.T) {
	now := time.Now()
	stale := evictResult(1, "build", 1_000, time.Second, now.Add(-time.Hour))
	newer := evictResult(2, "build", 1_000, time.Second, now)
	all := []Result{stale, newer}

	if score(stale, all) >= score(newer, all) {
		t.Error("result with a newer sibling of the same action should score lower")
	}
	// The newest of an action carries no penalty.
	alone := evictResult(3, "test", 1_000, time.Second, now)
	withAlone := append(all, alone)
	if score(alone, withAlone) != score(alone, []Result{alone}) {
		t.Error("sibling of a different action should not affect the score")
	}
}

func TestScoreNonFiniteComponents(t *testing.T) {
	now := time.Now()
	// Zero size and zero runtime make both log terms non-finite; the score
	// must still come out finite from the remaining component.
	degenerate := evictResult(1, "a", 0, 0, now)
	s := score(degenerate, nil)
	if s != float64(now.UnixMilli())/float64(recencyWindow.Milliseconds()) {
		t.Errorf("expected only the recency component, got %f", s)
	}
}

func TestSelectForRemovalUnderBudget(t *testing.T) {
	now := time.Now()
	all := []Result{
		evictResult(1, "a", 100, time.Second, now),
		evictResult(2, "b", 200, time.Second, now),
	}
	if got := selectForRemoval(all, 1000, 300); got != nil {
		t.Errorf("under budget should remove nothing, got %+v", got)
	}
}

func TestSelectForRemovalDropsToBudget(t *testing.T) {
	now := time.Now()
	all := []Result{
		evictResult(1, "a", 100, time.Second, now),
		evictResult(2, "b", 200, time.Second, now),
		evictResult(3, "c", 300, time.Second, now),
		evictResult(4, "d", 50, time.Second, now),
	}
	var total int64
	for _, r := range all {
		total += r.FileSize
	}

	removed := selectForRemoval(all, 400, total)
	if len(removed) == 0 {
		t.Fatal("expected evictions")
	}
	remaining := total
	for _, r := range removed {
		remaining -= r.FileSize
	}
	if remaining > 400 {
		t.Errorf("still over budget after removal: %d > 400", remaining)
	}

	// Stops as soon as the budget is met; never clears everything it
	// doesn't have to.
	if len(removed) == len(all) {
		t.Error("removed every record despite budget being reachable earlier")
	}
}

func TestSelectForRemovalLowestScoreFirst(t *testing.T) {
	now := time.Now()
	// Identical except size: the largest archive scores lowest and goes
	// first.
	all := []Result{
		evictResult(1, "a", 100, time.Second, now),
		evictResult(2, "b", 1_000_000, time.Second, now),
		evictResult(3, "c", 100, time.Second, now),
	}
	removed := selectForRemoval(all, 200, 1_000_200)
	if len(removed) == 0 || removed[0].ID != 2 {
		t.Fatalf("expected the large record evicted first, got %+v", removed)
	}
}

func TestSelectForRemovalTieBreakByID(t *testing.T) {
	created := time.UnixMilli(1_700_000_000_000)
	// Identical scores across the board.
	all := []Result{
		evictResult(7, "a", 100, time.Second, created),
		evictResult(3, "b", 100, time.Second, created),
		evictResult(5, "c", 100, time.Second, created),
	}
	removed := selectForRemoval(all, 150, 300)
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %d", len(removed))
	}
	if removed[0].ID != 3 || removed[1].ID != 5 {
		t.Errorf("tie-break should order by ID ascending, got %d then %d", removed[0].ID, removed[1].ID)
	}
}
