package stash

import (
	"math"
	"sort"
	"time"
)

const (
	// recencyWindow normalizes the creation-time bonus: results one window
	// apart differ by one scoring point.
	recencyWindow = 31 * 24 * time.Hour

	// redundancyPenalty deprioritizes a result whose action has a strictly
	// newer sibling.
	redundancyPenalty = 20
)

// score rates a result's relevance for retention. Higher scores are kept
// longer. Components, in order: small archives and expensive computations
// score higher, newer results get a slight bonus, and a stale duplicate of a
// still-relevant action is heavily deprioritized. Non-finite components are
// excluded from the sum rather than poisoning it.
func score(r Result, all []Result) float64 {
	var total float64
	addFinite := func(v float64) {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			total += v
		}
	}

	addFinite(-math.Log10(float64(r.FileSize)))
	addFinite(2 * math.Log10(float64(r.Runtime.Milliseconds())))
	addFinite(float64(r.Created.UnixMilli()) / float64(recencyWindow.Milliseconds()))

	for _, other := range all {
		if other.ID != r.ID && other.Action == r.Action && other.Created.After(r.Created) {
			addFinite(-redundancyPenalty)
			break
		}
	}
	return total
}

// selectForRemoval picks the results to evict so total size drops to
// maxBytes or below. It scores every result once against the pre-removal
// set, then greedily removes lowest scores first. Ties order by record ID
// ascending, so selection is deterministic even for results created within
// the same millisecond.
func selectForRemoval(all []Result, maxBytes, currentBytes int64) []Result {
	if currentBytes <= maxBytes {
		return nil
	}

	type scored struct {
		result Result
		score  float64
	}
	candidates := make([]scored, len(all))
	for i, r := range all {
		candidates[i] = scored{result: r, score: score(r, all)}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].result.ID < candidates[j].result.ID
	})

	var removed []Result
	remaining := currentBytes
	for _, c := range candidates {
		if remaining <= maxBytes {
			break
		}
		removed = append(removed, c.result)
		remaining -= c.result.FileSize
	}
	return removed
}
