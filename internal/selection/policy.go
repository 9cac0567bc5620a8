// Package selection implements the grid's rarity-aware scheduling policy:
// a prefilter that keeps scarce capability nodes out of requests that
// abundant capacity can serve, followed by a deterministic multi-key
// ordering over whatever candidates remain.
package selection

import (
	"github.com/sebas/distgrid/internal/capability"
	"github.com/sebas/distgrid/internal/node"
)

// Candidate is the minimal view the policy needs of a node, so it stays a
// pure function of data rather than reaching into *node.Handle directly.
type Candidate struct {
	ID                   string
	LastSessionCreatedAt int64
	Load                 float64
	Stereotypes          []capability.Stereotype
	Handle               *node.Handle
}

// bucketize groups candidates by every stereotype browser name they
// advertise. A node with stereotypes for both "chrome" and "edge" appears
// in both buckets.
func bucketize(candidates []Candidate) map[string][]Candidate {
	buckets := make(map[string][]Candidate)
	for _, c := range candidates {
		seen := make(map[string]bool, len(c.Stereotypes))
		for _, st := range c.Stereotypes {
			name := st.BrowserName()
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			buckets[name] = append(buckets[name], c)
		}
	}
	return buckets
}

func equalSized(buckets map[string][]Candidate) bool {
	size := -1
	for _, b := range buckets {
		if size == -1 {
			size = len(b)
			continue
		}
		if len(b) != size {
			return false
		}
	}
	return true
}

func unionDistinct(buckets map[string][]Candidate) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	for _, b := range buckets {
		for _, c := range b {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out
}

// bucketSize pairs a browser name with its bucket's size, for sort-by-size
// iteration.
type bucketSize struct {
	name string
	size int
}

func sortedBySize(buckets map[string][]Candidate) []bucketSize {
	sizes := make([]bucketSize, 0, len(buckets))
	for name, b := range buckets {
		sizes = append(sizes, bucketSize{name: name, size: len(b)})
	}
	// insertion sort: bucket counts are small (bounded by distinct
	// browser names in the fleet), no need for sort.Slice's overhead or
	// import.
	for i := 1; i < len(sizes); i++ {
		for j := i; j > 0 && sizes[j].size < sizes[j-1].size; j-- {
			sizes[j], sizes[j-1] = sizes[j-1], sizes[j]
		}
	}
	return sizes
}

func removeNodes(candidates []Candidate, toRemove map[string]bool) []Candidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if !toRemove[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// Prefilter applies the rarity prefilter (spec §4.4 steps 1-3) to S for a
// request targeting browser B, returning the distinct candidate set the
// Distributor should rank and pick from.
//
// The algorithm is pure and deterministic given S and B: bucketize by
// browser name; if every bucket is already the same size, return the union
// unchanged; otherwise repeatedly drop the smallest non-B bucket's nodes
// and rebucketize until all buckets are equal-sized, stopping and falling
// back to the original S if that never happens.
func Prefilter(candidates []Candidate, browserName string) []Candidate {
	buckets := bucketize(candidates)
	if len(buckets) == 0 {
		return nil
	}
	if equalSized(buckets) {
		return unionDistinct(buckets)
	}

	working := candidates
	for {
		buckets = bucketize(working)
		if equalSized(buckets) {
			return unionDistinct(buckets)
		}

		sizes := sortedBySize(buckets)
		progressed := false
		for _, bs := range sizes {
			if bs.name == browserName {
				continue
			}
			toRemove := make(map[string]bool, bs.size)
			for _, c := range buckets[bs.name] {
				toRemove[c.ID] = true
			}
			next := removeNodes(working, toRemove)
			if len(next) == len(working) {
				continue
			}
			working = next
			progressed = true
			break
		}
		if !progressed {
			// No eligible bucket to drop without hitting B and the
			// equal-size stopping condition was never met: fall back to
			// the original, unfiltered candidate set.
			return unionDistinct(bucketize(candidates))
		}
		if len(working) == 0 {
			return unionDistinct(bucketize(candidates))
		}
	}
}

// Best returns the minimum candidate by (load asc, lastSessionCreatedAt asc,
// id asc), or false if candidates is empty. This is the Distributor's final
// tie-break step after Prefilter has narrowed the set.
func Best(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if less(c, best) {
			best = c
		}
	}
	return best, true
}

func less(a, b Candidate) bool {
	if a.Load != b.Load {
		return a.Load < b.Load
	}
	if a.LastSessionCreatedAt != b.LastSessionCreatedAt {
		return a.LastSessionCreatedAt < b.LastSessionCreatedAt
	}
	return a.ID < b.ID
}
