// Package fuzz implements coverage-guided fuzzing of a single method.
// Inputs are keyed by the coverage depth the oracle reports, mutated
// at random, and crashes reached at new depths are checked for missing
// assertion guards and localized to argument positions.
package fuzz

import (
	"math/rand/v2"
	"slices"

	"github.com/unbound-force/assay/internal/args"
)

// Corpus keeps the smallest known witness per coverage depth. An
// entry only changes when a strictly smaller input reaches the same
// depth.
type Corpus struct {
	entries map[int]args.Tuple
}

// NewCorpus returns an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{entries: make(map[int]args.Tuple)}
}

// Len returns the number of depths covered.
func (c *Corpus) Len() int { return len(c.entries) }

// Has reports whether depth already has a witness.
func (c *Corpus) Has(depth int) bool {
	_, ok := c.entries[depth]
	return ok
}

// Get returns a copy of the witness for depth.
func (c *Corpus) Get(depth int) (args.Tuple, bool) {
	t, ok := c.entries[depth]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Offer stores input for depth if the depth is new or input is
// strictly smaller than the current witness. It reports whether the
// corpus changed.
func (c *Corpus) Offer(depth int, input args.Tuple) bool {
	if cur, ok := c.entries[depth]; ok && input.Size() >= cur.Size() {
		return false
	}
	c.entries[depth] = input.Clone()
	return true
}

// Depths returns the covered depths in ascending order.
func (c *Corpus) Depths() []int {
	out := make([]int, 0, len(c.entries))
	for d := range c.entries {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Pick returns a copy of a uniformly chosen witness. The corpus must
// not be empty.
func (c *Corpus) Pick(r *rand.Rand) args.Tuple {
	depths := c.Depths()
	return c.entries[depths[r.IntN(len(depths))]].Clone()
}
