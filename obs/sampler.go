package obs

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/ezoic/arbor/pkg/errors"
)

// BagEntry is one distinct bagged row and the number of times it was drawn.
type BagEntry struct {
	Row    int
	SCount int
}

// Bagger supplies the bag of each tree.
type Bagger interface {
	// Bag returns the distinct rows drawn for tree tIdx, sorted by row.
	Bag(tIdx int) []BagEntry
	// NObs returns the number of training rows bags are drawn from.
	NObs() int
}

// Sampler draws per-tree bags reproducibly: the bag of tree tIdx depends
// only on the seed and tIdx, so trees may be bagged in any order or in
// parallel.
type Sampler struct {
	nObs            int
	nSamp           int
	withReplacement bool
	seed            uint64
}

// NewSampler creates a Sampler drawing nSamp rows out of nObs. A zero nSamp
// selects the default bag size: nObs with replacement, otherwise
// ceil(0.632*nObs), the expected number of distinct rows of a bootstrap.
func NewSampler(nObs, nSamp int, withReplacement bool, seed uint64) (*Sampler, error) {
	if nObs <= 0 {
		return nil, errors.NewValidationError("n_obs", "must be positive", nObs)
	}
	if nSamp == 0 {
		nSamp = nObs
		if !withReplacement {
			nSamp = int(math.Ceil(0.632 * float64(nObs)))
		}
	}
	if nSamp < 0 {
		return nil, errors.NewValidationError("n_samp", "must not be negative", nSamp)
	}
	if !withReplacement && nSamp > nObs {
		return nil, errors.NewValidationError("n_samp", "exceeds row count when sampling without replacement", nSamp)
	}
	return &Sampler{nObs: nObs, nSamp: nSamp, withReplacement: withReplacement, seed: seed}, nil
}

// bagStream tags the bag draws within a seed's PCG streams, keeping them
// apart from candidate and jitter draws under the same seed.
const bagStream uint64 = 0x01 << 56

// NObs returns the number of training rows.
func (s *Sampler) NObs() int {
	return s.nObs
}

// NSamp returns the number of draws per tree.
func (s *Sampler) NSamp() int {
	return s.nSamp
}

// Bag draws the bag of tree tIdx.
func (s *Sampler) Bag(tIdx int) []BagEntry {
	// G404: Using math/rand for ML sampling (not cryptographic purposes)
	r := rand.New(rand.NewPCG(s.seed, bagStream|uint64(tIdx)))

	if s.withReplacement {
		counts := make([]int, s.nObs)
		for i := 0; i < s.nSamp; i++ {
			counts[r.IntN(s.nObs)]++
		}
		bag := make([]BagEntry, 0, s.nSamp)
		for row, c := range counts {
			if c > 0 {
				bag = append(bag, BagEntry{Row: row, SCount: c})
			}
		}
		return bag
	}

	idxs := make([]int, s.nObs)
	for i := range idxs {
		idxs[i] = i
	}
	for i := 0; i < s.nSamp; i++ {
		j := i + r.IntN(s.nObs-i)
		idxs[i], idxs[j] = idxs[j], idxs[i]
	}
	rows := idxs[:s.nSamp]
	sort.Ints(rows)
	bag := make([]BagEntry, len(rows))
	for i, row := range rows {
		bag[i] = BagEntry{Row: row, SCount: 1}
	}
	return bag
}

// FixedBag is a Bagger returning the same bag for every tree. It serves
// callers that sample rows themselves.
type FixedBag struct {
	Entries []BagEntry
	Rows    int
}

// FullBag returns a FixedBag holding every one of nObs rows once.
func FullBag(nObs int) *FixedBag {
	entries := make([]BagEntry, nObs)
	for i := range entries {
		entries[i] = BagEntry{Row: i, SCount: 1}
	}
	return &FixedBag{Entries: entries, Rows: nObs}
}

// Bag implements Bagger.
func (b *FixedBag) Bag(int) []BagEntry {
	return b.Entries
}

// NObs implements Bagger.
func (b *FixedBag) NObs() int {
	return b.Rows
}
