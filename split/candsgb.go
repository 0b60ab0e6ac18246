package split

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/ezoic/arbor/pkg/errors"
)

// candStream tags the candidate draws within a seed's PCG streams. Trees
// occupy bits 24..55 of the stream word and levels the bits below.
const candStream uint64 = 0x02 << 56

// Frontier is the view of a tree level the candidate selector needs.
type Frontier interface {
	NNode() int
	IsActive(node int) bool
}

// CandSGB selects the predictors each frontier node evaluates: predFixed
// predictors drawn uniformly without replacement, then every other
// predictor independently with probability predProb.
type CandSGB struct {
	nPred     int
	predFixed int
	predProb  []float64
	seed      uint64
}

// NewCandSGB validates the subsampling parameters. A nil predProb means
// probability zero for every predictor.
func NewCandSGB(nPred, predFixed int, predProb []float64, seed uint64) (*CandSGB, error) {
	if nPred < 1 {
		return nil, errors.NewValidationError("n_pred", "must be positive", nPred)
	}
	if predFixed < 0 || predFixed > nPred {
		return nil, errors.NewValidationError("pred_fixed", fmt.Sprintf("must lie in [0,%d]", nPred), predFixed)
	}
	prob := make([]float64, nPred)
	if predProb != nil {
		if len(predProb) != nPred {
			return nil, errors.NewValidationError("pred_prob", fmt.Sprintf("length must be %d", nPred), len(predProb))
		}
		for p, v := range predProb {
			if math.IsNaN(v) || v < 0 || v > 1 {
				return nil, errors.NewValidationError("pred_prob", fmt.Sprintf("probability of predictor %d must lie in [0,1]", p), v)
			}
		}
		copy(prob, predProb)
	}
	return &CandSGB{nPred: nPred, predFixed: predFixed, predProb: prob, seed: seed}, nil
}

// NPred returns the predictor count.
func (c *CandSGB) NPred() int {
	return c.nPred
}

// Precandidates returns, for each node of the frontier at level of tree
// tIdx, its candidates sorted by predictor. Inactive nodes get nil. The
// draw depends only on the seed, tree, level and frontier shape, so a run
// can be replayed while each tree subsamples on its own.
func (c *CandSGB) Precandidates(f Frontier, tIdx, level int) [][]SplitNux {
	// G404: Using math/rand for ML sampling (not cryptographic purposes)
	r := rand.New(rand.NewPCG(c.seed, candStream|uint64(tIdx)<<24|uint64(level)))

	out := make([][]SplitNux, f.NNode())
	perm := make([]int, c.nPred)
	chosen := make([]bool, c.nPred)
	for node := range out {
		if !f.IsActive(node) {
			continue
		}
		for p := range perm {
			perm[p] = p
			chosen[p] = false
		}
		for i := 0; i < c.predFixed; i++ {
			j := i + r.IntN(c.nPred-i)
			perm[i], perm[j] = perm[j], perm[i]
			chosen[perm[i]] = true
		}
		for p := range chosen {
			if !chosen[p] && c.predProb[p] > 0 && r.Float64() < c.predProb[p] {
				chosen[p] = true
			}
		}
		var cands []SplitNux
		for p, ok := range chosen {
			if ok {
				cands = append(cands, SplitNux{NodeIdx: node, PredIdx: p})
			}
		}
		out[node] = cands
	}
	return out
}
