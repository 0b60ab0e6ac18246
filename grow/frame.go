// Package grow trains trees and forests on top of the split search, node
// scoring and boosting components of a session.
//
// A Frame holds the numeric predictors column by column. A Grower builds
// one tree level by level: each frontier node evaluates the candidates
// drawn by the session's CandSGB in parallel, keeps the best cut and
// partitions its samples. A Trainer drives the Grower over every tree of a
// session, in parallel when bagging and sequentially when boosting.
package grow

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/errors"
	"github.com/ezoic/arbor/split"
)

// Frame is the predictor matrix of a training run, stored column-major.
type Frame struct {
	cols   [][]float64
	nRow   int
	sparse []bool
}

// FrameOption configures a Frame.
type FrameOption func(*Frame)

// WithSparse declares predictors whose zeros are implicit: they collapse
// into a single residual slot of every cell instead of being ranked.
func WithSparse(preds ...int) FrameOption {
	return func(f *Frame) {
		for _, p := range preds {
			if p >= 0 && p < len(f.sparse) {
				f.sparse[p] = true
			}
		}
	}
}

// NewFrame copies x, one row per observation. Values must be finite.
func NewFrame(x *mat.Dense, opts ...FrameOption) (*Frame, error) {
	if x == nil {
		return nil, errors.NewModelError("NewFrame", "nil matrix", errors.ErrEmptyData)
	}
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("NewFrame", "empty matrix", errors.ErrEmptyData)
	}
	f := &Frame{cols: make([][]float64, c), nRow: r, sparse: make([]bool, c)}
	for j := range f.cols {
		f.cols[j] = mat.Col(nil, j, x)
		for i, v := range f.cols[j] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewValueError("NewFrame",
					fmt.Sprintf("non-finite value at row %d, column %d", i, j))
			}
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// NRow returns the observation count.
func (f *Frame) NRow() int {
	return f.nRow
}

// NPred returns the predictor count.
func (f *Frame) NPred() int {
	return len(f.cols)
}

// Value returns predictor pred of row.
func (f *Frame) Value(row, pred int) float64 {
	return f.cols[pred][row]
}

// Sparse reports whether pred has implicit zeros.
func (f *Frame) Sparse(pred int) bool {
	return f.sparse[pred]
}

// rankedCell is a node's samples ranked along one predictor, together with
// what is needed to partition the node once a cut is chosen.
type rankedCell struct {
	split.ObsCell
	// order holds the sample index of each explicit observation.
	order []int
	// values holds the predictor value of each explicit observation.
	values []float64
	// implicit holds the samples whose value is the implicit zero.
	implicit []int
}

// cell ranks the samples of a node along pred.
func (f *Frame) cell(sampled *obs.SampledObs, samples []int, pred int) *rankedCell {
	col := f.cols[pred]
	c := &rankedCell{order: make([]int, 0, len(samples))}
	for _, s := range samples {
		if f.sparse[pred] && col[sampled.Row(s)] == 0 {
			c.implicit = append(c.implicit, s)
			continue
		}
		c.order = append(c.order, s)
	}
	sort.SliceStable(c.order, func(i, j int) bool {
		return col[sampled.Row(c.order[i])] < col[sampled.Row(c.order[j])]
	})

	c.values = make([]float64, len(c.order))
	c.Obs = make([]split.Obs, len(c.order))
	for i, s := range c.order {
		nux := sampled.Sample(s)
		c.values[i] = col[sampled.Row(s)]
		c.Obs[i] = split.Obs{
			YSum:   nux.Sum,
			SCount: nux.SCount,
			Ctg:    nux.Ctg,
			Tied:   i > 0 && c.values[i] == c.values[i-1],
		}
	}

	rng := obs.NewIndexRange(0, len(samples))
	rng.Adjust(0, len(c.implicit))
	c.ObsStart, c.ObsEnd = rng.Start, rng.End()

	if len(c.implicit) > 0 {
		res := &split.Residual{NObs: len(c.implicit)}
		if nCtg := sampled.NCtg(); nCtg > 0 {
			res.CtgSum = make([]float64, nCtg)
		}
		for _, s := range c.implicit {
			nux := sampled.Sample(s)
			res.YSum += nux.Sum
			res.SCount += nux.SCount
			if res.CtgSum != nil {
				res.CtgSum[nux.Ctg] += nux.Sum
			}
		}
		c.Implicit = res
		c.CutResidual = sort.SearchFloat64s(c.values, 0)
	}
	return c
}

// partition splits the cell's samples along cut. The threshold lies at
// quantile quant between the largest left value and the smallest right
// value, and always below the latter so that rows at the right boundary
// walk right.
func (c *rankedCell) partition(cut split.Cut, quant float64) (left, right []int, threshold float64) {
	left = append(left, c.order[:cut.ObsRight]...)
	right = append(right, c.order[cut.ObsRight:]...)

	leftMax, rightMin := math.Inf(-1), math.Inf(1)
	if cut.ObsRight > 0 {
		leftMax = c.values[cut.ObsRight-1]
	}
	if cut.ObsRight < len(c.values) {
		rightMin = c.values[cut.ObsRight]
	}
	if len(c.implicit) > 0 {
		if cut.ResidualLeft {
			left = append(left, c.implicit...)
			leftMax = math.Max(leftMax, 0)
		} else {
			right = append(right, c.implicit...)
			rightMin = math.Min(rightMin, 0)
		}
	}
	threshold = leftMax + quant*(rightMin-leftMax)
	if threshold >= rightMin {
		threshold = math.Nextafter(rightMin, leftMax)
	}
	return left, right, threshold
}
