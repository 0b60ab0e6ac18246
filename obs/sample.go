package obs

import (
	"github.com/ezoic/arbor/pkg/errors"
)

// SampleNux is one bagged observation's contribution to the current tree:
// the response value times its bag multiplicity, the multiplicity itself and,
// for categorical responses, the category.
type SampleNux struct {
	Sum    float64
	SCount int
	Ctg    int
}

// DecrementSum replaces Sum with Sum - adjust*SCount and returns the new
// Sum. Boosting uses it to turn a response into a residual; summing the
// returned values over a bag yields the bag's total residual.
func (n *SampleNux) DecrementSum(adjust float64) float64 {
	n.Sum -= adjust * float64(n.SCount)
	return n.Sum
}

// SampledObs is the bag of one tree: one SampleNux per distinct bagged row,
// ordered by row.
type SampledObs struct {
	samples []SampleNux
	rows    []int
	nCtg    int
}

// NewSampledObs builds a bag from parallel sample and row slices. nCtg is
// zero for numeric responses.
func NewSampledObs(samples []SampleNux, rows []int, nCtg int) (*SampledObs, error) {
	if len(samples) != len(rows) {
		return nil, errors.NewDimensionError("NewSampledObs", len(samples), len(rows), 0)
	}
	if len(samples) == 0 {
		return nil, errors.NewModelError("NewSampledObs", "bag holds no samples", errors.ErrEmptyData)
	}
	return &SampledObs{samples: samples, rows: rows, nCtg: nCtg}, nil
}

// BagCount returns the number of distinct bagged rows.
func (o *SampledObs) BagCount() int {
	return len(o.samples)
}

// SampleCount returns the bag size including multiplicity.
func (o *SampledObs) SampleCount() int {
	n := 0
	for i := range o.samples {
		n += o.samples[i].SCount
	}
	return n
}

// NCtg returns the response category count, zero for numeric responses.
func (o *SampledObs) NCtg() int {
	return o.nCtg
}

// Sample returns the contribution of sample sIdx.
func (o *SampledObs) Sample(sIdx int) SampleNux {
	return o.samples[sIdx]
}

// Samples returns the current contributions. The slice is owned by the bag
// and must not be retained across a SetSamples call.
func (o *SampledObs) Samples() []SampleNux {
	return o.samples
}

// CopySamples returns an independent copy of the contributions.
func (o *SampledObs) CopySamples() []SampleNux {
	out := make([]SampleNux, len(o.samples))
	copy(out, o.samples)
	return out
}

// Row returns the training row of sample sIdx.
func (o *SampledObs) Row(sIdx int) int {
	return o.rows[sIdx]
}

// Rows returns the training row of every sample.
func (o *SampledObs) Rows() []int {
	return o.rows
}

// SetSamples installs a replacement contribution vector, taking ownership.
func (o *SampledObs) SetSamples(samples []SampleNux) error {
	if len(samples) != len(o.samples) {
		return errors.NewInvariantError("SampledObs.SetSamples",
			"replacement sample count differs from bag count")
	}
	o.samples = samples
	return nil
}

// RootSet summarizes every sample as the root node of a tree.
func (o *SampledObs) RootSet() IndexSet {
	set := newIndexSet(0, o.nCtg)
	for i := range o.samples {
		set.add(&o.samples[i])
	}
	return set
}

// IndexSetOf summarizes the samples sIdx as node idx.
func (o *SampledObs) IndexSetOf(idx int, sIdx []int) IndexSet {
	set := newIndexSet(idx, o.nCtg)
	for _, s := range sIdx {
		set.add(&o.samples[s])
	}
	return set
}

// IndexSet describes one frontier node: its response sum, sample count and,
// for categorical responses, per-category weighted sums and sample counts.
type IndexSet struct {
	Idx      int
	Sum      float64
	SCount   int
	CtgSum   []float64
	CtgCount []int
}

func newIndexSet(idx, nCtg int) IndexSet {
	set := IndexSet{Idx: idx}
	if nCtg > 0 {
		set.CtgSum = make([]float64, nCtg)
		set.CtgCount = make([]int, nCtg)
	}
	return set
}

func (s *IndexSet) add(nux *SampleNux) {
	s.Sum += nux.Sum
	s.SCount += nux.SCount
	if s.CtgSum != nil {
		s.CtgSum[nux.Ctg] += nux.Sum
		s.CtgCount[nux.Ctg] += nux.SCount
	}
}

// GetSum returns the node's response sum.
func (s *IndexSet) GetSum() float64 {
	return s.Sum
}

// GetSCount returns the node's sample count.
func (s *IndexSet) GetSCount() int {
	return s.SCount
}

// GetCategoryCount returns the number of samples of category ctg.
func (s *IndexSet) GetCategoryCount(ctg int) int {
	if ctg < 0 || ctg >= len(s.CtgCount) {
		return 0
	}
	return s.CtgCount[ctg]
}
