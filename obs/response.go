package obs

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/arbor/pkg/errors"
)

// ResponseKind tags the variant held by a Response.
type ResponseKind int

const (
	// Regression is a numeric response.
	Regression ResponseKind = iota
	// Categorical is a zero-based category response.
	Categorical
)

func (k ResponseKind) String() string {
	switch k {
	case Regression:
		return "regression"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Response holds the full training response of a session. It is either a
// numeric (Regression) or a categorical response; operations switch on Kind.
// The training vectors are never modified after construction.
type Response struct {
	kind ResponseKind

	yNum []float64

	yCtg        []int
	nCtg        int
	classWeight []float64
	ctgCount    []int
}

// NewRegression creates a numeric response.
func NewRegression(y []float64) (*Response, error) {
	if len(y) == 0 {
		return nil, errors.NewValueError("NewRegression", "response is empty")
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewValueError("NewRegression", fmt.Sprintf("response[%d] is not finite", i))
		}
	}
	return &Response{kind: Regression, yNum: append([]float64(nil), y...)}, nil
}

// NewCategorical creates a categorical response over categories [0, nCtg).
// classWeight scales each category's contribution; nil means unit weights.
func NewCategorical(yCtg []int, nCtg int, classWeight []float64) (*Response, error) {
	if len(yCtg) == 0 {
		return nil, errors.NewValueError("NewCategorical", "response is empty")
	}
	if nCtg < 1 {
		return nil, errors.NewValidationError("n_ctg", "must be at least 1", nCtg)
	}
	counts := make([]int, nCtg)
	for i, c := range yCtg {
		if c < 0 || c >= nCtg {
			return nil, errors.NewValidationError("y_ctg", fmt.Sprintf("label at row %d outside [0,%d)", i, nCtg), c)
		}
		counts[c]++
	}

	weight := make([]float64, nCtg)
	switch len(classWeight) {
	case 0:
		for c := range weight {
			weight[c] = 1
		}
	case nCtg:
		for c, w := range classWeight {
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				return nil, errors.NewValidationError("class_weight", fmt.Sprintf("weight of category %d must be finite and non-negative", c), w)
			}
		}
		copy(weight, classWeight)
	default:
		return nil, errors.NewValidationError("class_weight", fmt.Sprintf("length must be 0 or %d", nCtg), len(classWeight))
	}

	return &Response{
		kind:        Categorical,
		yCtg:        append([]int(nil), yCtg...),
		nCtg:        nCtg,
		classWeight: weight,
		ctgCount:    counts,
	}, nil
}

// BalancedClassWeight weights each observed category by
// n / (nPresent * count), where nPresent is the number of categories that
// occur. Absent categories get weight zero.
func BalancedClassWeight(yCtg []int, nCtg int) []float64 {
	counts := make([]int, nCtg)
	for _, c := range yCtg {
		if c >= 0 && c < nCtg {
			counts[c]++
		}
	}
	present := 0
	for _, n := range counts {
		if n > 0 {
			present++
		}
	}
	weight := make([]float64, nCtg)
	if present == 0 {
		return weight
	}
	total := float64(len(yCtg))
	for c, n := range counts {
		if n > 0 {
			weight[c] = total / (float64(present) * float64(n))
		}
	}
	return weight
}

// Kind returns the response variant.
func (r *Response) Kind() ResponseKind {
	return r.kind
}

// NObs returns the number of training rows.
func (r *Response) NObs() int {
	if r.kind == Categorical {
		return len(r.yCtg)
	}
	return len(r.yNum)
}

// NCtg returns the category count, zero for a numeric response.
func (r *Response) NCtg() int {
	return r.nCtg
}

// YNum returns the numeric response. It must not be modified.
func (r *Response) YNum() []float64 {
	return r.yNum
}

// CtgLabels returns the zero-based category of every row. It must not be
// modified.
func (r *Response) CtgLabels() []int {
	return r.yCtg
}

// ClassWeight returns a copy of the per-category weights.
func (r *Response) ClassWeight() []float64 {
	return append([]float64(nil), r.classWeight...)
}

// DefaultPrediction is the prediction for a row no tree bagged: the training
// mean of a numeric response, or the category with the largest weighted
// count, lowest index on ties.
func (r *Response) DefaultPrediction() float64 {
	if r.kind == Regression {
		return stat.Mean(r.yNum, nil)
	}
	best, bestVal := 0, math.Inf(-1)
	for c, n := range r.ctgCount {
		if v := float64(n) * r.classWeight[c]; v > bestVal {
			best, bestVal = c, v
		}
	}
	return float64(best)
}

// DefaultProb returns the training proportion of each category, or nil for
// a numeric response.
func (r *Response) DefaultProb() []float64 {
	if r.kind != Categorical {
		return nil
	}
	prob := make([]float64, r.nCtg)
	for c, n := range r.ctgCount {
		prob[c] = float64(n)
	}
	floats.Scale(1/float64(len(r.yCtg)), prob)
	return prob
}

// GetObs draws the bag of tree tIdx and returns its samples. A numeric
// sample carries y*sCount; a categorical one classWeight[ctg]*sCount.
func (r *Response) GetObs(b Bagger, tIdx int) (*SampledObs, error) {
	if b.NObs() != r.NObs() {
		return nil, errors.NewDimensionError("Response.GetObs", r.NObs(), b.NObs(), 0)
	}
	bag := b.Bag(tIdx)
	samples := make([]SampleNux, len(bag))
	rows := make([]int, len(bag))
	for i, e := range bag {
		if e.Row < 0 || e.Row >= r.NObs() {
			return nil, errors.NewValueError("Response.GetObs", fmt.Sprintf("bagged row %d out of range", e.Row))
		}
		if e.SCount <= 0 {
			return nil, errors.NewValueError("Response.GetObs", fmt.Sprintf("bagged row %d has non-positive count", e.Row))
		}
		rows[i] = e.Row
		sc := float64(e.SCount)
		switch r.kind {
		case Regression:
			samples[i] = SampleNux{Sum: r.yNum[e.Row] * sc, SCount: e.SCount}
		case Categorical:
			ctg := r.yCtg[e.Row]
			samples[i] = SampleNux{Sum: r.classWeight[ctg] * sc, SCount: e.SCount, Ctg: ctg}
		}
	}
	return NewSampledObs(samples, rows, r.nCtg)
}
