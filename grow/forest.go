package grow

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/arbor/boost"
	"github.com/ezoic/arbor/core/model"
	"github.com/ezoic/arbor/pkg/errors"
	"github.com/ezoic/arbor/score"
)

// Forest is a trained ensemble.
type Forest struct {
	Trees     []*Tree
	ScoreDesc model.ScoreDesc
	// PredInfo is the split gain of each predictor averaged over trees.
	PredInfo []float64
	Loss     boost.Loss
	Scorer   score.Kind
	NCtg     int
}

func newForest(trees []*Tree, desc model.ScoreDesc, loss boost.Loss, kind score.Kind, nCtg, nPred int) *Forest {
	f := &Forest{
		Trees:     trees,
		ScoreDesc: desc,
		PredInfo:  make([]float64, nPred),
		Loss:      loss,
		Scorer:    kind,
		NCtg:      nCtg,
	}
	for _, t := range trees {
		for p, v := range t.PredInfo() {
			f.PredInfo[p] += v
		}
	}
	if len(trees) > 0 {
		for p := range f.PredInfo {
			f.PredInfo[p] /= float64(len(trees))
		}
	}
	return f
}

// Predict returns the ensemble prediction of row x: the boosted score
// base + nu*sum of leaves under L2, the probability of category 1 under
// logOdds, the mean leaf of a bagged regression and the voted category of
// a bagged classification.
func (f *Forest) Predict(x []float64) float64 {
	switch {
	case f.ScoreDesc.Boosted():
		s := f.ScoreDesc.BaseScore
		for _, t := range f.Trees {
			s += f.ScoreDesc.Nu * t.Predict(x)
		}
		if f.Loss == boost.LossLogOdds {
			return boost.Logistic(s)
		}
		return s
	case f.Scorer == score.Plurality:
		return float64(f.vote(x))
	default:
		s := 0.0
		for _, t := range f.Trees {
			s += t.Predict(x)
		}
		return s / float64(len(f.Trees))
	}
}

// vote returns the category most trees predict, the lowest on ties.
func (f *Forest) vote(x []float64) int {
	counts := make([]int, f.NCtg)
	for _, t := range f.Trees {
		if c := score.DecodePlurality(t.Predict(x)); c >= 0 && c < f.NCtg {
			counts[c]++
		}
	}
	best := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// PredictCategory returns the predicted category of a classification
// forest.
func (f *Forest) PredictCategory(x []float64) (int, error) {
	switch {
	case f.Loss == boost.LossLogOdds:
		if f.Predict(x) >= 0.5 {
			return 1, nil
		}
		return 0, nil
	case f.Scorer == score.Plurality:
		return f.vote(x), nil
	default:
		return 0, errors.NewValueError("Forest.PredictCategory", "forest predicts a numeric response")
	}
}

// PredictDense predicts every row of x.
func (f *Forest) PredictDense(x *mat.Dense) (*mat.VecDense, error) {
	r, c := x.Dims()
	if len(f.PredInfo) != 0 && c != len(f.PredInfo) {
		return nil, errors.NewDimensionError("Forest.PredictDense", len(f.PredInfo), c, 1)
	}
	out := mat.NewVecDense(r, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, x)
		out.SetVec(i, f.Predict(row))
	}
	return out, nil
}
