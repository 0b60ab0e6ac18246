package split

import (
	"github.com/ezoic/arbor/pkg/errors"
)

// CutAccumCtg searches the Gini-maximizing cut of a categorical response.
// ssL and ssR are the running sums of squared per-category sums on each
// side; ctgR holds the per-category sums moved right so far.
type CutAccumCtg struct {
	cutAccum
	ctgTotal []float64
	ctgR     []float64
	ssL      float64
	ssR      float64
}

// NewCutAccumCtg prepares a categorical scan of cell over nCtg categories.
func NewCutAccumCtg(cand *SplitNux, cell *ObsCell, nCtg int) (*CutAccumCtg, error) {
	if nCtg < 1 {
		return nil, errors.NewValidationError("n_ctg", "must be at least 1", nCtg)
	}
	base, err := newCutAccum(cand, cell)
	if err != nil {
		return nil, err
	}
	a := &CutAccumCtg{
		cutAccum: base,
		ctgTotal: make([]float64, nCtg),
		ctgR:     make([]float64, nCtg),
	}
	for i := cell.ObsStart; i < cell.ObsEnd; i++ {
		o := &cell.Obs[i]
		if o.Ctg < 0 || o.Ctg >= nCtg {
			return nil, errors.NewInvariantError("NewCutAccumCtg", "observation category out of range")
		}
		a.ctgTotal[o.Ctg] += o.YSum
	}
	if a.residual != nil {
		if len(a.residual.CtgSum) != nCtg {
			return nil, errors.NewDimensionError("NewCutAccumCtg", nCtg, len(a.residual.CtgSum), 0)
		}
		for c, s := range a.residual.CtgSum {
			a.ctgTotal[c] += s
		}
	}
	for _, s := range a.ctgTotal {
		a.ssL += s * s
	}
	if a.sumTotal > 0 {
		a.baseline = a.ssL / a.sumTotal
	}
	a.info = a.baseline
	return a, nil
}

// Split scans the cell, records the best cut in the candidate and returns
// its gain over the unsplit node.
func (a *CutAccumCtg) Split() float64 {
	a.scan(a)
	return a.finish()
}

// moveRight transfers y of category c from the left to the right side.
func (a *CutAccumCtg) moveRight(c int, y float64) {
	right := a.ctgR[c]
	left := a.ctgTotal[c] - right
	a.ssR += y * (y + 2*right)
	a.ssL += y * (y - 2*left)
	a.ctgR[c] = right + y
}

func (a *CutAccumCtg) fold(o *Obs) {
	a.moveRight(o.Ctg, o.YSum)
	a.sum -= o.YSum
	a.sCount -= o.SCount
}

func (a *CutAccumCtg) foldResidual(r *Residual) {
	for c, y := range r.CtgSum {
		if y != 0 {
			a.moveRight(c, y)
		}
	}
	a.sum -= r.YSum
	a.sCount -= r.SCount
}

func (a *CutAccumCtg) trial(obsRight int, residualLeft bool) {
	sumR := a.sumTotal - a.sum
	if a.sCount <= 0 || a.sCountTotal-a.sCount <= 0 {
		a.consider(obsRight, residualLeft, 0)
		return
	}
	a.consider(obsRight, residualLeft, infoGini(a.ssL, a.ssR, a.sum, sumR))
}

// infoGini is ssL/sumL + ssR/sumR, zero when either side carries no weight.
func infoGini(ssL, ssR, sumL, sumR float64) float64 {
	if sumL <= 0 || sumR <= 0 {
		return 0
	}
	return ssL/sumL + ssR/sumR
}
