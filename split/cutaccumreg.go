package split

import (
	"fmt"

	"github.com/ezoic/arbor/pkg/errors"
)

// CutAccumReg searches the variance-reducing cut of a numeric response,
// optionally constrained to a monotone relation between predictor and
// response.
type CutAccumReg struct {
	cutAccum
	mono int
}

// NewCutAccumReg prepares a scan of cell for cand. mono is +1 for a
// non-decreasing constraint, -1 for non-increasing and 0 for none.
func NewCutAccumReg(cand *SplitNux, cell *ObsCell, mono int) (*CutAccumReg, error) {
	if mono < -1 || mono > 1 {
		return nil, errors.NewValidationError("mono", "must be -1, 0 or 1", mono)
	}
	base, err := newCutAccum(cand, cell)
	if err != nil {
		return nil, err
	}
	a := &CutAccumReg{cutAccum: base, mono: mono}
	if a.sCountTotal > 0 {
		a.baseline = a.sumTotal * a.sumTotal / float64(a.sCountTotal)
	}
	a.info = a.baseline
	return a, nil
}

// Split scans the cell, records the best cut in the candidate and returns
// its gain over the unsplit node. Zero means no cut improves the node.
func (a *CutAccumReg) Split() float64 {
	a.scan(a)
	return a.finish()
}

func (a *CutAccumReg) fold(o *Obs) {
	a.sum -= o.YSum
	a.sCount -= o.SCount
}

func (a *CutAccumReg) foldResidual(r *Residual) {
	a.sum -= r.YSum
	a.sCount -= r.SCount
}

func (a *CutAccumReg) trial(obsRight int, residualLeft bool) {
	sumR := a.sumTotal - a.sum
	sCountR := a.sCountTotal - a.sCount
	if a.mono != 0 && !senseMonotone(a.mono, a.sum, a.sCount, sumR, sCountR) {
		return
	}
	a.consider(obsRight, residualLeft, infoVar(a.sum, sumR, a.sCount, sCountR))
}

// infoVar is the variance-reduction proxy sumL²/nL + sumR²/nR, zero when
// either side is empty.
func infoVar(sumL, sumR float64, sCountL, sCountR int) float64 {
	if sCountL <= 0 || sCountR <= 0 {
		return 0
	}
	return sumL*sumL/float64(sCountL) + sumR*sumR/float64(sCountR)
}

// senseMonotone reports whether the left and right means are ordered as
// mode requires. Means are compared by cross multiplication so an empty
// side or a NaN sum never passes.
func senseMonotone(mode int, sumL float64, sCountL int, sumR float64, sCountR int) bool {
	if sCountL <= 0 || sCountR <= 0 {
		return false
	}
	l := sumL * float64(sCountR)
	r := sumR * float64(sCountL)
	if mode > 0 {
		return l <= r
	}
	return l >= r
}

// String summarizes the accumulator state for debugging.
func (a *CutAccumReg) String() string {
	return fmt.Sprintf("CutAccumReg{pred=%d node=%d sum=%g sCount=%d info=%g mono=%d}",
		a.cand.PredIdx, a.cand.NodeIdx, a.sum, a.sCount, a.info, a.mono)
}
