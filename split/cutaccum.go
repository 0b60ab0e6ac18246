package split

// folder is the response-specific half of a scan.
type folder interface {
	fold(o *Obs)
	foldResidual(r *Residual)
	trial(obsRight int, residualLeft bool)
}

// cutAccum holds the state shared by every scan: the cell bounds, node
// totals, the running left totals and the best cut so far. Running sums
// start at the node totals and shrink as observations move right.
type cutAccum struct {
	cand        *SplitNux
	obs         []Obs
	obsStart    int
	obsEnd      int
	cutResidual int
	residual    *Residual

	sumTotal    float64
	sCountTotal int

	sum    float64
	sCount int

	baseline float64
	info     float64
	cut      Cut
	found    bool

	onTrial func(Cut)
}

func newCutAccum(cand *SplitNux, cell *ObsCell) (cutAccum, error) {
	if err := cell.Validate(); err != nil {
		return cutAccum{}, err
	}
	sum, sCount := cell.Totals()
	a := cutAccum{
		cand:        cand,
		obs:         cell.Obs,
		obsStart:    cell.ObsStart,
		obsEnd:      cell.ObsEnd,
		cutResidual: cell.CutResidual,
		sumTotal:    sum,
		sCountTotal: sCount,
		sum:         sum,
		sCount:      sCount,
	}
	if cell.HasImplicit() {
		a.residual = cell.Implicit
		cand.ImplicitCount = cell.Implicit.NObs
	}
	return a, nil
}

// scan runs the right-to-left search, splitting it around the residual
// slot when the cell has implicit observations.
func (a *cutAccum) scan(f folder) {
	if a.residual == nil {
		a.splitRL(f, a.obsStart, a.obsEnd)
		return
	}
	if a.cutResidual < a.obsEnd {
		a.splitRL(f, a.cutResidual, a.obsEnd)
		a.splitResidual(f)
	}
	if a.cutResidual > a.obsStart {
		a.residualRL(f)
	}
}

// splitRL folds obs[idx] for idx from end-1 down to start+1, evaluating
// the cut just left of each untied observation.
func (a *cutAccum) splitRL(f folder, start, end int) {
	for idx := end - 1; idx > start; idx-- {
		f.fold(&a.obs[idx])
		if !a.obs[idx].Tied {
			f.trial(idx, idx > a.cutResidual && a.residual != nil)
		}
	}
}

// splitResidual moves obs[cutResidual] right and evaluates the cut between
// the residual and it.
func (a *cutAccum) splitResidual(f folder) {
	f.fold(&a.obs[a.cutResidual])
	f.trial(a.cutResidual, true)
}

// residualRL moves the residual right, evaluates the cut just left of it,
// then scans the observations preceding it.
func (a *cutAccum) residualRL(f folder) {
	f.foldResidual(a.residual)
	f.trial(a.cutResidual, false)
	a.splitRL(f, a.obsStart, a.cutResidual)
}

// cutAt captures the running totals as a cut.
func (a *cutAccum) cutAt(obsRight int, residualLeft bool, info float64) Cut {
	return Cut{
		ObsLeft:      obsRight - 1,
		ObsRight:     obsRight,
		ResidualLeft: residualLeft,
		SumL:         a.sum,
		SumR:         a.sumTotal - a.sum,
		SCountL:      a.sCount,
		SCountR:      a.sCountTotal - a.sCount,
		Info:         info,
	}
}

// consider keeps the trial when it strictly beats the best so far. NaN
// never wins.
func (a *cutAccum) consider(obsRight int, residualLeft bool, info float64) {
	if a.onTrial != nil {
		a.onTrial(a.cutAt(obsRight, residualLeft, info))
	}
	if info > a.info {
		a.info = info
		a.cut = a.cutAt(obsRight, residualLeft, info)
		a.found = true
	}
}

// finish writes the outcome into the candidate and returns the gain.
func (a *cutAccum) finish() float64 {
	if !a.found || areEqual(a.info, a.baseline) {
		a.cand.Info = 0
		a.cand.Cut = Cut{}
		return 0
	}
	a.cand.Info = a.info - a.baseline
	a.cand.Cut = a.cut
	return a.cand.Info
}
