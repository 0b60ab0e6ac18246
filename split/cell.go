// Package split finds the best cut of a tree node along one predictor and
// selects the predictors each frontier node evaluates.
//
// A candidate's observations arrive as an ObsCell sorted by predictor rank.
// Observations holding the predictor's implicit (sparse) value are not
// materialized: their aggregate occupies a single logical slot, the
// residual, at rank position CutResidual. CutAccumReg and CutAccumCtg scan
// a cell right to left and record the cut maximizing the information gain.
package split

import (
	"fmt"
	"math"

	"github.com/ezoic/arbor/pkg/errors"
)

// Obs is one explicit observation of a cell.
type Obs struct {
	YSum   float64
	SCount int
	Ctg    int
	// Tied is set when the observation's rank equals its left neighbour's;
	// no cut may separate the two.
	Tied bool
}

// Residual aggregates every implicit observation of a cell.
type Residual struct {
	YSum   float64
	SCount int
	// CtgSum holds per-category response sums for categorical responses.
	CtgSum []float64
	// NObs is the number of implicit samples aggregated.
	NObs int
}

// ObsCell is a candidate's rank-ordered observations.
type ObsCell struct {
	Obs      []Obs
	ObsStart int
	ObsEnd   int
	// CutResidual is the rank slot of the residual: it lies between
	// Obs[CutResidual-1] and Obs[CutResidual]. Ignored without a residual.
	CutResidual int
	// Implicit is nil when the node holds no implicit observations.
	Implicit *Residual
}

// HasImplicit reports whether the cell carries a non-empty residual.
func (c *ObsCell) HasImplicit() bool {
	return c.Implicit != nil && c.Implicit.SCount > 0
}

// Validate checks 0 <= ObsStart <= CutResidual <= ObsEnd <= len(Obs).
func (c *ObsCell) Validate() error {
	if c.ObsStart < 0 || c.ObsEnd < c.ObsStart || c.ObsEnd > len(c.Obs) {
		return errors.NewInvariantError("ObsCell.Validate",
			fmt.Sprintf("observation range [%d,%d) outside [0,%d)", c.ObsStart, c.ObsEnd, len(c.Obs)))
	}
	if c.HasImplicit() && (c.CutResidual < c.ObsStart || c.CutResidual > c.ObsEnd) {
		return errors.NewInvariantError("ObsCell.Validate",
			fmt.Sprintf("residual slot %d outside [%d,%d]", c.CutResidual, c.ObsStart, c.ObsEnd))
	}
	return nil
}

// Totals returns the response sum and sample count of the whole cell,
// residual included.
func (c *ObsCell) Totals() (float64, int) {
	sum, sCount := 0.0, 0
	for i := c.ObsStart; i < c.ObsEnd; i++ {
		sum += c.Obs[i].YSum
		sCount += c.Obs[i].SCount
	}
	if c.HasImplicit() {
		sum += c.Implicit.YSum
		sCount += c.Implicit.SCount
	}
	return sum, sCount
}

// Cut describes the partition chosen by a scan. Explicit observations with
// index below ObsRight go left; the residual goes left iff ResidualLeft.
type Cut struct {
	ObsLeft      int
	ObsRight     int
	ResidualLeft bool
	SumL         float64
	SumR         float64
	SCountL      int
	SCountR      int
	// Info is the post-split information of the cut.
	Info float64
}

// SplitNux is one (node, predictor) candidate under evaluation.
type SplitNux struct {
	NodeIdx       int
	PredIdx       int
	ImplicitCount int
	// Info is the gain of the best cut, zero when none improves the node.
	Info float64
	Cut  Cut
}

// Found reports whether the scan found an improving cut.
func (s *SplitNux) Found() bool {
	return s.Info > 0
}

// Better reports whether s is preferable to other: larger gain first,
// lower predictor index on equal gain.
func (s *SplitNux) Better(other *SplitNux) bool {
	if other == nil || !other.Found() {
		return s.Found()
	}
	if s.Info != other.Info {
		return s.Info > other.Info
	}
	return s.PredIdx < other.PredIdx
}

// areEqual compares accumulators treating two NaNs as equal.
func areEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}
