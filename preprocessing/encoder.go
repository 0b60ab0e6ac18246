// Package preprocessing prepares raw responses for training.
package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/ezoic/arbor/core/model"
	"github.com/ezoic/arbor/pkg/errors"
)

// LabelEncoder maps arbitrary numeric class labels to the zero-based
// category codes a categorical response expects. Codes follow the sorted
// order of the distinct labels.
//
// Usage:
//
//	enc := preprocessing.NewLabelEncoder()
//	codes, err := enc.FitTransform(labels)
//	resp, err := obs.NewCategorical(codes, enc.NClasses(), nil)
type LabelEncoder struct {
	// Classes holds the distinct labels seen by Fit, sorted.
	Classes []float64

	index map[float64]int
	state *model.StateManager
}

// NewLabelEncoder returns an unfitted encoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// IsFitted reports whether Fit has run.
func (e *LabelEncoder) IsFitted() bool {
	return e.state.IsReady()
}

// NClasses returns the number of distinct labels, zero before Fit.
func (e *LabelEncoder) NClasses() int {
	return len(e.Classes)
}

// Fit learns the distinct labels of y.
func (e *LabelEncoder) Fit(y []float64) (err error) {
	defer errors.Recover(&err, "LabelEncoder.Fit")
	if len(y) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty labels", errors.ErrEmptyData)
	}

	seen := make(map[float64]bool)
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewValueError("LabelEncoder.Fit", fmt.Sprintf("label at row %d is not finite", i))
		}
		seen[v] = true
	}
	classes := make([]float64, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Float64s(classes)

	e.Classes = classes
	e.index = make(map[float64]int, len(classes))
	for code, v := range classes {
		e.index[v] = code
	}
	return e.state.SetReady()
}

// Transform maps labels to codes. Labels unseen by Fit are an error.
func (e *LabelEncoder) Transform(y []float64) (_ []int, err error) {
	defer errors.Recover(&err, "LabelEncoder.Transform")
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	codes := make([]int, len(y))
	for i, v := range y {
		code, ok := e.index[v]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform",
				fmt.Sprintf("label %g at row %d was not seen by Fit", v, i))
		}
		codes[i] = code
	}
	return codes, nil
}

// FitTransform fits y and returns its codes.
func (e *LabelEncoder) FitTransform(y []float64) ([]int, error) {
	if err := e.Fit(y); err != nil {
		return nil, err
	}
	return e.Transform(y)
}

// InverseTransform maps codes back to labels.
func (e *LabelEncoder) InverseTransform(codes []int) ([]float64, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}
	y := make([]float64, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(e.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %d at row %d outside [0,%d)", c, i, len(e.Classes)))
		}
		y[i] = e.Classes[c]
	}
	return y, nil
}
