package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/arbor/pkg/errors"
)

// probEpsilon keeps log loss finite for saturated probabilities.
const probEpsilon = 1e-15

// BinaryLogLoss calculates the mean binary cross-entropy of predicted
// probabilities yPred against 0/1 labels yTrue.
//
// Example:
//
//	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
//	yPred := mat.NewVecDense(4, []float64{0.1, 0.2, 0.8, 0.9})
//	loss, err := metrics.BinaryLogLoss(yTrue, yPred)
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	return WeightedBinaryLogLoss(yTrue, yPred, nil)
}

// WeightedBinaryLogLoss is BinaryLogLoss with a weight per observation.
func WeightedBinaryLogLoss(yTrue, yPred, weight *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	w, err := weightsOf("BinaryLogLoss", n, weight)
	if err != nil {
		return 0, err
	}

	loss := 0.0
	for i := 0; i < n; i++ {
		y := yTrue.AtVec(i)
		if y != 0 && y != 1 {
			return 0, errors.NewValidationError("yTrue",
				fmt.Sprintf("must contain only binary values (0 or 1), found %f at index %d", y, i), y)
		}
		p := math.Min(1-probEpsilon, math.Max(probEpsilon, yPred.AtVec(i)))
		if y == 1 {
			loss -= w[i] * math.Log(p)
		} else {
			loss -= w[i] * math.Log(1-p)
		}
	}
	return loss / floats.Sum(w), nil
}

// ClassificationError calculates the fraction of incorrect labels.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("ClassificationError", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	wrong := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) != yPred.AtVec(i) {
			wrong++
		}
	}
	return float64(wrong) / float64(n), nil
}

// Accuracy calculates the fraction of correct labels.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	errorRate, err := ClassificationError(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1.0 - errorRate, nil
}
