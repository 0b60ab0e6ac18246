// Package metrics provides the evaluation metrics used to trace training.
//
// Regression metrics:
//   - MSE / RMSE: (root) mean squared error
//   - R2Score: coefficient of determination
//
// Classification metrics:
//   - BinaryLogLoss: cross-entropy of predicted probabilities
//   - ClassificationError / Accuracy: fraction of wrong / right labels
//
// Every metric takes gonum vectors. The Weighted variants accept a weight
// per observation, typically the bag multiplicity of each sample, so that
// in-bag losses count a sample as often as it was drawn.
//
// Example usage:
//
//	mse, err := metrics.MSE(yTrue, yPred)
//	loss, err := metrics.WeightedBinaryLogLoss(yTrue, prob, sCount)
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/arbor/pkg/errors"
)

// checkPair validates two equal-length, non-empty vectors.
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "input vectors cannot be nil")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// weightsOf returns weight as a slice, or unit weights when weight is nil.
func weightsOf(op string, n int, weight *mat.VecDense) ([]float64, error) {
	w := make([]float64, n)
	if weight == nil {
		for i := range w {
			w[i] = 1
		}
		return w, nil
	}
	if weight.Len() != n {
		return nil, errors.NewDimensionError(op, n, weight.Len(), 0)
	}
	for i := range w {
		w[i] = weight.AtVec(i)
		if w[i] < 0 || math.IsNaN(w[i]) {
			return nil, errors.NewValueError(op, "weights must be non-negative")
		}
	}
	if floats.Sum(w) == 0 {
		return nil, errors.NewValueError(op, "weights sum to zero")
	}
	return w, nil
}

// MSE calculates the Mean Squared Error between true and predicted values.
//
// Errors:
//   - ValueError: if input vectors are empty
//   - DimensionError: if yTrue and yPred have different lengths
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	return WeightedMSE(yTrue, yPred, nil)
}

// WeightedMSE is Σ w(yTrue - yPred)² / Σ w. A nil weight means unit
// weights.
func WeightedMSE(yTrue, yPred, weight *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	w, err := weightsOf("MSE", n, weight)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += w[i] * diff * diff
	}
	return sum / floats.Sum(w), nil
}

// RMSE is the square root of MSE.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// R2Score calculates the coefficient of determination 1 - RSS/TSS.
//
// Errors:
//   - ValueError: if input vectors are empty or yTrue has no variance
//   - DimensionError: if yTrue and yPred have different lengths
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := mat.Sum(yTrue) / float64(n)
	var tss, rss float64
	for i := 0; i < n; i++ {
		yt, yp := yTrue.AtVec(i), yPred.AtVec(i)
		tss += (yt - yMean) * (yt - yMean)
		rss += (yt - yp) * (yt - yp)
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}
