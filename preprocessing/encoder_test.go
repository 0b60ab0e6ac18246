package preprocessing_test

import (
	"math"
	"testing"

	"github.com/ezoic/arbor/pkg/errors"
	"github.com/ezoic/arbor/preprocessing"
)

func TestLabelEncoder_Fit(t *testing.T) {
	encoder := preprocessing.NewLabelEncoder()
	if encoder.IsFitted() {
		t.Fatal("Encoder should not be fitted before Fit()")
	}

	if err := encoder.Fit([]float64{7, -1, 7, 3, -1}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !encoder.IsFitted() {
		t.Error("Encoder should be fitted after Fit()")
	}

	expected := []float64{-1, 3, 7}
	if encoder.NClasses() != len(expected) {
		t.Fatalf("Expected %d classes, got %d", len(expected), encoder.NClasses())
	}
	for i, want := range expected {
		if encoder.Classes[i] != want {
			t.Errorf("Class %d: expected %g, got %g", i, want, encoder.Classes[i])
		}
	}
}

func TestLabelEncoder_RoundTrip(t *testing.T) {
	labels := []float64{2.5, 10, 2.5, 0, 10}
	encoder := preprocessing.NewLabelEncoder()

	codes, err := encoder.FitTransform(labels)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	want := []int{1, 2, 1, 0, 2}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("Row %d: expected code %d, got %d", i, want[i], codes[i])
		}
	}

	back, err := encoder.InverseTransform(codes)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	for i := range labels {
		if back[i] != labels[i] {
			t.Errorf("Row %d: expected label %g, got %g", i, labels[i], back[i])
		}
	}
}

func TestLabelEncoder_Errors(t *testing.T) {
	encoder := preprocessing.NewLabelEncoder()

	if _, err := encoder.Transform([]float64{1}); err == nil {
		t.Error("Expected error when transforming before Fit")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("Expected NotFittedError, got %T", err)
		}
	}

	if err := encoder.Fit(nil); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("Expected ErrEmptyData, got %v", err)
	}
	if err := encoder.Fit([]float64{1, math.NaN()}); err == nil {
		t.Error("Expected error for NaN label")
	}

	if err := encoder.Fit([]float64{0, 1}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := encoder.Transform([]float64{2}); err == nil {
		t.Error("Expected error for unseen label")
	}
	if _, err := encoder.InverseTransform([]int{2}); err == nil {
		t.Error("Expected error for out-of-range code")
	}
}
