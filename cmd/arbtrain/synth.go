package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/arbor/pkg/errors"
)

type synthOptions struct {
	kind  string
	rows  int
	cols  int
	noise float64
	seed  uint64
	xPath string
	yPath string
}

func newSynthCmd() *cobra.Command {
	opts := &synthOptions{}
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic training set",
		Long: `Generate predictors uniform on [-1, 1] and a response driven by the
first two of them. Predictors from the third on are half zeros, suitable
for --sparse.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			x, y, err := synthesize(opts.kind, opts.rows, opts.cols, opts.noise, opts.seed)
			if err != nil {
				return err
			}
			if err := writeNpy(opts.xPath, x); err != nil {
				return err
			}
			if err := writeNpy(opts.yPath, y); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows of %d predictors to %s, %s\n",
				opts.rows, opts.cols, opts.xPath, opts.yPath)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.kind, "kind", "regression", "regression or classification")
	f.IntVar(&opts.rows, "rows", 1000, "number of rows")
	f.IntVar(&opts.cols, "cols", 4, "number of predictors")
	f.Float64Var(&opts.noise, "noise", 0.1, "standard deviation of the response noise")
	f.Uint64Var(&opts.seed, "seed", 42, "random seed")
	f.StringVar(&opts.xPath, "x", "x.npy", "predictor output file")
	f.StringVar(&opts.yPath, "y", "y.npy", "response output file")
	return cmd
}

// synthesize draws y = 3*x0 + 2*sin(pi*x1) + noise, or its sign as a 0/1
// label for classification.
func synthesize(kind string, rows, cols int, noise float64, seed uint64) (*mat.Dense, []float64, error) {
	if kind != "regression" && kind != "classification" {
		return nil, nil, errors.NewValidationError("kind", "must be regression or classification", kind)
	}
	if rows < 1 || cols < 1 {
		return nil, nil, errors.NewValidationError("shape", "rows and cols must be positive", fmt.Sprintf("%dx%d", rows, cols))
	}

	// G404: Using math/rand for ML sampling (not cryptographic purposes)
	r := rand.New(rand.NewPCG(seed, seed+1))
	x := mat.NewDense(rows, cols, nil)
	y := make([]float64, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if j >= 2 && r.Float64() < 0.5 {
				continue
			}
			x.Set(i, j, 2*r.Float64()-1)
		}
		signal := 3 * x.At(i, 0)
		if cols > 1 {
			signal += 2 * math.Sin(math.Pi*x.At(i, 1))
		}
		signal += noise * r.NormFloat64()
		if kind == "classification" {
			if signal > 0 {
				y[i] = 1
			}
			continue
		}
		y[i] = signal
	}
	return x, y, nil
}
