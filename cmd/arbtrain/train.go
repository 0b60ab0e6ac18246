package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/arbor/grow"
	"github.com/ezoic/arbor/metrics"
	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/errors"
	"github.com/ezoic/arbor/pkg/log"
	"github.com/ezoic/arbor/preprocessing"
	"github.com/ezoic/arbor/session"
)

type trainOptions struct {
	configPath  string
	xPath       string
	yPath       string
	plotPath    string
	predPath    string
	categorical bool
	sparse      []int
}

func newTrainCmd() *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train an ensemble and report in-sample metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd.Context(), cmd.OutOrStdout(), opts, !cmd.Flags().Changed("log-level"))
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML training configuration (defaults apply when omitted)")
	f.StringVar(&opts.xPath, "x", "", "predictor matrix, float64 .npy of shape (rows, predictors)")
	f.StringVar(&opts.yPath, "y", "", "response, float64 .npy with one value per row")
	f.BoolVar(&opts.categorical, "categorical", false, "treat the response as class labels; bagging then votes by plurality")
	f.IntSliceVar(&opts.sparse, "sparse", nil, "predictors whose zeros are implicit")
	f.StringVar(&opts.plotPath, "plot", "", "write the learning curve to this image (png, svg, pdf)")
	f.StringVar(&opts.predPath, "predictions", "", "write in-sample predictions to this .npy file")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}

func runTrain(ctx context.Context, out io.Writer, opts *trainOptions, applyLogLevel bool) error {
	cfg := session.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = session.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}
	if applyLogLevel && cfg.LogLevel != "" {
		log.SetupLogger(cfg.LogLevel)
	}
	if opts.categorical && cfg.Booster.Loss == "zero" && cfg.Booster.Scorer == "mean" {
		cfg.Booster.Scorer = "plurality"
	}

	x, err := readMatrix(opts.xPath)
	if err != nil {
		return err
	}
	y, err := readVector(opts.yPath)
	if err != nil {
		return err
	}
	rows, nPred := x.Dims()
	if len(y) != rows {
		return errors.NewDimensionError("train", rows, len(y), 0)
	}

	var (
		resp *obs.Response
		enc  *preprocessing.LabelEncoder
	)
	if opts.categorical {
		enc = preprocessing.NewLabelEncoder()
		codes, err := enc.FitTransform(y)
		if err != nil {
			return err
		}
		if resp, err = obs.NewCategorical(codes, enc.NClasses(), nil); err != nil {
			return err
		}
	} else if resp, err = obs.NewRegression(y); err != nil {
		return err
	}

	sess, err := session.New(cfg, resp, nPred)
	if err != nil {
		return err
	}
	defer sess.Close()

	frame, err := grow.NewFrame(x, grow.WithSparse(opts.sparse...))
	if err != nil {
		return err
	}
	trainer, err := grow.NewTrainer(frame, sess)
	if err != nil {
		return err
	}
	forest, err := trainer.Train(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "session %s: %d trees, %s\n", sess.ID(), len(forest.Trees), sess.Mode())
	if err := forest.ScoreDesc.Save(out); err != nil {
		return err
	}
	pred, err := forest.PredictDense(x)
	if err != nil {
		return err
	}
	if err := report(out, forest, x, resp, pred); err != nil {
		return err
	}

	if opts.plotPath != "" {
		if err := trainer.Trace().Save(opts.plotPath); err != nil {
			return err
		}
	}
	if opts.predPath != "" {
		values := pred.RawVector().Data
		if enc != nil && !forest.ScoreDesc.Boosted() {
			codes := make([]int, len(values))
			for i, v := range values {
				codes[i] = int(v)
			}
			if values, err = enc.InverseTransform(codes); err != nil {
				return err
			}
		}
		if err := writeNpy(opts.predPath, values); err != nil {
			return err
		}
		log.GetLoggerWithName("arbtrain").Info("predictions written",
			log.OperationKey, log.OperationPredict,
			log.SamplesKey, len(values),
			"path", opts.predPath)
	}
	return nil
}

// report prints in-sample metrics and the per-predictor split information.
func report(out io.Writer, forest *grow.Forest, x *mat.Dense, resp *obs.Response, pred *mat.VecDense) error {
	rows, _ := x.Dims()
	if resp.Kind() == obs.Regression {
		yVec := mat.NewVecDense(rows, resp.YNum())
		mse, err := metrics.MSE(yVec, pred)
		if err != nil {
			return err
		}
		r2, err := metrics.R2Score(yVec, pred)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "train mse: %.6f\ntrain r2: %.6f\n", mse, r2)
	} else {
		labels := make([]float64, rows)
		for i, c := range resp.CtgLabels() {
			labels[i] = float64(c)
		}
		yVec := mat.NewVecDense(rows, labels)
		predCtg := mat.NewVecDense(rows, nil)
		row := make([]float64, x.RawMatrix().Cols)
		for i := 0; i < rows; i++ {
			mat.Row(row, i, x)
			c, err := forest.PredictCategory(row)
			if err != nil {
				return err
			}
			predCtg.SetVec(i, float64(c))
		}
		acc, err := metrics.Accuracy(yVec, predCtg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "train accuracy: %.4f\n", acc)
		if forest.ScoreDesc.Boosted() {
			loss, err := metrics.BinaryLogLoss(yVec, pred)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "train log loss: %.6f\n", loss)
		}
	}

	fmt.Fprintln(out, "predictor information:")
	for p, v := range forest.PredInfo {
		fmt.Fprintf(out, "  x%d\t%.6g\n", p, v)
	}
	return nil
}
