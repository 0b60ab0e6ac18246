package grow_test

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/arbor/grow"
	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/log"
	"github.com/ezoic/arbor/session"
)

// ExampleTrainer boosts stumps on a step function.
func ExampleTrainer() {
	log.SetupLogger("disabled")

	x := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	resp, err := obs.NewRegression([]float64{1, 1, 1, 1, 5, 5, 5, 5})
	if err != nil {
		slog.Error("Failed to build response", "error", err)
		return
	}

	cfg := session.DefaultConfig()
	cfg.NTree = 30
	cfg.Booster = session.BoosterConfig{Loss: "L2", Scorer: "mean", Nu: 0.5}
	cfg.Tree.MaxDepth = 1
	sess, err := session.New(cfg, resp, 1)
	if err != nil {
		slog.Error("Failed to start session", "error", err)
		return
	}
	defer sess.Close()

	frame, err := grow.NewFrame(x)
	if err != nil {
		slog.Error("Failed to build frame", "error", err)
		return
	}
	trainer, err := grow.NewTrainer(frame, sess, grow.WithBagger(obs.FullBag(8)))
	if err != nil {
		slog.Error("Failed to build trainer", "error", err)
		return
	}
	forest, err := trainer.Train(context.Background())
	if err != nil {
		slog.Error("Failed to train", "error", err)
		return
	}

	fmt.Printf("base score: %.1f\n", forest.ScoreDesc.BaseScore)
	fmt.Printf("split at: %.1f\n", forest.Trees[0].Nodes[0].Threshold)
	fmt.Printf("predictions: %.3f %.3f\n", forest.Predict([]float64{1}), forest.Predict([]float64{6}))

	// Output:
	// base score: 3.0
	// split at: 3.5
	// predictions: 1.000 5.000
}
