package grow

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/arbor/boost"
	"github.com/ezoic/arbor/diag"
	"github.com/ezoic/arbor/metrics"
	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/errors"
	"github.com/ezoic/arbor/pkg/log"
	"github.com/ezoic/arbor/score"
	"github.com/ezoic/arbor/session"
)

// Training loss metrics recorded in the trace.
const (
	MetricMSE     = "mse"
	MetricLogLoss = "log_loss"
	MetricError   = "error"
)

// Trainer trains every tree of a session.
type Trainer struct {
	frame  *Frame
	sess   *session.Session
	grower *Grower
	bagger obs.Bagger
	trace  *diag.Trace
	logger log.Logger
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithBagger replaces the session's sampler.
func WithBagger(b obs.Bagger) TrainerOption {
	return func(t *Trainer) {
		t.bagger = b
	}
}

// NewTrainer prepares training of sess over frame. Unless WithBagger is
// given, bags are drawn by a Sampler built from the session configuration.
func NewTrainer(frame *Frame, sess *session.Session, opts ...TrainerOption) (*Trainer, error) {
	if !sess.Ready() {
		return nil, errors.NewNotInitializedError("Session", "NewTrainer")
	}
	grower, err := NewGrower(frame, sess)
	if err != nil {
		return nil, err
	}
	t := &Trainer{
		frame:  frame,
		sess:   sess,
		grower: grower,
		logger: sess.Logger().With(log.ComponentKey, "trainer"),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.bagger == nil {
		cfg := sess.Config()
		sampler, err := obs.NewSampler(frame.NRow(), cfg.Sampling.NSamp, cfg.Sampling.WithReplacement, cfg.Seed)
		if err != nil {
			return nil, err
		}
		t.bagger = sampler
	}
	if t.bagger.NObs() != frame.NRow() {
		return nil, errors.NewDimensionError("NewTrainer", frame.NRow(), t.bagger.NObs(), 0)
	}
	t.trace = diag.NewTrace(t.metric())
	return t, nil
}

// Trace returns the per-tree training trace.
func (t *Trainer) Trace() *diag.Trace {
	return t.trace
}

func (t *Trainer) metric() string {
	switch {
	case t.sess.Booster().Loss() == boost.LossLogOdds:
		return MetricLogLoss
	case t.sess.Scorer().Kind() == score.Plurality:
		return MetricError
	default:
		return MetricMSE
	}
}

// Train grows the session's trees: in parallel when bagging, in index
// order when boosting.
func (t *Trainer) Train(ctx context.Context) (forest *Forest, err error) {
	defer errors.Recover(&err, "Trainer.Train")
	if !t.sess.Ready() {
		return nil, errors.NewNotInitializedError("Session", "Train")
	}

	start := time.Now()
	mode := t.sess.Mode()
	t.logger.Info("training started",
		log.OperationKey, log.OperationTrain,
		"mode", mode,
		"n_tree", t.sess.Config().NTree)

	var trees []*Tree
	if mode == session.ModeBoosting {
		trees, err = t.boost(ctx)
	} else {
		trees, err = t.bag(ctx)
	}
	if err != nil {
		t.logger.Error("training failed", log.OperationKey, log.OperationTrain, log.ErrorKey, err)
		return nil, err
	}

	desc, err := t.sess.Booster().ScoreDesc()
	if err != nil {
		return nil, err
	}
	forest = newForest(trees, desc, t.sess.Booster().Loss(), t.sess.Scorer().Kind(),
		t.sess.Response().NCtg(), t.frame.NPred())
	t.logger.Info("training complete",
		log.OperationKey, log.OperationTrain,
		"trees", len(trees),
		log.DurationMsKey, time.Since(start).Milliseconds())
	return forest, nil
}

// bag grows independent trees, each with its own bag and scorer clone.
func (t *Trainer) bag(ctx context.Context) ([]*Tree, error) {
	trees := make([]*Tree, t.sess.Config().NTree)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(t.grower.nThread)
	for tIdx := range trees {
		eg.Go(func() (err error) {
			defer errors.Recover(&err, "Trainer.bag")
			scorer, err := t.sess.Scorer().Clone()
			if err != nil {
				return err
			}
			sampled, err := t.sess.Response().GetObs(t.bagger, tIdx)
			if err != nil {
				return err
			}
			began := time.Now()
			tree, terms, err := t.grower.Grow(egCtx, tIdx, sampled, scorer)
			if err != nil {
				return errors.Wrapf(err, "tree %d", tIdx)
			}
			trees[tIdx] = tree
			t.record(tIdx, tree, sampled, sampled.RootSet().Sum, leafPredictions(tree, terms, sampled.BagCount()), time.Since(began))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}

// boost grows trees in order over a single bag, each fitting the residual
// its predecessors leave.
func (t *Trainer) boost(ctx context.Context) ([]*Tree, error) {
	booster := t.sess.Booster()
	scorer := t.sess.Scorer()
	sampled, err := t.sess.Response().GetObs(t.bagger, 0)
	if err != nil {
		return nil, err
	}
	if err := booster.SetEstimate(sampled); err != nil {
		return nil, err
	}

	trees := make([]*Tree, t.sess.Config().NTree)
	for tIdx := range trees {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "Trainer.boost")
		}
		began := time.Now()
		bagSum, err := booster.UpdateResidual(scorer, sampled)
		if err != nil {
			return nil, err
		}
		tree, terms, err := t.grower.Grow(ctx, tIdx, sampled, scorer)
		if err != nil {
			return nil, errors.Wrapf(err, "tree %d", tIdx)
		}
		if err := booster.UpdateEstimate(tree, terms); err != nil {
			return nil, err
		}
		trees[tIdx] = tree

		pred := booster.Estimate()
		if booster.Loss() == boost.LossLogOdds {
			for i, s := range pred {
				pred[i] = boost.Logistic(s)
			}
		}
		t.record(tIdx, tree, sampled, bagSum, pred, time.Since(began))
	}
	return trees, nil
}

// leafPredictions returns the score of the terminal holding each sample.
func leafPredictions(tree *Tree, terms *obs.SampleMap, nSample int) []float64 {
	pred := make([]float64, nSample)
	for term := 0; term < terms.NNode(); term++ {
		for _, s := range terms.Samples(term) {
			pred[s] = tree.TerminalScore(term)
		}
	}
	return pred
}

// record traces one tree and updates the session metrics.
func (t *Trainer) record(tIdx int, tree *Tree, sampled *obs.SampledObs, bagSum float64, pred []float64, d time.Duration) {
	loss, err := t.trainingLoss(sampled, pred)
	if err != nil {
		t.logger.Warn("training loss unavailable", log.TreeKey, tIdx, log.ErrorKey, err)
	}
	t.trace.Record(diag.Entry{Tree: tIdx, BagSum: bagSum, Loss: loss, Leaves: tree.Leaves(), Duration: d})
	session.RecordTree(t.sess.Mode(), d)
	t.logger.Debug("tree trained",
		log.TreeKey, tIdx,
		"bag_sum", bagSum,
		"train_loss", loss,
		"leaves", tree.Leaves(),
		log.DurationMsKey, d.Milliseconds())
}

// trainingLoss scores in-bag predictions, one per sample, weighted by bag
// multiplicity.
func (t *Trainer) trainingLoss(sampled *obs.SampledObs, pred []float64) (float64, error) {
	n := sampled.BagCount()
	yTrue := make([]float64, n)
	weight := make([]float64, n)
	categorical := t.sess.Response().Kind() == obs.Categorical
	y := t.sess.Response().YNum()
	for i := 0; i < n; i++ {
		nux := sampled.Sample(i)
		weight[i] = float64(nux.SCount)
		if categorical {
			yTrue[i] = float64(nux.Ctg)
		} else {
			yTrue[i] = y[sampled.Row(i)]
		}
	}
	trueVec, weightVec := mat.NewVecDense(n, yTrue), mat.NewVecDense(n, weight)

	switch t.trace.Metric() {
	case MetricLogLoss:
		return metrics.WeightedBinaryLogLoss(trueVec, mat.NewVecDense(n, pred), weightVec)
	case MetricError:
		ctg := make([]float64, n)
		for i, s := range pred {
			ctg[i] = float64(score.DecodePlurality(s))
		}
		return metrics.ClassificationError(trueVec, mat.NewVecDense(n, ctg))
	default:
		return metrics.WeightedMSE(trueVec, mat.NewVecDense(n, pred), weightVec)
	}
}
