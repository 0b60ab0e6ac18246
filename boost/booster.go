// Package boost drives residual fitting across the trees of a boosting
// session.
//
// A Booster holds the never-mutated bagged response (the base samples) and
// the cumulative prediction of every bagged sample. Per tree the caller
// runs, strictly in order:
//
//	booster.SetEstimate(sampled)               // first tree only
//	bagSum, err := booster.UpdateResidual(scorer, sampled)
//	tree := grow(sampled)
//	booster.UpdateEstimate(tree, terminalMap)
//
// With the Zero loss every call is a no-op, which is how bagged forests
// run.
package boost

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/ezoic/arbor/core/model"
	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/errors"
	"github.com/ezoic/arbor/pkg/log"
)

// Loss selects the boosting loss.
type Loss int

const (
	// LossZero disables boosting.
	LossZero Loss = iota
	// LossL2 fits squared-error residuals of a numeric response.
	LossL2
	// LossLogOdds fits log-loss residuals of a two-category response.
	LossLogOdds
)

func (l Loss) String() string {
	switch l {
	case LossZero:
		return "zero"
	case LossL2:
		return "L2"
	case LossLogOdds:
		return "logOdds"
	default:
		return fmt.Sprintf("Loss(%d)", int(l))
	}
}

// ParseLoss maps "zero", "L2" or "logOdds" to a Loss, ignoring case.
func ParseLoss(name string) (Loss, error) {
	for _, l := range []Loss{LossZero, LossL2, LossLogOdds} {
		if strings.EqualFold(l.String(), name) {
			return l, nil
		}
	}
	return LossZero, errors.NewValidationError("loss", "must be one of zero, L2, logOdds", name)
}

// Probability bounds of the logistic transform.
const (
	minProb = 1e-15
	maxProb = 1 - 1e-15
)

// GammaSetter receives the per-sample Newton weights of log-loss boosting.
type GammaSetter interface {
	SetGamma(gamma []float64) error
}

// Booster is the boosting controller of one session. It is not safe for
// concurrent use; trees must be processed in index order.
type Booster struct {
	loss      Loss
	nu        float64
	baseScore float64

	baseSamples []obs.SampleNux
	estimate    []float64

	state     *model.StateManager
	estimated bool
	logger    log.Logger
}

// Option configures a Booster.
type Option func(*Booster)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(b *Booster) {
		b.logger = l
	}
}

// New creates a Booster. nu must be positive and finite unless the loss is
// LossZero, in which case it is ignored.
func New(loss Loss, nu float64, opts ...Option) (*Booster, error) {
	switch loss {
	case LossZero:
		nu = 0
	case LossL2, LossLogOdds:
		if math.IsNaN(nu) || math.IsInf(nu, 0) || nu <= 0 {
			return nil, errors.NewValidationError("nu", "must be positive and finite", nu)
		}
	default:
		return nil, errors.NewValidationError("loss", "unknown loss", int(loss))
	}
	b := &Booster{
		loss:   loss,
		nu:     nu,
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("boost"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.state.SetReady(); err != nil {
		return nil, err
	}
	return b, nil
}

// Loss returns the configured loss.
func (b *Booster) Loss() Loss {
	return b.loss
}

// Boosting reports whether the loss fits residuals.
func (b *Booster) Boosting() bool {
	return b.loss != LossZero
}

// Nu returns the learning rate.
func (b *Booster) Nu() float64 {
	return b.nu
}

func (b *Booster) ready(method string) error {
	if b == nil || b.state == nil || !b.state.IsReady() {
		return errors.NewNotInitializedError("Booster", method)
	}
	return nil
}

// SetEstimate captures the base samples of sampled and broadcasts the base
// score into the estimate. It runs once, before the first tree.
func (b *Booster) SetEstimate(sampled *obs.SampledObs) error {
	if err := b.ready("SetEstimate"); err != nil {
		return err
	}
	switch b.loss {
	case LossL2:
		b.baseSamples = sampled.CopySamples()
		root := sampled.RootSet()
		b.baseScore = root.Sum / float64(root.SCount)
	case LossLogOdds:
		if sampled.NCtg() != 2 {
			return errors.NewValueError("Booster.SetEstimate",
				fmt.Sprintf("log-odds boosting needs 2 categories, got %d", sampled.NCtg()))
		}
		b.baseSamples = sampled.CopySamples()
		for i := range b.baseSamples {
			s := &b.baseSamples[i]
			s.Sum = float64(s.Ctg) * float64(s.SCount)
		}
		root := sampled.RootSet()
		b.baseScore = logOddsBase(root.CtgCount[0], root.CtgCount[1])
	default:
		return nil
	}
	b.estimate = make([]float64, len(b.baseSamples))
	for i := range b.estimate {
		b.estimate[i] = b.baseScore
	}
	b.estimated = true
	b.logger.Debug("estimate initialized",
		log.OperationKey, log.OperationBoost,
		log.LossKey, b.loss.String(), "base_score", b.baseScore, log.SamplesKey, len(b.estimate))
	return nil
}

// logOddsBase is log(count1/count0), with the proportion clamped so that a
// single-category bag stays finite.
func logOddsBase(count0, count1 int) float64 {
	p := clampProb(float64(count1) / float64(count0+count1))
	return math.Log(p / (1 - p))
}

func clampProb(p float64) float64 {
	return math.Min(maxProb, math.Max(minProb, p))
}

// Logistic maps a log-odds score to a probability in [1e-15, 1-1e-15].
func Logistic(score float64) float64 {
	return clampProb(1 / (1 + math.Exp(-score)))
}

// UpdateResidual installs into sampled the residual of every base sample
// against the current estimate and returns the bag's total residual. Under
// log loss it also pushes p(1-p)*sCount per sample into scorer.
func (b *Booster) UpdateResidual(scorer GammaSetter, sampled *obs.SampledObs) (float64, error) {
	if err := b.ready("UpdateResidual"); err != nil {
		return 0, err
	}
	if b.loss == LossZero {
		return 0, nil
	}
	if err := b.checkEstimate("UpdateResidual"); err != nil {
		return 0, err
	}
	if sampled.BagCount() != len(b.baseSamples) {
		return 0, errors.NewInvariantError("Booster.UpdateResidual",
			fmt.Sprintf("bag holds %d samples, base holds %d", sampled.BagCount(), len(b.baseSamples)))
	}

	samples := make([]obs.SampleNux, len(b.baseSamples))
	copy(samples, b.baseSamples)
	residual := make([]float64, len(samples))

	switch b.loss {
	case LossL2:
		for i := range samples {
			residual[i] = samples[i].DecrementSum(b.estimate[i])
		}
	case LossLogOdds:
		gamma := make([]float64, len(samples))
		for i := range samples {
			p := Logistic(b.estimate[i])
			residual[i] = samples[i].DecrementSum(p)
			gamma[i] = p * (1 - p) * float64(samples[i].SCount)
		}
		if err := scorer.SetGamma(gamma); err != nil {
			return 0, errors.Wrap(err, "Booster.UpdateResidual")
		}
	}
	if err := sampled.SetSamples(samples); err != nil {
		return 0, err
	}
	bagSum := floats.Sum(residual)
	b.logger.Debug("residual updated",
		log.OperationKey, log.OperationBoost,
		log.LossKey, b.loss.String(),
		"bag_sum", bagSum)
	return bagSum, nil
}

// UpdateEstimate adds nu times each terminal's score into the estimate of
// the samples it holds. sm maps terminal indices of tree to sample indices.
func (b *Booster) UpdateEstimate(tree obs.LeafScorer, sm *obs.SampleMap) error {
	if err := b.ready("UpdateEstimate"); err != nil {
		return err
	}
	if b.loss == LossZero {
		return nil
	}
	if err := b.checkEstimate("UpdateEstimate"); err != nil {
		return err
	}
	sm.ScaleSampleScores(tree, b.estimate, b.nu)
	return nil
}

func (b *Booster) checkEstimate(method string) error {
	if !b.estimated {
		return errors.NewNotFittedError("Booster", method)
	}
	if len(b.estimate) != len(b.baseSamples) {
		return errors.NewInvariantError("Booster."+method, "estimate and base samples differ in length")
	}
	return nil
}

// ScoreDesc returns the learning rate and base score. The zero loss yields
// the zero descriptor; otherwise SetEstimate must have run.
func (b *Booster) ScoreDesc() (model.ScoreDesc, error) {
	if err := b.ready("ScoreDesc"); err != nil {
		return model.ScoreDesc{}, err
	}
	if b.loss == LossZero {
		return model.ScoreDesc{}, nil
	}
	if !b.estimated {
		return model.ScoreDesc{}, errors.NewNotFittedError("Booster", "ScoreDesc")
	}
	return model.ScoreDesc{Nu: b.nu, BaseScore: b.baseScore}, nil
}

// Estimate returns a copy of the cumulative prediction per bagged sample.
func (b *Booster) Estimate() []float64 {
	return append([]float64(nil), b.estimate...)
}

// Close tears the Booster down. Every later call reports ErrNotInitialized.
func (b *Booster) Close() {
	if b == nil || b.state == nil {
		return
	}
	b.state.Close()
	b.baseSamples = nil
	b.estimate = nil
	b.estimated = false
}
