// Package session owns the per-run training state: the candidate selector,
// the booster, the node scorer and the monotonicity constraints.
//
// A Session replaces process-wide singletons, so independent sessions may
// train concurrently. Each Init* entry point runs once before the first
// tree; Close tears the session down, after which the booster and scorer
// report ErrNotInitialized.
package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ezoic/arbor/boost"
	"github.com/ezoic/arbor/core/model"
	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/errors"
	"github.com/ezoic/arbor/pkg/log"
	"github.com/ezoic/arbor/score"
	"github.com/ezoic/arbor/split"
)

// Training modes, used as metric labels.
const (
	ModeBagging  = "bagging"
	ModeBoosting = "boosting"
)

// Session is the context of one training run.
type Session struct {
	id       string
	cfg      Config
	nPred    int
	response *obs.Response

	cand    *split.CandSGB
	booster *boost.Booster
	scorer  *score.NodeScorer
	mono    []int

	state  *model.StateManager
	logger log.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l log.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// New validates cfg against a frame of nPred predictors and response, then
// runs every Init* entry point from it.
func New(cfg Config, response *obs.Response, nPred int, opts ...Option) (*Session, error) {
	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		nPred:    nPred,
		response: response,
		state:    model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("session")
	}
	s.logger = s.logger.With(log.SessionKey, s.id)

	if err := s.init(); err != nil {
		s.logger.Error("session init failed", log.OperationKey, log.OperationInit, log.ErrorKey, err)
		s.Close()
		return nil, err
	}
	if err := s.state.SetReady(); err != nil {
		return nil, err
	}
	sessionsActive.Inc()
	s.logger.Info("session started",
		log.OperationKey, log.OperationInit,
		log.LossKey, cfg.Booster.Loss,
		log.ScorerKey, cfg.Booster.Scorer,
		log.FeaturesKey, nPred,
		log.SamplesKey, response.NObs())
	return s, nil
}

func (s *Session) init() error {
	if s.response == nil {
		return errors.NewValidationError("response", "is required", nil)
	}
	if err := s.cfg.Validate(s.nPred); err != nil {
		return err
	}
	if err := s.checkResponse(); err != nil {
		return err
	}
	if err := s.InitProb(s.cfg.Candidates.PredFixed, s.cfg.Candidates.PredProb); err != nil {
		return err
	}
	if err := s.InitBooster(s.cfg.Booster.Loss, s.cfg.Booster.Scorer, s.cfg.Booster.Nu); err != nil {
		return err
	}
	return s.InitMono(s.cfg.Mono)
}

// checkResponse matches the loss and scorer against the response kind.
func (s *Session) checkResponse() error {
	categorical := s.response.Kind() == obs.Categorical
	switch {
	case s.cfg.Booster.Loss == "L2" && categorical:
		return errors.NewValidationError("booster.loss", "L2 needs a numeric response", s.cfg.Booster.Loss)
	case s.cfg.Booster.Loss == "logOdds" && (!categorical || s.response.NCtg() != 2):
		return errors.NewValidationError("booster.loss", "logOdds needs a two-category response", s.cfg.Booster.Loss)
	case s.cfg.Booster.Scorer == "plurality" && !categorical:
		return errors.NewValidationError("booster.scorer", "plurality needs a categorical response", s.cfg.Booster.Scorer)
	case s.cfg.Booster.Scorer == "mean" && categorical:
		return errors.NewValidationError("booster.scorer", "mean needs a numeric response", s.cfg.Booster.Scorer)
	}
	return nil
}

func alreadyInitialized(what string) error {
	return errors.NewValidationError(what, "already initialized", nil)
}

// InitProb configures predictor subsampling. With predFixed zero and no
// predProb, every predictor is a candidate.
func (s *Session) InitProb(predFixed int, predProb []float64) error {
	if s.cand != nil {
		return alreadyInitialized("candidates")
	}
	if predFixed == 0 && len(predProb) == 0 {
		predFixed = s.nPred
	}
	cand, err := split.NewCandSGB(s.nPred, predFixed, predProb, s.cfg.Seed)
	if err != nil {
		return err
	}
	s.cand = cand
	return nil
}

// InitBooster selects the loss, the node scorer and the learning rate.
func (s *Session) InitBooster(lossName, scorerName string, nu float64) error {
	if s.booster != nil {
		return alreadyInitialized("booster")
	}
	loss, err := boost.ParseLoss(lossName)
	if err != nil {
		return err
	}
	kind, err := score.ParseKind(scorerName)
	if err != nil {
		return err
	}
	policy, err := score.ParseJitterPolicy(s.cfg.Jitter)
	if err != nil {
		return err
	}
	booster, err := boost.New(loss, nu, boost.WithLogger(s.logger.With(log.ComponentKey, "boost")))
	if err != nil {
		return err
	}
	nCtg := 0
	if s.response != nil {
		nCtg = s.response.NCtg()
	}
	scorer, err := score.New(kind, nCtg, s.cfg.Seed, policy)
	if err != nil {
		return err
	}
	s.booster, s.scorer = booster, scorer
	return nil
}

// InitMono installs one monotonicity constraint per predictor. An empty
// vector leaves every predictor unconstrained.
func (s *Session) InitMono(regMono []int) error {
	if s.mono != nil {
		return alreadyInitialized("mono")
	}
	mono := make([]int, s.nPred)
	if len(regMono) != 0 {
		if len(regMono) != s.nPred {
			return errors.NewValidationError("mono", fmt.Sprintf("length must be 0 or %d", s.nPred), len(regMono))
		}
		for p, m := range regMono {
			if m < -1 || m > 1 {
				return errors.NewValidationError("mono", fmt.Sprintf("constraint of predictor %d must be -1, 0 or 1", p), m)
			}
		}
		copy(mono, regMono)
	}
	s.mono = mono
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// NPred returns the predictor count.
func (s *Session) NPred() int {
	return s.nPred
}

// Response returns the training response.
func (s *Session) Response() *obs.Response {
	return s.response
}

// Logger returns the session logger.
func (s *Session) Logger() log.Logger {
	return s.logger
}

// Mode returns ModeBoosting or ModeBagging.
func (s *Session) Mode() string {
	if s.booster != nil && s.booster.Boosting() {
		return ModeBoosting
	}
	return ModeBagging
}

// CandSGB returns the candidate selector.
func (s *Session) CandSGB() *split.CandSGB {
	return s.cand
}

// Booster returns the boosting controller.
func (s *Session) Booster() *boost.Booster {
	return s.booster
}

// Scorer returns the node scorer.
func (s *Session) Scorer() *score.NodeScorer {
	return s.scorer
}

// Mono returns the monotonicity constraint of predictor pred. Categorical
// responses are never constrained.
func (s *Session) Mono(pred int) int {
	if s.response != nil && s.response.Kind() == obs.Categorical {
		return 0
	}
	if pred < 0 || pred >= len(s.mono) {
		return 0
	}
	return s.mono[pred]
}

// Ready reports whether the session can train.
func (s *Session) Ready() bool {
	return s.state.IsReady()
}

// Close tears the session down. It is safe to call more than once.
func (s *Session) Close() {
	wasReady := s.state.IsReady()
	if !s.state.Close() {
		return
	}
	if s.booster != nil {
		s.booster.Close()
	}
	if s.scorer != nil {
		s.scorer.Close()
	}
	if wasReady {
		sessionsActive.Dec()
		s.logger.Info("session closed", log.OperationKey, log.OperationClose)
	}
}
