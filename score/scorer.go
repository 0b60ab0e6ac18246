// Package score turns the samples of a terminal node into its leaf score.
package score

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/errors"
)

// Kind selects the scoring strategy of a session.
type Kind int

const (
	// Zero is a placeholder; scoring with it is an invariant violation.
	Zero Kind = iota
	// Mean scores a node by its mean response.
	Mean
	// Plurality scores a node by its jittered majority category.
	Plurality
	// LogOdds scores a node by its Newton step under log loss.
	LogOdds
)

var kindNames = map[Kind]string{
	Zero:      "zero",
	Mean:      "mean",
	Plurality: "plurality",
	LogOdds:   "logOdds",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a scorer name to its Kind. Matching ignores case.
func ParseKind(name string) (Kind, error) {
	for k, s := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return Zero, errors.NewValidationError("scorer", "must be one of zero, mean, plurality, logOdds", name)
}

// JitterPolicy controls when the plurality tie-break vector is redrawn.
type JitterPolicy int

const (
	// JitterPerSession draws the vector once per session.
	JitterPerSession JitterPolicy = iota
	// JitterPerLevel redraws the vector at every frontier level.
	JitterPerLevel
)

func (p JitterPolicy) String() string {
	if p == JitterPerLevel {
		return "per_level"
	}
	return "per_session"
}

// ParseJitterPolicy maps "per_session" or "per_level" to a policy. The
// empty string selects JitterPerSession.
func ParseJitterPolicy(name string) (JitterPolicy, error) {
	switch strings.ToLower(name) {
	case "", "per_session":
		return JitterPerSession, nil
	case "per_level":
		return JitterPerLevel, nil
	default:
		return JitterPerSession, errors.NewValidationError("jitter", "must be per_session or per_level", name)
	}
}

// JitterScale bounds the jitter values: every entry lies in
// [0, JitterScale), so a packed plurality score floors to its category.
const JitterScale = 0.5

// NodeScorer scores terminal nodes with the strategy chosen at session
// start. It is owned by one session and is not safe for concurrent
// mutation; Score may run concurrently between mutations.
type NodeScorer struct {
	kind   Kind
	nCtg   int
	seed   uint64
	policy JitterPolicy

	ctgJitter []float64
	gamma     []float64
	closed    bool
}

// New creates a scorer. nCtg is the response category count, zero for a
// numeric response; Plurality requires it to be positive.
func New(kind Kind, nCtg int, seed uint64, policy JitterPolicy) (*NodeScorer, error) {
	if kind < Zero || kind > LogOdds {
		return nil, errors.NewValidationError("scorer", "unknown strategy", int(kind))
	}
	if kind == Plurality && nCtg < 1 {
		return nil, errors.NewValidationError("scorer", "plurality requires a categorical response", kind.String())
	}
	s := &NodeScorer{kind: kind, nCtg: nCtg, seed: seed, policy: policy}
	if kind == Plurality {
		s.ctgJitter = drawJitter(nCtg, seed, 0)
	}
	return s, nil
}

// jitterStream tags the tie-break draws within a seed's PCG streams.
const jitterStream uint64 = 0x03 << 56

func drawJitter(nCtg int, seed, stream uint64) []float64 {
	// G404: Using math/rand for ML sampling (not cryptographic purposes)
	r := rand.New(rand.NewPCG(seed, jitterStream|stream))
	j := make([]float64, nCtg)
	for c := range j {
		j[c] = JitterScale * r.Float64()
	}
	return j
}

// Kind returns the scoring strategy.
func (s *NodeScorer) Kind() Kind {
	return s.kind
}

// Jitter returns a copy of the current tie-break vector.
func (s *NodeScorer) Jitter() []float64 {
	return append([]float64(nil), s.ctgJitter...)
}

// FrontierPreamble prepares the scorer for a frontier level, redrawing the
// jitter under JitterPerLevel.
func (s *NodeScorer) FrontierPreamble(level int) error {
	if s.closed {
		return errors.NewNotInitializedError("NodeScorer", "FrontierPreamble")
	}
	if s.kind == Plurality && s.policy == JitterPerLevel {
		s.ctgJitter = drawJitter(s.nCtg, s.seed, uint64(level)+1)
	}
	return nil
}

// SetJitter installs an explicit tie-break vector.
func (s *NodeScorer) SetJitter(jitter []float64) error {
	if len(jitter) != s.nCtg {
		return errors.NewDimensionError("NodeScorer.SetJitter", s.nCtg, len(jitter), 0)
	}
	for c, j := range jitter {
		if math.IsNaN(j) || j < 0 || j >= JitterScale {
			return errors.NewValueError("NodeScorer.SetJitter",
				fmt.Sprintf("jitter of category %d outside [0,%g)", c, JitterScale))
		}
	}
	s.ctgJitter = append([]float64(nil), jitter...)
	return nil
}

// SetGamma replaces the per-sample Newton weights, taking ownership.
func (s *NodeScorer) SetGamma(gamma []float64) error {
	if s.closed {
		return errors.NewNotInitializedError("NodeScorer", "SetGamma")
	}
	s.gamma = gamma
	return nil
}

// Clone returns a scorer with its own jitter vector, so trees grown in
// parallel can each run FrontierPreamble. The gamma vector is shared and
// must not be replaced while clones score.
func (s *NodeScorer) Clone() (*NodeScorer, error) {
	if s.closed {
		return nil, errors.NewNotInitializedError("NodeScorer", "Clone")
	}
	c := *s
	c.ctgJitter = append([]float64(nil), s.ctgJitter...)
	return &c, nil
}

// Close releases the scorer's state. Later use reports ErrNotInitialized.
func (s *NodeScorer) Close() {
	s.closed = true
	s.gamma = nil
	s.ctgJitter = nil
}

// Score returns the leaf score of node iSet, whose samples sm lists under
// iSet.Idx. It does not mutate its inputs. Scoring with the Zero strategy
// or after Close panics with an invariant error.
func (s *NodeScorer) Score(sm *obs.SampleMap, iSet *obs.IndexSet) float64 {
	if s.closed {
		panic(errors.NewNotInitializedError("NodeScorer", "Score"))
	}
	switch s.kind {
	case Mean:
		return s.scoreMean(iSet)
	case Plurality:
		return s.scorePlurality(iSet)
	case LogOdds:
		return s.scoreLogOdds(sm, iSet)
	default:
		panic(errors.NewInvariantError("NodeScorer.Score", "placeholder scorer invoked"))
	}
}

func (s *NodeScorer) scoreMean(iSet *obs.IndexSet) float64 {
	if iSet.SCount == 0 {
		return 0
	}
	return iSet.Sum / float64(iSet.SCount)
}

// scorePlurality picks the category with the largest weighted sum, jitter
// deciding exact ties, and packs it with its jitter.
func (s *NodeScorer) scorePlurality(iSet *obs.IndexSet) float64 {
	if len(iSet.CtgSum) != len(s.ctgJitter) {
		panic(errors.NewInvariantError("NodeScorer.Score", "category sums do not match jitter"))
	}
	best := 0
	for c := 1; c < len(iSet.CtgSum); c++ {
		v, bv := iSet.CtgSum[c], iSet.CtgSum[best]
		if v > bv || (v == bv && s.ctgJitter[c] > s.ctgJitter[best]) {
			best = c
		}
	}
	return float64(best) + s.ctgJitter[best]
}

func (s *NodeScorer) scoreLogOdds(sm *obs.SampleMap, iSet *obs.IndexSet) float64 {
	if s.gamma == nil {
		panic(errors.NewInvariantError("NodeScorer.Score", "log-odds scoring before gamma was set"))
	}
	sumGamma := 0.0
	for _, sIdx := range sm.Samples(iSet.Idx) {
		sumGamma += s.gamma[sIdx]
	}
	if sumGamma == 0 {
		return 0
	}
	return iSet.Sum / sumGamma
}

// DecodePlurality recovers the category packed in a plurality score.
func DecodePlurality(score float64) int {
	return int(math.Floor(score))
}
