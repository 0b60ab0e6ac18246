package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/errors"
)

func TestParseKind(t *testing.T) {
	for name, want := range map[string]Kind{"mean": Mean, "plurality": Plurality, "logOdds": LogOdds, "LOGODDS": LogOdds, "zero": Zero} {
		got, err := ParseKind(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("median")
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestParseJitterPolicy(t *testing.T) {
	p, err := ParseJitterPolicy("")
	require.NoError(t, err)
	assert.Equal(t, JitterPerSession, p)
	p, err = ParseJitterPolicy("per_level")
	require.NoError(t, err)
	assert.Equal(t, JitterPerLevel, p)
	_, err = ParseJitterPolicy("per_tree")
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestScoreMean(t *testing.T) {
	s, err := New(Mean, 0, 1, JitterPerSession)
	require.NoError(t, err)

	assert.Equal(t, 2.5, s.Score(nil, &obs.IndexSet{Sum: 10, SCount: 4}))
	assert.Equal(t, 0.0, s.Score(nil, &obs.IndexSet{}))
}

func TestPluralityMajorityIgnoresJitter(t *testing.T) {
	s, err := New(Plurality, 3, 1, JitterPerSession)
	require.NoError(t, err)

	iSet := &obs.IndexSet{CtgSum: []float64{1, 4, 3}, CtgCount: []int{1, 4, 3}}
	for _, jitter := range [][]float64{{0, 0, 0}, {0.49, 0, 0.49}, {0.1, 0.2, 0.3}} {
		require.NoError(t, s.SetJitter(jitter))
		score := s.Score(nil, iSet)
		assert.Equal(t, 1, DecodePlurality(score))
		assert.Equal(t, 1+jitter[1], score)
	}
}

func TestPluralityTieFollowsJitter(t *testing.T) {
	s, err := New(Plurality, 3, 1, JitterPerSession)
	require.NoError(t, err)
	iSet := &obs.IndexSet{CtgSum: []float64{3, 1, 3}}

	require.NoError(t, s.SetJitter([]float64{0.3, 0.4, 0.1}))
	assert.Equal(t, 0, DecodePlurality(s.Score(nil, iSet)))
	assert.Equal(t, 0, DecodePlurality(s.Score(nil, iSet)))

	require.NoError(t, s.SetJitter([]float64{0.1, 0.4, 0.3}))
	assert.Equal(t, 2, DecodePlurality(s.Score(nil, iSet)))
}

func TestJitterPolicies(t *testing.T) {
	session, err := New(Plurality, 4, 7, JitterPerSession)
	require.NoError(t, err)
	first := session.Jitter()
	require.NoError(t, session.FrontierPreamble(1))
	assert.Equal(t, first, session.Jitter())
	for _, j := range first {
		assert.GreaterOrEqual(t, j, 0.0)
		assert.Less(t, j, JitterScale)
	}

	perLevel, err := New(Plurality, 4, 7, JitterPerLevel)
	require.NoError(t, err)
	require.NoError(t, perLevel.FrontierPreamble(1))
	l1 := perLevel.Jitter()
	require.NoError(t, perLevel.FrontierPreamble(2))
	assert.NotEqual(t, l1, perLevel.Jitter())

	replay, err := New(Plurality, 4, 7, JitterPerLevel)
	require.NoError(t, err)
	require.NoError(t, replay.FrontierPreamble(1))
	assert.Equal(t, l1, replay.Jitter())
}

func TestSetJitterErrors(t *testing.T) {
	s, err := New(Plurality, 2, 1, JitterPerSession)
	require.NoError(t, err)
	assert.Error(t, s.SetJitter([]float64{0.1}))
	assert.Error(t, s.SetJitter([]float64{0.1, 0.5}))
	assert.Error(t, s.SetJitter([]float64{-0.1, 0.2}))
}

func TestScoreLogOdds(t *testing.T) {
	s, err := New(LogOdds, 2, 1, JitterPerSession)
	require.NoError(t, err)

	sm := obs.NewSampleMap(4)
	sm.AddNode([]int{0, 2})
	sm.AddNode([]int{1, 3})
	require.NoError(t, s.SetGamma([]float64{0.25, 0, 0.25, 0}))

	assert.InDelta(t, 2.0, s.Score(sm, &obs.IndexSet{Idx: 0, Sum: 1}), 1e-12)
	// all-zero weights fall back to a neutral score
	assert.Equal(t, 0.0, s.Score(sm, &obs.IndexSet{Idx: 1, Sum: 1}))
}

func TestInvariantViolations(t *testing.T) {
	zero, err := New(Zero, 0, 1, JitterPerSession)
	require.NoError(t, err)
	assert.Panics(t, func() { zero.Score(nil, &obs.IndexSet{}) })

	lo, err := New(LogOdds, 2, 1, JitterPerSession)
	require.NoError(t, err)
	assert.Panics(t, func() { lo.Score(obs.NewSampleMap(0), &obs.IndexSet{}) })

	_, err = New(Plurality, 0, 1, JitterPerSession)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestClose(t *testing.T) {
	s, err := New(Mean, 0, 1, JitterPerSession)
	require.NoError(t, err)
	s.Close()

	assert.True(t, errors.Is(s.SetGamma([]float64{1}), errors.ErrNotInitialized))
	assert.True(t, errors.Is(s.FrontierPreamble(0), errors.ErrNotInitialized))
	assert.Panics(t, func() { s.Score(nil, &obs.IndexSet{SCount: 1}) })
}

func TestRecoverScorePanic(t *testing.T) {
	zero, err := New(Zero, 0, 1, JitterPerSession)
	require.NoError(t, err)

	scoreLeaf := func() (v float64, err error) {
		defer errors.Recover(&err, "scoreLeaf")
		return zero.Score(nil, &obs.IndexSet{}), nil
	}
	_, err = scoreLeaf()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvariant))
}

func TestCloneIsolatesJitter(t *testing.T) {
	s, err := New(Plurality, 3, 5, JitterPerLevel)
	require.NoError(t, err)
	before := s.Jitter()

	c, err := s.Clone()
	require.NoError(t, err)
	require.NoError(t, c.FrontierPreamble(4))
	assert.Equal(t, before, s.Jitter())
	assert.NotEqual(t, before, c.Jitter())

	s.Close()
	_, err = s.Clone()
	assert.True(t, errors.Is(err, errors.ErrNotInitialized))
}
