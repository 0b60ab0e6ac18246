package boost

import (
	"bytes"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/arbor/core/model"
	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/errors"
	"github.com/ezoic/arbor/pkg/log"
)

type recordingScorer struct {
	gamma []float64
}

func (r *recordingScorer) SetGamma(g []float64) error {
	r.gamma = g
	return nil
}

type leaves []float64

func (l leaves) TerminalScore(term int) float64 { return l[term] }

func sums(o *obs.SampledObs) []float64 {
	out := make([]float64, o.BagCount())
	for i := range out {
		out[i] = o.Sample(i).Sum
	}
	return out
}

func regressionBag(t *testing.T, y []float64, bag obs.Bagger) *obs.SampledObs {
	t.Helper()
	resp, err := obs.NewRegression(y)
	require.NoError(t, err)
	sampled, err := resp.GetObs(bag, 0)
	require.NoError(t, err)
	return sampled
}

func TestL2TwoTrees(t *testing.T) {
	sampled := regressionBag(t, []float64{1, 3, 5}, obs.FullBag(3))
	b, err := New(LossL2, 1.0)
	require.NoError(t, err)

	require.NoError(t, b.SetEstimate(sampled))
	desc, err := b.ScoreDesc()
	require.NoError(t, err)
	assert.Equal(t, model.ScoreDesc{Nu: 1, BaseScore: 3}, desc)

	bagSum, err := b.UpdateResidual(nil, sampled)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 0, 2}, sums(sampled))
	assert.Equal(t, 0.0, bagSum)

	// tree 1 is a single leaf scoring the mean residual
	root := obs.NewSampleMap(3)
	root.AddNode([]int{0, 1, 2})
	require.NoError(t, b.UpdateEstimate(leaves{0}, root))
	assert.Equal(t, []float64{3, 3, 3}, b.Estimate())

	bagSum, err = b.UpdateResidual(nil, sampled)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 0, 2}, sums(sampled))
	assert.Equal(t, 0.0, bagSum)

	// tree 2 separates the first sample
	split := obs.NewSampleMap(3)
	split.AddNode([]int{0})
	split.AddNode([]int{1, 2})
	require.NoError(t, b.UpdateEstimate(leaves{-2, 1}, split))
	assert.Equal(t, []float64{1, 4, 4}, b.Estimate())

	bagSum, err = b.UpdateResidual(nil, sampled)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1, 1}, sums(sampled))
	assert.Equal(t, 0.0, bagSum)
}

func TestL2ResidualConservation(t *testing.T) {
	y := []float64{0.5, 2, 7, -1, 4}
	bag := &obs.FixedBag{Entries: []obs.BagEntry{{Row: 0, SCount: 2}, {Row: 2, SCount: 1}, {Row: 3, SCount: 3}, {Row: 4, SCount: 1}}, Rows: 5}
	sampled := regressionBag(t, y, bag)

	b, err := New(LossL2, 0.3)
	require.NoError(t, err)
	require.NoError(t, b.SetEstimate(sampled))

	sm := obs.NewSampleMap(4)
	sm.AddNode([]int{0, 3})
	sm.AddNode([]int{1, 2})
	require.NoError(t, b.UpdateEstimate(leaves{1.5, -0.5}, sm))

	bagSum, err := b.UpdateResidual(nil, sampled)
	require.NoError(t, err)

	est := b.Estimate()
	want := 0.0
	for i, e := range bag.Entries {
		want += float64(e.SCount) * (y[e.Row] - est[i])
	}
	assert.InDelta(t, want, bagSum, 1e-12)
}

func TestL2WeightedMeanResidualIsZero(t *testing.T) {
	bag := &obs.FixedBag{Entries: []obs.BagEntry{{Row: 0, SCount: 3}, {Row: 1, SCount: 1}, {Row: 2, SCount: 2}}, Rows: 3}
	sampled := regressionBag(t, []float64{2, 9, 4}, bag)

	b, err := New(LossL2, 1)
	require.NoError(t, err)
	require.NoError(t, b.SetEstimate(sampled))
	bagSum, err := b.UpdateResidual(nil, sampled)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, bagSum, 1e-12)
	assert.InDelta(t, 0.0, sampled.RootSet().Sum, 1e-12)
}

func TestLogOddsScenario(t *testing.T) {
	resp, err := obs.NewCategorical([]int{0, 0, 1, 0}, 2, nil)
	require.NoError(t, err)
	sampled, err := resp.GetObs(obs.FullBag(4), 0)
	require.NoError(t, err)

	b, err := New(LossLogOdds, 0.1)
	require.NoError(t, err)
	require.NoError(t, b.SetEstimate(sampled))

	desc, err := b.ScoreDesc()
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1.0/3.0), desc.BaseScore, 1e-12)
	assert.InDelta(t, -1.0986, desc.BaseScore, 1e-4)

	scorer := &recordingScorer{}
	bagSum, err := b.UpdateResidual(scorer, sampled)
	require.NoError(t, err)

	require.Len(t, scorer.gamma, 4)
	for i, g := range scorer.gamma {
		assert.InDelta(t, 0.1875, g, 1e-12)
		y := float64(resp.CtgLabels()[i])
		assert.InDelta(t, y-0.25, sampled.Sample(i).Sum, 1e-12)
	}
	assert.InDelta(t, 0.0, bagSum, 1e-12)
}

func TestLogisticBounds(t *testing.T) {
	resp, err := obs.NewCategorical([]int{0, 1, 1, 0, 1}, 2, nil)
	require.NoError(t, err)
	bag := &obs.FixedBag{Entries: []obs.BagEntry{{Row: 0, SCount: 1}, {Row: 1, SCount: 2}, {Row: 2, SCount: 1}, {Row: 3, SCount: 3}, {Row: 4, SCount: 1}}, Rows: 5}
	sampled, err := resp.GetObs(bag, 0)
	require.NoError(t, err)

	b, err := New(LossLogOdds, 1)
	require.NoError(t, err)
	require.NoError(t, b.SetEstimate(sampled))

	sm := obs.NewSampleMap(5)
	for i := 0; i < 5; i++ {
		sm.AddNode([]int{i})
	}
	require.NoError(t, b.UpdateEstimate(leaves{-800, 800, 0.3, -2, 40}, sm))

	scorer := &recordingScorer{}
	_, err = b.UpdateResidual(scorer, sampled)
	require.NoError(t, err)

	for i, e := range b.Estimate() {
		p := Logistic(e)
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
		assert.GreaterOrEqual(t, scorer.gamma[i], 0.0)
		assert.InDelta(t, p*(1-p)*float64(sampled.Sample(i).SCount), scorer.gamma[i], 1e-15)
	}
}

func TestLogOddsSingleCategoryIsFinite(t *testing.T) {
	resp, err := obs.NewCategorical([]int{1, 1}, 2, nil)
	require.NoError(t, err)
	sampled, err := resp.GetObs(obs.FullBag(2), 0)
	require.NoError(t, err)

	b, err := New(LossLogOdds, 1)
	require.NoError(t, err)
	require.NoError(t, b.SetEstimate(sampled))
	desc, err := b.ScoreDesc()
	require.NoError(t, err)
	assert.False(t, math.IsInf(desc.BaseScore, 0))
	assert.Positive(t, desc.BaseScore)
}

func TestLogOddsRequiresTwoCategories(t *testing.T) {
	resp, err := obs.NewCategorical([]int{0, 1, 2}, 3, nil)
	require.NoError(t, err)
	sampled, err := resp.GetObs(obs.FullBag(3), 0)
	require.NoError(t, err)

	b, err := New(LossLogOdds, 1)
	require.NoError(t, err)
	assert.Error(t, b.SetEstimate(sampled))
}

func TestZeroLossIsNoOp(t *testing.T) {
	sampled := regressionBag(t, []float64{1, 2}, obs.FullBag(2))
	b, err := New(LossZero, 0.5)
	require.NoError(t, err)
	assert.False(t, b.Boosting())

	require.NoError(t, b.SetEstimate(sampled))
	bagSum, err := b.UpdateResidual(nil, sampled)
	require.NoError(t, err)
	assert.Equal(t, 0.0, bagSum)
	assert.Equal(t, []float64{1, 2}, sums(sampled))
	require.NoError(t, b.UpdateEstimate(leaves{1}, obs.NewSampleMap(0)))

	desc, err := b.ScoreDesc()
	require.NoError(t, err)
	assert.Equal(t, model.ScoreDesc{}, desc)
}

func TestLifecycleErrors(t *testing.T) {
	sampled := regressionBag(t, []float64{1, 2}, obs.FullBag(2))

	var zero Booster
	assert.True(t, errors.Is(zero.SetEstimate(sampled), errors.ErrNotInitialized))

	b, err := New(LossL2, 1)
	require.NoError(t, err)
	_, err = b.ScoreDesc()
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	_, err = b.UpdateResidual(nil, sampled)
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, b.SetEstimate(sampled))
	other := regressionBag(t, []float64{1, 2, 3}, obs.FullBag(3))
	_, err = b.UpdateResidual(nil, other)
	assert.True(t, errors.Is(err, errors.ErrInvariant))

	b.Close()
	_, err = b.UpdateResidual(nil, sampled)
	assert.True(t, errors.Is(err, errors.ErrNotInitialized))
	assert.True(t, errors.Is(b.UpdateEstimate(leaves{0}, obs.NewSampleMap(0)), errors.ErrNotInitialized))
	_, err = b.ScoreDesc()
	assert.True(t, errors.Is(err, errors.ErrNotInitialized))
}

func TestConfigErrors(t *testing.T) {
	for _, nu := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := New(LossL2, nu)
		assert.True(t, errors.Is(err, errors.ErrConfig), "nu=%v", nu)
	}
	_, err := New(Loss(9), 1)
	assert.True(t, errors.Is(err, errors.ErrConfig))

	_, err = ParseLoss("huber")
	assert.True(t, errors.Is(err, errors.ErrConfig))
	l, err := ParseLoss("l2")
	require.NoError(t, err)
	assert.Equal(t, LossL2, l)
}

func TestBoosterLogsBoostOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewZerologProviderWithWriter(&buf, zerolog.DebugLevel).GetLogger()
	sampled := regressionBag(t, []float64{1, 3, 5}, obs.FullBag(3))
	b, err := New(LossL2, 0.5, WithLogger(logger))
	require.NoError(t, err)

	require.NoError(t, b.SetEstimate(sampled))
	_, err = b.UpdateResidual(nil, sampled)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"operation":"boost"`)
	assert.Contains(t, out, "estimate initialized")
	assert.Contains(t, out, "residual updated")
}
