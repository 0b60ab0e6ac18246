package session

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/arbor/boost"
	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/errors"
	"github.com/ezoic/arbor/pkg/log"
	"github.com/ezoic/arbor/score"
)

const boostingYAML = `
seed: 7
n_tree: 20
n_thread: 2
sampling: {n_samp: 0, with_replacement: false}
candidates: {pred_fixed: 1, pred_prob: [0.5, 0.5, 0.5]}
booster: {loss: L2, scorer: mean, nu: 0.2}
tree: {min_node: 3, max_depth: 4, leaf_max: 0, min_ratio: 0.1, split_quant: [0.5, 0.25, 1]}
mono: [1, 0, -1]
jitter: per_level
log_level: debug
`

func regression(t *testing.T) *obs.Response {
	t.Helper()
	r, err := obs.NewRegression([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	return r
}

func categorical(t *testing.T, nCtg int) *obs.Response {
	t.Helper()
	r, err := obs.NewCategorical([]int{0, 1, 0, 1}, nCtg, nil)
	require.NoError(t, err)
	return r
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(boostingYAML))
	require.NoError(t, err)

	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 20, cfg.NTree)
	assert.False(t, cfg.Sampling.WithReplacement)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, cfg.Candidates.PredProb)
	assert.Equal(t, BoosterConfig{Loss: "L2", Scorer: "mean", Nu: 0.2}, cfg.Booster)
	assert.Equal(t, TreeConfig{MinNode: 3, MaxDepth: 4, MinRatio: 0.1, SplitQuant: []float64{0.5, 0.25, 1}}, cfg.Tree)
	assert.Equal(t, 0.25, cfg.Tree.Quant(1))
	assert.Equal(t, []int{1, 0, -1}, cfg.Mono)
	assert.True(t, cfg.Boosting())
	require.NoError(t, cfg.Validate(3))
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("n_tree: 5\n"))
	require.NoError(t, err)
	want := DefaultConfig()
	want.NTree = 5
	assert.Equal(t, want, cfg)

	cfg, err = ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfigRejectsUnknownFields(t *testing.T) {
	_, err := ParseConfig([]byte("n_trees: 5\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(boostingYAML), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Booster.Nu)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"no trees", func(c *Config) { c.NTree = 0 }, "n_tree"},
		{"unknown loss", func(c *Config) { c.Booster.Loss = "huber" }, "booster.loss"},
		{"unknown scorer", func(c *Config) { c.Booster.Scorer = "median" }, "booster.scorer"},
		{"mono value", func(c *Config) { c.Mono = []int{0, 2, 0} }, "mono[1]"},
		{"prob above one", func(c *Config) { c.Candidates.PredProb = []float64{0, 1.5, 0} }, "candidates.pred_prob[1]"},
		{"pred fixed", func(c *Config) { c.Candidates.PredFixed = 4 }, "candidates.pred_fixed"},
		{"prob length", func(c *Config) { c.Candidates.PredProb = []float64{0.5} }, "candidates.pred_prob"},
		{"mono length", func(c *Config) { c.Mono = []int{1} }, "mono"},
		{"L2 with plurality", func(c *Config) { c.Booster = BoosterConfig{Loss: "L2", Scorer: "plurality", Nu: 0.1} }, "booster.scorer"},
		{"logOdds with mean", func(c *Config) { c.Booster = BoosterConfig{Loss: "logOdds", Scorer: "mean", Nu: 0.1} }, "booster.scorer"},
		{"zero with logOdds", func(c *Config) { c.Booster.Scorer = "logOdds" }, "booster.scorer"},
		{"boosting without nu", func(c *Config) { c.Booster = BoosterConfig{Loss: "L2", Scorer: "mean"} }, "booster.nu"},
		{"jitter", func(c *Config) { c.Jitter = "per_tree" }, "jitter"},
		{"negative min ratio", func(c *Config) { c.Tree.MinRatio = -0.5 }, "tree.min_ratio"},
		{"quant above one", func(c *Config) { c.Tree.SplitQuant = []float64{0.5, 1.5, 0.5} }, "tree.split_quant[1]"},
		{"quant NaN", func(c *Config) { c.Tree.SplitQuant = []float64{0.5, math.NaN(), 0.5} }, "tree.split_quant[1]"},
		{"quant length", func(c *Config) { c.Tree.SplitQuant = []float64{0.5} }, "tree.split_quant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate(3)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfig))
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}
}

func TestTreeQuantDefault(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.5, cfg.Tree.Quant(2))
	cfg.Tree.SplitQuant = []float64{0, 1, 0.3}
	assert.Equal(t, 0.3, cfg.Tree.Quant(2))
}

func TestNewSession(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewZerologProviderWithWriter(&buf, zerolog.InfoLevel).GetLogger()

	cfg, err := ParseConfig([]byte(boostingYAML))
	require.NoError(t, err)
	s, err := New(cfg, regression(t), 3, WithLogger(logger), WithID("run-1"))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "run-1", s.ID())
	assert.True(t, s.Ready())
	assert.Equal(t, ModeBoosting, s.Mode())
	assert.Equal(t, boost.LossL2, s.Booster().Loss())
	assert.Equal(t, score.Mean, s.Scorer().Kind())
	assert.Equal(t, 3, s.CandSGB().NPred())
	assert.Equal(t, 1, s.Mono(0))
	assert.Equal(t, -1, s.Mono(2))
	assert.Equal(t, 0, s.Mono(5))
	assert.Contains(t, buf.String(), `"session":"run-1"`)
	assert.Contains(t, buf.String(), "session started")
}

func TestNewSessionGeneratesID(t *testing.T) {
	a, err := New(DefaultConfig(), regression(t), 2)
	require.NoError(t, err)
	defer a.Close()
	b, err := New(DefaultConfig(), regression(t), 2)
	require.NoError(t, err)
	defer b.Close()

	assert.Len(t, a.ID(), 36)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, ModeBagging, a.Mode())
}

func TestResponseCompatibility(t *testing.T) {
	tests := []struct {
		name    string
		booster BoosterConfig
		resp    func(*testing.T) *obs.Response
	}{
		{"L2 on categories", BoosterConfig{Loss: "L2", Scorer: "mean", Nu: 1}, func(t *testing.T) *obs.Response { return categorical(t, 2) }},
		{"logOdds on numbers", BoosterConfig{Loss: "logOdds", Scorer: "logOdds", Nu: 1}, regression},
		{"logOdds on three categories", BoosterConfig{Loss: "logOdds", Scorer: "logOdds", Nu: 1}, func(t *testing.T) *obs.Response { return categorical(t, 3) }},
		{"plurality on numbers", BoosterConfig{Loss: "zero", Scorer: "plurality"}, regression},
		{"mean on categories", BoosterConfig{Loss: "zero", Scorer: "mean"}, func(t *testing.T) *obs.Response { return categorical(t, 2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Booster = tt.booster
			_, err := New(cfg, tt.resp(t), 2)
			assert.True(t, errors.Is(err, errors.ErrConfig))
		})
	}
}

func TestCategoricalSessionIgnoresMono(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Booster = BoosterConfig{Loss: "logOdds", Scorer: "logOdds", Nu: 0.5}
	cfg.Mono = []int{1, -1}
	s, err := New(cfg, categorical(t, 2), 2)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 0, s.Mono(0))
	assert.Equal(t, score.LogOdds, s.Scorer().Kind())
}

func TestInitOnce(t *testing.T) {
	s, err := New(DefaultConfig(), regression(t), 2)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, errors.Is(s.InitProb(1, nil), errors.ErrConfig))
	assert.True(t, errors.Is(s.InitBooster("L2", "mean", 0.1), errors.ErrConfig))
	assert.True(t, errors.Is(s.InitMono(nil), errors.ErrConfig))
}

func TestCloseDeinitializes(t *testing.T) {
	s, err := New(DefaultConfig(), regression(t), 2)
	require.NoError(t, err)
	s.Close()
	s.Close()

	assert.False(t, s.Ready())
	_, err = s.Booster().ScoreDesc()
	assert.True(t, errors.Is(err, errors.ErrNotInitialized))
	assert.True(t, errors.Is(s.Scorer().SetGamma(nil), errors.ErrNotInitialized))
}
