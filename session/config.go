package session

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ezoic/arbor/pkg/errors"
)

// Config is the training configuration of a session.
type Config struct {
	Seed       uint64          `json:"seed" yaml:"seed"`
	NTree      int             `json:"n_tree" yaml:"n_tree" validate:"min=1"`
	NThread    int             `json:"n_thread" yaml:"n_thread" validate:"min=0"`
	Sampling   SamplingConfig  `json:"sampling" yaml:"sampling"`
	Candidates CandidateConfig `json:"candidates" yaml:"candidates"`
	Booster    BoosterConfig   `json:"booster" yaml:"booster"`
	Tree       TreeConfig      `json:"tree" yaml:"tree"`
	// Mono holds one monotonicity constraint per predictor: -1, 0 or +1.
	Mono     []int  `json:"mono" yaml:"mono" validate:"dive,min=-1,max=1"`
	Jitter   string `json:"jitter" yaml:"jitter" validate:"omitempty,oneof=per_session per_level"`
	LogLevel string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
}

// SamplingConfig controls per-tree bagging. NSamp zero selects the default
// bag size.
type SamplingConfig struct {
	NSamp           int  `json:"n_samp" yaml:"n_samp" validate:"min=0"`
	WithReplacement bool `json:"with_replacement" yaml:"with_replacement"`
}

// CandidateConfig controls predictor subsampling. With PredFixed zero and
// no PredProb every predictor is a candidate.
type CandidateConfig struct {
	PredFixed int       `json:"pred_fixed" yaml:"pred_fixed" validate:"min=0"`
	PredProb  []float64 `json:"pred_prob" yaml:"pred_prob" validate:"dive,min=0,max=1"`
}

// BoosterConfig selects the loss, the leaf scorer and the learning rate.
type BoosterConfig struct {
	Loss   string  `json:"loss" yaml:"loss" validate:"required,oneof=zero L2 logOdds"`
	Scorer string  `json:"scorer" yaml:"scorer" validate:"required,oneof=zero mean plurality logOdds"`
	Nu     float64 `json:"nu" yaml:"nu" validate:"min=0"`
}

// TreeConfig bounds tree growth. Zero MaxDepth or LeafMax means unbounded.
// A node below the root splits only if its gain reaches MinRatio times the
// gain of its parent's split. SplitQuant places each predictor's cut value
// between the bounding left and right values; empty means 0.5 throughout.
type TreeConfig struct {
	MinNode    int       `json:"min_node" yaml:"min_node" validate:"min=1"`
	MaxDepth   int       `json:"max_depth" yaml:"max_depth" validate:"min=0"`
	LeafMax    int       `json:"leaf_max" yaml:"leaf_max" validate:"min=0"`
	MinRatio   float64   `json:"min_ratio" yaml:"min_ratio" validate:"min=0"`
	SplitQuant []float64 `json:"split_quant" yaml:"split_quant" validate:"dive,min=0,max=1"`
}

// Quant returns the cut quantile of pred.
func (t *TreeConfig) Quant(pred int) float64 {
	if len(t.SplitQuant) == 0 {
		return 0.5
	}
	return t.SplitQuant[pred]
}

// DefaultConfig returns a bagged-regression configuration.
func DefaultConfig() Config {
	return Config{
		Seed:     42,
		NTree:    100,
		Sampling: SamplingConfig{WithReplacement: true},
		Booster:  BoosterConfig{Loss: "zero", Scorer: "mean", Nu: 0.1},
		Tree:     TreeConfig{MinNode: 2},
		Jitter:   "per_session",
		LogLevel: "info",
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadConfig reads a YAML configuration over the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults. Unknown fields are errors.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.NewValidationError("document", err.Error(), len(data))
	}
	return cfg, nil
}

// Validate checks the configuration against a frame of nPred predictors.
func (c *Config) Validate(nPred int) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.NewValidationError(strings.TrimPrefix(fe.Namespace(), "Config."),
				fmt.Sprintf("failed %q constraint", fe.ActualTag()), fe.Value())
		}
		return errors.Wrap(err, "validate config")
	}
	if nPred < 1 {
		return errors.NewValidationError("n_pred", "frame has no predictors", nPred)
	}
	if c.Candidates.PredFixed > nPred {
		return errors.NewValidationError("candidates.pred_fixed",
			fmt.Sprintf("exceeds predictor count %d", nPred), c.Candidates.PredFixed)
	}
	if n := len(c.Candidates.PredProb); n != 0 && n != nPred {
		return errors.NewValidationError("candidates.pred_prob",
			fmt.Sprintf("length must be 0 or %d", nPred), n)
	}
	if n := len(c.Tree.SplitQuant); n != 0 && n != nPred {
		return errors.NewValidationError("tree.split_quant",
			fmt.Sprintf("length must be 0 or %d", nPred), n)
	}
	for p, q := range c.Tree.SplitQuant {
		if math.IsNaN(q) {
			return errors.NewValidationError(fmt.Sprintf("tree.split_quant[%d]", p), "must lie in [0,1]", q)
		}
	}
	if n := len(c.Mono); n != 0 && n != nPred {
		return errors.NewValidationError("mono", fmt.Sprintf("length must be 0 or %d", nPred), n)
	}
	return c.Booster.compatible()
}

// compatible checks the loss/scorer pairing and the learning rate.
func (b *BoosterConfig) compatible() error {
	switch b.Loss {
	case "L2":
		if b.Scorer != "mean" {
			return errors.NewValidationError("booster.scorer", "L2 boosting scores with mean", b.Scorer)
		}
	case "logOdds":
		if b.Scorer != "logOdds" {
			return errors.NewValidationError("booster.scorer", "logOdds boosting scores with logOdds", b.Scorer)
		}
	case "zero":
		if b.Scorer != "mean" && b.Scorer != "plurality" {
			return errors.NewValidationError("booster.scorer", "bagging scores with mean or plurality", b.Scorer)
		}
	}
	if b.Loss != "zero" && b.Nu <= 0 {
		return errors.NewValidationError("booster.nu", "must be positive when boosting", b.Nu)
	}
	return nil
}

// Boosting reports whether the configuration fits residuals.
func (c *Config) Boosting() bool {
	return c.Booster.Loss != "zero"
}
