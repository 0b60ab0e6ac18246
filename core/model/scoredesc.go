package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/ezoic/arbor/pkg/errors"
)

// ScoreDescVersion tags exported score descriptors.
const ScoreDescVersion = "1"

// ScoreDesc holds the learning rate and base score of a trained forest.
// Bagged forests carry the zero descriptor.
type ScoreDesc struct {
	Nu        float64 `json:"nu" yaml:"nu"`
	BaseScore float64 `json:"base_score" yaml:"base_score"`
}

// Boosted reports whether the descriptor came from a boosting session.
func (d ScoreDesc) Boosted() bool {
	return d.Nu != 0
}

type scoreDescFile struct {
	Version   string    `json:"version"`
	ScoreDesc ScoreDesc `json:"score_desc"`
	Hash      string    `json:"hash"`
}

// Hash returns a hex SHA-256 digest of the descriptor, used to verify a
// round trip.
func (d ScoreDesc) Hash() string {
	data, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save writes the descriptor as JSON with its hash.
func (d ScoreDesc) Save(w io.Writer) error {
	if math.IsNaN(d.Nu) || math.IsNaN(d.BaseScore) || math.IsInf(d.BaseScore, 0) {
		return errors.NewValueError("ScoreDesc.Save", fmt.Sprintf("descriptor is not finite: %+v", d))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(scoreDescFile{Version: ScoreDescVersion, ScoreDesc: d, Hash: d.Hash()})
}

// LoadScoreDesc reads a descriptor written by Save and checks its hash.
func LoadScoreDesc(r io.Reader) (ScoreDesc, error) {
	var f scoreDescFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return ScoreDesc{}, errors.Wrap(err, "failed to decode score descriptor")
	}
	if f.Version != ScoreDescVersion {
		return ScoreDesc{}, errors.Newf("unsupported score descriptor version %q", f.Version)
	}
	if got := f.ScoreDesc.Hash(); got != f.Hash {
		return ScoreDesc{}, errors.Newf("score descriptor hash mismatch: expected %s, got %s", f.Hash, got)
	}
	return f.ScoreDesc, nil
}
