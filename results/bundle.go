package results

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Bundle is the output of a production sampling run. Arrays are indexed
// LnProbability[walker][step], Chains[walker][step][dim] and
// AcceptanceFractions[walker]; dim follows VariableNames.
type Bundle struct {
	RunID               string
	Created             time.Time
	VariableNames       []string
	LnProbability       [][]float64
	Chains              [][][]float64
	AcceptanceFractions []float64
}

// NewBundle checks the shapes agree and stamps a new run ID.
func NewBundle(names []string, lnp [][]float64, chains [][][]float64, acc []float64) (*Bundle, error) {
	b := &Bundle{
		RunID:               uuid.New().String(),
		Created:             time.Now().UTC(),
		VariableNames:       names,
		LnProbability:       lnp,
		Chains:              chains,
		AcceptanceFractions: acc,
	}

	if err := b.Check(); err != nil {
		return nil, err
	}
	return b, nil
}

// Walkers is the number of walkers
func (b *Bundle) Walkers() int {
	return len(b.Chains)
}

// Steps is the number of recorded steps per walker
func (b *Bundle) Steps() int {
	if len(b.Chains) < 1 {
		return 0
	}
	return len(b.Chains[0])
}

// Check returns an error if the arrays are inconsistent
func (b *Bundle) Check() error {
	walkers := len(b.Chains)
	if walkers < 1 {
		return errors.New("Bundle has no walkers")
	}
	if len(b.LnProbability) != walkers || len(b.AcceptanceFractions) != walkers {
		return errors.Errorf("Bundle walker count mismatch: chains=%d lnprob=%d acceptance=%d",
			walkers, len(b.LnProbability), len(b.AcceptanceFractions))
	}

	steps := len(b.Chains[0])
	dims := len(b.VariableNames)
	for w, chain := range b.Chains {
		if len(chain) != steps || len(b.LnProbability[w]) != steps {
			return errors.Errorf("Walker %d has %d steps (lnprob %d), expected %d",
				w, len(chain), len(b.LnProbability[w]), steps)
		}
		for s, x := range chain {
			if len(x) != dims {
				return errors.Errorf("Walker %d step %d has %d dims, expected %d", w, s, len(x), dims)
			}
		}
	}

	return nil
}

func compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// lnProb is a log-probability on the wire. JSON has no infinities: -Inf (a
// rejected point) is stored as null, +Inf and NaN as the strings "+Inf" and
// "NaN".
type lnProb float64

func (p lnProb) MarshalJSON() ([]byte, error) {
	v := float64(p)
	switch {
	case math.IsInf(v, -1):
		return []byte("null"), nil
	case math.IsInf(v, 1), math.IsNaN(v):
		return json.Marshal(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return json.Marshal(v)
}

func (p *lnProb) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = lnProb(math.Inf(-1))
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return errors.Wrapf(err, "Invalid log-probability %q", str)
		}
		*p = lnProb(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = lnProb(v)
	return nil
}

type wireBundle struct {
	RunID               string        `json:"run_id"`
	Created             time.Time     `json:"created"`
	VariableNames       []string      `json:"variable_names"`
	LnProbability       [][]lnProb    `json:"lnlikelihoods"`
	Chains              [][][]float64 `json:"chains"`
	AcceptanceFractions []float64     `json:"acceptance_fractions"`
}

// Write encodes the bundle as JSON
func (b *Bundle) Write(w io.Writer) error {
	wb := wireBundle{
		RunID:               b.RunID,
		Created:             b.Created,
		VariableNames:       b.VariableNames,
		LnProbability:       make([][]lnProb, len(b.LnProbability)),
		Chains:              b.Chains,
		AcceptanceFractions: b.AcceptanceFractions,
	}
	for i, walker := range b.LnProbability {
		wb.LnProbability[i] = make([]lnProb, len(walker))
		for s, v := range walker {
			wb.LnProbability[i][s] = lnProb(v)
		}
	}

	if err := json.NewEncoder(w).Encode(&wb); err != nil {
		return errors.Wrap(err, "Could not ENCODE bundle")
	}
	return nil
}

// Save writes the bundle to path, zstd-compressed if path ends in .zst
func (b *Bundle) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Could not CREATE %s", path)
	}
	defer f.Close()

	if !compressed(path) {
		if err = b.Write(f); err != nil {
			return err
		}
		return f.Close()
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return errors.Wrap(err, "Could not create zstd writer")
	}
	if err = b.Write(zw); err != nil {
		zw.Close()
		return err
	}
	if err = zw.Close(); err != nil {
		return errors.Wrapf(err, "Could not finish compressed %s", path)
	}
	return f.Close()
}

// Read decodes and checks a JSON bundle
func Read(r io.Reader) (*Bundle, error) {
	wb := wireBundle{}
	if err := json.NewDecoder(r).Decode(&wb); err != nil {
		return nil, errors.Wrap(err, "Could not DECODE bundle")
	}

	b := &Bundle{
		RunID:               wb.RunID,
		Created:             wb.Created,
		VariableNames:       wb.VariableNames,
		LnProbability:       make([][]float64, len(wb.LnProbability)),
		Chains:              wb.Chains,
		AcceptanceFractions: wb.AcceptanceFractions,
	}
	for i, walker := range wb.LnProbability {
		b.LnProbability[i] = make([]float64, len(walker))
		for s, v := range walker {
			b.LnProbability[i][s] = float64(v)
		}
	}
	if err := b.Check(); err != nil {
		return nil, errors.Wrap(err, "Bundle is not valid")
	}
	return b, nil
}

// Load reads a bundle saved by Save
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ bundle from %s", path)
	}
	defer f.Close()

	if !compressed(path) {
		return Read(f)
	}

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not open compressed %s", path)
	}
	defer zr.Close()

	return Read(zr)
}
