package results

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/rotcurve/sampler"
)

// Summary describes the marginal posterior of one variable
type Summary struct {
	Name   string
	Mean   float64
	StdDev float64
	P16    float64
	Median float64
	P84    float64
}

// Marginal returns every sample of dimension dim, over all walkers, after
// dropping the first burn steps. Non-finite values are skipped.
func (b *Bundle) Marginal(dim int, burn int) ([]float64, error) {
	if dim < 0 || dim >= len(b.VariableNames) {
		return nil, errors.Errorf("Invalid dimension %d", dim)
	}

	samples, err := sampler.MergeChains(b.Chains, burn)
	if err != nil {
		return nil, err
	}

	out := make([]float64, 0, len(samples))
	for _, x := range samples {
		if v := x[dim]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Summarize returns the marginal summary of every variable, in order
func (b *Bundle) Summarize(burn int) ([]Summary, error) {
	summaries := make([]Summary, len(b.VariableNames))

	for d, name := range b.VariableNames {
		samples, err := b.Marginal(d, burn)
		if err != nil {
			return nil, err
		}
		if len(samples) < 1 {
			return nil, errors.Errorf("No finite samples for %s", name)
		}

		s := Summary{Name: name}
		s.Mean, s.StdDev = stat.MeanStdDev(samples, nil)
		if len(samples) < 2 {
			s.StdDev = 0
		}

		data := stats.Float64Data(samples)
		if s.P16, err = data.Percentile(16); err != nil {
			return nil, errors.Wrapf(err, "Percentile for %s", name)
		}
		if s.Median, err = data.Median(); err != nil {
			return nil, errors.Wrapf(err, "Median for %s", name)
		}
		if s.P84, err = data.Percentile(84); err != nil {
			return nil, errors.Wrapf(err, "Percentile for %s", name)
		}

		summaries[d] = s
	}

	return summaries, nil
}

// MeanAcceptance is the mean of the per-walker acceptance fractions
func (b *Bundle) MeanAcceptance() float64 {
	return stat.Mean(b.AcceptanceFractions, nil)
}
