package sampler

import (
	"github.com/pkg/errors"
)

// Chain is the recorded history of a single walker.
type Chain struct {
	Positions [][]float64 // Positions[step] is the walker position after that step
	LnProb    []float64   // LnProb[step] is the log-probability at Positions[step]
	Accepted  int64       // Number of accepted proposals
}

// NewChain returns an empty chain with room for steps entries.
func NewChain(steps int) *Chain {
	if steps < 0 {
		steps = 0
	}
	return &Chain{
		Positions: make([][]float64, 0, steps),
		LnProb:    make([]float64, 0, steps),
	}
}

// Len is the number of recorded steps
func (c *Chain) Len() int {
	return len(c.LnProb)
}

// add records a copy of x.
func (c *Chain) add(x []float64, lnp float64) {
	cp := make([]float64, len(x))
	copy(cp, x)
	c.Positions = append(c.Positions, cp)
	c.LnProb = append(c.LnProb, lnp)
}

// AcceptanceFraction is accepted proposals over recorded steps. An empty
// chain has fraction 0.
func (c *Chain) AcceptanceFraction() float64 {
	if c.Len() < 1 {
		return 0
	}
	return float64(c.Accepted) / float64(c.Len())
}

// MergeChains flattens walker histories indexed [walker][step][dim], as
// returned by Ensemble.Chain, dropping the first burn steps of each walker.
// The result is a single sample list suitable for marginal estimates; the
// positions are shared with chains, not copied.
func MergeChains(chains [][][]float64, burn int) ([][]float64, error) {
	if len(chains) < 1 {
		return nil, errors.Errorf("Can not merge 0 chains")
	}
	if burn < 0 {
		return nil, errors.Errorf("Invalid burn %d", burn)
	}

	steps := len(chains[0])
	for i, ch := range chains {
		if len(ch) != steps {
			return nil, errors.Errorf("Chain %d has %d steps, expected %d", i, len(ch), steps)
		}
	}
	if burn >= steps {
		return nil, errors.Errorf("Burn %d leaves no samples from %d steps", burn, steps)
	}

	merged := make([][]float64, 0, len(chains)*(steps-burn))
	for _, ch := range chains {
		merged = append(merged, ch[burn:]...)
	}

	return merged, nil
}
