package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainRecording(t *testing.T) {
	assert := assert.New(t)

	ch := NewChain(2)
	assert.Equal(0, ch.Len())
	assert.Equal(0.0, ch.AcceptanceFraction())

	x := []float64{1.0, 2.0}
	ch.add(x, -1.5)
	x[0] = 99.0 // chain must have its own copy
	ch.add(x, -2.5)
	ch.Accepted = 1

	assert.Equal(2, ch.Len())
	assert.Equal([]float64{1.0, 2.0}, ch.Positions[0])
	assert.Equal([]float64{99.0, 2.0}, ch.Positions[1])
	assert.Equal([]float64{-1.5, -2.5}, ch.LnProb)
	assert.InDelta(0.5, ch.AcceptanceFraction(), 1e-12)
}

func TestMergeChains(t *testing.T) {
	assert := assert.New(t)

	var merged [][]float64
	var err error

	merged, err = MergeChains([][][]float64{}, 0)
	assert.Nil(merged)
	assert.Error(err)

	ch1 := NewChain(3)
	ch2 := NewChain(3)
	for i := 0; i < 3; i++ {
		ch1.add([]float64{float64(i)}, 0)
		ch2.add([]float64{float64(10 + i)}, 0)
	}
	chains := [][][]float64{ch1.Positions, ch2.Positions}

	merged, err = MergeChains(chains, 0)
	assert.NoError(err)
	assert.Len(merged, 6)

	merged, err = MergeChains(chains, 1)
	assert.NoError(err)
	assert.Equal([][]float64{{1}, {2}, {11}, {12}}, merged)

	_, err = MergeChains(chains, 3)
	assert.Error(err)
	_, err = MergeChains(chains, -1)
	assert.Error(err)

	ch2.add([]float64{13}, 0)
	_, err = MergeChains([][][]float64{ch1.Positions, ch2.Positions}, 0)
	assert.Error(err)
}
