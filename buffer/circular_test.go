package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircularFloat(t *testing.T) {
	assert := assert.New(t)

	cf := NewCircularFloat(6)
	assert.Equal(6, cf.BufSize)
	assert.Equal(0, cf.Count)

	cf.Add(1)
	cf.Add(2)
	cf.Add(3)
	cf.Add(4)
	cf.Add(5)
	assert.Equal(6, cf.BufSize)
	assert.Equal(5, cf.Count)
	assert.False(cf.Full())
	assert.Nil(cf.FirstHalf())
	assert.Nil(cf.SecondHalf())

	_, ok := cf.HalfDrift()
	assert.False(ok)

	cf.Add(6)
	assert.Equal(6, cf.Count)
	assert.True(cf.Full())

	exp := 0.0
	for iter := cf.FirstHalf(); iter.Next(); {
		exp++
		assert.Equal(exp, iter.Value())
	}
	for iter := cf.SecondHalf(); iter.Next(); {
		exp++
		assert.Equal(exp, iter.Value())
	}

	// 1 2 3 | 4 5 6 => means 2 and 5
	drift, ok := cf.HalfDrift()
	assert.True(ok)
	assert.InDelta(3.0, drift, 1e-12)

	// 1 2 3 4 5 6 add 8 add 8 => 8 8 3 4 5 6
	// So first=3,4,5 second=6,8,8
	cf.Add(8)
	cf.Add(8)
	expVals := []float64{3, 4, 5, 6, 8, 8}
	idx := 0
	for iter := cf.FirstHalf(); iter.Next(); {
		assert.Equal(expVals[idx], iter.Value())
		idx++
	}
	for iter := cf.SecondHalf(); iter.Next(); {
		assert.Equal(expVals[idx], iter.Value())
		idx++
	}
	assert.Equal(int64(8), cf.TotalSeen)

	drift, ok = cf.HalfDrift()
	assert.True(ok)
	assert.InDelta(22.0/3.0-4.0, drift, 1e-12)
}

func TestCircularFloatOddAndEmpty(t *testing.T) {
	assert := assert.New(t)

	cf := NewCircularFloat(5)
	assert.Equal(4, cf.BufSize)

	empty := NewCircularFloat(1)
	assert.Equal(0, empty.BufSize)
	empty.Add(1.5)
	assert.Equal(int64(1), empty.TotalSeen)
	assert.False(empty.Full())
	assert.Nil(empty.FirstHalf())
}
