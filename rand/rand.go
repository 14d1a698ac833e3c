package rand

import (
	"sync"

	"github.com/seehuhn/mt19937"
)

// A Generator uses a goroutine to populate batches of random numbers from a
// Mersenne twister. It is safe for concurrent use, but a sampler that wants
// reproducible runs should draw from a single goroutine. Close stops the
// background goroutine.
type Generator struct {
	ch   chan uint64
	stop chan struct{}
	once sync.Once
}

func start(r *mt19937.MT19937) *Generator {
	g := &Generator{
		ch:   make(chan uint64, 1024),
		stop: make(chan struct{}),
	}

	go func() {
		for {
			select {
			case g.ch <- r.Uint64():
			case <-g.stop:
				return
			}
		}
	}()

	return g
}

// NewGenerator starts a new background PRNG based on the given seed
func NewGenerator(seed int64) (*Generator, error) {
	r := mt19937.New()
	r.Seed(seed)
	return start(r), nil
}

// Close stops the generator. Numbers already buffered can still be read, but
// a closed generator must not be used for new work. Close may be called more
// than once.
func (g *Generator) Close() {
	g.once.Do(func() { close(g.stop) })
}

// Uint64 returns the next raw 64 bits. With this method a Generator satisfies
// the Source interface in math/rand/v2, which is what gonum's distuv expects.
func (g *Generator) Uint64() uint64 {
	return <-g.ch
}

// Int63 provides the same interface as Go's math/rand, but with pre-generation.
func (g *Generator) Int63() int64 {
	return int64(g.Uint64() & 0x7fffffffffffffff)
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Intn returns a uniform int in [0, n)
func (g *Generator) Intn(n int) int {
	if n <= 0 {
		panic("invalid argument to Intn")
	}
	return int(g.Int63n(int64(n)))
}

// Float64 uses the commented, simpler implmentation since we don't have the
// same support requirements for users
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}
