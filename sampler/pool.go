package sampler

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// LnProbFunc is a log-probability function. It must be safe to call
// concurrently for different parameter vectors and must not keep x.
type LnProbFunc func(x []float64) (float64, error)

type job struct {
	x   []float64
	out *float64
	err *error
	wg  *sync.WaitGroup
}

// Pool is a fixed set of goroutines evaluating a single LnProbFunc. A Pool
// lives for exactly one sampling run: create it, Map as often as needed,
// then Close.
type Pool struct {
	fn     LnProbFunc
	jobs   chan job
	group  errgroup.Group
	closed bool
}

// NewPool starts workers goroutines. workers < 1 means one per CPU.
func NewPool(fn LnProbFunc, workers int) (*Pool, error) {
	if fn == nil {
		return nil, errors.New("No log-probability function supplied")
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	p := &Pool{
		fn:   fn,
		jobs: make(chan job, workers),
	}

	for i := 0; i < workers; i++ {
		p.group.Go(func() error {
			for j := range p.jobs {
				*j.out, *j.err = p.call(j.x)
				j.wg.Done()
			}
			return nil
		})
	}

	return p, nil
}

// call evaluates fn, turning a panic into an error so one bad walker can
// not take down the process.
func (p *Pool) call(x []float64) (lnp float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			lnp = 0
			err = errors.Errorf("log-probability panicked at %v: %v", x, r)
		}
	}()
	return p.fn(x)
}

// Map evaluates every point and returns the log-probabilities in order. The
// first error (by index) is returned and the results are discarded.
func (p *Pool) Map(points [][]float64) ([]float64, error) {
	if p.closed {
		return nil, errors.New("BUG: Map called on a closed pool")
	}

	out := make([]float64, len(points))
	errs := make([]error, len(points))

	var wg sync.WaitGroup
	wg.Add(len(points))
	for i, x := range points {
		p.jobs <- job{x: x, out: &out[i], err: &errs[i], wg: &wg}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "Evaluation of walker %d failed", i)
		}
	}

	return out, nil
}

// Close stops the workers and waits for them to exit.
func (p *Pool) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.jobs)
	return p.group.Wait()
}
