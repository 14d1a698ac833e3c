package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/CraigKelly/rotcurve/buffer"
	"github.com/CraigKelly/rotcurve/rand"
)

// DefaultScale is the stretch move scale parameter a
const DefaultScale = 2.0

// DefaultWindow is the number of steps used for the log-probability drift
// reported to progress callbacks.
const DefaultWindow = 20

// Step is reported to the progress callback after every step of a run.
type Step struct {
	Index          int     // zero-based step index within the run
	Total          int     // steps requested for the run
	MeanAcceptance float64 // mean acceptance fraction over all walkers so far
	MeanLnProb     float64 // mean log-probability of finite walkers after this step
	Drift          float64 // second-half minus first-half mean of MeanLnProb over the window
	DriftReady     bool    // false until the window has filled
}

// Ensemble is an affine-invariant ensemble sampler using the stretch move
// of Goodman & Weare (2010). The walkers are split into two halves and each
// half is moved using the other as the complementary ensemble, so the
// proposals within a half are independent and evaluated in parallel.
type Ensemble struct {
	NWalkers int
	NDim     int
	Scale    float64

	gen      *rand.Generator
	lnprob   LnProbFunc
	workers  int
	window   int
	progress func(Step)

	chains []*Chain
}

// Option configures an Ensemble
type Option func(*Ensemble)

// WithScale sets the stretch scale a (> 1)
func WithScale(a float64) Option {
	return func(e *Ensemble) { e.Scale = a }
}

// WithWorkers sets the size of the evaluation pool. Values < 1 mean one
// worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Ensemble) { e.workers = n }
}

// WithProgress registers a callback invoked on the sampling goroutine after
// every step.
func WithProgress(fn func(Step)) Option {
	return func(e *Ensemble) { e.progress = fn }
}

// WithWindow sets the number of steps used for the drift estimate
func WithWindow(n int) Option {
	return func(e *Ensemble) { e.window = n }
}

// NewEnsemble creates a sampler. nWalkers must be even and at least twice
// nDim.
func NewEnsemble(gen *rand.Generator, nWalkers int, nDim int, fn LnProbFunc, opts ...Option) (*Ensemble, error) {
	if gen == nil {
		return nil, errors.New("A random generator is required")
	}
	if fn == nil {
		return nil, errors.New("No log-probability function supplied")
	}
	if nDim < 1 {
		return nil, errors.Errorf("Invalid dimension count %d", nDim)
	}
	if nWalkers%2 != 0 || nWalkers < 2*nDim {
		return nil, errors.Errorf("Walker count %d must be even and at least %d", nWalkers, 2*nDim)
	}

	e := &Ensemble{
		NWalkers: nWalkers,
		NDim:     nDim,
		Scale:    DefaultScale,
		gen:      gen,
		lnprob:   fn,
		window:   DefaultWindow,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.Scale <= 1.0 {
		return nil, errors.Errorf("Stretch scale %f must be > 1", e.Scale)
	}

	e.Reset()
	return e, nil
}

// Reset discards all recorded history.
func (e *Ensemble) Reset() {
	e.chains = make([]*Chain, e.NWalkers)
	for i := range e.chains {
		e.chains[i] = NewChain(0)
	}
}

// Iterations is the number of recorded steps
func (e *Ensemble) Iterations() int {
	return e.chains[0].Len()
}

// Chain returns the positions indexed [walker][step][dim]
func (e *Ensemble) Chain() [][][]float64 {
	out := make([][][]float64, e.NWalkers)
	for i, ch := range e.chains {
		out[i] = make([][]float64, ch.Len())
		for s, x := range ch.Positions {
			cp := make([]float64, len(x))
			copy(cp, x)
			out[i][s] = cp
		}
	}
	return out
}

// LnProbability returns the log-probabilities indexed [walker][step]
func (e *Ensemble) LnProbability() [][]float64 {
	out := make([][]float64, e.NWalkers)
	for i, ch := range e.chains {
		out[i] = make([]float64, ch.Len())
		copy(out[i], ch.LnProb)
	}
	return out
}

// AcceptanceFraction returns the acceptance fraction of each walker
func (e *Ensemble) AcceptanceFraction() []float64 {
	out := make([]float64, e.NWalkers)
	for i, ch := range e.chains {
		out[i] = ch.AcceptanceFraction()
	}
	return out
}

func (e *Ensemble) checkInitial(initial [][]float64) ([][]float64, error) {
	if len(initial) != e.NWalkers {
		return nil, errors.Errorf("Got %d initial positions for %d walkers", len(initial), e.NWalkers)
	}

	pos := make([][]float64, e.NWalkers)
	for i, x := range initial {
		if len(x) != e.NDim {
			return nil, errors.Errorf("Walker %d has %d dimensions, expected %d", i, len(x), e.NDim)
		}
		pos[i] = make([]float64, e.NDim)
		copy(pos[i], x)
	}
	return pos, nil
}

// NaN is a failed evaluation of a valid point: treat it as impossible
func clean(lnp []float64) {
	for i, v := range lnp {
		if math.IsNaN(v) {
			lnp[i] = math.Inf(-1)
		}
	}
}

// Run advances the ensemble nSteps from initial, appending to the recorded
// history, and returns the final walker positions. The evaluation pool only
// lives for the duration of the call. Any evaluation error aborts the run.
func (e *Ensemble) Run(initial [][]float64, nSteps int) ([][]float64, error) {
	if nSteps < 0 {
		return nil, errors.Errorf("Invalid step count %d", nSteps)
	}

	pos, err := e.checkInitial(initial)
	if err != nil {
		return nil, err
	}

	pool, err := NewPool(e.lnprob, e.workers)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	lnp, err := pool.Map(pos)
	if err != nil {
		return nil, errors.Wrap(err, "Could not evaluate initial walkers")
	}
	clean(lnp)

	half := e.NWalkers / 2
	recent := buffer.NewCircularFloat(e.window)
	var totalAccepted, totalProposed int64
	for _, ch := range e.chains {
		totalAccepted += ch.Accepted
		totalProposed += int64(ch.Len())
	}

	proposals := make([][]float64, half)
	zs := make([]float64, half)
	logU := make([]float64, half)

	for step := 0; step < nSteps; step++ {
		for s := 0; s < 2; s++ {
			active := s * half
			other := (1 - s) * half

			// All random draws happen here, before the parallel part, so a
			// seed gives the same chain for any pool size.
			for k := 0; k < half; k++ {
				x := pos[active+k]
				c := pos[other+e.gen.Intn(half)]
				u := e.gen.Float64()
				z := math.Pow((e.Scale-1.0)*u+1.0, 2) / e.Scale

				y := make([]float64, e.NDim)
				floats.ScaleTo(y, z, x)
				floats.AddScaled(y, 1.0-z, c)

				proposals[k] = y
				zs[k] = z
				logU[k] = math.Log(e.gen.Float64())
			}

			newLnp, err := pool.Map(proposals)
			if err != nil {
				return nil, errors.Wrapf(err, "Step %d failed", step)
			}
			clean(newLnp)

			for k := 0; k < half; k++ {
				i := active + k
				if !e.accept(lnp[i], newLnp[k], zs[k], logU[k]) {
					continue
				}
				pos[i] = proposals[k]
				lnp[i] = newLnp[k]
				e.chains[i].Accepted++
				totalAccepted++
			}
		}

		for i, ch := range e.chains {
			ch.add(pos[i], lnp[i])
		}
		totalProposed += int64(e.NWalkers)

		if e.progress != nil {
			e.progress(e.stepStats(step, nSteps, lnp, recent, totalAccepted, totalProposed))
		}
	}

	final := make([][]float64, e.NWalkers)
	for i, x := range pos {
		final[i] = make([]float64, e.NDim)
		copy(final[i], x)
	}
	return final, nil
}

// accept implements the stretch move acceptance rule. A walker stuck at -Inf
// takes any finite proposal.
func (e *Ensemble) accept(curr, prop, z, logU float64) bool {
	if math.IsInf(prop, -1) {
		return false
	}
	if math.IsInf(curr, -1) {
		return true
	}
	diff := float64(e.NDim-1)*math.Log(z) + prop - curr
	return diff > logU
}

func (e *Ensemble) stepStats(step, total int, lnp []float64, recent *buffer.CircularFloat, accepted, proposed int64) Step {
	sum, n := 0.0, 0
	for _, v := range lnp {
		if !math.IsInf(v, 0) {
			sum += v
			n++
		}
	}
	mean := math.Inf(-1)
	if n > 0 {
		mean = sum / float64(n)
	}
	recent.Add(mean)

	st := Step{
		Index:      step,
		Total:      total,
		MeanLnProb: mean,
	}
	if proposed > 0 {
		st.MeanAcceptance = float64(accepted) / float64(proposed)
	}
	st.Drift, st.DriftReady = recent.HalfDrift()
	return st
}
