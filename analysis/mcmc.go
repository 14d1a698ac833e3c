package analysis

import (
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/rotcurve/rand"
	"github.com/CraigKelly/rotcurve/results"
	"github.com/CraigKelly/rotcurve/sampler"
)

// generator returns the configured generator, or a clock-seeded one for a
// single run. The returned func releases it.
func (a *Analysis) generator() (*rand.Generator, func(), error) {
	if a.gen != nil {
		return a.gen, func() {}, nil
	}
	gen, err := rand.NewGenerator(time.Now().UnixNano())
	if err != nil {
		return nil, nil, errors.Wrap(err, "Could not create random generator")
	}
	return gen, gen.Close, nil
}

func (a *Analysis) newEnsemble(gen *rand.Generator, nWalkers int, phase Phase) (*sampler.Ensemble, error) {
	opts := []sampler.Option{sampler.WithWorkers(a.workers)}
	if a.progress != nil {
		progress := a.progress
		opts = append(opts, sampler.WithProgress(func(s sampler.Step) {
			progress(phase, s)
		}))
	}

	ens, err := sampler.NewEnsemble(gen, nWalkers, len(a.vars), a.LnLikelihood, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not create %s sampler", phase)
	}
	return ens, nil
}

// InitialWalkers spreads nWalkers around center with independent Gaussian
// noise in every dimension.
func (a *Analysis) InitialWalkers(nWalkers int, center []float64) ([][]float64, error) {
	gen, done, err := a.generator()
	if err != nil {
		return nil, err
	}
	defer done()

	return a.initialWalkers(gen, nWalkers, center)
}

func (a *Analysis) initialWalkers(gen *rand.Generator, nWalkers int, center []float64) ([][]float64, error) {
	if err := a.checkLength(center); err != nil {
		return nil, err
	}
	if nWalkers < 1 {
		return nil, errors.Errorf("Invalid walker count %d", nWalkers)
	}

	noise := distuv.Normal{Mu: 0, Sigma: a.perturb, Src: gen}
	walkers := make([][]float64, nWalkers)
	for i := range walkers {
		walkers[i] = make([]float64, len(center))
		for d, c := range center {
			walkers[i][d] = c + noise.Rand()
		}
	}
	return walkers, nil
}

// BurnIn finds the maximum likelihood point, spreads nWalkers around it and
// runs nSteps of the ensemble sampler. The history is thrown away; only the
// final walker positions are returned.
func (a *Analysis) BurnIn(nWalkers int, nSteps int) ([][]float64, error) {
	ml, err := a.MaximumLikelihood()
	if err != nil {
		return nil, err
	}

	gen, done, err := a.generator()
	if err != nil {
		return nil, err
	}
	defer done()

	walkers, err := a.initialWalkers(gen, nWalkers, ml)
	if err != nil {
		return nil, err
	}

	ens, err := a.newEnsemble(gen, nWalkers, PhaseBurnIn)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	final, err := ens.Run(walkers, nSteps)
	if err != nil {
		return nil, errors.Wrap(err, "Burn-in failed")
	}
	a.out.Printf("Burn-in took %.1f seconds", time.Since(start).Seconds())
	ens.Reset()

	return final, nil
}

// MCMC runs nSteps of a fresh ensemble sampler from initial and keeps it as
// the analysis result, replacing any previous run. A failed run leaves the
// previous result in place.
func (a *Analysis) MCMC(nWalkers int, nSteps int, initial [][]float64) error {
	gen, done, err := a.generator()
	if err != nil {
		return err
	}
	defer done()

	ens, err := a.newEnsemble(gen, nWalkers, PhaseMCMC)
	if err != nil {
		return err
	}

	start := time.Now()
	if _, err = ens.Run(initial, nSteps); err != nil {
		return errors.Wrap(err, "MCMC failed")
	}
	a.out.Printf("MCMC took %.1f seconds", time.Since(start).Seconds())

	a.sampler = ens
	return nil
}

// MCMCAndBurnIn is BurnIn followed by MCMC from the burnt-in walkers
func (a *Analysis) MCMCAndBurnIn(nWalkers int, nStepsBurnIn int, nStepsMCMC int) error {
	walkers, err := a.BurnIn(nWalkers, nStepsBurnIn)
	if err != nil {
		return err
	}
	return a.MCMC(nWalkers, nStepsMCMC, walkers)
}

// Result packages the last production run for persistence
func (a *Analysis) Result() (*results.Bundle, error) {
	if a.sampler == nil {
		return nil, errors.New("No MCMC run to report")
	}

	return results.NewBundle(
		a.VariableNames(),
		a.sampler.LnProbability(),
		a.sampler.Chain(),
		a.sampler.AcceptanceFraction(),
	)
}
