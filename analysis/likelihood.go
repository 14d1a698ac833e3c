package analysis

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/optimize"

	"github.com/CraigKelly/rotcurve/data"
	"github.com/CraigKelly/rotcurve/model"
)

func (a *Analysis) checkLength(values []float64) error {
	if len(values) != len(a.vars) {
		return errors.Wrapf(ErrInvariant, "got %d values for %d variables", len(values), len(a.vars))
	}
	return nil
}

// SetGalaxyModel builds the model for a parameter vector. Values are written
// into private copies of the variables, never the Analysis's own, so calls
// may run concurrently.
func (a *Analysis) SetGalaxyModel(values []float64) (model.RotationCurve, error) {
	if err := a.checkLength(values); err != nil {
		return nil, err
	}

	vars := a.cloneVariables()
	for _, v := range vars {
		v.Value = values[v.position]
	}

	m, err := a.builder(vars)
	if err != nil {
		return nil, errors.Wrapf(err, "Model builder failed at %v", values)
	}
	if isNil(m) {
		return nil, errors.Wrapf(ErrInvariant, "model builder returned no model at %v", values)
	}
	return m, nil
}

// LnPriors sums the log prior of every variable at its position in values.
// Every term is evaluated, even after one is -Inf.
func (a *Analysis) LnPriors(values []float64) (float64, error) {
	if err := a.checkLength(values); err != nil {
		return 0, err
	}

	total := 0.0
	for _, v := range a.vars {
		lp, err := v.Prior(values[v.position])
		if err != nil {
			return 0, err
		}
		total += lp
	}
	return total, nil
}

// ChiSquare of a rotation curve against the data
func ChiSquare(curve model.RotationCurve, ds data.Dataset) float64 {
	chi2 := 0.0
	for _, p := range ds {
		d := (p.V - curve.CircularVelocity(p.R)) / p.Sigma()
		chi2 += d * d
	}
	return chi2
}

// LnLikelihood is the log posterior (up to a constant): log prior minus half
// the chi-square. A non-finite prior returns -Inf without building a model.
func (a *Analysis) LnLikelihood(values []float64) (float64, error) {
	lp, err := a.LnPriors(values)
	if err != nil {
		return 0, err
	}
	if math.IsInf(lp, 0) || math.IsNaN(lp) {
		return math.Inf(-1), nil
	}

	m, err := a.SetGalaxyModel(values)
	if err != nil {
		return 0, err
	}

	return lp - ChiSquare(m, a.data)/2.0, nil
}

// MaximumLikelihood searches for the parameter vector maximising
// LnLikelihood, starting from the variables' current values. Optimizer
// statuses other than success are logged; the best point found is returned
// regardless. Errors from the likelihood itself abort the search.
func (a *Analysis) MaximumLikelihood() ([]float64, error) {
	x0 := a.CurrentValues()

	var evalErr error
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if evalErr != nil {
				return math.Inf(1)
			}
			lnl, err := a.LnLikelihood(x)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return -lnl
		},
	}

	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if evalErr != nil {
		return nil, errors.Wrap(evalErr, "Likelihood failed during maximum likelihood search")
	}
	if result == nil {
		return nil, errors.Wrap(err, "Maximum likelihood search failed")
	}
	if err != nil {
		a.out.Printf("Maximum likelihood search stopped with %v (status %v): using best point found", err, result.Status)
	}

	best := make([]float64, len(result.X))
	copy(best, result.X)
	a.out.Printf("Maximum likelihood %v at %v after %d evaluations", -result.F, best, result.Stats.FuncEvaluations)
	return best, nil
}
