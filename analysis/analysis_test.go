package analysis

import (
	"bytes"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/CraigKelly/rotcurve/data"
	"github.com/CraigKelly/rotcurve/model"
	"github.com/CraigKelly/rotcurve/rand"
	"github.com/CraigKelly/rotcurve/sampler"
)

// Three points from an NFW halo with Mvir=10, default concentration
func syntheticData() data.Dataset {
	halo := model.NewNFW(10.0, model.DefaultCvir)
	ds := make(data.Dataset, 0, 3)
	for _, r := range []float64{5.0, 8.0, 12.0} {
		ds = append(ds, data.Point{
			R:          r,
			V:          halo.CircularVelocity(r),
			SigmaMinus: 2.0,
			SigmaPlus:  3.0,
			Systematic: 1.5,
		})
	}
	return ds
}

func haloBuilder(vars Variables) (model.RotationCurve, error) {
	mvir, err := vars.Value("Mvir")
	if err != nil {
		return nil, err
	}
	return model.NewGalaxy(model.NewNFW(mvir, model.DefaultCvir))
}

func fixedBuilder(vars Variables) (model.RotationCurve, error) {
	return model.NewGalaxy(model.NewNFW(model.DefaultMvir, model.DefaultCvir))
}

func mvirVariable(t *testing.T) *Variable {
	v, err := NewVariable("Mvir", 14.0, FlatPrior(1.0, 100.0))
	assert.NoError(t, err)
	return v
}

func testGen(t *testing.T) *rand.Generator {
	gen, err := rand.NewGenerator(42)
	assert.NoError(t, err)
	t.Cleanup(gen.Close)
	return gen
}

func twoVariables(t *testing.T) []*Variable {
	x1, err := NewVariable("x1", 1.0, FlatPrior(-10, 10))
	assert.NoError(t, err)
	x2, err := NewVariable("x2", 1.0, FlatPrior(-10, 10))
	assert.NoError(t, err)
	return []*Variable{x1, x2}
}

func TestAnalysisRSun(t *testing.T) {
	assert := assert.New(t)

	vars := twoVariables(t)
	without, err := New(vars, fixedBuilder, syntheticData(), WithRSun(nil))
	assert.NoError(err)
	assert.Len(without.VariablesList(), 2)
	assert.Equal([]string{"x1", "x2"}, without.VariableNames())
	assert.Equal(2, without.Dimensions())

	with, err := New(vars, fixedBuilder, syntheticData())
	assert.NoError(err)
	list := with.VariablesList()
	assert.Len(list, 3)
	assert.Equal("x1", list[0].Name())
	assert.Equal("x2", list[1].Name())
	assert.Equal(RSunName, list[2].Name())
	assert.Equal(8.122, list[2].Value)
	assert.Equal([]string{"x1", "x2", "R_sun"}, with.VariableNames())

	for i, v := range list {
		assert.Equal(i, v.Position())
	}

	// Every analysis gets its own R_sun
	other, err := New(twoVariables(t), fixedBuilder, syntheticData())
	assert.NoError(err)
	assert.False(other.VariablesList()[2] == list[2])

	custom, err := NewVariable("R_sun", 8.3, GaussianPrior(8.3, 0.1))
	assert.NoError(err)
	a, err := New(twoVariables(t), fixedBuilder, syntheticData(), WithRSun(custom))
	assert.NoError(err)
	assert.Equal("R_sun", a.VariablesList()[2].Name())
	assert.Equal([]float64{1.0, 1.0, 8.3}, a.CurrentValues())
}

func TestAnalysisOwnsVariables(t *testing.T) {
	assert := assert.New(t)

	mvir := mvirVariable(t)
	alone, err := New([]*Variable{mvir}, haloBuilder, syntheticData(), WithRSun(nil))
	assert.NoError(err)

	// The same variable at a different position in a second analysis
	x := twoVariables(t)
	shared, err := New([]*Variable{x[0], x[1], mvir}, haloBuilder, syntheticData())
	assert.NoError(err)
	assert.Equal([]string{"x1", "x2", "Mvir", "R_sun"}, shared.VariableNames())

	expected, err := alone.LnLikelihood([]float64{10.0})
	assert.NoError(err)
	assert.InDelta(0.0, expected, 1e-9)

	// Changes made by callers after New are not seen
	assert.NoError(mvir.SetPosition(7))
	mvir.Value = 50.0
	assert.NoError(alone.VariablesList()[0].SetPosition(5))
	alone.VariablesList()[0].Value = 60.0

	assert.Equal([]float64{14.0}, alone.CurrentValues())
	assert.Equal(0, alone.VariablesList()[0].Position())

	lnl, err := alone.LnLikelihood([]float64{10.0})
	assert.NoError(err)
	assert.Equal(expected, lnl)

	lp, err := alone.LnPriors([]float64{10.0})
	assert.NoError(err)
	assert.Equal(0.0, lp)

	lnl, err = shared.LnLikelihood([]float64{0.0, 0.0, 10.0, 8.122})
	assert.NoError(err)
	assert.InDelta(lnGaussian(8.122, 8.122, 0.031), lnl, 1e-9)

	best, err := alone.MaximumLikelihood()
	assert.NoError(err)
	assert.Len(best, 1)
}

// Without WithGenerator no generator is kept between runs
func TestAnalysisDefaultGenerator(t *testing.T) {
	assert := assert.New(t)

	a, err := New([]*Variable{mvirVariable(t)}, haloBuilder, syntheticData())
	assert.NoError(err)
	assert.Nil(a.gen)

	walkers, err := a.InitialWalkers(4, []float64{10.0, 8.122})
	assert.NoError(err)
	assert.NoError(a.MCMC(4, 2, walkers))
	assert.Nil(a.gen)
	assert.Equal(2, a.Sampler().Iterations())
}

func TestAnalysisBadVariables(t *testing.T) {
	assert := assert.New(t)

	_, err := New(nil, fixedBuilder, syntheticData())
	assert.True(errors.Is(err, ErrInvariant))

	_, err = New([]*Variable{nil}, fixedBuilder, syntheticData())
	assert.True(errors.Is(err, ErrInvariant))

	vars := twoVariables(t)
	dup, err := NewVariable("x1", 0.0, nil)
	assert.NoError(err)
	_, err = New(append(vars, dup), fixedBuilder, syntheticData())
	assert.True(errors.Is(err, ErrInvariant))
	assert.Contains(err.Error(), "x1")

	// A user variable named R_sun clashes with the default one
	rs, err := NewVariable("R_sun", 8.0, nil)
	assert.NoError(err)
	_, err = New([]*Variable{rs}, fixedBuilder, syntheticData())
	assert.True(errors.Is(err, ErrInvariant))

	_, err = New(twoVariables(t), fixedBuilder, data.Dataset{})
	assert.True(errors.Is(err, ErrInvariant))

	_, err = New(twoVariables(t), nil, syntheticData())
	assert.True(errors.Is(err, ErrInvariant))
}

func TestAnalysisBadBuilders(t *testing.T) {
	assert := assert.New(t)

	wrongKey := func(vars Variables) (model.RotationCurve, error) {
		v, err := vars.Get("non_existing_key")
		if err != nil {
			return nil, err
		}
		return model.NewNFW(v.Value, 10), nil
	}
	_, err := New(twoVariables(t), wrongKey, syntheticData())
	assert.True(errors.Is(err, ErrUnknownVariable))
	assert.Contains(err.Error(), "ADVISE: check that the model builder uses the same keys")
	assert.Contains(err.Error(), "non_existing_key")

	failing := func(vars Variables) (model.RotationCurve, error) {
		return nil, errors.New("wrong shape")
	}
	_, err = New(twoVariables(t), failing, syntheticData())
	assert.True(errors.Is(err, ErrBuilderSignature))
	assert.Contains(err.Error(), "accepts a Variables mapping as its only argument")

	panicky := func(vars Variables) (model.RotationCurve, error) {
		return model.NewNFW(vars["missing"].Value, 10), nil
	}
	_, err = New(twoVariables(t), panicky, syntheticData())
	assert.True(errors.Is(err, ErrBuilderSignature))

	nothing := func(vars Variables) (model.RotationCurve, error) {
		return nil, nil
	}
	_, err = New(twoVariables(t), nothing, syntheticData())
	assert.True(errors.Is(err, ErrInvariant))

	typedNil := func(vars Variables) (model.RotationCurve, error) {
		var g *model.Galaxy
		return g, nil
	}
	_, err = New(twoVariables(t), typedNil, syntheticData())
	assert.True(errors.Is(err, ErrInvariant))
}

func TestAnalysisPriors(t *testing.T) {
	assert := assert.New(t)

	a, err := New([]*Variable{mvirVariable(t)}, haloBuilder, syntheticData())
	assert.NoError(err)

	lp, err := a.LnPriors([]float64{10.0, 8.2})
	assert.NoError(err)
	assert.InDelta(lnGaussian(8.2, 8.122, 0.031), lp, 1e-12)

	lp, err = a.LnPriors([]float64{200.0, 8.2})
	assert.NoError(err)
	assert.True(math.IsInf(lp, -1))

	_, err = a.LnPriors([]float64{10.0})
	assert.True(errors.Is(err, ErrInvariant))

	noPrior, err := NewVariable("Mvir", 10.0, nil)
	assert.NoError(err)
	b, err := New([]*Variable{noPrior}, haloBuilder, syntheticData())
	assert.NoError(err)
	_, err = b.LnPriors([]float64{10.0, 8.2})
	assert.True(errors.Is(err, ErrNoPrior))
	_, err = b.LnLikelihood([]float64{10.0, 8.2})
	assert.True(errors.Is(err, ErrNoPrior))
}

func TestAnalysisLikelihood(t *testing.T) {
	assert := assert.New(t)

	var calls int64
	counting := func(vars Variables) (model.RotationCurve, error) {
		atomic.AddInt64(&calls, 1)
		return haloBuilder(vars)
	}

	ds := syntheticData()
	a, err := New([]*Variable{mvirVariable(t)}, counting, ds)
	assert.NoError(err)
	assert.Equal(int64(1), calls)

	// Out of bounds: no model is built
	lnl, err := a.LnLikelihood([]float64{500.0, 8.122})
	assert.NoError(err)
	assert.True(math.IsInf(lnl, -1))
	assert.Equal(int64(1), calls)

	x := []float64{12.0, 8.15}
	lnl, err = a.LnLikelihood(x)
	assert.NoError(err)
	assert.Equal(int64(2), calls)

	halo := model.NewNFW(12.0, model.DefaultCvir)
	chi2 := 0.0
	for _, p := range ds {
		sigma := math.Sqrt(math.Pow((p.SigmaMinus+p.SigmaPlus)/2, 2) + p.Systematic*p.Systematic)
		chi2 += math.Pow((p.V-halo.CircularVelocity(p.R))/sigma, 2)
	}
	exp := lnGaussian(8.15, 8.122, 0.031) - chi2/2
	assert.InDelta(exp, lnl, 1e-9)

	// The true parameters fit perfectly
	lnl, err = a.LnLikelihood([]float64{10.0, 8.122})
	assert.NoError(err)
	assert.InDelta(lnGaussian(8.122, 8.122, 0.031), lnl, 1e-9)
}

func TestSetGalaxyModelIsPure(t *testing.T) {
	assert := assert.New(t)

	mvir := mvirVariable(t)
	a, err := New([]*Variable{mvir}, haloBuilder, syntheticData())
	assert.NoError(err)

	m, err := a.SetGalaxyModel([]float64{20.0, 8.0})
	assert.NoError(err)
	assert.InEpsilon(model.NewNFW(20.0, model.DefaultCvir).CircularVelocity(8.0), m.CircularVelocity(8.0), 1e-12)

	// The analysis variables are untouched
	assert.Equal(14.0, mvir.Value)
	assert.Equal([]float64{14.0, 8.122}, a.CurrentValues())

	_, err = a.SetGalaxyModel([]float64{20.0})
	assert.True(errors.Is(err, ErrInvariant))
}

func TestLikelihoodConcurrent(t *testing.T) {
	assert := assert.New(t)

	a, err := New([]*Variable{mvirVariable(t)}, haloBuilder, syntheticData())
	assert.NoError(err)

	points := make([][]float64, 64)
	expected := make([]float64, len(points))
	for i := range points {
		points[i] = []float64{5.0 + float64(i)*0.25, 8.1 + float64(i)*0.001}
		expected[i], err = a.LnLikelihood(points[i])
		assert.NoError(err)
	}

	got := make([]float64, len(points))
	var wg sync.WaitGroup
	for i := range points {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = a.LnLikelihood(points[i])
		}(i)
	}
	wg.Wait()

	assert.Equal(expected, got)
}

func TestMaximumLikelihood(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	a, err := New([]*Variable{mvirVariable(t)}, haloBuilder, syntheticData(),
		WithGenerator(testGen(t)), WithLogger(log.New(&buf, "", 0)))
	assert.NoError(err)

	x0 := a.CurrentValues()
	initial, err := a.LnLikelihood(x0)
	assert.NoError(err)

	best, err := a.MaximumLikelihood()
	assert.NoError(err)
	assert.Len(best, 2)

	final, err := a.LnLikelihood(best)
	assert.NoError(err)
	assert.True(final >= initial, "%f < %f", final, initial)
	assert.InDelta(10.0, best[0], 1.0)
	assert.Contains(buf.String(), "Maximum likelihood")

	// The search starts from, but never changes, the variable values
	assert.Equal(x0, a.CurrentValues())
}

func TestMaximumLikelihoodError(t *testing.T) {
	assert := assert.New(t)

	var calls int64
	flaky := func(vars Variables) (model.RotationCurve, error) {
		if atomic.AddInt64(&calls, 1) > 3 {
			return nil, errors.New("builder broke")
		}
		return haloBuilder(vars)
	}

	a, err := New([]*Variable{mvirVariable(t)}, flaky, syntheticData())
	assert.NoError(err)
	_, err = a.MaximumLikelihood()
	assert.Error(err)
	assert.Contains(err.Error(), "builder broke")
}

func TestMCMCAndBurnIn(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	var phases sync.Map
	a, err := New([]*Variable{mvirVariable(t)}, haloBuilder, syntheticData(),
		WithGenerator(testGen(t)),
		WithWorkers(2),
		WithLogger(log.New(&buf, "", 0)),
		WithProgress(func(p Phase, s sampler.Step) { phases.Store(p, s.Index) }),
	)
	assert.NoError(err)
	assert.Nil(a.Sampler())

	_, err = a.Result()
	assert.Error(err)

	assert.NoError(a.MCMCAndBurnIn(8, 5, 5))
	assert.Contains(buf.String(), "Burn-in took")
	assert.Contains(buf.String(), "MCMC took")

	last, ok := phases.Load(PhaseBurnIn)
	assert.True(ok)
	assert.Equal(4, last)
	last, ok = phases.Load(PhaseMCMC)
	assert.True(ok)
	assert.Equal(4, last)

	ens := a.Sampler()
	assert.NotNil(ens)

	chain := ens.Chain()
	assert.Len(chain, 8)
	for _, walker := range chain {
		assert.Len(walker, 5)
		for _, x := range walker {
			assert.Len(x, 2)
			for _, v := range x {
				assert.False(math.IsNaN(v) || math.IsInf(v, 0))
			}
		}
	}

	acc := ens.AcceptanceFraction()
	assert.Len(acc, 8)
	for _, f := range acc {
		assert.False(math.IsNaN(f) || math.IsInf(f, 0))
	}

	for _, walker := range ens.LnProbability() {
		assert.Len(walker, 5)
	}

	b, err := a.Result()
	assert.NoError(err)
	assert.Equal([]string{"Mvir", "R_sun"}, b.VariableNames)
	assert.Equal(8, b.Walkers())
	assert.Equal(5, b.Steps())
}

func TestMCMCFromWalkers(t *testing.T) {
	assert := assert.New(t)

	a, err := New([]*Variable{mvirVariable(t)}, haloBuilder, syntheticData(), WithGenerator(testGen(t)))
	assert.NoError(err)

	walkers, err := a.InitialWalkers(4, []float64{10.0, 8.122})
	assert.NoError(err)
	assert.Len(walkers, 4)
	for _, w := range walkers {
		assert.InDelta(10.0, w[0], 0.5)
		assert.InDelta(8.122, w[1], 0.5)
	}

	_, err = a.InitialWalkers(4, []float64{10.0})
	assert.Error(err)
	_, err = a.InitialWalkers(0, []float64{10.0, 8.122})
	assert.Error(err)

	assert.NoError(a.MCMC(4, 3, walkers))
	first := a.Sampler()
	assert.Equal(3, first.Iterations())

	// A second run replaces the first
	assert.NoError(a.MCMC(4, 2, walkers))
	assert.False(first == a.Sampler())
	assert.Equal(2, a.Sampler().Iterations())

	// A bad run leaves the last result alone
	assert.Error(a.MCMC(4, 2, walkers[:3]))
	assert.Equal(2, a.Sampler().Iterations())

	assert.Error(a.MCMC(3, 2, walkers[:3]))
}

func BenchmarkLnLikelihood(b *testing.B) {
	mvir, err := NewVariable("Mvir", 14.0, FlatPrior(1.0, 100.0))
	if err != nil {
		b.Fatalf("Could not create variable %v", err)
	}
	a, err := New([]*Variable{mvir}, haloBuilder, syntheticData())
	if err != nil {
		b.Fatalf("Could not create analysis %v", err)
	}

	x := []float64{12.0, 8.15}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.LnLikelihood(x); err != nil {
			b.Fatalf("Failure on iteration %d %v", i, err)
		}
	}
}
