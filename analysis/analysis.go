package analysis

import (
	"io"
	"log"
	"reflect"

	"github.com/pkg/errors"

	"github.com/CraigKelly/rotcurve/data"
	"github.com/CraigKelly/rotcurve/model"
	"github.com/CraigKelly/rotcurve/rand"
	"github.com/CraigKelly/rotcurve/sampler"
)

// DefaultPerturbation is the standard deviation of the Gaussian noise used
// to spread walkers around the maximum likelihood point.
const DefaultPerturbation = 0.05

// ModelBuilder turns a set of variables into a rotation curve. It is called
// concurrently with independent copies of the variables and must only read
// them.
type ModelBuilder func(vars Variables) (model.RotationCurve, error)

// Phase names a sampling run
type Phase string

// Sampling phases reported to progress callbacks
const (
	PhaseBurnIn Phase = "burn-in"
	PhaseMCMC   Phase = "mcmc"
)

// Analysis fits a model built from an ordered list of variables to a rotation
// curve dataset. It works on copies of the variables taken by New: changing
// the caller's Variables afterwards has no effect on the Analysis.
type Analysis struct {
	vars    []*Variable
	byName  Variables
	names   []string
	builder ModelBuilder
	data    data.Dataset

	gen      *rand.Generator
	workers  int
	perturb  float64
	out      *log.Logger
	progress func(Phase, sampler.Step)

	sampler *sampler.Ensemble
}

type options struct {
	rSun     *Variable
	rSunSet  bool
	gen      *rand.Generator
	workers  int
	perturb  float64
	out      *log.Logger
	progress func(Phase, sampler.Step)
}

// Option configures New
type Option func(*options)

// WithRSun replaces the default R_sun variable. nil means no R_sun
// variable is appended.
func WithRSun(v *Variable) Option {
	return func(o *options) {
		o.rSun = v
		o.rSunSet = true
	}
}

// WithGenerator sets the random source for walker initialisation and
// sampling. Without it every run creates its own clock-seeded generator and
// stops it when done.
func WithGenerator(gen *rand.Generator) Option {
	return func(o *options) { o.gen = gen }
}

// WithWorkers sets the evaluation pool size per run (< 1: one per CPU)
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithPerturbation sets the walker spread around the maximum likelihood point
func WithPerturbation(sigma float64) Option {
	return func(o *options) { o.perturb = sigma }
}

// WithLogger sets where timing and optimizer messages go. nil discards them.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.out = l }
}

// WithProgress registers a callback for every sampler step
func WithProgress(fn func(Phase, sampler.Step)) Option {
	return func(o *options) { o.progress = fn }
}

// New validates the inputs and returns an Analysis ready to sample. Unless
// suppressed with WithRSun(nil), a fresh DefaultRSun variable is appended to
// vars. Positions are assigned in list order. The builder is called once to
// check it works with the variables.
func New(vars []*Variable, builder ModelBuilder, ds data.Dataset, opts ...Option) (*Analysis, error) {
	o := &options{
		perturb: DefaultPerturbation,
		out:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(o)
	}
	if !o.rSunSet {
		o.rSun = DefaultRSun()
	}
	if o.out == nil {
		o.out = log.New(io.Discard, "", 0)
	}

	a := &Analysis{
		builder:  builder,
		data:     ds,
		gen:      o.gen,
		workers:  o.workers,
		perturb:  o.perturb,
		out:      o.out,
		progress: o.progress,
	}

	var err error
	a.vars, err = buildVariableList(vars, o.rSun)
	if err != nil {
		return nil, err
	}

	if err = a.assignPositions(); err != nil {
		return nil, err
	}

	if builder == nil {
		return nil, errors.Wrap(ErrInvariant, "a model builder is required")
	}
	if err = a.checkBuilder(); err != nil {
		return nil, err
	}

	if err = ds.Check(); err != nil {
		return nil, errors.Wrapf(ErrInvariant, "dataset is not usable: %v", err)
	}

	return a, nil
}

func buildVariableList(vars []*Variable, rSun *Variable) ([]*Variable, error) {
	if len(vars) < 1 {
		return nil, errors.Wrap(ErrInvariant, "at least one Variable is required")
	}

	list := make([]*Variable, 0, len(vars)+1)
	for i, v := range vars {
		if v == nil {
			return nil, errors.Wrapf(ErrInvariant, "element %d of the variables list is not a Variable", i)
		}
		list = append(list, v.Clone())
	}

	if rSun != nil {
		list = append(list, rSun.Clone())
	}
	return list, nil
}

func (a *Analysis) assignPositions() error {
	a.byName = make(Variables, len(a.vars))
	a.names = make([]string, len(a.vars))

	for k, v := range a.vars {
		if _, dup := a.byName[v.Name()]; dup {
			return errors.Wrapf(ErrInvariant, "duplicate variable name %q", v.Name())
		}
		if err := v.SetPosition(k); err != nil {
			return err
		}
		a.byName[v.Name()] = v
		a.names[k] = v.Name()
	}

	return nil
}

func isNil(m model.RotationCurve) bool {
	if m == nil {
		return true
	}
	rv := reflect.ValueOf(m)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func (a *Analysis) checkBuilder() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrBuilderSignature,
				"model builder panicked: %v. ADVISE: check that the builder accepts a Variables mapping as its only argument", r)
		}
	}()

	m, err := a.builder(a.cloneVariables())
	if err != nil {
		if errors.Is(err, ErrUnknownVariable) {
			return errors.Wrap(err,
				"ADVISE: check that the model builder uses the same keys as the variables in the list")
		}
		return errors.Wrapf(ErrBuilderSignature,
			"model builder failed: %v. ADVISE: check that the builder accepts a Variables mapping as its only argument", err)
	}

	if isNil(m) {
		return errors.Wrap(ErrInvariant, "model builder must return a rotation curve model")
	}

	return nil
}

func (a *Analysis) cloneVariables() Variables {
	cp := make(Variables, len(a.vars))
	for _, v := range a.vars {
		cp[v.Name()] = v.Clone()
	}
	return cp
}

// VariablesList returns copies of the ordered variables (including R_sun if
// present), with their positions set.
func (a *Analysis) VariablesList() []*Variable {
	cp := make([]*Variable, len(a.vars))
	for i, v := range a.vars {
		cp[i] = v.Clone()
	}
	return cp
}

// VariableNames returns the variable names in position order
func (a *Analysis) VariableNames() []string {
	cp := make([]string, len(a.names))
	copy(cp, a.names)
	return cp
}

// Dimensions is the length of a parameter vector
func (a *Analysis) Dimensions() int {
	return len(a.vars)
}

// Dataset returns the data being fit
func (a *Analysis) Dataset() data.Dataset {
	return a.data
}

// Sampler returns the ensemble from the last production run, or nil
func (a *Analysis) Sampler() *sampler.Ensemble {
	return a.sampler
}

// CurrentValues returns each variable's Value in position order
func (a *Analysis) CurrentValues() []float64 {
	x := make([]float64, len(a.vars))
	for _, v := range a.vars {
		x[v.position] = v.Value
	}
	return x
}
