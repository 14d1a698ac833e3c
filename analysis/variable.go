package analysis

import (
	"reflect"
	"sort"

	"github.com/pkg/errors"
)

// PositionUnset is what Position returns before SetPosition is called
const PositionUnset = -1

// Solar galactocentric radius (kpc) used for the default R_sun nuisance
// variable.
const (
	RSunName  = "R_sun"
	RSunMean  = 8.122
	RSunSigma = 0.031
)

// PriorFunc is a log prior density
type PriorFunc func(float64) float64

// Variable is a named scalar parameter with a prior. The position is the
// variable's index in the parameter vectors handled by an Analysis.
type Variable struct {
	Value float64

	name     string
	position int
	prior    PriorFunc
}

// NewVariable creates an unpositioned variable. prior may be nil, a Prior
// or *Prior, a PriorFunc, or any function of one float returning a float.
// Other functions are rejected: the wrong arity is ErrPriorSignature, a
// non-float result is ErrInvariant.
func NewVariable(name string, value float64, prior interface{}) (*Variable, error) {
	v := &Variable{
		Value:    value,
		name:     name,
		position: PositionUnset,
	}

	if err := v.SetPriorFunc(prior); err != nil {
		return nil, errors.Wrapf(err, "Variable %s", name)
	}

	return v, nil
}

// DefaultRSun returns a fresh R_sun variable with its Gaussian prior. Each
// call returns a new Variable so analyses never share one.
func DefaultRSun() *Variable {
	v, err := NewVariable(RSunName, RSunMean, GaussianPrior(RSunMean, RSunSigma))
	if err != nil {
		panic("BUG: default R_sun variable is invalid: " + err.Error())
	}
	return v
}

// Name is the unique identifier of the variable
func (v *Variable) Name() string {
	return v.name
}

// Position returns the index in the parameter vector, or PositionUnset
// (with a logged warning) if no position has been assigned.
func (v *Variable) Position() int {
	if v.position < 0 {
		Logger.Printf("WARNING: position of variable %s is not defined", v.name)
		return PositionUnset
	}
	return v.position
}

// SetPosition assigns the index in the parameter vector
func (v *Variable) SetPosition(i int) error {
	if i < 0 {
		return errors.Wrapf(ErrInvariant, "position %d for variable %s must be >= 0", i, v.name)
	}
	v.position = i
	return nil
}

// PriorFunc returns the prior function, which may be nil
func (v *Variable) PriorFunc() PriorFunc {
	return v.prior
}

// SetPriorFunc validates and installs a prior (see NewVariable). The prior
// is probed once at 1.0.
func (v *Variable) SetPriorFunc(prior interface{}) error {
	fn, err := asPriorFunc(prior)
	if err != nil {
		return err
	}
	if fn != nil {
		if err = probe(fn); err != nil {
			return err
		}
	}
	v.prior = fn
	return nil
}

// Prior evaluates the prior at x
func (v *Variable) Prior(x float64) (float64, error) {
	if v.prior == nil {
		return 0, errors.Wrapf(ErrNoPrior, "variable %s", v.name)
	}
	return v.prior(x), nil
}

// Clone copies the variable, including its position. The prior function is
// shared, so it must be safe for concurrent use.
func (v *Variable) Clone() *Variable {
	cp := *v
	return &cp
}

var float64Type = reflect.TypeOf(0.0)

func asPriorFunc(prior interface{}) (PriorFunc, error) {
	switch p := prior.(type) {
	case nil:
		return nil, nil
	case PriorFunc:
		return p, nil
	case func(float64) float64:
		return p, nil
	case Prior:
		return p.LnFunction, nil
	case *Prior:
		if p == nil {
			return nil, nil
		}
		cp := *p
		return cp.LnFunction, nil
	}

	rv := reflect.ValueOf(prior)
	ft := rv.Type()
	if ft.Kind() != reflect.Func {
		return nil, errors.Wrapf(ErrPriorSignature, "prior must be a function, got %T", prior)
	}
	if rv.IsNil() {
		return nil, nil
	}
	if ft.NumIn() != 1 || ft.IsVariadic() || !float64Type.ConvertibleTo(ft.In(0)) {
		return nil, errors.Wrapf(ErrPriorSignature,
			"prior %s should accept only 1 positional argument: the float value to be evaluated", ft)
	}
	if ft.NumOut() != 1 {
		return nil, errors.Wrapf(ErrInvariant, "prior %s must return a single float", ft)
	}
	switch ft.Out(0).Kind() {
	case reflect.Float32, reflect.Float64:
	default:
		return nil, errors.Wrapf(ErrInvariant, "prior %s must return a float", ft)
	}

	in := ft.In(0)
	return func(x float64) float64 {
		out := rv.Call([]reflect.Value{reflect.ValueOf(x).Convert(in)})
		return out[0].Float()
	}, nil
}

func probe(fn PriorFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrPriorSignature, "prior panicked when called with 1.0: %v", r)
		}
	}()
	fn(1.0)
	return nil
}

// Variables maps names to variables. It is what a ModelBuilder receives.
type Variables map[string]*Variable

// Get returns the named variable
func (vs Variables) Get(name string) (*Variable, error) {
	v, ok := vs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownVariable, "%q (known: %v)", name, vs.Names())
	}
	return v, nil
}

// Value returns the current value of the named variable
func (vs Variables) Value(name string) (float64, error) {
	v, err := vs.Get(name)
	if err != nil {
		return 0, err
	}
	return v.Value, nil
}

// Names returns the sorted variable names
func (vs Variables) Names() []string {
	names := make([]string, 0, len(vs))
	for n := range vs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
