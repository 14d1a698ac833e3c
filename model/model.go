package model

import (
	"math"

	"github.com/pkg/errors"
)

// Unit conventions: radii in kpc, masses in Msun, velocities in km/s. The
// velocity formulas work in units of 2.32e7 Msun with G = 1, where
// sqrt(G M / r) comes out in units of 10 km/s.
const (
	massUnitMsun   = 2.32e7
	velocityFactor = 10.0
	squaredFactor  = velocityFactor * velocityFactor

	msunInGeV = 1.11545e57
	kpcInCm   = 3.08568e21

	// MsunKpc3ToGeVCm3 converts a density in Msun/kpc^3 to GeV/cm^3
	MsunKpc3ToGeVCm3 = msunInGeV / (kpcInCm * kpcInCm * kpcInCm)
)

// A Component is a single potential contributing to the rotation curve.
type Component interface {
	SquaredCircularVelocity(r float64) float64
}

// A RotationCurve gives the circular velocity at a galactocentric radius.
// This is all an analysis needs from a model.
type RotationCurve interface {
	CircularVelocity(r float64) float64
}

// Galaxy is a composite model: squared circular velocities of the
// components add.
type Galaxy struct {
	Components []Component
}

// NewGalaxy returns a galaxy built from the given components, in order.
func NewGalaxy(components ...Component) (*Galaxy, error) {
	for i, c := range components {
		if c == nil {
			return nil, errors.Errorf("Galaxy component %d is nil", i)
		}
	}

	g := &Galaxy{
		Components: make([]Component, len(components)),
	}
	copy(g.Components, components)
	return g, nil
}

// SquaredCircularVelocity sums the components, so a Galaxy is itself a
// Component.
func (g *Galaxy) SquaredCircularVelocity(r float64) float64 {
	vc2 := 0.0
	for _, c := range g.Components {
		vc2 += c.SquaredCircularVelocity(r)
	}
	return vc2
}

// CircularVelocity implements RotationCurve
func (g *Galaxy) CircularVelocity(r float64) float64 {
	return math.Sqrt(g.SquaredCircularVelocity(r))
}
