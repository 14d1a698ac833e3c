package model

import (
	"math"
)

// Defaults for an NFW dark matter halo
const (
	DefaultMvir     = 11.2  // 1e11 Msun
	DefaultCvir     = 12.8  // concentration
	DefaultDeltaVir = 200.0 // overdensity relative to critical
	DefaultHubble   = 0.678 // h
)

// NFW is a Navarro-Frenk-White dark matter halo. Mvir is in units of
// 1e11 Msun. Use SetMvir/SetCvir to change parameters so the derived radii
// stay in step.
type NFW struct {
	mvir     float64
	cvir     float64
	deltaVir float64
	h        float64
	rhoCrit  float64 // Msun/kpc^3
	rvir     float64 // kpc
	rs       float64 // kpc
}

// NewNFW creates a halo with the default DeltaVir and h.
func NewNFW(mvir, cvir float64) *NFW {
	return NewNFWCosmo(mvir, cvir, DefaultDeltaVir, DefaultHubble)
}

// NewNFWCosmo creates a halo with explicit overdensity and Hubble parameter.
func NewNFWCosmo(mvir, cvir, deltaVir, h float64) *NFW {
	n := &NFW{
		mvir:     mvir,
		cvir:     cvir,
		deltaVir: deltaVir,
		h:        h,
		rhoCrit:  2.77536627e2 * h * h,
	}
	n.update()
	return n
}

func (n *NFW) update() {
	n.rvir = math.Cbrt(n.MvirMsun() / 4.0 / math.Pi * 3.0 / n.deltaVir / n.rhoCrit)
	n.rs = n.rvir / n.cvir
}

// Mvir in 1e11 Msun
func (n *NFW) Mvir() float64 { return n.mvir }

// MvirMsun is the virial mass in Msun
func (n *NFW) MvirMsun() float64 { return n.mvir * 1.0e11 }

// Cvir is the concentration
func (n *NFW) Cvir() float64 { return n.cvir }

// DeltaVir is the virial overdensity
func (n *NFW) DeltaVir() float64 { return n.deltaVir }

// Hubble is h
func (n *NFW) Hubble() float64 { return n.h }

// RhoCritical in Msun/kpc^3
func (n *NFW) RhoCritical() float64 { return n.rhoCrit }

// Rvir is the virial radius in kpc
func (n *NFW) Rvir() float64 { return n.rvir }

// Rs is the scale radius in kpc
func (n *NFW) Rs() float64 { return n.rs }

// SetMvir updates the mass (1e11 Msun) and the derived radii
func (n *NFW) SetMvir(mvir float64) {
	n.mvir = mvir
	n.update()
}

// SetCvir updates the concentration and the scale radius
func (n *NFW) SetCvir(cvir float64) {
	n.cvir = cvir
	n.rs = n.rvir / n.cvir
}

// m(c) = ln(1+c) - c/(1+c)
func (n *NFW) massProfile() float64 {
	return 1.0/(n.cvir+1.0) + math.Log(n.cvir+1.0) - 1.0
}

// Density in Msun/kpc^3 at r kpc
func (n *NFW) Density(r float64) float64 {
	norm := n.MvirMsun() / (4.0 * math.Pi * n.rs * n.rs * n.rs * n.massProfile())
	rsOverR := n.rs / r
	return norm * rsOverR / math.Pow(1.0+1.0/rsOverR, 2)
}

// DensityGeV is the density in GeV/cm^3
func (n *NFW) DensityGeV(r float64) float64 {
	return MsunKpc3ToGeVCm3 * n.Density(r)
}

// EnclosedMass in Msun inside r kpc
func (n *NFW) EnclosedMass(r float64) float64 {
	x := r / n.rs
	return n.MvirMsun() / n.massProfile() * (1.0/(x+1.0) + math.Log(x+1.0) - 1.0)
}

// G*M(r)/r in internal units
func (n *NFW) gmOverR(r float64) float64 {
	mv := n.MvirMsun() / massUnitMsun
	rs3 := n.rs * n.rs * n.rs
	norm := mv / (4.0 * math.Pi * rs3 * n.massProfile())
	x := r / n.rs
	return 4.0 * math.Pi * norm * rs3 * (1.0/(x+1.0) + math.Log(1.0+x) - 1.0) / r
}

// CircularVelocity in km/s at r kpc
func (n *NFW) CircularVelocity(r float64) float64 {
	return velocityFactor * math.Sqrt(n.gmOverR(r))
}

// SquaredCircularVelocity in km^2/s^2 at r kpc
func (n *NFW) SquaredCircularVelocity(r float64) float64 {
	return squaredFactor * n.gmOverR(r)
}
