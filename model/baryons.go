package model

import (
	"math"
)

// Defaults for the Milky Way baryonic components
const (
	DefaultDiskMass  = 3.944e10 // Msun
	DefaultDiskA     = 5.3      // kpc
	DefaultDiskB     = 0.25     // kpc
	DefaultBulgeMass = 1.0672e10
	DefaultBulgeB    = 0.3
)

// MiyamotoNagai is an axisymmetric disk potential with scale length A and
// scale height B (kpc) and total Mass (Msun).
type MiyamotoNagai struct {
	Mass float64
	A    float64
	B    float64
}

// NewMiyamotoNagai returns the default Milky Way disk
func NewMiyamotoNagai() *MiyamotoNagai {
	return &MiyamotoNagai{Mass: DefaultDiskMass, A: DefaultDiskA, B: DefaultDiskB}
}

// DensityAt in Msun/kpc^3 at cylindrical (R, z)
func (d *MiyamotoNagai) DensityAt(R, z float64) float64 {
	sqrzb := math.Sqrt(z*z + d.B*d.B)
	inner := (d.A + 3.0*sqrzb) * math.Pow(d.A+sqrzb, 2)
	denom := math.Pow(R*R+math.Pow(d.A+sqrzb, 2), 2.5) * sqrzb * sqrzb * sqrzb
	rho := d.B * d.B * d.Mass / (4.0 * math.Pi)
	return rho * (d.A*R*R + inner) / denom
}

// DensityGeVAt is the density in GeV/cm^3
func (d *MiyamotoNagai) DensityGeVAt(R, z float64) float64 {
	return MsunKpc3ToGeVCm3 * d.DensityAt(R, z)
}

// CircularVelocityAt in km/s at (R, z)
func (d *MiyamotoNagai) CircularVelocityAt(R, z float64) float64 {
	m := d.Mass / massUnitMsun
	return velocityFactor * R * math.Sqrt(m) / math.Pow(R*R+math.Pow(d.A+math.Sqrt(z*z+d.B*d.B), 2), 0.75)
}

// SquaredCircularVelocityAt in km^2/s^2 at (R, z)
func (d *MiyamotoNagai) SquaredCircularVelocityAt(R, z float64) float64 {
	m := d.Mass / massUnitMsun
	R2 := R * R
	return squaredFactor * R2 * m / math.Pow(R2+math.Pow(d.A+math.Sqrt(z*z+d.B*d.B), 2), 1.5)
}

// CircularVelocity in the plane
func (d *MiyamotoNagai) CircularVelocity(R float64) float64 {
	return d.CircularVelocityAt(R, 0)
}

// SquaredCircularVelocity in the plane
func (d *MiyamotoNagai) SquaredCircularVelocity(R float64) float64 {
	return d.SquaredCircularVelocityAt(R, 0)
}

// Plummer is a spherical bulge with total Mass (Msun) and scale B (kpc).
type Plummer struct {
	Mass float64
	B    float64
}

// NewPlummer returns the default Milky Way bulge
func NewPlummer() *Plummer {
	return &Plummer{Mass: DefaultBulgeMass, B: DefaultBulgeB}
}

// EnclosedMass in Msun inside r kpc
func (p *Plummer) EnclosedMass(r float64) float64 {
	return p.Mass * r * r * r * math.Pow(p.B*p.B+r*r, -1.5)
}

// CircularVelocity in km/s at r kpc
func (p *Plummer) CircularVelocity(r float64) float64 {
	m := p.Mass / massUnitMsun
	return velocityFactor * r * math.Sqrt(m) / math.Pow(r*r+p.B*p.B, 0.75)
}

// SquaredCircularVelocity in km^2/s^2 at r kpc
func (p *Plummer) SquaredCircularVelocity(r float64) float64 {
	m := p.Mass / massUnitMsun
	r2 := r * r
	return squaredFactor * r2 * m / math.Pow(r2+p.B*p.B, 1.5)
}
