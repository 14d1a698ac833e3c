package data

import (
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

// Point is a single rotation curve measurement. R is in kpc, everything else
// in km/s. Systematic is already absolute (not a fraction of V).
type Point struct {
	R          float64
	V          float64
	SigmaMinus float64
	SigmaPlus  float64
	Systematic float64
}

// Sigma combines the symmetrised statistical error with the systematic one
// in quadrature.
func (p Point) Sigma() float64 {
	stat := (p.SigmaMinus + p.SigmaPlus) / 2.0
	return math.Sqrt(stat*stat + p.Systematic*p.Systematic)
}

// Dataset is an ordered collection of measurements.
type Dataset []Point

// Check returns an error if the dataset can not be used in a chi-square
func (d Dataset) Check() error {
	if len(d) < 1 {
		return errors.New("Dataset is empty")
	}

	for i, p := range d {
		if p.R <= 0 {
			return errors.Errorf("Point %d has radius %f <= 0", i, p.R)
		}
		if p.Sigma() <= 0 || math.IsNaN(p.Sigma()) {
			return errors.Errorf("Point %d has combined error %f", i, p.Sigma())
		}
	}

	return nil
}

// ReadRotationCurve builds a dataset from a curve table (R, v, sigma-,
// sigma+) and a systematics table whose second column is the systematic
// error as a fraction of v. The tables must have the same row count.
func ReadRotationCurve(curve io.Reader, syst io.Reader) (Dataset, error) {
	curveRows, err := ReadColumns(curve, 4)
	if err != nil {
		return nil, errors.Wrap(err, "Could not PARSE rotation curve")
	}

	systRows, err := ReadColumns(syst, 2)
	if err != nil {
		return nil, errors.Wrap(err, "Could not PARSE systematics")
	}

	if len(curveRows) != len(systRows) {
		return nil, errors.Errorf("Rotation curve has %d rows but systematics has %d", len(curveRows), len(systRows))
	}

	ds := make(Dataset, len(curveRows))
	for i, row := range curveRows {
		ds[i] = Point{
			R:          row[0],
			V:          row[1],
			SigmaMinus: row[2],
			SigmaPlus:  row[3],
			Systematic: systRows[i][1] * row[1],
		}
	}

	return ds, nil
}

// LoadFiles reads and checks a dataset from the two given files
func LoadFiles(curvePath string, systPath string) (Dataset, error) {
	cf, err := os.Open(curvePath)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ rotation curve from %s", curvePath)
	}
	defer cf.Close()

	sf, err := os.Open(systPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ systematics from %s", systPath)
	}
	defer sf.Close()

	ds, err := ReadRotationCurve(cf, sf)
	if err != nil {
		return nil, err
	}

	if err = ds.Check(); err != nil {
		return nil, errors.Wrapf(err, "Dataset from %s is not valid", curvePath)
	}

	return ds, nil
}
