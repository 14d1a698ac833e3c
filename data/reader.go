package data

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FieldReader is just a simple reader for whitespace-delimited rows.
type FieldReader struct {
	Pos    int
	Fields []string
}

// NewFieldReader constructs a new field reader around the given data
func NewFieldReader(data string) *FieldReader {
	return &FieldReader{0, strings.Fields(data)}
}

// Read returns the next space-delimited field/token
func (fr *FieldReader) Read() (string, error) {
	if fr.Pos >= len(fr.Fields) {
		return "", io.EOF
	}
	p := fr.Pos
	fr.Pos++
	return fr.Fields[p], nil
}

// ReadFloat reads the next token as a float
func (fr *FieldReader) ReadFloat() (float64, error) {
	s, err := fr.Read()
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(s, 64)
}

// ReadColumns reads every data row from r. Blank lines and lines starting
// with '#' are skipped. Each row must have at least minCols numeric fields;
// only the first minCols are kept.
func ReadColumns(r io.Reader, minCols int) ([][]float64, error) {
	if minCols < 1 {
		return nil, errors.Errorf("Invalid column count %d", minCols)
	}

	rows := make([][]float64, 0, 64)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		ln := strings.TrimSpace(scanner.Text())
		if len(ln) < 1 || ln[0] == '#' {
			continue
		}

		fr := NewFieldReader(ln)
		if len(fr.Fields) < minCols {
			return nil, errors.Errorf("Line %d: found %d fields, need %d", lineNo, len(fr.Fields), minCols)
		}

		row := make([]float64, minCols)
		for i := range row {
			f, err := fr.ReadFloat()
			if err != nil {
				return nil, errors.Wrapf(err, "Line %d: column %d is not a number", lineNo, i+1)
			}
			row[i] = f
		}
		rows = append(rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Could not READ columns")
	}

	return rows, nil
}
