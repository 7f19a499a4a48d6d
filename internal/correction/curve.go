package correction

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/interp"
)

// Curve is an immutable tabulated wavelength -> value function with
// piecewise-linear interpolation between table points. Queries outside the
// covered range are clamped to the nearest edge value; this is deliberate
// policy so that a spectrum extending slightly past a calibration table
// still gets a sensible factor instead of a wild extrapolation.
type Curve struct {
	min, max float64
	pl       interp.PiecewiseLinear
}

// NewCurve builds a curve from parallel wavelength/value tables. The
// wavelengths must be strictly increasing and at least two points long.
func NewCurve(wavelengths, values []float64) (*Curve, error) {
	if len(wavelengths) != len(values) {
		return nil, fmt.Errorf("curve: %d wavelengths vs %d values", len(wavelengths), len(values))
	}
	if len(wavelengths) < 2 {
		return nil, fmt.Errorf("curve: need at least 2 table points, got %d", len(wavelengths))
	}
	c := &Curve{min: wavelengths[0], max: wavelengths[len(wavelengths)-1]}
	if err := c.pl.Fit(wavelengths, values); err != nil {
		return nil, fmt.Errorf("curve: %w", err)
	}
	return c, nil
}

// At returns the interpolated value at wavelength w (nm), clamping w to the
// covered range first.
func (c *Curve) At(w float64) float64 {
	if w < c.min {
		w = c.min
	} else if w > c.max {
		w = c.max
	}
	return c.pl.Predict(w)
}

// Domain returns the wavelength range covered by the table.
func (c *Curve) Domain() (min, max float64) { return c.min, c.max }

// readTable parses two-column (or wider) tabulated CSV data. A header row
// is tolerated; stray unit characters in numeric cells are stripped, the
// way the instrument vendors ship these files. col is the zero-based value
// column to extract alongside the wavelength in column 0.
func readTable(r io.Reader, col int) (wavelengths, values []float64, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		row++
		if len(rec) <= col {
			return nil, nil, fmt.Errorf("row %d: want at least %d columns, got %d", row, col+1, len(rec))
		}
		w, werr := parseNumeric(rec[0])
		v, verr := parseNumeric(rec[col])
		if werr != nil || verr != nil {
			if row == 1 {
				// header row
				continue
			}
			return nil, nil, fmt.Errorf("row %d: non-numeric data %q", row, rec)
		}
		wavelengths = append(wavelengths, w)
		values = append(values, v)
	}
	if len(wavelengths) < 2 {
		return nil, nil, fmt.Errorf("only %d usable rows", len(wavelengths))
	}
	for i := 1; i < len(wavelengths); i++ {
		if wavelengths[i] <= wavelengths[i-1] {
			return nil, nil, fmt.Errorf("wavelengths not strictly increasing at row %d", i+1)
		}
	}
	return wavelengths, values, nil
}

// parseNumeric parses a table cell, dropping unit suffixes and other
// stray characters around the number.
func parseNumeric(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
			b.WriteRune(r)
		}
	}
	return strconv.ParseFloat(b.String(), 64)
}
