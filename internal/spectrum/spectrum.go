// Package spectrum defines the immutable spectrum type shared by the
// acquisition, correction, and fitting stages.
package spectrum

import (
	"fmt"
	"strconv"
	"time"
)

// Metadata holds the acquisition parameters recorded by the instrument.
type Metadata struct {
	SourceFile       string    // original .sif file name
	Detector         string    // detector model string
	ExposureTime     float64   // seconds
	DetectorTemp     float64   // degrees Celsius
	AcquiredAt       time.Time // acquisition timestamp
	GratingGrooves   float64   // lines per mm
	GratingBlaze     float64   // blaze wavelength in nm
	CenterWavelength float64   // nm
}

// Pair is a single key/value entry of the metadata header.
type Pair struct {
	Key   string
	Value string
}

// Pairs returns the metadata as key/value pairs in a fixed order, so that
// saved files of the same spectrum stay byte-identical across runs.
func (m Metadata) Pairs() []Pair {
	return []Pair{
		{"source_file", m.SourceFile},
		{"detector", m.Detector},
		{"exposure_time_s", formatFloat(m.ExposureTime)},
		{"detector_temperature_c", formatFloat(m.DetectorTemp)},
		{"acquired_at", m.AcquiredAt.UTC().Format(time.RFC3339)},
		{"grating_grooves_per_mm", formatFloat(m.GratingGrooves)},
		{"grating_blaze_nm", formatFloat(m.GratingBlaze)},
		{"center_wavelength_nm", formatFloat(m.CenterWavelength)},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Spectrum is an ordered wavelength/intensity series with acquisition
// metadata. Treat it as immutable: pipeline stages return new values
// instead of mutating counts in place.
type Spectrum struct {
	Wavelengths []float64 // nm, strictly increasing
	Counts      []float64
	Meta        Metadata
}

// New validates the series and builds a Spectrum. Wavelengths must be
// strictly increasing and the same length as counts.
func New(wavelengths, counts []float64, meta Metadata) (*Spectrum, error) {
	if len(wavelengths) != len(counts) {
		return nil, fmt.Errorf("spectrum: wavelength/count length mismatch: %d vs %d",
			len(wavelengths), len(counts))
	}
	if len(wavelengths) == 0 {
		return nil, fmt.Errorf("spectrum: empty series")
	}
	for i := 1; i < len(wavelengths); i++ {
		if wavelengths[i] <= wavelengths[i-1] {
			return nil, fmt.Errorf("spectrum: wavelengths not strictly increasing at index %d (%g after %g)",
				i, wavelengths[i], wavelengths[i-1])
		}
	}
	return &Spectrum{Wavelengths: wavelengths, Counts: counts, Meta: meta}, nil
}

// Len returns the number of samples.
func (s *Spectrum) Len() int { return len(s.Wavelengths) }

// WithCounts returns a new Spectrum sharing the wavelength axis and
// metadata but carrying the given counts. The slice is not copied; callers
// hand over ownership.
func (s *Spectrum) WithCounts(counts []float64) (*Spectrum, error) {
	if len(counts) != len(s.Wavelengths) {
		return nil, fmt.Errorf("spectrum: replacement counts length %d != %d samples",
			len(counts), len(s.Wavelengths))
	}
	return &Spectrum{Wavelengths: s.Wavelengths, Counts: counts, Meta: s.Meta}, nil
}
