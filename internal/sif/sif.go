// Package sif reads and writes the Andor-style .sif spectrum files produced
// by the acquisition software.
//
// The files carry a short text header followed by raw binary counts:
//
//	line 1: "Andor Technology Multi-Channel File"    signature
//	line 2: detector model                           e.g. "Newton DU920P_BX2DD"
//	line 3: exposure_s detectorTemp_c unixTime       acquisition parameters
//	line 4: grooves_per_mm blaze_nm center_nm        grating configuration
//	line 5: c0 c1 c2 c3                              wavelength calibration
//	line 6: pixel count                              number of samples
//
// followed by that many little-endian float32 counts. The wavelength axis
// is derived from the cubic calibration polynomial evaluated at the 1-based
// pixel index:
//
//	w(p) = c0 + c1*p + c2*p^2 + c3*p^3
package sif

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pyroland/internal/spectrum"
)

// Signature is the first header line of every valid file.
const Signature = "Andor Technology Multi-Channel File"

// Extension is the file suffix the watcher looks for.
const Extension = ".sif"

// ParseError reports a file that could not be read as a spectrum. It covers
// bad signatures, malformed headers, and truncated data sections, which is
// also what a file still being written looks like.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sif: %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("sif: %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Calibration holds the wavelength polynomial coefficients.
type Calibration struct {
	C0, C1, C2, C3 float64
}

// WavelengthAt evaluates the polynomial at the 1-based pixel index.
func (c Calibration) WavelengthAt(pixel int) float64 {
	p := float64(pixel)
	return c.C0 + c.C1*p + c.C2*p*p + c.C3*p*p*p
}

// File is a fully decoded spectrum file.
type File struct {
	Meta        spectrum.Metadata
	Calibration Calibration
	Counts      []float64
}

// Read parses the file at path into a Spectrum.
func Read(path string) (*spectrum.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "open failed", Err: err}
	}
	defer f.Close()

	sf, err := Decode(f)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
			return nil, pe
		}
		return nil, &ParseError{Path: path, Reason: "decode failed", Err: err}
	}
	sf.Meta.SourceFile = filepath.Base(path)

	wavelengths := make([]float64, len(sf.Counts))
	for i := range wavelengths {
		wavelengths[i] = sf.Calibration.WavelengthAt(i + 1)
	}
	s, err := spectrum.New(wavelengths, sf.Counts, sf.Meta)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "bad wavelength axis", Err: err}
	}
	return s, nil
}

// Decode parses a spectrum file from r. The returned metadata has no
// SourceFile set; Read fills it from the path.
func Decode(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)

	sig, err := readLine(br)
	if err != nil {
		return nil, &ParseError{Reason: "missing signature", Err: err}
	}
	if sig != Signature {
		return nil, &ParseError{Reason: fmt.Sprintf("bad signature %q", truncate(sig, 48))}
	}

	detector, err := readLine(br)
	if err != nil {
		return nil, &ParseError{Reason: "missing detector line", Err: err}
	}

	acq, err := readFloats(br, 3, "acquisition line")
	if err != nil {
		return nil, err
	}
	grating, err := readFloats(br, 3, "grating line")
	if err != nil {
		return nil, err
	}
	cal, err := readFloats(br, 4, "calibration line")
	if err != nil {
		return nil, err
	}
	countLine, err := readFloats(br, 1, "pixel count line")
	if err != nil {
		return nil, err
	}
	n := int(countLine[0])
	if n <= 0 || float64(n) != countLine[0] {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid pixel count %g", countLine[0])}
	}

	raw := make([]float32, n)
	if err := binary.Read(br, binary.LittleEndian, raw); err != nil {
		return nil, &ParseError{Reason: "truncated data section", Err: err}
	}
	counts := make([]float64, n)
	for i, v := range raw {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, &ParseError{Reason: fmt.Sprintf("non-finite count at pixel %d", i+1)}
		}
		counts[i] = float64(v)
	}

	return &File{
		Meta: spectrum.Metadata{
			Detector:         detector,
			ExposureTime:     acq[0],
			DetectorTemp:     acq[1],
			AcquiredAt:       time.Unix(int64(acq[2]), 0).UTC(),
			GratingGrooves:   grating[0],
			GratingBlaze:     grating[1],
			CenterWavelength: grating[2],
		},
		Calibration: Calibration{C0: cal[0], C1: cal[1], C2: cal[2], C3: cal[3]},
		Counts:      counts,
	}, nil
}

// Encode writes a spectrum file to w.
func Encode(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n", Signature)
	fmt.Fprintf(bw, "%s\n", f.Meta.Detector)
	fmt.Fprintf(bw, "%g %g %d\n", f.Meta.ExposureTime, f.Meta.DetectorTemp, f.Meta.AcquiredAt.Unix())
	fmt.Fprintf(bw, "%g %g %g\n", f.Meta.GratingGrooves, f.Meta.GratingBlaze, f.Meta.CenterWavelength)
	fmt.Fprintf(bw, "%g %g %g %g\n", f.Calibration.C0, f.Calibration.C1, f.Calibration.C2, f.Calibration.C3)
	fmt.Fprintf(bw, "%d\n", len(f.Counts))

	raw := make([]float32, len(f.Counts))
	for i, v := range f.Counts {
		raw[i] = float32(v)
	}
	if err := binary.Write(bw, binary.LittleEndian, raw); err != nil {
		return fmt.Errorf("sif: write data: %w", err)
	}
	return bw.Flush()
}

// Write encodes f to path, creating parent directories as needed.
func Write(path string, f *File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sif: create dir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sif: create %s: %w", path, err)
	}
	if err := Encode(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readFloats(br *bufio.Reader, n int, what string) ([]float64, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, &ParseError{Reason: "missing " + what, Err: err}
	}
	fields := strings.Fields(line)
	if len(fields) != n {
		return nil, &ParseError{Reason: fmt.Sprintf("%s: want %d fields, got %d", what, n, len(fields))}
	}
	out := make([]float64, n)
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("%s: field %d not numeric", what, i+1), Err: err}
		}
		out[i] = v
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
