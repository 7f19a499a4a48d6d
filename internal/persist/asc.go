// Package persist writes processed spectra and their fits to .asc text
// files: a key/value metadata header, a four-column data table, and a fit
// trailer. Field order is fixed so that re-saving the same result produces
// a byte-identical file.
package persist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pyroland/internal/greybody"
	"pyroland/internal/mask"
	"pyroland/internal/spectrum"
)

// Extension of all saved result files.
const Extension = ".asc"

// SaveError reports an I/O failure while writing a result file. Saving is
// never fatal to the processing loop; the error is surfaced to the user.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("persist: save %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// CorrectionState records whether a named correction was applied to the
// saved spectrum.
type CorrectionState struct {
	Name    string
	Enabled bool
}

// Bundle is everything known about one processed spectrum.
type Bundle struct {
	Source      string // source file name, e.g. "sample.sif"
	Raw         *spectrum.Spectrum
	Corrected   *spectrum.Spectrum
	Fit         *greybody.Result // nil when the fit failed or was skipped
	Mask        mask.Snapshot
	Corrections []CorrectionState
}

// Save writes the bundle to path, overwriting any existing file. The .asc
// extension is enforced. Returns the path actually written.
func Save(b *Bundle, path string) (string, error) {
	if err := validate(b); err != nil {
		return "", &SaveError{Path: path, Err: err}
	}
	if !strings.EqualFold(filepath.Ext(path), Extension) {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + Extension
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &SaveError{Path: path, Err: err}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", &SaveError{Path: path, Err: err}
	}
	w := bufio.NewWriter(f)
	writeBundle(w, b)
	if err := w.Flush(); err != nil {
		f.Close()
		return "", &SaveError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &SaveError{Path: path, Err: err}
	}
	return path, nil
}

// AutoSave derives the destination from the source file name (same stem,
// .asc extension) inside dir and overwrites whatever is there. Repeated
// processing of the same source therefore replaces stale output instead of
// accumulating files.
func AutoSave(b *Bundle, dir string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(b.Source), filepath.Ext(b.Source))
	return Save(b, filepath.Join(dir, stem+Extension))
}

func validate(b *Bundle) error {
	if b.Raw == nil || b.Corrected == nil {
		return fmt.Errorf("bundle missing spectrum data")
	}
	if b.Raw.Len() != b.Corrected.Len() {
		return fmt.Errorf("raw/corrected length mismatch: %d vs %d", b.Raw.Len(), b.Corrected.Len())
	}
	if b.Fit != nil && len(b.Fit.Curve) != b.Raw.Len() {
		return fmt.Errorf("fit curve length %d != %d samples", len(b.Fit.Curve), b.Raw.Len())
	}
	return nil
}

func writeBundle(w *bufio.Writer, b *Bundle) {
	fmt.Fprintln(w, "# --- Acquisition metadata ---")
	for _, p := range b.Raw.Meta.Pairs() {
		fmt.Fprintf(w, "%s: %s\n", p.Key, p.Value)
	}

	fmt.Fprintln(w, "# --- Global range ---")
	fmt.Fprintf(w, "global_xmin: %s\n", optFloat(b.Mask.GlobalMin))
	fmt.Fprintf(w, "global_xmax: %s\n", optFloat(b.Mask.GlobalMax))

	fmt.Fprintln(w, "# --- Excluded regions ---")
	if len(b.Mask.Excluded) == 0 {
		fmt.Fprintln(w, "excluded_regions: none")
	} else {
		for i, r := range b.Mask.Excluded {
			fmt.Fprintf(w, "excluded_region_%d_xmin: %s\n", i+1, num(r.Min))
			fmt.Fprintf(w, "excluded_region_%d_xmax: %s\n", i+1, num(r.Max))
		}
	}

	fmt.Fprintln(w, "# --- Corrections applied ---")
	for _, c := range b.Corrections {
		fmt.Fprintf(w, "%s: %t\n", c.Name, c.Enabled)
	}

	fmt.Fprintln(w, "# --- Spectrum data ---")
	fmt.Fprintln(w, "wavelength_nm,raw_counts,corrected_counts,fit_counts")
	for i, wl := range b.Raw.Wavelengths {
		fit := "n/a"
		if b.Fit != nil {
			fit = num(b.Fit.Curve[i])
		}
		fmt.Fprintf(w, "%s,%s,%s,%s\n", num(wl), num(b.Raw.Counts[i]), num(b.Corrected.Counts[i]), fit)
	}

	fmt.Fprintln(w, "# --- Fit results ---")
	if b.Fit != nil {
		fmt.Fprintf(w, "temperature: %s\n", num(b.Fit.Temperature))
		fmt.Fprintf(w, "temperature_error: %s\n", num(b.Fit.TemperatureErr))
		fmt.Fprintf(w, "S: %s\n", num(b.Fit.Scale))
		fmt.Fprintf(w, "S_error: %s\n", num(b.Fit.ScaleErr))
		fmt.Fprintf(w, "R2: %s\n", num(b.Fit.RSquared))
		fmt.Fprintf(w, "iterations: %d\n", b.Fit.Iterations)
		fmt.Fprintf(w, "points: %d\n", b.Fit.Points)
	} else {
		fmt.Fprintln(w, "temperature: n/a")
		fmt.Fprintln(w, "temperature_error: n/a")
		fmt.Fprintln(w, "S: n/a")
		fmt.Fprintln(w, "S_error: n/a")
		fmt.Fprintln(w, "R2: n/a")
		fmt.Fprintln(w, "iterations: n/a")
		fmt.Fprintln(w, "points: n/a")
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func optFloat(v *float64) string {
	if v == nil {
		return "none"
	}
	return num(*v)
}
