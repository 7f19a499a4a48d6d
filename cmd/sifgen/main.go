// Command sifgen writes synthetic .sif files for testing the pipeline
// without a spectrometer attached.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"pyroland/internal/greybody"
	"pyroland/internal/sif"
	"pyroland/internal/spectrum"
)

func main() {
	temperature := flag.Float64("T", 2000, "body temperature in K")
	scale := flag.Float64("S", 1e-11, "scaling factor")
	pixels := flag.Int("n", 1024, "number of pixels")
	start := flag.Float64("start", 400, "wavelength of pixel 1 in nm")
	step := flag.Float64("step", 0.5, "wavelength step per pixel in nm")
	noise := flag.Float64("noise", 0, "relative gaussian noise amplitude")
	seed := flag.Int64("seed", 1, "noise generator seed")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: sifgen [options] <output.sif>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cal := sif.Calibration{C0: *start, C1: *step}
	rng := rand.New(rand.NewSource(*seed))
	counts := make([]float64, *pixels)
	for i := range counts {
		v := greybody.Planck(cal.WavelengthAt(i+1), *temperature, *scale)
		if *noise > 0 {
			v *= 1 + *noise*rng.NormFloat64()
			if v < 0 {
				v = 0
			}
		}
		counts[i] = v
	}

	f := &sif.File{
		Meta: spectrum.Metadata{
			Detector:         "Newton DU920P_BX2DD",
			ExposureTime:     0.1,
			DetectorTemp:     -80,
			AcquiredAt:       time.Now().UTC(),
			GratingGrooves:   600,
			GratingBlaze:     500,
			CenterWavelength: cal.WavelengthAt(*pixels/2 + 1),
		},
		Calibration: cal,
		Counts:      counts,
	}
	if err := sif.Write(flag.Arg(0), f); err != nil {
		fmt.Fprintf(os.Stderr, "Failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s: %d pixels, %.1f - %.1f nm, T = %g K\n",
		flag.Arg(0), *pixels, cal.WavelengthAt(1), cal.WavelengthAt(*pixels), *temperature)
}
