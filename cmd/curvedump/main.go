// Command curvedump prints the tabulated instrument corrections as CSV so
// the calibration data can be sanity-checked after an update.
package main

import (
	"flag"
	"fmt"
	"os"

	"pyroland/internal/correction"
)

func main() {
	start := flag.Float64("start", 300, "first wavelength in nm")
	end := flag.Float64("end", 1100, "last wavelength in nm")
	step := flag.Float64("step", 10, "wavelength step in nm")
	fiberLength := flag.Float64("fiber-length", 2.0, "fiber length in m")
	mirrors := flag.Int("mirrors", 3, "number of silvered mirrors")
	flag.Parse()

	if *step <= 0 || *end < *start {
		fmt.Fprintln(os.Stderr, "Bad range: need start <= end and step > 0")
		os.Exit(1)
	}

	reg, err := correction.Default(correction.Params{
		FiberLengthM: *fiberLength,
		MirrorCount:  *mirrors,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration data: %v\n", err)
		os.Exit(1)
	}

	fmt.Print("wavelength_nm")
	for _, k := range correction.Kinds() {
		fmt.Printf(",%q", k.Name())
	}
	fmt.Println()

	for w := *start; w <= *end; w += *step {
		fmt.Printf("%g", w)
		for _, k := range correction.Kinds() {
			factor, err := reg.FactorAt(k, w)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s at %g nm: %v\n", k.Name(), w, err)
				os.Exit(1)
			}
			fmt.Printf(",%g", factor)
		}
		fmt.Println()
	}
}
