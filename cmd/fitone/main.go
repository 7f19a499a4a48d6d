// Command fitone processes a single .sif file and prints the fit results.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"pyroland/internal/app"
	"pyroland/internal/correction"
	"pyroland/internal/greybody"
	"pyroland/internal/mask"
)

func main() {
	out := flag.String("o", "", "write an .asc result bundle to this path")
	disable := flag.String("disable", "", "comma-separated correction names to switch off")
	globalMin := flag.Float64("min", 0, "lower fit bound in nm (0 = none)")
	globalMax := flag.Float64("max", 0, "upper fit bound in nm (0 = none)")
	exclude := flag.String("exclude", "", "excluded regions as min:max pairs, comma separated")
	fiberLength := flag.Float64("fiber-length", 2.0, "fiber length in m")
	mirrors := flag.Int("mirrors", 3, "number of silvered mirrors")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: fitone [options] <spectrum.sif>")
		flag.PrintDefaults()
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
	if *disable != "" {
		for _, name := range strings.Split(*disable, ",") {
			k, ok := correction.KindByName(strings.TrimSpace(name))
			if !ok {
				fmt.Fprintf(os.Stderr, "Unknown correction %q\n", name)
				os.Exit(1)
			}
			reg.SetEnabled(k, false)
		}
	}

	m := mask.New()
	if *globalMin != 0 || *globalMax != 0 {
		var lo, hi *float64
		if *globalMin != 0 {
			lo = globalMin
		}
		if *globalMax != 0 {
			hi = globalMax
		}
		if err := m.SetGlobalRange(lo, hi); err != nil {
			fmt.Fprintf(os.Stderr, "Fit range: %v\n", err)
			os.Exit(1)
		}
	}
	if *exclude != "" {
		for _, pair := range strings.Split(*exclude, ",") {
			parts := strings.SplitN(pair, ":", 2)
			if len(parts) != 2 {
				fmt.Fprintf(os.Stderr, "Bad exclusion %q: want min:max\n", pair)
				os.Exit(1)
			}
			lo, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			hi, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err1 != nil || err2 != nil {
				fmt.Fprintf(os.Stderr, "Bad exclusion %q: want min:max\n", pair)
				os.Exit(1)
			}
			if err := m.AddExclusion(lo, hi); err != nil {
				fmt.Fprintf(os.Stderr, "Exclusion: %v\n", err)
				os.Exit(1)
			}
		}
	}

	session := app.NewSession(reg, greybody.DefaultParams(), app.DefaultConfig().WatcherParams())
	session.SetMask(m)

	bundle, err := session.ProcessFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== %s ===\n", bundle.Source)
	fmt.Printf("Samples:   %d\n", len(bundle.Raw.Wavelengths))
	fmt.Printf("Axis:      %.2f - %.2f nm\n",
		bundle.Raw.Wavelengths[0], bundle.Raw.Wavelengths[len(bundle.Raw.Wavelengths)-1])
	for _, c := range bundle.Corrections {
		state := "off"
		if c.Enabled {
			state = "on"
		}
		fmt.Printf("  [%s] %s\n", state, c.Name)
	}
	if bundle.Fit == nil {
		fmt.Println("Fit:       failed")
	} else {
		fmt.Printf("T:         %.2f +/- %.2f K\n", bundle.Fit.Temperature, bundle.Fit.TemperatureErr)
		fmt.Printf("S:         %.4g +/- %.4g\n", bundle.Fit.Scale, bundle.Fit.ScaleErr)
		fmt.Printf("R2:        %.6f\n", bundle.Fit.RSquared)
		fmt.Printf("Iter:      %d (%d points)\n", bundle.Fit.Iterations, bundle.Fit.Points)
	}

	if *out != "" {
		if err := session.SaveLast(*out); err != nil {
			fmt.Fprintf(os.Stderr, "Save: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *out)
	}
}
