// Package main provides the entry point for the pyroland pyrometry service.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"pyroland/internal/app"
	"pyroland/internal/correction"
	"pyroland/internal/greybody"
	"pyroland/internal/mask"
	"pyroland/internal/persist"
	"pyroland/internal/version"
)

const appTitle = "pyroland"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	watchDir := flag.String("dir", "", "folder to watch for new .sif files")
	autoSaveDir := flag.String("autosave", "", "folder for automatic .asc result files")
	configPath := flag.String("config", app.DefaultConfigPath(), "settings file")
	disable := flag.String("disable", "", "comma-separated correction names to switch off")
	globalMin := flag.Float64("min", 0, "lower fit bound in nm (0 = none)")
	globalMax := flag.Float64("max", 0, "upper fit bound in nm (0 = none)")
	exclude := flag.String("exclude", "", "excluded regions as min:max pairs, comma separated")
	fiberLength := flag.Float64("fiber-length", 0, "fiber length in m (0 = keep configured value)")
	flag.Parse()

	log.Printf("Starting %s v%s", appTitle, version.Version)

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Settings: %v (using defaults)", err)
	}
	applyFlags(&cfg, *watchDir, *autoSaveDir, *disable, *globalMin, *globalMax, *exclude, *fiberLength)

	if cfg.WatchDir == "" {
		log.Fatalf("No watch folder: pass -dir or set watch_dir in %s", *configPath)
	}

	reg, err := correction.Default(cfg.CorrectionParams())
	if err != nil {
		log.Fatalf("Calibration data: %v", err)
	}
	if err := cfg.ApplyDisabled(reg); err != nil {
		log.Fatalf("Settings: %v", err)
	}
	m, err := cfg.BuildMask()
	if err != nil {
		log.Fatalf("Fit mask: %v", err)
	}

	session := app.NewSession(reg, greybody.DefaultParams(), cfg.WatcherParams())
	session.SetMask(m)
	if cfg.AutoSaveDir != "" {
		session.SetAutoSaveDir(cfg.AutoSaveDir)
	}

	session.On(app.EventSpectrumProcessed, func(data interface{}) {
		b := data.(*persist.Bundle)
		if b.Fit != nil {
			log.Printf("%s: T = %.1f K (R2 = %.4f, %d points)",
				b.Source, b.Fit.Temperature, b.Fit.RSquared, b.Fit.Points)
		} else {
			log.Printf("%s: processed without a fit", b.Source)
		}
	})
	session.On(app.EventFitFailed, func(data interface{}) {
		log.Printf("Fit failed: %v", data.(error))
	})
	session.On(app.EventResultSaved, func(data interface{}) {
		log.Printf("Saved %s", data.(string))
	})
	session.On(app.EventSaveFailed, func(data interface{}) {
		log.Printf("Save failed: %v", data.(error))
	})

	if err := session.StartWatching(cfg.WatchDir); err != nil {
		log.Fatalf("Watch %s: %v", cfg.WatchDir, err)
	}
	log.Printf("Watching %s", cfg.WatchDir)

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("Shutting down")
		session.StopWatching()
		cancel()
	}()

	session.Run(ctx)
}

// applyFlags folds command line overrides into the loaded settings.
func applyFlags(cfg *app.Config, watchDir, autoSaveDir, disable string, globalMin, globalMax float64, exclude string, fiberLength float64) {
	if watchDir != "" {
		cfg.WatchDir = watchDir
	}
	if autoSaveDir != "" {
		cfg.AutoSaveDir = autoSaveDir
	}
	if disable != "" {
		for _, name := range strings.Split(disable, ",") {
			cfg.DisabledCorrections = append(cfg.DisabledCorrections, strings.TrimSpace(name))
		}
	}
	if globalMin != 0 {
		v := globalMin
		cfg.GlobalMin = &v
	}
	if globalMax != 0 {
		v := globalMax
		cfg.GlobalMax = &v
	}
	if exclude != "" {
		for _, pair := range strings.Split(exclude, ",") {
			parts := strings.SplitN(pair, ":", 2)
			if len(parts) != 2 {
				log.Fatalf("Bad exclusion %q: want min:max", pair)
			}
			lo, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			hi, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err1 != nil || err2 != nil {
				log.Fatalf("Bad exclusion %q: want min:max", pair)
			}
			cfg.ExcludedRegions = append(cfg.ExcludedRegions, mask.Range{Min: lo, Max: hi})
		}
	}
	if fiberLength != 0 {
		cfg.FiberLengthM = fiberLength
	}
}
