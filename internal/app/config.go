package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pyroland/internal/correction"
	"pyroland/internal/mask"
	"pyroland/internal/watcher"
)

// Config holds the persisted application settings.
type Config struct {
	WatchDir    string `json:"watch_dir,omitempty"`
	AutoSaveDir string `json:"auto_save_dir,omitempty"`

	// DisabledCorrections lists correction display names the user has
	// switched off; everything else starts enabled.
	DisabledCorrections []string `json:"disabled_corrections,omitempty"`

	FiberLengthM float64 `json:"fiber_length_m"`
	MirrorCount  int     `json:"mirror_count"`

	GlobalMin       *float64     `json:"global_min,omitempty"`
	GlobalMax       *float64     `json:"global_max,omitempty"`
	ExcludedRegions []mask.Range `json:"excluded_regions,omitempty"`

	StabilityIntervalMS int `json:"stability_interval_ms"`
	StabilityRetries    int `json:"stability_retries"`
	PollIntervalMS      int `json:"poll_interval_ms"`
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	cp := correction.DefaultParams()
	wp := watcher.DefaultParams()
	return Config{
		FiberLengthM:        cp.FiberLengthM,
		MirrorCount:         cp.MirrorCount,
		StabilityIntervalMS: int(wp.StabilityInterval / time.Millisecond),
		StabilityRetries:    wp.StabilityRetries,
		PollIntervalMS:      int(wp.PollInterval / time.Millisecond),
	}
}

// LoadConfig reads settings from path, returning defaults when the file
// does not exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the settings to path, creating parent directories.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultConfigPath returns the standard settings location under the user
// config directory.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "pyroland", "settings.json")
}

// CorrectionParams converts the settings to registry parameters.
func (c Config) CorrectionParams() correction.Params {
	return correction.Params{
		FiberLengthM: c.FiberLengthM,
		MirrorCount:  c.MirrorCount,
	}
}

// WatcherParams converts the settings to watcher parameters.
func (c Config) WatcherParams() watcher.Params {
	return watcher.Params{
		StabilityInterval: time.Duration(c.StabilityIntervalMS) * time.Millisecond,
		StabilityRetries:  c.StabilityRetries,
		PollInterval:      time.Duration(c.PollIntervalMS) * time.Millisecond,
	}
}

// BuildMask constructs the fit mask described by the settings.
func (c Config) BuildMask() (*mask.Mask, error) {
	m := mask.New()
	if err := m.SetGlobalRange(c.GlobalMin, c.GlobalMax); err != nil {
		return nil, err
	}
	for _, r := range c.ExcludedRegions {
		if err := m.AddExclusion(r.Min, r.Max); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ApplyDisabled switches off the corrections named in the settings.
func (c Config) ApplyDisabled(reg *correction.Registry) error {
	for _, name := range c.DisabledCorrections {
		k, ok := correction.KindByName(name)
		if !ok {
			return fmt.Errorf("config: unknown correction %q", name)
		}
		if err := reg.SetEnabled(k, false); err != nil {
			return err
		}
	}
	return nil
}
