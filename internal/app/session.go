// Package app wires the watcher, correction pipeline, fitter, and
// persister into a single explicitly-owned session.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"pyroland/internal/correction"
	"pyroland/internal/greybody"
	"pyroland/internal/mask"
	"pyroland/internal/persist"
	"pyroland/internal/sif"
	"pyroland/internal/watcher"
)

// EventType identifies session events delivered to listeners.
type EventType int

const (
	// EventSpectrumProcessed carries a *persist.Bundle after a file was
	// read, corrected, and (possibly) fitted.
	EventSpectrumProcessed EventType = iota
	// EventParseFailed carries the error for a file that could not be
	// read. The file is skipped; watching continues.
	EventParseFailed
	// EventCorrectionFailed carries the error for a spectrum the
	// correction pipeline rejected, such as a zero instrument response.
	// The file is skipped; watching continues.
	EventCorrectionFailed
	// EventFitFailed carries the fit error for a spectrum whose
	// correction stage succeeded. The bundle is still processed with a
	// nil fit.
	EventFitFailed
	// EventWatcherError carries a recoverable watcher failure.
	EventWatcherError
	// EventResultSaved carries the path of a written .asc file.
	EventResultSaved
	// EventSaveFailed carries the persistence error.
	EventSaveFailed
)

// Listener receives session events.
type Listener func(data interface{})

// Session owns the processing state of one running instance. The watcher
// goroutine only signals paths; all parsing, correcting, and fitting
// happens sequentially on the goroutine driving Run, one spectrum at a
// time.
type Session struct {
	registry *correction.Registry
	pipeline *correction.Pipeline
	fitter   *greybody.Fitter
	watch    *watcher.Watcher

	mu          sync.RWMutex
	fitMask     *mask.Mask
	autoSaveDir string
	lastPath    string
	lastBundle  *persist.Bundle
	listeners   map[EventType][]Listener
}

// NewSession builds a session around a loaded correction registry.
func NewSession(reg *correction.Registry, fitParams greybody.Params, watchParams watcher.Params) *Session {
	return &Session{
		registry:  reg,
		pipeline:  correction.NewPipeline(reg),
		fitter:    greybody.NewFitter(fitParams),
		watch:     watcher.New(watchParams),
		fitMask:   mask.New(),
		listeners: make(map[EventType][]Listener),
	}
}

// On registers a listener for the given event type.
func (s *Session) On(event EventType, l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], l)
}

func (s *Session) emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()
	for _, l := range listeners {
		l(data)
	}
}

// Registry exposes the correction registry for enable/disable toggles.
func (s *Session) Registry() *correction.Registry { return s.registry }

// Mask exposes the fit mask for range edits. Edit it from the same
// goroutine that drives Run.
func (s *Session) Mask() *mask.Mask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitMask
}

// SetMask replaces the fit mask, typically with one built from saved
// settings.
func (s *Session) SetMask(m *mask.Mask) {
	if m == nil {
		m = mask.New()
	}
	s.mu.Lock()
	s.fitMask = m
	s.mu.Unlock()
}

// SetAutoSaveDir enables automatic persistence into dir; an empty string
// disables it. When enabling with a result already in memory, that result
// is saved immediately, mirroring the way turning on auto-save in the UI
// flushes the current plot.
func (s *Session) SetAutoSaveDir(dir string) {
	s.mu.Lock()
	s.autoSaveDir = dir
	last := s.lastBundle
	s.mu.Unlock()

	if dir != "" && last != nil {
		s.autoSave(last)
	}
}

// StartWatching begins a watch session on dir.
func (s *Session) StartWatching(dir string) error {
	return s.watch.Start(dir)
}

// StopWatching ends the watch session; no events arrive after it returns.
func (s *Session) StopWatching() { s.watch.Stop() }

// Watcher returns the underlying watch session.
func (s *Session) Watcher() *watcher.Watcher { return s.watch }

// Run consumes watcher events until ctx is canceled or the watch session
// ends. Each ready file is processed strictly sequentially.
func (s *Session) Run(ctx context.Context) {
	events := s.watch.Events()
	if events == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case watcher.FileReady:
				if _, err := s.ProcessFile(ev.Path); err != nil {
					log.Printf("app: %s: %v", ev.Path, err)
				}
			case watcher.Error:
				log.Printf("app: watch folder lost: %v", ev.Err)
				s.emit(EventWatcherError, ev.Err)
			}
		}
	}
}

// ProcessFile runs the full pipeline on one spectrum file: read, correct,
// mask, fit, bundle, auto-save. Parse errors abort processing of the file
// (and are emitted); fit errors still produce a bundle without a fit.
func (s *Session) ProcessFile(path string) (*persist.Bundle, error) {
	raw, err := sif.Read(path)
	if err != nil {
		s.emit(EventParseFailed, err)
		return nil, err
	}

	corrected, err := s.pipeline.ApplyEnabled(raw)
	if err != nil {
		s.emit(EventCorrectionFailed, err)
		return nil, fmt.Errorf("app: correct %s: %w", path, err)
	}

	s.mu.Lock()
	snap := s.fitMask.Snapshot()
	include, _ := s.fitMask.Apply(raw.Wavelengths)
	s.mu.Unlock()

	fit, err := s.fitter.Fit(corrected.Wavelengths, corrected.Counts, include)
	if err != nil {
		// A failed fit is not fatal: the bundle is kept without a model
		// curve and processing continues with the next file.
		s.emit(EventFitFailed, err)
		fit = nil
	}

	bundle := &persist.Bundle{
		Source:      raw.Meta.SourceFile,
		Raw:         raw,
		Corrected:   corrected,
		Fit:         fit,
		Mask:        snap,
		Corrections: s.correctionStates(),
	}

	s.mu.Lock()
	s.lastPath = path
	s.lastBundle = bundle
	autoDir := s.autoSaveDir
	s.mu.Unlock()

	if autoDir != "" {
		s.autoSave(bundle)
	}
	s.emit(EventSpectrumProcessed, bundle)
	return bundle, nil
}

// Reprocess runs the pipeline again on the most recent file, picking up
// correction toggles and mask edits. The refreshed result replaces the
// previous one, including any auto-saved file.
func (s *Session) Reprocess() (*persist.Bundle, error) {
	s.mu.RLock()
	path := s.lastPath
	s.mu.RUnlock()
	if path == "" {
		return nil, fmt.Errorf("app: nothing processed yet")
	}
	return s.ProcessFile(path)
}

// SaveLast writes the most recent bundle to path on user request.
func (s *Session) SaveLast(path string) error {
	s.mu.RLock()
	last := s.lastBundle
	s.mu.RUnlock()
	if last == nil {
		return fmt.Errorf("app: no result to save")
	}
	written, err := persist.Save(last, path)
	if err != nil {
		s.emit(EventSaveFailed, err)
		return err
	}
	s.emit(EventResultSaved, written)
	return nil
}

// LastBundle returns the most recently processed result, or nil.
func (s *Session) LastBundle() *persist.Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBundle
}

func (s *Session) autoSave(b *persist.Bundle) {
	s.mu.RLock()
	dir := s.autoSaveDir
	s.mu.RUnlock()
	written, err := persist.AutoSave(b, dir)
	if err != nil {
		log.Printf("app: auto-save failed: %v", err)
		s.emit(EventSaveFailed, err)
		return
	}
	s.emit(EventResultSaved, written)
}

func (s *Session) correctionStates() []persist.CorrectionState {
	states := make([]persist.CorrectionState, 0, len(correction.Kinds()))
	for _, k := range correction.Kinds() {
		states = append(states, persist.CorrectionState{
			Name:    k.Name(),
			Enabled: s.registry.Enabled(k),
		})
	}
	return states
}
