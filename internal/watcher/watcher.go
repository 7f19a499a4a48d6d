// Package watcher monitors a folder for newly completed spectrum files.
//
// Change notification comes from fsnotify; a ticker-driven stability gate
// re-stats each candidate until its size and modification time stop
// changing, so files still being written by the instrument software are
// not handed to the parser. Each distinct filename produces at most one
// event per watch session.
package watcher

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// State of a watch session.
type State int

const (
	// Idle means no folder is being watched.
	Idle State = iota
	// Watching means the session is subscribed to a folder.
	Watching
)

// EventType classifies watcher events.
type EventType int

const (
	// FileReady reports a new spectrum file whose contents have
	// stabilized on disk.
	FileReady EventType = iota
	// Error reports a recoverable watch failure, such as the folder
	// disappearing. The watcher returns to Idle afterwards.
	Error
)

// Event is delivered on the watcher's event channel. The channel is closed
// when the session ends, either by Stop or after an Error.
type Event struct {
	Type EventType
	Path string
	Err  error
}

// Params configures the stability gate and the fallback poll.
type Params struct {
	// StabilityInterval separates two size/mtime checks of a candidate.
	StabilityInterval time.Duration
	// StabilityRetries bounds how many unstable checks a candidate
	// survives before it is dropped with a warning.
	StabilityRetries int
	// PollInterval drives the directory rescan that catches files
	// fsnotify missed and detects a vanished folder.
	PollInterval time.Duration
}

// DefaultParams returns the standard gate configuration.
func DefaultParams() Params {
	return Params{
		StabilityInterval: 500 * time.Millisecond,
		StabilityRetries:  10,
		PollInterval:      time.Second,
	}
}

// candidate is a file waiting to pass the stability gate.
type candidate struct {
	size   int64
	mtime  time.Time
	checks int
}

// Watcher is a single-folder watch session. Construct with New, then
// Start/Stop explicitly; the zero value is not usable.
type Watcher struct {
	params Params

	mu        sync.Mutex
	state     State
	dir       string
	processed map[string]struct{}
	events    chan Event
	stop      chan struct{}
	done      chan struct{}
}

// New creates an idle watcher.
func New(params Params) *Watcher {
	def := DefaultParams()
	if params.StabilityInterval <= 0 {
		params.StabilityInterval = def.StabilityInterval
	}
	if params.StabilityRetries <= 0 {
		params.StabilityRetries = def.StabilityRetries
	}
	if params.PollInterval <= 0 {
		params.PollInterval = def.PollInterval
	}
	return &Watcher{params: params, state: Idle}
}

// State returns the current session state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Events returns the channel of the current session. It is nil before the
// first Start.
func (w *Watcher) Events() <-chan Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

// Start begins watching dir for new spectrum files. Files already present
// are reported too, once stable. Starting clears the processed set of any
// previous session.
func (w *Watcher) Start(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Watching {
		return fmt.Errorf("watcher: already watching %s", w.dir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watcher: %s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watcher: %w", err)
	}

	w.dir = dir
	w.processed = make(map[string]struct{})
	w.events = make(chan Event, 16)
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.state = Watching

	go w.run(fsw, w.dir, w.events, w.stop, w.done)
	return nil
}

// Stop ends the session. It is synchronous: once Stop returns the watch
// goroutine has exited and no further events will be emitted. The event
// channel is closed. Stopping an idle watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.state != Watching {
		w.mu.Unlock()
		return
	}
	stop, done := w.stop, w.done
	w.mu.Unlock()

	close(stop)
	<-done

	w.mu.Lock()
	w.state = Idle
	w.mu.Unlock()
}

// Processed reports whether the filename was already handled this session.
func (w *Watcher) Processed(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.processed[name]
	return ok
}

// run is the watch goroutine: it owns the candidate set and is the only
// sender on the event channel.
func (w *Watcher) run(fsw *fsnotify.Watcher, dir string, events chan Event, stop, done chan struct{}) {
	defer close(done)
	defer close(events)
	defer fsw.Close()

	pending := make(map[string]*candidate)
	stability := time.NewTicker(w.params.StabilityInterval)
	defer stability.Stop()
	poll := time.NewTicker(w.params.PollInterval)
	defer poll.Stop()

	w.scan(dir, pending)

	for {
		select {
		case <-stop:
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.consider(ev.Name, pending)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: %s: %v", dir, err)

		case <-poll.C:
			if _, err := os.Stat(dir); err != nil {
				// Folder vanished or became unreadable: report and go
				// idle instead of crashing the session consumer.
				w.mu.Lock()
				w.state = Idle
				w.mu.Unlock()
				select {
				case events <- Event{Type: Error, Path: dir, Err: err}:
				case <-stop:
				}
				return
			}
			w.scan(dir, pending)

		case <-stability.C:
			if !w.checkPending(pending, events, stop) {
				return
			}
		}
	}
}

// consider adds path as a stability candidate if it is an unprocessed
// spectrum file.
func (w *Watcher) consider(path string, pending map[string]*candidate) {
	name := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(name), ".sif") {
		return
	}
	w.mu.Lock()
	_, seen := w.processed[name]
	w.mu.Unlock()
	if seen {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if c, ok := pending[name]; ok {
		// A write racing the gate resets the observation but keeps the
		// retry count so a file that never settles is still dropped.
		c.size = info.Size()
		c.mtime = info.ModTime()
		return
	}
	pending[name] = &candidate{size: info.Size(), mtime: info.ModTime()}
}

// scan sweeps the directory for spectrum files not yet pending or
// processed.
func (w *Watcher) scan(dir string, pending map[string]*candidate) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := pending[e.Name()]; ok {
			continue
		}
		w.consider(filepath.Join(dir, e.Name()), pending)
	}
}

// checkPending advances the stability gate: a candidate whose size and
// mtime match the previous observation is ready; one that keeps changing
// beyond the retry budget is dropped with a warning. Returns false when a
// stop was observed while delivering an event.
func (w *Watcher) checkPending(pending map[string]*candidate, events chan Event, stop chan struct{}) bool {
	for name, c := range pending {
		path := filepath.Join(w.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			delete(pending, name)
			continue
		}
		if info.Size() == c.size && info.ModTime().Equal(c.mtime) {
			delete(pending, name)
			w.mu.Lock()
			w.processed[name] = struct{}{}
			w.mu.Unlock()
			select {
			case events <- Event{Type: FileReady, Path: path}:
			case <-stop:
				return false
			}
			continue
		}
		c.size = info.Size()
		c.mtime = info.ModTime()
		c.checks++
		if c.checks >= w.params.StabilityRetries {
			log.Printf("watcher: %s never stabilized after %d checks, dropping", path, c.checks)
			delete(pending, name)
		}
	}
	return true
}
