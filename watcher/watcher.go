// Package watcher observes filesystem changes on Path sources and
// forwards them as events the engine uses to mutate slideshow queues.
package watcher

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/waybg/waybg"
)

// EventKind classifies a filesystem change relevant to a slideshow
// queue. fsnotify reports a rename as a pair of raw events: Rename on
// the old name and Create on the new one. The old name's Rename surfaces
// here as RenameFrom (treated like Remove by callers); the new name's
// Create surfaces as plain Create, with no distinct Rename-To constant.
type EventKind int

const (
	Create EventKind = iota
	Remove
	RenameFrom
)

// Event names the output whose slideshow queue the change affects, and
// the path involved.
type Event struct {
	Output string
	Kind   EventKind
	Path   string
}

// Watcher multiplexes fsnotify watches for every registered Path
// source onto a single bounded event channel. A full channel drops the
// event (logged) rather than blocking the producer.
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan Event
	done   chan struct{}

	// outputForPath maps a watched directory (or file) to the output
	// whose slideshow queue it feeds.
	outputForPath map[string]string
}

// New creates a Watcher whose event channel has the given buffer size.
func New(bufferSize int) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:           fsw,
		events:        make(chan Event, bufferSize),
		done:          make(chan struct{}),
		outputForPath: make(map[string]string),
	}
	go w.run()
	return w, nil
}

// Watch registers path (file or directory) as the source feeding
// output's slideshow queue. Directories are watched recursively; files
// are watched directly.
func (w *Watcher) Watch(output, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		w.outputForPath[path] = output
		return w.fsw.Add(path)
	}

	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			w.outputForPath[p] = output
			return w.fsw.Add(p)
		}
		return nil
	})
}

// Unwatch removes path (and, if it was a directory, everything beneath
// it) from observation.
func (w *Watcher) Unwatch(path string) {
	for watched := range w.outputForPath {
		if watched == path || isUnder(path, watched) {
			_ = w.fsw.Remove(watched)
			delete(w.outputForPath, watched)
		}
	}
}

func isUnder(parent, candidate string) bool {
	rel, err := filepath.Rel(parent, candidate)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !(len(rel) > 2 && rel[:2] == ".." && rel[2] == filepath.Separator)
}

// Events returns the channel events are delivered on.
func (w *Watcher) Events() <-chan Event { return w.events }

// Close stops the watcher and releases its underlying fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.dispatch(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			waybg.Logger().Error("filesystem watch error", "error", err)
		}
	}
}

func (w *Watcher) dispatch(ev fsnotify.Event) {
	dir := filepath.Dir(ev.Name)
	output, ok := w.outputForPath[dir]
	if !ok {
		output, ok = w.outputForPath[ev.Name]
	}
	if !ok {
		return
	}

	var kind EventKind
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = Create
	case ev.Op&fsnotify.Remove != 0:
		kind = Remove
	case ev.Op&fsnotify.Rename != 0:
		kind = RenameFrom
	default:
		return
	}

	select {
	case w.events <- Event{Output: output, Kind: kind, Path: ev.Name}:
	default:
		waybg.Logger().Warn("watcher event channel full, dropping event",
			"output", output, "path", ev.Name)
	}
}
