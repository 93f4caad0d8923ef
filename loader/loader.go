// Package loader runs directory scans and image decodes on a
// background worker goroutine so neither blocks the engine's event
// loop. A Wallpaper falls back to a synchronous scan/decode when no
// Worker is configured, or when a scan is small enough not to warrant
// the round trip.
package loader

import (
	"image"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/waybg/waybg"
	"github.com/waybg/waybg/source"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tiff": true, ".jxl": true,
}

// IsImageFile reports whether path's extension names a format this
// engine can decode.
func IsImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// commandKind distinguishes the two jobs the worker understands.
type commandKind int

const (
	cmdScanDirectory commandKind = iota
	cmdDecodeImage
)

type command struct {
	kind      commandKind
	output    string
	path      string
	recursive bool
}

// Result is a completed job outcome, delivered on Worker's result
// channel. Exactly one of Paths or Image is populated, depending on
// which command produced it; Err is set on failure.
type Result struct {
	Output string
	Path   string
	Paths  []string
	Image  *image.RGBA
	Err    error
}

// Worker is a single background goroutine processing ScanDirectory and
// DecodeImage commands from a queue, publishing results on a channel
// the caller drains non-blockingly.
type Worker struct {
	commands chan command
	results  chan Result
	done     chan struct{}
}

// NewWorker starts the background worker goroutine.
func NewWorker() *Worker {
	w := &Worker{
		commands: make(chan command, 32),
		results:  make(chan Result, 32),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// ScanDirectory requests an async scan of path for image files; the
// result arrives as a Result with Paths populated.
func (w *Worker) ScanDirectory(output, path string, recursive bool) {
	select {
	case w.commands <- command{kind: cmdScanDirectory, output: output, path: path, recursive: recursive}:
	case <-w.done:
	}
}

// DecodeImage requests an async decode of path; the result arrives as
// a Result with Image populated.
func (w *Worker) DecodeImage(output, path string) {
	select {
	case w.commands <- command{kind: cmdDecodeImage, output: output, path: path}:
	case <-w.done:
	}
}

// Results returns the channel completed jobs are delivered on.
func (w *Worker) Results() <-chan Result { return w.results }

// PollResults drains every currently-available result without blocking.
func (w *Worker) PollResults() []Result {
	var out []Result
	for {
		select {
		case r := <-w.results:
			out = append(out, r)
		default:
			return out
		}
	}
}

// Shutdown signals the worker goroutine to stop. It returns without
// waiting for the goroutine to exit; a job already in progress finishes
// and its result is discarded.
func (w *Worker) Shutdown() {
	close(w.done)
}

func (w *Worker) run() {
	for {
		select {
		case <-w.done:
			return
		case cmd := <-w.commands:
			var result Result
			switch cmd.kind {
			case cmdScanDirectory:
				result = scanDirectory(cmd.output, cmd.path, cmd.recursive)
			case cmdDecodeImage:
				result = decodeImage(cmd.output, cmd.path)
			}
			select {
			case w.results <- result:
			case <-w.done:
				return
			}
		}
	}
}

func scanDirectory(output, root string, recursive bool) Result {
	var paths []string
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if !recursive && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if IsImageFile(p) {
			paths = append(paths, p)
		}
		return nil
	}

	if err := filepath.WalkDir(root, walk); err != nil {
		waybg.Logger().Error("directory scan failed", "output", output, "path", root, "error", err)
		return Result{Output: output, Path: root, Err: err}
	}
	return Result{Output: output, Path: root, Paths: paths}
}

func decodeImage(output, path string) Result {
	img, err := source.DecodeImageFile(path)
	if err != nil {
		waybg.Logger().Error("background decode failed", "output", output, "path", path, "error", err)
		return Result{Output: output, Path: path, Err: err}
	}
	return Result{Output: output, Path: path, Image: source.ToRGBA(img)}
}
