// Package wallpaper implements the per-output state machine: it owns
// the active content source, the slideshow queue for directory
// sources, and the scaled-raster draw path. A Wallpaper never arms its
// own timers; the engine is the authoritative timer source and calls
// RotationInterval/AnimationFrameDuration to learn the next deadline
// and Rotate/AnimationTick to advance state, so the observable timing
// behavior matches per-Wallpaper timers while all scheduling logic
// lives in one place.
//
// Invariants (mirrors the data model, per output):
//   - Exactly one active source, held in entry.Source.
//   - currentImage is non-nil only for a PathSource, and only once
//     decoded.
//   - animatedSource is non-nil only for Video/Animated/Shader
//     sources; it is released before being replaced.
//   - imageQueue is non-empty only for a directory PathSource; its
//     head is the next rotation candidate and its tail is the
//     currently-shown path, forming a ring.
//   - Release drops both the animated source and any filesystem watch.
package wallpaper

import (
	"fmt"
	"image"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/waybg/waybg"
	"github.com/waybg/waybg/cache"
	"github.com/waybg/waybg/config"
	"github.com/waybg/waybg/internal/xdgpaths"
	"github.com/waybg/waybg/layer"
	"github.com/waybg/waybg/loader"
	"github.com/waybg/waybg/scaler"
	"github.com/waybg/waybg/source"
	"github.com/waybg/waybg/watcher"
)

// Deps bundles the shared collaborators a Wallpaper may use. All
// fields except nothing are optional: a nil Watcher disables live
// filesystem updates, a nil LoaderWorker disables background scans and
// decodes (the Wallpaper falls back to synchronous work), a nil
// StateStore disables resume persistence, and GPUProvider is only
// consulted for Shader sources.
type Deps struct {
	Cache        *cache.Cache
	Watcher      *watcher.Watcher
	LoaderWorker *loader.Worker
	// LoaderThreshold is the directory entry count above which
	// LoadImages delegates the scan to LoaderWorker instead of
	// walking synchronously. Zero means always synchronous.
	LoaderThreshold int
	StateStore      config.StateStore
	GPUProvider     gpucontext.DeviceProvider
}

// Wallpaper is the runtime state machine for a single output (or the
// "all" fallback entry).
type Wallpaper struct {
	mu sync.Mutex

	output string
	entry  config.Entry

	currentPath  string
	currentImage *image.RGBA
	imageQueue   []string

	colorSource    *source.ColorSource
	animatedSource source.Source

	watchedPath string

	cache           *cache.Cache
	watch           *watcher.Watcher
	loaderWorker    *loader.Worker
	loaderThreshold int
	stateStore      config.StateStore
	gpuProvider     gpucontext.DeviceProvider

	dirty bool
}

// New constructs a Wallpaper for output with the given entry. Call
// LoadImages to populate its initial state before the first Draw.
func New(output string, entry config.Entry, deps Deps) *Wallpaper {
	return &Wallpaper{
		output:          output,
		entry:           entry,
		cache:           deps.Cache,
		watch:           deps.Watcher,
		loaderWorker:    deps.LoaderWorker,
		loaderThreshold: deps.LoaderThreshold,
		stateStore:      deps.StateStore,
		gpuProvider:     deps.GPUProvider,
	}
}

// Output returns the output name this Wallpaper renders for.
func (w *Wallpaper) Output() string { return w.output }

// IsDirty reports whether any layer needs a redraw.
func (w *Wallpaper) IsDirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// MarkDirty forces the next Draw to redraw every layer.
func (w *Wallpaper) MarkDirty() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty = true
}

// LoadImages dispatches on entry.Source, releasing any previously
// active producer first. For a directory PathSource it builds the
// slideshow queue (delegating the scan to the loader worker above
// loaderThreshold entries, via HandleLoaderResult); for a file
// PathSource the file is the current source with no queue; for Color
// it builds a generator; for Video/Animated/Shader it instantiates the
// corresponding producer as animatedSource.
func (w *Wallpaper) LoadImages() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.releaseActiveLocked()

	switch src := w.entry.Source.(type) {
	case config.PathSource:
		return w.loadPathLocked(src.Path)

	case config.ColorSourceConfig:
		w.colorSource = source.NewColorSource(source.Color{Single: src.Single, Gradient: src.Gradient})
		w.dirty = true
		return nil

	case config.VideoSourceConfig:
		w.animatedSource = source.NewVideo(source.VideoConfig{
			Path:          src.Path,
			LoopPlayback:  src.Loop,
			PlaybackSpeed: src.Speed,
			HWAccel:       src.HWAccel,
		})
		w.dirty = true
		return nil

	case config.AnimatedSourceConfig:
		cfg := source.AnimatedConfig{Path: src.Path}
		if src.FPSLimit != nil {
			cfg.FPSLimit = *src.FPSLimit
		}
		if src.LoopCount != nil {
			cfg.LoopCount = *src.LoopCount
		}
		w.animatedSource = source.NewAnimated(cfg)
		w.dirty = true
		return nil

	case config.ShaderSourceConfig:
		sc := source.ShaderConfig{Provider: w.gpuProvider, FPSLimit: src.FPSLimit}
		if src.CustomPath != nil {
			sc.CustomPath = *src.CustomPath
		}
		if src.Preset != nil {
			sc.Preset = *src.Preset
		}
		sh, err := source.NewShader(sc)
		if err != nil {
			return err
		}
		w.animatedSource = sh
		w.dirty = true
		return nil

	default:
		return fmt.Errorf("wallpaper: unrecognized source type %T", src)
	}
}

func (w *Wallpaper) loadPathLocked(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		w.currentPath = path
		w.imageQueue = nil
		w.persistCurrentLocked(path)
		w.dirty = true
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	recursive := isUnderBackgroundsDir(path)

	if w.loaderWorker != nil && w.loaderThreshold > 0 && len(entries) > w.loaderThreshold {
		w.loaderWorker.ScanDirectory(w.output, path, recursive)
		w.registerWatchLocked(path)
		return nil
	}

	paths, err := walkDirectorySync(path, recursive)
	if err != nil {
		return err
	}
	w.registerWatchLocked(path)
	w.installQueueLocked(paths)
	return nil
}

// installQueueLocked sorts paths per the configured sampling method,
// rotates the persisted resume path (if any) to the front, pops it as
// the current source, and pushes it to the tail to form the ring.
func (w *Wallpaper) installQueueLocked(paths []string) {
	if len(paths) == 0 {
		// A directory with zero images leaves the wallpaper unchanged.
		return
	}
	sortPaths(paths, w.entry.SamplingMethod)

	if w.stateStore != nil {
		if resume, ok := w.stateStore.Current(w.output); ok {
			rotateToFront(paths, resume)
		}
	}

	current := paths[0]
	queue := append(append([]string{}, paths[1:]...), current)

	w.currentPath = current
	w.currentImage = nil
	w.imageQueue = queue
	w.persistCurrentLocked(current)
	w.dirty = true

	w.prefetchNextLocked()
}

func (w *Wallpaper) registerWatchLocked(path string) {
	if w.watch == nil {
		return
	}
	if err := w.watch.Watch(w.output, path); err != nil {
		waybg.Logger().Warn("failed to watch path source", "output", w.output, "path", path, "error", err)
		return
	}
	w.watchedPath = path
}

func (w *Wallpaper) persistCurrentLocked(path string) {
	if w.stateStore == nil {
		return
	}
	if err := w.stateStore.SetCurrent(w.output, path); err != nil {
		waybg.Logger().Warn("failed to persist resume state", "output", w.output, "path", path, "error", err)
	}
}

func (w *Wallpaper) prefetchNextLocked() {
	if w.loaderWorker == nil || len(w.imageQueue) == 0 {
		return
	}
	w.loaderWorker.DecodeImage(w.output, w.imageQueue[0])
}

// HandleLoaderResult processes a completed background job. The engine
// calls this for every loader.Result whose Output matches this
// Wallpaper's output.
func (w *Wallpaper) HandleLoaderResult(res loader.Result) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if res.Err != nil {
		waybg.Logger().Warn("background loader job failed", "output", w.output, "path", res.Path, "error", res.Err)
		return
	}

	switch {
	case res.Paths != nil:
		w.installQueueLocked(res.Paths)
	case res.Image != nil:
		if w.cache != nil {
			w.cache.Insert(res.Path, res.Image, int64(len(res.Image.Pix)))
		}
		if res.Path == w.currentPath {
			w.currentImage = res.Image
			w.dirty = true
		}
	}
}

// RotationInterval reports the configured rotation period for a
// directory PathSource, or false if rotation does not apply.
func (w *Wallpaper) RotationInterval() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entry.Source.(config.PathSource); !ok {
		return 0, false
	}
	if len(w.imageQueue) == 0 || w.entry.RotationFrequencySeconds <= 0 {
		return 0, false
	}
	return time.Duration(w.entry.RotationFrequencySeconds) * time.Second, true
}

// Rotate pops the queue head, makes it the current path, persists
// resume state, and pushes it to the tail. It clears the in-memory
// decoded image so the next draw re-decodes (the shared cache may
// still hold it from a prior rotation).
func (w *Wallpaper) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.entry.Source.(config.PathSource); !ok {
		return nil
	}
	if len(w.imageQueue) == 0 {
		return nil
	}

	next := w.imageQueue[0]
	rest := append([]string{}, w.imageQueue[1:]...)
	w.imageQueue = append(rest, next)
	w.currentPath = next
	w.currentImage = nil
	w.persistCurrentLocked(next)
	w.dirty = true
	w.prefetchNextLocked()
	return nil
}

// AnimationFrameDuration reports the active animated producer's
// current frame duration, or false if there is none.
func (w *Wallpaper) AnimationFrameDuration() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.animatedSource == nil {
		return 0, false
	}
	return w.animatedSource.FrameDuration(), true
}

// AnimationTick marks every layer dirty; the engine follows it with a
// Draw and reschedules from the producer's (possibly changed)
// FrameDuration.
func (w *Wallpaper) AnimationTick() {
	w.mu.Lock()
	w.dirty = true
	w.mu.Unlock()
}

// HandleWatchEvent mutates the slideshow queue in response to a
// filesystem change. Create appends an unseen path to the queue head;
// Remove and RenameFrom drop any matching path.
func (w *Wallpaper) HandleWatchEvent(ev watcher.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.entry.Source.(config.PathSource); !ok {
		return
	}

	switch ev.Kind {
	case watcher.Create:
		if !loader.IsImageFile(ev.Path) {
			return
		}
		for _, p := range w.imageQueue {
			if p == ev.Path {
				return
			}
		}
		w.imageQueue = append([]string{ev.Path}, w.imageQueue...)

	case watcher.Remove, watcher.RenameFrom:
		filtered := w.imageQueue[:0]
		for _, p := range w.imageQueue {
			if p != ev.Path {
				filtered = append(filtered, p)
			}
		}
		w.imageQueue = filtered
	}
}

// UpdateConfig applies the minimal changes needed to move from the
// Wallpaper's current entry to newEntry: a source change triggers a
// full LoadImages reload; otherwise only the in-memory entry is
// swapped and a scaling/background-color change marks layers dirty.
// Not on the mandatory hot path — by default the engine reloads a
// wallpaper wholesale on any config change; this method exists for an
// embedder that wants incremental reconfiguration.
func (w *Wallpaper) UpdateConfig(newEntry config.Entry) error {
	w.mu.Lock()
	oldEntry := w.entry
	sourceChanged := !reflect.DeepEqual(oldEntry.Source, newEntry.Source)
	w.entry = newEntry
	if !sourceChanged {
		if oldEntry.ScalingMode != newEntry.ScalingMode || oldEntry.BGColor != newEntry.BGColor {
			w.dirty = true
		}
	}
	w.mu.Unlock()

	if sourceChanged {
		return w.LoadImages()
	}
	return nil
}

// Draw renders the current frame and attaches it to every surface in
// surfaces, reusing one raster across surfaces that share the same
// pixel dimensions. Per-layer errors are logged and that layer is
// skipped; the draw pass as a whole always clears the dirty flag,
// matching the propagation rule that a failed draw leaves the
// Wallpaper intact for the next tick to retry.
func (w *Wallpaper) Draw(surfaces []layer.Surface) {
	w.mu.Lock()
	defer w.mu.Unlock()

	type dims struct{ w, h int }
	rasters := make(map[dims]*image.RGBA)

	for _, surf := range surfaces {
		out := surf.Output()
		pixW, pixH := pixelDims(out)
		if pixW <= 0 || pixH <= 0 {
			continue
		}

		key := dims{pixW, pixH}
		raster, ok := rasters[key]
		if !ok {
			r, err := w.renderLocked(pixW, pixH)
			if err != nil {
				waybg.Logger().Warn("draw failed", "output", w.output, "error", err)
				continue
			}
			raster = r
			rasters[key] = raster
		}

		if err := blitToSurface(surf, raster); err != nil {
			waybg.Logger().Warn("blit to layer surface failed", "output", w.output, "error", err)
			continue
		}
	}

	w.dirty = false
}

// renderLocked produces the scaled raster for the current source at
// pixW x pixH. Called with mu held.
func (w *Wallpaper) renderLocked(pixW, pixH int) (*image.RGBA, error) {
	switch w.entry.Source.(type) {
	case config.PathSource:
		img, err := w.decodedImageLocked()
		if err != nil {
			return nil, err
		}
		return scaler.Scale(img, pixW, pixH, scaler.Options{Mode: w.entry.ScalingMode, BGColor: w.entry.BGColor}), nil

	case config.ColorSourceConfig:
		if w.colorSource == nil {
			return nil, fmt.Errorf("wallpaper: color source not prepared")
		}
		if err := w.colorSource.Prepare(pixW, pixH); err != nil {
			return nil, err
		}
		frame, err := w.colorSource.NextFrame()
		if err != nil {
			return nil, err
		}
		return frame.Image, nil

	default:
		if w.animatedSource == nil {
			return nil, fmt.Errorf("wallpaper: not initialized")
		}
		if err := w.animatedSource.Prepare(pixW, pixH); err != nil {
			return nil, err
		}
		frame, err := w.animatedSource.NextFrame()
		if err != nil {
			return nil, err
		}
		return frame.Image, nil
	}
}

func (w *Wallpaper) decodedImageLocked() (*image.RGBA, error) {
	if w.currentImage != nil {
		return w.currentImage, nil
	}
	if w.currentPath == "" {
		return nil, fmt.Errorf("wallpaper: no current path")
	}

	load := func() (any, int64, error) {
		decoded, err := source.DecodeImageFile(w.currentPath)
		if err != nil {
			return nil, 0, err
		}
		rgba := source.ToRGBA(decoded)
		return rgba, int64(len(rgba.Pix)), nil
	}

	var img any
	var err error
	if w.cache != nil {
		img, err = w.cache.GetOrInsert(w.currentPath, load)
	} else {
		img, _, err = load()
	}
	if err != nil {
		return nil, err
	}

	w.currentImage = img.(*image.RGBA)
	return w.currentImage, nil
}

// Release drops the active producer and any filesystem watch. Safe to
// call more than once.
func (w *Wallpaper) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.releaseActiveLocked()
}

func (w *Wallpaper) releaseActiveLocked() {
	if w.animatedSource != nil {
		w.animatedSource.Release()
		w.animatedSource = nil
	}
	w.colorSource = nil
	if w.watch != nil && w.watchedPath != "" {
		w.watch.Unwatch(w.watchedPath)
		w.watchedPath = ""
	}
	w.currentPath = ""
	w.currentImage = nil
	w.imageQueue = nil
}

// pixelDims resolves an output's render dimensions as its physical
// size scaled by its 120-denominator fractional scale factor.
func pixelDims(o layer.Output) (int, int) {
	scale := o.FractionalScale120
	if scale <= 0 {
		scale = 120
	}
	return o.PhysicalWidth * scale / 120, o.PhysicalHeight * scale / 120
}

// blitToSurface acquires a buffer from surf's pool sized to raster,
// copies raster's pixels in row by row (the buffer's stride need not
// match the raster's), and commits it.
func blitToSurface(surf layer.Surface, raster *image.RGBA) error {
	width, height := raster.Rect.Dx(), raster.Rect.Dy()
	buf, err := surf.Pool().AcquireBuffer(width, height, width*4)
	if err != nil {
		return err
	}

	dst := buf.Bytes()
	rowBytes := width * 4
	for y := 0; y < height; y++ {
		srcOff := y * raster.Stride
		dstOff := y * buf.Stride()
		copy(dst[dstOff:dstOff+rowBytes], raster.Pix[srcOff:srcOff+rowBytes])
	}

	return surf.AttachAndCommit(buf)
}

// sortPaths orders paths per method: Alphanumeric sorts lexically,
// Random shuffles with a non-deterministic RNG.
func sortPaths(paths []string, method config.SamplingMethod) {
	switch method {
	case config.Random:
		rand.Shuffle(len(paths), func(i, j int) { paths[i], paths[j] = paths[j], paths[i] })
	default:
		sort.Strings(paths)
	}
}

// rotateToFront rotates paths in place so target becomes the first
// element, if present.
func rotateToFront(paths []string, target string) {
	idx := -1
	for i, p := range paths {
		if p == target {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return
	}
	rotated := append(append([]string{}, paths[idx:]...), paths[:idx]...)
	copy(paths, rotated)
}

// walkDirectorySync lists image files under root: recursively if
// recursive is set, one level deep otherwise. Both modes resolve
// symlinks: the recursive mode descends into symlinked subdirectories,
// unlike fs.WalkDir's default Lstat-based traversal, which never descends
// into one; the one-level mode skips a symlinked directory like any other
// subdirectory and lists symlinked image files.
func walkDirectorySync(root string, recursive bool) ([]string, error) {
	if !recursive {
		return walkOneLevel(root)
	}

	var out []string
	visited := make(map[string]bool)
	if err := walkRecursive(root, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkOneLevel(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		isDir, err := resolvedIsDir(p, e)
		if err != nil {
			continue
		}
		if isDir {
			continue
		}
		if loader.IsImageFile(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// walkRecursive descends into root, following symlinked subdirectories.
// visited tracks each directory's resolved real path to guard against a
// symlink cycle sending the walk into an infinite loop.
func walkRecursive(root string, visited map[string]bool, out *[]string) error {
	real, err := filepath.EvalSymlinks(root)
	if err != nil {
		return err
	}
	if visited[real] {
		return nil
	}
	visited[real] = true

	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}

	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		isDir, err := resolvedIsDir(p, e)
		if err != nil {
			continue
		}
		if isDir {
			if err := walkRecursive(p, visited, out); err != nil {
				continue
			}
			continue
		}
		if loader.IsImageFile(p) {
			*out = append(*out, p)
		}
	}
	return nil
}

// resolvedIsDir reports whether p names a directory, following a
// symlink to its target when e names one (os.ReadDir's DirEntry.IsDir
// is Lstat-based and always reports false for a symlink).
func resolvedIsDir(p string, e fs.DirEntry) (bool, error) {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.IsDir(), nil
	}
	info, err := os.Stat(p)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// isUnderBackgroundsDir reports whether path sits under any
// $XDG_DATA_DIRS entry's backgrounds/ subdirectory, the trigger for a
// recursive rather than one-level directory walk.
func isUnderBackgroundsDir(path string) bool {
	for _, dir := range xdgpaths.DataDirs() {
		prefix := filepath.Join(dir, "backgrounds")
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
