// Package engine wires the wallpaper lifecycle engine's collaborators
// together and drives its cooperative, single-threaded event loop: a
// scheduler-armed timer, the filesystem watcher's event channel, the
// background loader worker's result channel, and the layer-shell
// manager's frame-callback channel. Everything engine-owned (the
// scheduler, the wallpaper map, the output assignment table) is
// touched only from the Run goroutine; the exceptions are exactly the
// ones the wallpaper lifecycle spec calls out — the shared image
// cache's own internal lock, the loader worker's own channel, and the
// watcher's own channel.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/waybg/waybg"
	"github.com/waybg/waybg/cache"
	"github.com/waybg/waybg/config"
	"github.com/waybg/waybg/layer"
	"github.com/waybg/waybg/loader"
	"github.com/waybg/waybg/scheduler"
	"github.com/waybg/waybg/wallpaper"
	"github.com/waybg/waybg/watcher"
)

// allKey is the config.Entry.Output value ("all") the data model
// reserves for the fallback entry.
const allKey = "all"

// Options configures Engine construction. Layers and ConfigStore are
// required; the rest have workable zero values.
type Options struct {
	Layers      layer.Manager
	ConfigStore config.Store
	StateStore  config.StateStore
	GPUProvider gpucontext.DeviceProvider

	CacheMaxEntries   int
	CacheMaxSizeBytes int64
	LoaderThreshold   int
	WatchBufferSize   int
}

// reloadRequest is enqueued by UpdateEntry and applied from the Run
// goroutine, keeping all wallpaper-map mutation single-threaded.
type reloadRequest struct {
	entry config.Entry
}

// Engine owns one Wallpaper per configured entry (plus the "all"
// fallback), the shared scheduler and image cache, the filesystem
// watcher, and the background loader worker, and drives the
// select-loop event loop described by the concurrency model.
type Engine struct {
	layers      layer.Manager
	configStore config.Store
	stateStore  config.StateStore
	gpuProvider gpucontext.DeviceProvider

	loaderThreshold int

	scheduler *scheduler.Scheduler
	cache     *cache.Cache
	loader    *loader.Worker
	watch     *watcher.Watcher

	wallpapers map[string]*wallpaper.Wallpaper
	// assignment maps a physical output name to the wallpaper key
	// (its own name, or "all") that renders it.
	assignment map[string]string

	reloads chan reloadRequest
}

// New constructs an Engine from opts, loading the current
// configuration from opts.ConfigStore and building one Wallpaper per
// entry found there plus the "all" fallback, then assigning every
// output opts.Layers currently enumerates to one of them.
func New(opts Options) (*Engine, error) {
	if opts.Layers == nil {
		return nil, fmt.Errorf("engine: Options.Layers is required")
	}
	if opts.ConfigStore == nil {
		return nil, fmt.Errorf("engine: Options.ConfigStore is required")
	}

	cfg, err := opts.ConfigStore.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("engine: loading config: %w", err)
	}

	e := &Engine{
		layers:          opts.Layers,
		configStore:     opts.ConfigStore,
		stateStore:      opts.StateStore,
		gpuProvider:     opts.GPUProvider,
		loaderThreshold: opts.LoaderThreshold,
		scheduler:       scheduler.New(),
		cache:           cache.New(opts.CacheMaxEntries, opts.CacheMaxSizeBytes),
		loader:          loader.NewWorker(),
		wallpapers:      make(map[string]*wallpaper.Wallpaper),
		assignment:      make(map[string]string),
		reloads:         make(chan reloadRequest, 8),
	}

	w, err := watcher.New(opts.WatchBufferSize)
	if err != nil {
		return nil, fmt.Errorf("engine: starting filesystem watcher: %w", err)
	}
	e.watch = w

	entries := entriesByKey(cfg)
	for key, entry := range entries {
		e.wallpapers[key] = wallpaper.New(key, entry, e.deps())
		if err := e.wallpapers[key].LoadImages(); err != nil {
			waybg.Logger().Error("initial load_images failed", "output", key, "error", err)
		}
	}
	e.rebuildAssignments()
	e.scheduleAllDeadlines()

	return e, nil
}

func (e *Engine) deps() wallpaper.Deps {
	return wallpaper.Deps{
		Cache:           e.cache,
		Watcher:         e.watch,
		LoaderWorker:    e.loader,
		LoaderThreshold: e.loaderThreshold,
		StateStore:      e.stateStore,
		GPUProvider:     e.gpuProvider,
	}
}

// entriesByKey indexes cfg's per-output entries by their Output field
// and adds the "all" fallback entry under that same reserved key.
func entriesByKey(cfg config.Config) map[string]config.Entry {
	entries := make(map[string]config.Entry, len(cfg.Backgrounds)+1)
	for _, e := range cfg.Backgrounds {
		entries[e.Output] = e
	}
	def := cfg.DefaultBackground
	def.Output = allKey
	entries[allKey] = def
	return entries
}

// rebuildAssignments maps every output layers currently enumerates to
// the wallpaper key that should render it: the output's own name if a
// specific entry exists for it, otherwise "all".
func (e *Engine) rebuildAssignments() {
	e.assignment = make(map[string]string)
	for _, o := range e.layers.Outputs() {
		if _, ok := e.wallpapers[o.Name]; ok {
			e.assignment[o.Name] = o.Name
		} else {
			e.assignment[o.Name] = allKey
		}
	}
}

// surfacesForKey resolves every physical output assigned to
// wallpaper key into its current layer.Surface.
func (e *Engine) surfacesForKey(key string) []layer.Surface {
	var surfaces []layer.Surface
	for output, assigned := range e.assignment {
		if assigned != key {
			continue
		}
		if surf, ok := e.layers.Surface(output); ok {
			surfaces = append(surfaces, surf)
		}
	}
	return surfaces
}

func (e *Engine) scheduleAllDeadlines() {
	for key, wp := range e.wallpapers {
		e.rearmRotation(key, wp)
		e.rearmAnimation(key, wp)
	}
}

func (e *Engine) rearmRotation(key string, wp *wallpaper.Wallpaper) {
	if d, ok := wp.RotationInterval(); ok {
		e.scheduler.Schedule("rotation:"+key, d)
	} else {
		e.scheduler.RemoveOutput("rotation:" + key)
	}
}

func (e *Engine) rearmAnimation(key string, wp *wallpaper.Wallpaper) {
	if d, ok := wp.AnimationFrameDuration(); ok {
		e.scheduler.Schedule("animation:"+key, d)
	} else {
		e.scheduler.RemoveOutput("animation:" + key)
	}
}

// drawWallpaper renders key's current frame to every output currently
// assigned to it.
func (e *Engine) drawWallpaper(key string) {
	wp, ok := e.wallpapers[key]
	if !ok {
		return
	}
	surfaces := e.surfacesForKey(key)
	if len(surfaces) == 0 {
		return
	}
	wp.Draw(surfaces)
}

// UpdateEntry requests that entry.Output's wallpaper be reloaded with
// entry, applied from the Run goroutine on its next loop iteration.
// Safe to call from any goroutine (e.g. a future control-tool IPC
// handler); a full backlog drops the request and logs, matching the
// engine's general "log and continue" failure policy.
func (e *Engine) UpdateEntry(entry config.Entry) {
	select {
	case e.reloads <- reloadRequest{entry: entry}:
	default:
		waybg.Logger().Warn("reload queue full, dropping config update", "output", entry.Output)
	}
}

func (e *Engine) applyReload(req reloadRequest) {
	key := req.entry.Output
	if key == "" {
		key = allKey
	}

	if old, ok := e.wallpapers[key]; ok {
		old.Release()
		e.scheduler.RemoveOutput("rotation:" + key)
		e.scheduler.RemoveOutput("animation:" + key)
	}

	wp := wallpaper.New(key, req.entry, e.deps())
	if err := wp.LoadImages(); err != nil {
		waybg.Logger().Error("reload load_images failed", "output", key, "error", err)
	}
	e.wallpapers[key] = wp
	e.rebuildAssignments()
	e.rearmRotation(key, wp)
	e.rearmAnimation(key, wp)
	e.drawWallpaper(key)
}

// Run drives the event loop described by the concurrency model until
// ctx is canceled: a timer armed to the scheduler's next deadline, the
// watcher's event channel, the loader worker's result channel, the
// layer manager's frame-callback channel, and pending UpdateEntry
// requests. It returns ctx.Err() on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	defer e.shutdown()

	e.drawAll()

	for {
		var timer *time.Timer
		var timerC <-chan time.Time
		if d, ok := e.scheduler.NextDeadline(); ok {
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()

		case <-timerC:
			e.handleReadyDeadlines()

		case ev := <-e.watch.Events():
			stopTimer(timer)
			e.handleWatchEvent(ev)

		case res := <-e.loader.Results():
			stopTimer(timer)
			e.handleLoaderResult(res)

		case output := <-e.layers.FrameCallbacks():
			stopTimer(timer)
			e.handleFrameCallback(output)

		case req := <-e.reloads:
			stopTimer(timer)
			e.applyReload(req)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (e *Engine) drawAll() {
	for key := range e.wallpapers {
		e.drawWallpaper(key)
	}
}

func (e *Engine) handleReadyDeadlines() {
	for _, schedKey := range e.scheduler.PopReady() {
		switch {
		case strings.HasPrefix(schedKey, "rotation:"):
			key := strings.TrimPrefix(schedKey, "rotation:")
			wp, ok := e.wallpapers[key]
			if !ok {
				continue
			}
			if err := wp.Rotate(); err != nil {
				waybg.Logger().Error("rotation failed", "output", key, "error", err)
			}
			e.drawWallpaper(key)
			e.rearmRotation(key, wp)

		case strings.HasPrefix(schedKey, "animation:"):
			key := strings.TrimPrefix(schedKey, "animation:")
			wp, ok := e.wallpapers[key]
			if !ok {
				continue
			}
			wp.AnimationTick()
			e.drawWallpaper(key)
			e.rearmAnimation(key, wp)
		}
	}
}

func (e *Engine) handleWatchEvent(ev watcher.Event) {
	wp, ok := e.wallpapers[ev.Output]
	if !ok {
		return
	}
	wp.HandleWatchEvent(ev)
}

func (e *Engine) handleLoaderResult(res loader.Result) {
	wp, ok := e.wallpapers[res.Output]
	if !ok {
		return
	}
	wp.HandleLoaderResult(res)
	e.drawWallpaper(res.Output)
	e.rearmRotation(res.Output, wp)
}

func (e *Engine) handleFrameCallback(output string) {
	key, ok := e.assignment[output]
	if !ok {
		key = output
	}
	wp, ok := e.wallpapers[key]
	if !ok || !wp.IsDirty() {
		return
	}
	surf, ok := e.layers.Surface(output)
	if !ok {
		return
	}
	wp.Draw([]layer.Surface{surf})
}

func (e *Engine) shutdown() {
	for _, wp := range e.wallpapers {
		wp.Release()
	}
	e.loader.Shutdown()
	if err := e.watch.Close(); err != nil {
		waybg.Logger().Warn("closing filesystem watcher", "error", err)
	}
}
