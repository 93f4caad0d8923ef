package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"
)

// minFrameDelay is the floor applied to any decoded per-frame delay,
// matching the reference player's clamp against pathologically small or
// zero GIF/APNG delay values.
const minFrameDelay = 10 * time.Millisecond

// AnimatedConfig configures an animated bitmap source.
type AnimatedConfig struct {
	Path string
	// FPSLimit caps playback rate; zero means unlimited (use the
	// decoded per-frame delay as-is).
	FPSLimit int
	// LoopCount stops animating after this many full loops; zero means
	// loop forever.
	LoopCount int
}

type animatedFrame struct {
	Image *image.RGBA
	Delay time.Duration
}

type animatedFormat int

const (
	formatGIF animatedFormat = iota
	formatAPNG
	formatWebP
)

func (f animatedFormat) String() string {
	switch f {
	case formatGIF:
		return "GIF"
	case formatAPNG:
		return "APNG"
	case formatWebP:
		return "WebP"
	default:
		return "unknown"
	}
}

func detectAnimatedFormat(path string) (animatedFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif":
		return formatGIF, nil
	case ".apng", ".png":
		return formatAPNG, nil
	case ".webp":
		return formatWebP, nil
	default:
		return 0, fmt.Errorf("unsupported animated format: %q", filepath.Ext(path))
	}
}

// Animated plays back a GIF, APNG, or animated WebP frame by frame,
// honoring each frame's own delay (clamped to minFrameDelay and
// optionally capped by an FPS limit), and stopping after the configured
// number of loops.
type Animated struct {
	config AnimatedConfig

	frames        []animatedFrame
	frameIdx      int
	lastFrameTime time.Time
	currentDelay  time.Duration
	loopsDone     int
	stopped       bool
	prepared      bool
}

// NewAnimated creates an animated bitmap source from configuration.
func NewAnimated(config AnimatedConfig) *Animated {
	return &Animated{
		config:       config,
		currentDelay: 100 * time.Millisecond,
	}
}

func (a *Animated) applyFPSLimit(delay time.Duration) time.Duration {
	if a.config.FPSLimit <= 0 {
		return delay
	}
	min := time.Duration(float64(time.Second) / float64(a.config.FPSLimit))
	if delay < min {
		return min
	}
	return delay
}

func clampDelay(d time.Duration) time.Duration {
	if d < minFrameDelay {
		return minFrameDelay
	}
	return d
}

func (a *Animated) loadFrames() error {
	format, err := detectAnimatedFormat(a.config.Path)
	if err != nil {
		return newErr(KindInvalidSource, "animated.load", err)
	}

	var frames []animatedFrame
	switch format {
	case formatGIF:
		frames, err = decodeGIFFrames(a.config.Path)
	case formatAPNG:
		frames, err = decodeAPNGFrames(a.config.Path)
	case formatWebP:
		frames, err = decodeWebPFrames(a.config.Path)
	}
	if err != nil {
		return newErr(KindDecode, "animated.load", err)
	}
	if len(frames) == 0 {
		return newErr(KindDecode, "animated.load", fmt.Errorf("no frames found in %s", a.config.Path))
	}

	a.frames = frames
	a.currentDelay = a.applyFPSLimit(clampDelay(frames[0].Delay))
	return nil
}

// advanceFrame moves to the next frame, wrapping and counting a
// completed loop at the sequence boundary. Once the configured
// LoopCount is reached it freezes on the final frame and sets stopped,
// after which it is a no-op: the loop-count stop is sticky and must not
// be reversed by a later call wrapping frameIdx past 0 again.
func (a *Animated) advanceFrame() bool {
	if a.stopped || len(a.frames) <= 1 {
		return false
	}
	next := (a.frameIdx + 1) % len(a.frames)

	if next == 0 {
		a.loopsDone++
		if a.config.LoopCount > 0 && a.loopsDone >= a.config.LoopCount {
			a.frameIdx = len(a.frames) - 1
			a.stopped = true
			a.currentDelay = Forever
			return false
		}
	}

	a.frameIdx = next
	a.currentDelay = a.applyFPSLimit(clampDelay(a.frames[a.frameIdx].Delay))
	a.lastFrameTime = time.Now()
	return true
}

func (a *Animated) Prepare(width, height int) error {
	if len(a.frames) == 0 {
		if err := a.loadFrames(); err != nil {
			return err
		}
	}
	a.lastFrameTime = time.Now()
	a.prepared = true
	return nil
}

func (a *Animated) NextFrame() (Frame, error) {
	if !a.prepared {
		return Frame{}, newErr(KindNotPrepared, "animated.next_frame", fmt.Errorf("not prepared"))
	}

	if time.Since(a.lastFrameTime) >= a.currentDelay {
		a.advanceFrame()
	}

	if a.frameIdx >= len(a.frames) {
		return Frame{}, newErr(KindDecode, "animated.next_frame", fmt.Errorf("no frames available"))
	}

	return Frame{Image: a.frames[a.frameIdx].Image, Timestamp: time.Now()}, nil
}

func (a *Animated) FrameDuration() time.Duration { return a.currentDelay }

func (a *Animated) IsAnimated() bool { return len(a.frames) > 1 }

func (a *Animated) Release() {
	a.frames = nil
	a.frameIdx = 0
	a.loopsDone = 0
	a.stopped = false
	a.prepared = false
}

func (a *Animated) Describe() string {
	format, err := detectAnimatedFormat(a.config.Path)
	label := "unknown"
	if err == nil {
		label = format.String()
	}
	return fmt.Sprintf("Animated %s: %s (%d frames)", label, a.config.Path, len(a.frames))
}

// IsAnimatedImage reports whether path names a format this package
// decodes as a frame sequence.
func IsAnimatedImage(path string) bool {
	_, err := detectAnimatedFormat(path)
	return err == nil
}
