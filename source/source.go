// Package source defines the uniform capability set that every wallpaper
// content kind (static image, color/gradient, animated bitmap, video,
// GPU shader) implements, plus the shared Frame and error types.
package source

import (
	"image"
	"math"
	"time"
)

// Frame is a single raster to be displayed, with the instant it was
// produced.
type Frame struct {
	Image     *image.RGBA
	Timestamp time.Time
}

// Forever is returned by FrameDuration for sources that never need to be
// redrawn on their own (static images, solid colors, gradients).
const Forever = time.Duration(math.MaxInt64)

// Source is the capability set every producer implements. Implementations
// are not required to be safe for concurrent use; the engine calls into a
// given Source from a single goroutine at a time.
type Source interface {
	// Prepare readies the source to render at width x height. Idempotent
	// when dimensions are unchanged. Must be called before the first
	// NextFrame and after any resize; a resize frees and re-allocates any
	// size-dependent resources.
	Prepare(width, height int) error

	// NextFrame returns the frame that should be displayed right now. It
	// may return the same image as the previous call (static sources) or
	// advance internal state (animated sources).
	NextFrame() (Frame, error)

	// FrameDuration returns the time until the next meaningful change.
	// Static sources return Forever. The value may change across calls.
	FrameDuration() time.Duration

	// IsAnimated reports whether this source requires continuous
	// redraws.
	IsAnimated() bool

	// Release releases all owned decoder/GPU resources. Idempotent;
	// Prepare must be callable again afterward.
	Release()

	// Describe returns a human-readable description for diagnostics.
	Describe() string
}
