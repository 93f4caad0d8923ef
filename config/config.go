// Package config defines the per-output configuration data model and
// the collaborator interfaces the engine expects from an external
// configuration store, without implementing that store itself.
package config

import (
	"image/color"

	"github.com/waybg/waybg/scaler"
	"github.com/waybg/waybg/source"
)

// SamplingMethod selects how a directory source's slideshow queue is
// ordered on load.
type SamplingMethod int

const (
	Alphanumeric SamplingMethod = iota
	Random
)

// Source is a sealed interface over the five content kinds an Entry
// can name. Only types in this package implement it.
type Source interface {
	// sourceMarker seals this interface to package config.
	sourceMarker()
}

// PathSource names a file (a single static image) or a directory (a
// slideshow) as the content source.
type PathSource struct {
	Path string
}

func (PathSource) sourceMarker() {}

// ColorSourceConfig is a solid fill or gradient, in linear-space RGB.
type ColorSourceConfig struct {
	Single   *source.RGB01
	Gradient *source.GradientSpec
}

func (ColorSourceConfig) sourceMarker() {}

// VideoSourceConfig drives a decoded video file as the background.
type VideoSourceConfig struct {
	Path    string
	Loop    bool
	Speed   float64
	HWAccel bool
}

func (VideoSourceConfig) sourceMarker() {}

// AnimatedSourceConfig plays back a GIF/APNG/animated-WebP file.
// FPSLimit and LoopCount are nil when unconfigured (no cap / loop
// forever).
type AnimatedSourceConfig struct {
	Path      string
	FPSLimit  *int
	LoopCount *int
}

func (AnimatedSourceConfig) sourceMarker() {}

// ShaderSourceConfig selects a built-in preset or a custom WGSL file.
// Exactly one of Preset or CustomPath should be set; CustomPath takes
// precedence if both are.
type ShaderSourceConfig struct {
	Preset     *source.ShaderPreset
	CustomPath *string
	FPSLimit   int
}

func (ShaderSourceConfig) sourceMarker() {}

// Entry is the per-output configuration. Output == "all" designates
// the fallback entry applied to every output without a specific one.
type Entry struct {
	Output                   string
	Source                   Source
	ScalingMode              scaler.Mode
	BGColor                  color.RGBA
	RotationFrequencySeconds int
	FilterByTheme            bool
	SamplingMethod           SamplingMethod
}

// Config is the full loaded configuration.
type Config struct {
	SameOnAll         bool
	DefaultBackground Entry
	Backgrounds       []Entry
	Outputs           []string
}

// Store is the configuration-store collaborator API: persistent
// storage and retrieval of Entry values, owned by an external
// component (e.g. a settings daemon or GUI) the engine only consumes.
type Store interface {
	LoadConfig() (Config, error)
	SetEntry(Entry) error
	Entry(output string) (Entry, bool)
	DefaultBackground() Entry
	SetSameOnAll(bool) error
}

// StateStore is the resume-state collaborator API: the current source
// path shown on each output, consulted on startup to resume a
// slideshow at the same image. package state's Store implements this.
type StateStore interface {
	Current(output string) (string, bool)
	SetCurrent(output, path string) error
}
