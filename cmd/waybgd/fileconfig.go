package main

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/waybg/waybg/config"
	"github.com/waybg/waybg/scaler"
	"github.com/waybg/waybg/source"
)

// fileConfig is the on-disk TOML shape for the background
// configuration file. It exists only in this package: the config
// package defines the Store collaborator interface, not a disk format,
// per the external-collaborator boundary in the data model.
type fileConfig struct {
	SameOnAll bool        `toml:"same_on_all"`
	Default   fileEntry   `toml:"default"`
	Outputs   []fileEntry `toml:"outputs"`
}

// fileEntry mirrors config.Entry with plain TOML-friendly fields.
// Exactly one of the source-selecting fields (Path, ColorHex/Gradient,
// VideoPath, AnimatedPath, ShaderPreset/ShaderCustomPath) should be
// set; Path takes precedence, matching the priority order the shader
// producer itself uses between CustomPath and Preset.
type fileEntry struct {
	Output string `toml:"output"`

	Path string `toml:"path"`

	ColorHex       string   `toml:"color"`
	GradientHex    []string `toml:"gradient_colors"`
	GradientRadius float64  `toml:"gradient_radius"`

	VideoPath    string  `toml:"video_path"`
	VideoLoop    bool    `toml:"video_loop"`
	VideoSpeed   float64 `toml:"video_speed"`
	VideoHWAccel bool    `toml:"video_hw_accel"`

	AnimatedPath      string `toml:"animated_path"`
	AnimatedFPSLimit  int    `toml:"animated_fps_limit"`
	AnimatedLoopCount int    `toml:"animated_loop_count"`

	ShaderPreset     string `toml:"shader_preset"`
	ShaderCustomPath string `toml:"shader_custom_path"`
	ShaderFPSLimit   int    `toml:"shader_fps_limit"`

	ScalingMode              string `toml:"scaling_mode"`
	BGColorHex               string `toml:"bg_color"`
	RotationFrequencySeconds int    `toml:"rotation_frequency_seconds"`
	FilterByTheme            bool   `toml:"filter_by_theme"`
	SamplingMethod           string `toml:"sampling_method"`
}

// defaultFileConfig is used when no -config flag is given: a single
// dark gray fallback applied to every output.
func defaultFileConfig() fileConfig {
	return fileConfig{
		Default: fileEntry{ColorHex: "#1a1a1a", ScalingMode: "zoom"},
	}
}

func loadFileConfig(path string) (fileConfig, error) {
	if path == "" {
		return defaultFileConfig(), nil
	}
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return fc, nil
}

// toConfig converts the on-disk shape into the engine's config.Config,
// building config.Source variants from whichever source fields are
// set.
func (fc fileConfig) toConfig() (config.Config, error) {
	def, err := fc.Default.toEntry()
	if err != nil {
		return config.Config{}, fmt.Errorf("default entry: %w", err)
	}

	cfg := config.Config{SameOnAll: fc.SameOnAll, DefaultBackground: def}
	for _, fe := range fc.Outputs {
		entry, err := fe.toEntry()
		if err != nil {
			return config.Config{}, fmt.Errorf("output %q: %w", fe.Output, err)
		}
		cfg.Backgrounds = append(cfg.Backgrounds, entry)
		cfg.Outputs = append(cfg.Outputs, fe.Output)
	}
	return cfg, nil
}

func (fe fileEntry) toEntry() (config.Entry, error) {
	src, err := fe.toSource()
	if err != nil {
		return config.Entry{}, err
	}

	bg, err := parseHexColor(fe.BGColorHex)
	if err != nil {
		return config.Entry{}, fmt.Errorf("bg_color: %w", err)
	}

	return config.Entry{
		Output:                   fe.Output,
		Source:                   src,
		ScalingMode:              parseScalingMode(fe.ScalingMode),
		BGColor:                  bg,
		RotationFrequencySeconds: fe.RotationFrequencySeconds,
		FilterByTheme:            fe.FilterByTheme,
		SamplingMethod:           parseSamplingMethod(fe.SamplingMethod),
	}, nil
}

func (fe fileEntry) toSource() (config.Source, error) {
	switch {
	case fe.Path != "":
		return config.PathSource{Path: fe.Path}, nil

	case fe.VideoPath != "":
		return config.VideoSourceConfig{
			Path:    fe.VideoPath,
			Loop:    fe.VideoLoop,
			Speed:   fe.VideoSpeed,
			HWAccel: fe.VideoHWAccel,
		}, nil

	case fe.AnimatedPath != "":
		cfg := config.AnimatedSourceConfig{Path: fe.AnimatedPath}
		if fe.AnimatedFPSLimit > 0 {
			cfg.FPSLimit = &fe.AnimatedFPSLimit
		}
		if fe.AnimatedLoopCount > 0 {
			cfg.LoopCount = &fe.AnimatedLoopCount
		}
		return cfg, nil

	case fe.ShaderPreset != "" || fe.ShaderCustomPath != "":
		cfg := config.ShaderSourceConfig{FPSLimit: fe.ShaderFPSLimit}
		if fe.ShaderCustomPath != "" {
			cfg.CustomPath = &fe.ShaderCustomPath
		} else {
			preset := parseShaderPreset(fe.ShaderPreset)
			cfg.Preset = &preset
		}
		return cfg, nil

	case fe.ColorHex != "" || len(fe.GradientHex) > 0:
		color := config.ColorSourceConfig{}
		if len(fe.GradientHex) > 0 {
			colors := make([]source.RGB01, 0, len(fe.GradientHex))
			for _, hex := range fe.GradientHex {
				rgb, err := parseHexRGB01(hex)
				if err != nil {
					return nil, fmt.Errorf("gradient_colors: %w", err)
				}
				colors = append(colors, rgb)
			}
			color.Gradient = &source.GradientSpec{Colors: colors, Radius: fe.GradientRadius}
		} else {
			single, err := parseHexRGB01(fe.ColorHex)
			if err != nil {
				return nil, fmt.Errorf("color: %w", err)
			}
			color.Single = &single
		}
		return color, nil

	default:
		return nil, fmt.Errorf("entry names no source (path, color, gradient_colors, video_path, animated_path, or shader_preset/shader_custom_path)")
	}
}

func parseScalingMode(s string) scaler.Mode {
	switch strings.ToLower(s) {
	case "fit":
		return scaler.Fit
	case "stretch":
		return scaler.Stretch
	default:
		return scaler.Zoom
	}
}

func parseSamplingMethod(s string) config.SamplingMethod {
	if strings.EqualFold(s, "random") {
		return config.Random
	}
	return config.Alphanumeric
}

func parseShaderPreset(s string) source.ShaderPreset {
	switch strings.ToLower(s) {
	case "plasma":
		return source.ShaderPresetPlasma
	case "waves":
		return source.ShaderPresetWaves
	default:
		return source.ShaderPresetGradient
	}
}

// parseHexColor parses a #rrggbb string into a color.RGBA with full
// alpha, returning the zero value (transparent black) for an empty
// string.
func parseHexColor(hex string) (color.RGBA, error) {
	if hex == "" {
		return color.RGBA{}, nil
	}
	r, g, b, err := parseHexTriple(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// parseHexRGB01 parses a #rrggbb string into linear-space [0,1] floats.
func parseHexRGB01(hex string) (source.RGB01, error) {
	r, g, b, err := parseHexTriple(hex)
	if err != nil {
		return source.RGB01{}, err
	}
	return source.RGB01{float64(r) / 255, float64(g) / 255, float64(b) / 255}, nil
}

func parseHexTriple(hex string) (r, g, b uint8, err error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q", hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}
