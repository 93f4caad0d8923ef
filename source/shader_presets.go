package source

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed shaders/plasma.wgsl
var plasmaWGSL string

//go:embed shaders/waves.wgsl
var wavesWGSL string

//go:embed shaders/gradient.wgsl
var gradientWGSL string

// ShaderPreset names a built-in WGSL program.
type ShaderPreset int

const (
	ShaderPresetGradient ShaderPreset = iota
	ShaderPresetPlasma
	ShaderPresetWaves
)

func (p ShaderPreset) wgsl() string {
	switch p {
	case ShaderPresetPlasma:
		return plasmaWGSL
	case ShaderPresetWaves:
		return wavesWGSL
	default:
		return gradientWGSL
	}
}

func (p ShaderPreset) String() string {
	switch p {
	case ShaderPresetPlasma:
		return "Plasma"
	case ShaderPresetWaves:
		return "Waves"
	default:
		return "Gradient"
	}
}

// LoadCustomShader reads a user-supplied WGSL file from disk.
func LoadCustomShader(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load custom shader %s: %w", path, err)
	}
	return string(data), nil
}
