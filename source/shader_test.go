package source

import (
	"math"
	"os"
	"testing"
	"time"
)

func TestAlignedBytesPerRow(t *testing.T) {
	cases := []struct {
		width int
		want  uint32
	}{
		{0, 0},
		{1, 256},
		{64, 256},
		{65, 512},
		{256, 1024},
	}
	for _, tt := range cases {
		if got := alignedBytesPerRow(tt.width); got != tt.want {
			t.Fatalf("alignedBytesPerRow(%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestBytesToUint32PacksLittleEndian(t *testing.T) {
	in := []byte{0x01, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff}
	out := bytesToUint32(in)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0] != 1 {
		t.Fatalf("out[0] = %d, want 1", out[0])
	}
	if out[1] != 0xffffffff {
		t.Fatalf("out[1] = %x, want ffffffff", out[1])
	}
}

func TestUniformsBytesRoundTrip(t *testing.T) {
	u := uniforms{resolutionX: 1920, resolutionY: 1080, elapsed: 2.5}
	buf := u.bytes()
	if len(buf) != 16 {
		t.Fatalf("len(buf) = %d, want 16", len(buf))
	}
	words := bytesToUint32(buf)
	if math.Float32frombits(words[0]) != 1920 {
		t.Fatalf("resolutionX round-trip = %v, want 1920", math.Float32frombits(words[0]))
	}
	if math.Float32frombits(words[2]) != 2.5 {
		t.Fatalf("elapsed round-trip = %v, want 2.5", math.Float32frombits(words[2]))
	}
}

func TestRGBAFromPixelsNoCopy(t *testing.T) {
	pixels := make([]byte, 2*2*4)
	pixels[0] = 0x42
	img := rgbaFromPixels(2, 2, pixels)
	if img.Stride != 8 {
		t.Fatalf("Stride = %d, want 8", img.Stride)
	}
	if &img.Pix[0] != &pixels[0] {
		t.Fatal("expected rgbaFromPixels to wrap the slice without copying")
	}
}

func TestNewShaderDefaultsFPSLimit(t *testing.T) {
	s, err := NewShader(ShaderConfig{Preset: ShaderPresetPlasma})
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if s.config.FPSLimit != 30 {
		t.Fatalf("FPSLimit = %d, want 30", s.config.FPSLimit)
	}
}

func TestNewShaderCustomPathOverridesPreset(t *testing.T) {
	path := t.TempDir() + "/custom.wgsl"
	want := "@fragment fn fs_main() {}"
	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := NewShader(ShaderConfig{CustomPath: path, Preset: ShaderPresetWaves})
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if s.wgslSource != want {
		t.Fatalf("wgslSource = %q, want %q", s.wgslSource, want)
	}
}

func TestNewShaderMissingCustomPathFailsWithKindConfig(t *testing.T) {
	_, err := NewShader(ShaderConfig{CustomPath: t.TempDir() + "/missing.wgsl"})
	if err == nil {
		t.Fatal("expected an error for a missing custom shader file")
	}
	srcErr, ok := err.(*Error)
	if !ok || srcErr.Kind != KindConfig {
		t.Fatalf("err = %#v, want *Error{Kind: KindConfig}", err)
	}
}

func TestShaderPrepareWithoutProviderFailsWithGPUUnavailable(t *testing.T) {
	s, err := NewShader(ShaderConfig{Preset: ShaderPresetGradient})
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	err = s.Prepare(64, 64)
	if err == nil {
		t.Fatal("expected an error preparing without a GPU device provider")
	}
	srcErr, ok := err.(*Error)
	if !ok || srcErr.Kind != KindGPUUnavailable {
		t.Fatalf("err = %#v, want *Error{Kind: KindGPUUnavailable}", err)
	}
}

func TestShaderNextFrameBeforePrepareFails(t *testing.T) {
	s, err := NewShader(ShaderConfig{Preset: ShaderPresetGradient})
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	_, err = s.NextFrame()
	if err == nil {
		t.Fatal("expected an error calling NextFrame before Prepare")
	}
	srcErr, ok := err.(*Error)
	if !ok || srcErr.Kind != KindNotPrepared {
		t.Fatalf("err = %#v, want *Error{Kind: KindNotPrepared}", err)
	}
}

func TestShaderFrameDurationRespectsFPSLimit(t *testing.T) {
	s, err := NewShader(ShaderConfig{Preset: ShaderPresetGradient, FPSLimit: 25})
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if got := s.FrameDuration(); got != 40*time.Millisecond {
		t.Fatalf("FrameDuration = %v, want 40ms", got)
	}
}

func TestShaderIsAnimated(t *testing.T) {
	s, err := NewShader(ShaderConfig{Preset: ShaderPresetGradient})
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if !s.IsAnimated() {
		t.Fatal("shader source should always report animated")
	}
}

func TestShaderDescribe(t *testing.T) {
	s, err := NewShader(ShaderConfig{Preset: ShaderPresetWaves})
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if got := s.Describe(); got == "" {
		t.Fatal("expected a non-empty description")
	}

	custom := t.TempDir() + "/c.wgsl"
	if err := os.WriteFile(custom, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s2, err := NewShader(ShaderConfig{CustomPath: custom})
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if got := s2.Describe(); got == "" {
		t.Fatal("expected a non-empty description for a custom shader")
	}
}

func TestShaderReleaseIsIdempotentWithoutPrepare(t *testing.T) {
	s, err := NewShader(ShaderConfig{Preset: ShaderPresetGradient})
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	s.Release()
	s.Release()
}
