package scaler

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestScaleDimensions(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		dstW, dstH int
		mode       Mode
	}{
		{"zoom wide into square", 200, 100, 64, 64, Zoom},
		{"zoom tall into square", 100, 200, 64, 64, Zoom},
		{"fit wide into square", 200, 100, 64, 64, Fit},
		{"stretch any", 200, 100, 64, 64, Stretch},
		{"identity", 64, 64, 64, 64, Zoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := solidImage(tt.srcW, tt.srcH, color.RGBA{R: 255, A: 255})
			out := Scale(src, tt.dstW, tt.dstH, Options{Mode: tt.mode})
			if out.Bounds().Dx() != tt.dstW || out.Bounds().Dy() != tt.dstH {
				t.Fatalf("got %dx%d, want %dx%d", out.Bounds().Dx(), out.Bounds().Dy(), tt.dstW, tt.dstH)
			}
		})
	}
}

func TestFitLetterboxesWithBGColor(t *testing.T) {
	bg := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	src := solidImage(100, 50, color.RGBA{G: 255, A: 255})
	out := Scale(src, 50, 50, Options{Mode: Fit, BGColor: bg})

	corner := out.RGBAAt(0, 0)
	if corner != bg {
		t.Fatalf("corner pixel = %v, want letterbox color %v", corner, bg)
	}
}

func TestZoomCropsToTargetSize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				src.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
			} else {
				src.SetRGBA(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}

	out := Scale(src, 100, 50, Options{Mode: Zoom})
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 50 {
		t.Fatalf("unexpected output size %v", out.Bounds())
	}
}

func TestScaleZeroDimensions(t *testing.T) {
	src := solidImage(10, 10, color.RGBA{A: 255})
	out := Scale(src, 0, 0, Options{Mode: Zoom})
	if out.Bounds().Dx() != 0 || out.Bounds().Dy() != 0 {
		t.Fatalf("expected empty image for zero dimensions, got %v", out.Bounds())
	}
}

func TestModeString(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{Zoom, "zoom"},
		{Fit, "fit"},
		{Stretch, "stretch"},
		{Mode(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}
