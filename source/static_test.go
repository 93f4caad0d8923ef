package source

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Encode: %v", err)
	}
}

func TestDecodeImageFileDecodesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, path, 3, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	img, err := decodeImageFile(path)
	if err != nil {
		t.Fatalf("decodeImageFile: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 3 {
		t.Fatalf("bounds = %v, want 3x3", img.Bounds())
	}
}

func TestDecodeImageFileUnregisteredJXLFails(t *testing.T) {
	_, err := decodeImageFile("/tmp/nonexistent.jxl")
	if err == nil {
		t.Fatal("expected an error for an unregistered .jxl decoder")
	}
}

func TestRegisterJXLDecoderIsUsed(t *testing.T) {
	want := image.NewRGBA(image.Rect(0, 0, 2, 2))
	RegisterJXLDecoder(func(path string) (image.Image, error) {
		return want, nil
	})
	defer RegisterJXLDecoder(nil)

	got, err := decodeImageFile("anything.jxl")
	if err != nil {
		t.Fatalf("decodeImageFile: %v", err)
	}
	if got != image.Image(want) {
		t.Fatal("expected the registered decoder's image to be returned")
	}
}

func TestToRGBAPassesThroughExistingRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if toRGBA(img) != img {
		t.Fatal("expected an existing *image.RGBA to be returned unchanged")
	}
}

func TestToRGBAConvertsOtherFormats(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 2))
	src.SetGray(0, 0, color.Gray{Y: 128})

	out := toRGBA(src)
	if out.Bounds() != src.Bounds() {
		t.Fatalf("bounds = %v, want %v", out.Bounds(), src.Bounds())
	}
	r, g, b, _ := out.At(0, 0).RGBA()
	if r != g || g != b {
		t.Fatalf("expected a converted gray pixel to have equal channels, got %d %d %d", r, g, b)
	}
}

func TestStaticLoadAndNextFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, path, 2, 2, color.RGBA{R: 255, A: 255})

	s := NewStatic(path)
	if err := s.Prepare(0, 0); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	frame, err := s.NextFrame()
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if frame.Image.RGBAAt(0, 0).R != 255 {
		t.Fatal("expected the decoded red pixel to come through")
	}
	if s.IsAnimated() {
		t.Fatal("static image should never report animated")
	}
	if s.FrameDuration() != Forever {
		t.Fatalf("FrameDuration = %v, want Forever", s.FrameDuration())
	}
}

func TestStaticLoadMissingFileFailsWithDecodeKind(t *testing.T) {
	s := NewStatic(filepath.Join(t.TempDir(), "missing.png"))
	err := s.Prepare(0, 0)
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	srcErr, ok := err.(*Error)
	if !ok || srcErr.Kind != KindDecode {
		t.Fatalf("err = %#v, want *Error{Kind: KindDecode}", err)
	}
}

func TestStaticReleaseAllowsReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, path, 2, 2, color.RGBA{G: 255, A: 255})

	s := NewStatic(path)
	if err := s.Prepare(0, 0); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	s.Release()
	if s.cached != nil {
		t.Fatal("expected cached image cleared after Release")
	}
	if err := s.Prepare(0, 0); err != nil {
		t.Fatalf("Prepare (after release): %v", err)
	}
}
