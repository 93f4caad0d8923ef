package source

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// JXLDecoder decodes a JPEG XL file into an image.Image. No JPEG XL
// decoder exists in the Go ecosystem packages available to this engine;
// RegisterJXLDecoder lets an embedder plug one in (mirroring the
// registration-hook pattern used by the webp animation package for its
// FrameDecoderFunc). Until registered, .jxl sources fail with KindDecode.
var jxlDecoder func(path string) (image.Image, error)

// RegisterJXLDecoder installs the function used to decode ".jxl" files.
func RegisterJXLDecoder(decode func(path string) (image.Image, error)) {
	jxlDecoder = decode
}

// DecodeImageFile decodes path using the same format registrations and
// JPEG XL hook Static uses. Exported for the loader package's
// background directory-scan and decode worker.
func DecodeImageFile(path string) (image.Image, error) {
	return decodeImageFile(path)
}

func decodeImageFile(path string) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".jxl") {
		if jxlDecoder == nil {
			return nil, fmt.Errorf("no JPEG XL decoder registered")
		}
		return jxlDecoder(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// ToRGBA converts img to *image.RGBA, returning it unchanged if it
// already is one. Exported for callers (e.g. the loader package) that
// decode images outside of a Source implementation.
func ToRGBA(img image.Image) *image.RGBA {
	return toRGBA(img)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	return dst
}

// Static is a lazily-decoding static image source for a single file.
type Static struct {
	path   string
	cached *image.RGBA
}

// NewStatic creates a static image source for the given file path.
func NewStatic(path string) *Static {
	return &Static{path: path}
}

func (s *Static) load() error {
	if s.cached != nil {
		return nil
	}
	img, err := decodeImageFile(s.path)
	if err != nil {
		return newErr(KindDecode, "static.load", err)
	}
	s.cached = toRGBA(img)
	return nil
}

// Prepare optionally pre-decodes the image. Dimensions are accepted for
// interface symmetry with other sources but are not used: static images
// are not resized at decode time, scaling happens downstream.
func (s *Static) Prepare(width, height int) error {
	return s.load()
}

func (s *Static) NextFrame() (Frame, error) {
	if err := s.load(); err != nil {
		return Frame{}, err
	}
	return Frame{Image: s.cached, Timestamp: time.Now()}, nil
}

// FrameDuration always returns Forever: static images never need an
// unsolicited redraw of their own.
func (s *Static) FrameDuration() time.Duration { return Forever }

func (s *Static) IsAnimated() bool { return false }

// Release drops the decoded raster; Prepare may be called again
// afterward to re-decode it.
func (s *Static) Release() {
	s.cached = nil
}

func (s *Static) Describe() string {
	return fmt.Sprintf("Static image: %s", s.path)
}
