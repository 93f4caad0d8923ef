package source

import (
	"fmt"
	"image"
	"time"
)

// RGB01 is a linear-space color with each channel in [0, 1].
type RGB01 [3]float64

// GradientSpec describes a linear color ramp projected across the image.
// Colors form an ordered, non-empty sequence. Radius is interpreted as an
// angle in degrees; values whose whole-degree part is 0/90/180/270 are
// special-cased axis projections (so 0.0-0.99 selects the 0-degree
// projection), and any other value rotates the sampling axis.
type GradientSpec struct {
	Colors []RGB01
	Radius float64
}

// Color is either a single solid fill or a gradient.
type Color struct {
	Single   *RGB01
	Gradient *GradientSpec
}

// ColorSource generates a solid color or gradient raster sized to the
// last Prepare call.
type ColorSource struct {
	color     Color
	generated *image.RGBA
	width     int
	height    int
}

// NewColorSource creates a color/gradient source.
func NewColorSource(c Color) *ColorSource {
	return &ColorSource{color: c}
}

func (c *ColorSource) generate(width, height int) (*image.RGBA, error) {
	if c.color.Gradient != nil {
		return renderGradient(*c.color.Gradient, width, height)
	}
	if c.color.Single != nil {
		return renderSolid(*c.color.Single, width, height), nil
	}
	return nil, newErr(KindInvalidConfig, "color.generate", fmt.Errorf("no color configured"))
}

func renderSolid(c RGB01, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	r, g, b := linearToByte(c[0]), linearToByte(c[1]), linearToByte(c[2])
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			off := x * 4
			row[off] = r
			row[off+1] = g
			row[off+2] = b
			row[off+3] = 0xff
		}
	}
	return img
}

func linearToByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v*255 + 0.5)
}

func (c *ColorSource) Prepare(width, height int) error {
	if c.generated != nil && c.width == width && c.height == height {
		return nil
	}
	img, err := c.generate(width, height)
	if err != nil {
		return err
	}
	c.generated, c.width, c.height = img, width, height
	return nil
}

func (c *ColorSource) NextFrame() (Frame, error) {
	if c.generated == nil {
		if err := c.Prepare(1920, 1080); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Image: c.generated, Timestamp: time.Now()}, nil
}

func (c *ColorSource) FrameDuration() time.Duration { return Forever }

func (c *ColorSource) IsAnimated() bool { return false }

func (c *ColorSource) Release() {
	c.generated = nil
}

func (c *ColorSource) Describe() string {
	if c.color.Gradient != nil {
		return fmt.Sprintf("Gradient: %d colors at %g degrees", len(c.color.Gradient.Colors), c.color.Gradient.Radius)
	}
	if c.color.Single != nil {
		return fmt.Sprintf("Solid color: RGB(%.3f, %.3f, %.3f)", c.color.Single[0], c.color.Single[1], c.color.Single[2])
	}
	return "Color: unconfigured"
}
