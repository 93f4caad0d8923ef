package source

import (
	"fmt"
	"image"
	"math"
)

// gradientScale matches the pixel-to-domain zoom factor used by the
// reference cosmic-bg implementation's oblique-angle gradient sampler:
// rotated-axis projections are computed in a coordinate space scaled by
// 1/gradientScale before being remapped into the gradient's [0,1] domain.
const gradientScale = 0.015

// renderGradient builds a linear-RGB color ramp and maps each pixel by
// position. Angles 0/90/180/270 use axis-aligned projections; any other
// angle projects onto the rotated axis x*cos(theta) - y*sin(theta),
// remapped into the gradient's domain.
func renderGradient(g GradientSpec, width, height int) (*image.RGBA, error) {
	if len(g.Colors) == 0 {
		return nil, newErr(KindInvalidConfig, "gradient.render", fmt.Errorf("gradient has no colors"))
	}
	if width <= 0 || height <= 0 {
		return nil, newErr(KindInvalidConfig, "gradient.render", fmt.Errorf("invalid dimensions %dx%d", width, height))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	w, h := float64(width), float64(height)

	var positioner func(x, y int) float64
	switch normalizeAngle(g.Radius) {
	case 0:
		positioner = func(_, y int) float64 { return 1.0 - float64(y)/h }
	case 90:
		positioner = func(x, _ int) float64 { return float64(x) / w }
	case 180:
		positioner = func(_, y int) float64 { return float64(y) / h }
	case 270:
		positioner = func(x, _ int) float64 { return 1.0 - float64(x)/w }
	default:
		angle := g.Radius * math.Pi / 180.0
		cosA, sinA := math.Cos(angle), math.Sin(angle)
		bound := w / gradientScale
		positioner = func(x, y int) float64 {
			px := float64(x) - w/gradientScale
			py := float64(y) - h/gradientScale
			proj := px*cosA - py*sinA
			return remap(proj, -bound, bound, 0, 1)
		}
	}

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			c := sampleGradient(g.Colors, positioner(x, y))
			off := x * 4
			row[off] = linearToByte(c[0])
			row[off+1] = linearToByte(c[1])
			row[off+2] = linearToByte(c[2])
			row[off+3] = 0xff
		}
	}
	return img, nil
}

// normalizeAngle truncates radius to a whole degree value and returns it
// if it is exactly one of the special-cased angles 0/90/180/270, or -1
// otherwise (no rounding: 89.9 truncates to 89 and yields -1).
func normalizeAngle(radius float64) int {
	n := int(radius)
	switch n {
	case 0, 90, 180, 270:
		return n
	default:
		return -1
	}
}

// remap maps t from range [a, b] to range [c, d].
func remap(t, a, b, c, d float64) float64 {
	return (t-a)*((d-c)/(b-a)) + c
}

// sampleGradient linearly interpolates across the ordered color stops at
// position t in [0, 1], clamped at the ends.
func sampleGradient(colors []RGB01, t float64) RGB01 {
	if len(colors) == 1 {
		return colors[0]
	}
	if t <= 0 {
		return colors[0]
	}
	if t >= 1 {
		return colors[len(colors)-1]
	}

	segments := len(colors) - 1
	scaled := t * float64(segments)
	idx := int(scaled)
	if idx >= segments {
		idx = segments - 1
	}
	localT := scaled - float64(idx)

	a, b := colors[idx], colors[idx+1]
	return RGB01{
		a[0] + (b[0]-a[0])*localT,
		a[1] + (b[1]-a[1])*localT,
		a[2] + (b[2]-a[2])*localT,
	}
}
