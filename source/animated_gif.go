package source

import (
	"image"
	"image/draw"
	"image/gif"
	"os"
	"time"
)

// decodeGIFFrames decodes every frame of a GIF into full-canvas RGBA
// images, applying each frame's disposal method the way a GIF player
// must: frames are encoded relative to previous frames and are not
// independently complete rasters.
func decodeGIFFrames(path string) ([]animatedFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, nil
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	canvas := image.NewRGBA(bounds)
	var previous *image.RGBA

	frames := make([]animatedFrame, 0, len(g.Image))
	for i, paletted := range g.Image {
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		if disposal == gif.DisposalPrevious {
			snap := image.NewRGBA(bounds)
			copy(snap.Pix, canvas.Pix)
			previous = snap
		}

		draw.Draw(canvas, paletted.Bounds(), paletted, paletted.Bounds().Min, draw.Over)

		out := image.NewRGBA(bounds)
		copy(out.Pix, canvas.Pix)

		delayCentisec := 10
		if i < len(g.Delay) {
			delayCentisec = g.Delay[i]
		}
		delay := time.Duration(delayCentisec) * 10 * time.Millisecond

		frames = append(frames, animatedFrame{Image: out, Delay: delay})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, paletted.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			if previous != nil {
				copy(canvas.Pix, previous.Pix)
			}
		}
	}

	return frames, nil
}
