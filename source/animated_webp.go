package source

import (
	"image"
	"image/draw"
	"os"

	"github.com/deepteams/webp/animation"
)

// decodeWebPFrames decodes an animated WebP file into full-canvas RGBA
// images using the animation package's canvas reconstruction decoder,
// which already applies each frame's dispose/blend method.
func decodeWebPFrames(path string) ([]animatedFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	anim, err := animation.DecodeBytes(data)
	if err != nil {
		return nil, err
	}

	if len(anim.Frames) <= 1 {
		img, err := decodeImageFile(path)
		if err != nil {
			return nil, err
		}
		return []animatedFrame{{Image: toRGBA(img), Delay: minFrameDelay}}, nil
	}

	if err := anim.DecodeFrames(); err != nil {
		return nil, err
	}

	dec := animation.NewAnimDecoder(anim)
	bounds := image.Rect(0, 0, anim.CanvasWidth, anim.CanvasHeight)

	frames := make([]animatedFrame, 0, len(anim.Frames))
	for dec.HasNext() {
		canvas, delay, err := dec.NextFrame()
		if err != nil {
			return nil, err
		}
		out := image.NewRGBA(bounds)
		draw.Draw(out, bounds, canvas, bounds.Min, draw.Src)
		frames = append(frames, animatedFrame{Image: out, Delay: delay})
	}

	return frames, nil
}
