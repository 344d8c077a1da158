package preprocess

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
)

// thresholdLevel picks a binarization level from the image's actual
// luminance rather than a fixed cutoff, so the same pipeline handles both
// light-on-dark and dark-on-light readouts. The level sits halfway between
// the mean perceptual lightness and white, shifted by bias.
func thresholdLevel(img image.Image, bias int) uint8 {
	bounds := img.Bounds()
	if bounds.Empty() {
		return 128
	}

	// Sample every other pixel; the readout region is small enough that
	// a half-resolution mean is stable.
	var sum float64
	var n int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 2 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 2 {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			l, _, _ := c.Lab()
			sum += l
			n++
		}
	}
	if n == 0 {
		return 128
	}

	mean := sum / float64(n) // 0..1
	level := int((mean+1.0)/2.0*255.0) + bias
	if level < 1 {
		level = 1
	}
	if level > 254 {
		level = 254
	}
	return uint8(level)
}
