// Package preprocess normalizes captured frames for OCR.
//
// Game-map coordinate readouts are small, anti-aliased text over textured
// backgrounds. Recognition accuracy drops sharply below a font-size
// threshold and under background noise, so the pipeline crops, flattens to
// grayscale, boosts contrast, binarizes, and upscales before the image
// ever reaches the OCR engine.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"

	"github.com/softsignal/maplock/internal/capture"
)

// ErrInvalidRegion indicates the requested region does not lie within the
// frame's bounds or has no area.
var ErrInvalidRegion = errors.New("region outside frame bounds")

// Image is a frame region transformed for recognition. It keeps the source
// region for traceability but is otherwise independent of the frame.
type Image struct {
	// Img is the binarized (and possibly upscaled) grayscale image.
	Img image.Image

	// PNG is Img encoded as PNG, ready for OCR backends that consume
	// encoded bytes.
	PNG []byte

	// SourceRegion is the frame-relative region the image was cut from.
	SourceRegion image.Rectangle

	// Scale is the upscaling factor applied to reach MinTextHeight, 1
	// when the region kept its native size. Recognition bounding boxes
	// are in the scaled frame, so positions expressed in source-region
	// pixels must be multiplied by Scale before comparing.
	Scale float64
}

// Preprocessor applies the deterministic transform pipeline. The zero
// value is not usable; construct with New.
type Preprocessor struct {
	// Contrast is the contrast boost applied after grayscale conversion.
	// 0 is no change, 1.0 doubles the distance from mid-gray.
	Contrast float64

	// BlurRadius smooths binarization artifacts from text outlines.
	BlurRadius float64

	// MinTextHeight is the minimum output height in pixels. Regions
	// shorter than this are upscaled before recognition.
	MinTextHeight int

	// ThresholdBias shifts the automatically chosen binarization level.
	// Positive values classify more pixels as background.
	ThresholdBias int
}

// New returns a Preprocessor with the given tuning parameters.
func New(contrast, blurRadius float64, minTextHeight, thresholdBias int) *Preprocessor {
	return &Preprocessor{
		Contrast:      contrast,
		BlurRadius:    blurRadius,
		MinTextHeight: minTextHeight,
		ThresholdBias: thresholdBias,
	}
}

// Prepare transforms the given frame region into an OCR-ready image.
//
// The pipeline is pure: identical frame bytes and region always yield
// byte-identical output. Applied in order: crop, grayscale, contrast
// boost, Gaussian smoothing, luminance-derived binarization, and Lanczos
// upscaling when the region is below MinTextHeight.
func (p *Preprocessor) Prepare(frame *capture.Frame, region image.Rectangle) (*Image, error) {
	if frame == nil || frame.Img == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrInvalidRegion)
	}
	bounds := frame.Img.Bounds()
	if region.Empty() {
		return nil, fmt.Errorf("%w: empty region %v", ErrInvalidRegion, region)
	}
	if !region.In(bounds) {
		return nil, fmt.Errorf("%w: region %v not within frame %v", ErrInvalidRegion, region, bounds)
	}

	cropped := imaging.Crop(frame.Img, region)
	gray := imaging.Grayscale(cropped)
	boosted := adjust.Contrast(gray, p.Contrast)

	var smoothed image.Image = boosted
	if p.BlurRadius > 0 {
		smoothed = blur.Gaussian(boosted, p.BlurRadius)
	}

	level := thresholdLevel(smoothed, p.ThresholdBias)
	bin := segment.Threshold(smoothed, level)

	var out image.Image = bin
	scale := 1.0
	if h := bin.Bounds().Dy(); p.MinTextHeight > 0 && h < p.MinTextHeight {
		scale = float64(p.MinTextHeight) / float64(h)
		w := int(float64(bin.Bounds().Dx()) * scale)
		out = imaging.Resize(bin, w, p.MinTextHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode preprocessed image: %w", err)
	}

	return &Image{
		Img:          out,
		PNG:          buf.Bytes(),
		SourceRegion: region,
		Scale:        scale,
	}, nil
}
