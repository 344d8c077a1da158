package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/softsignal/maplock/internal/capture"
)

// createTextFrame builds a frame with dark "glyph" blocks on a light
// background, roughly the shape of a coordinate readout.
func createTextFrame(width, height int) *capture.Frame {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, 200, 190, 255})
		}
	}
	// Glyph-like blocks.
	for _, bx := range []int{10, 20, 30, 45, 55} {
		for y := height / 4; y < 3*height/4; y++ {
			for x := bx; x < bx+6 && x < width; x++ {
				img.Set(x, y, color.RGBA{30, 30, 40, 255})
			}
		}
	}
	return &capture.Frame{Img: img, Width: width, Height: height, CapturedAt: time.Unix(0, 0)}
}

func TestPrepare_Deterministic(t *testing.T) {
	p := New(0.4, 0.8, 32, 0)
	frame := createTextFrame(80, 20)
	region := image.Rect(0, 0, 80, 20)

	first, err := p.Prepare(frame, region)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	second, err := p.Prepare(frame, region)
	if err != nil {
		t.Fatalf("second Prepare failed: %v", err)
	}

	if !bytes.Equal(first.PNG, second.PNG) {
		t.Error("identical input should yield byte-identical output")
	}
}

func TestPrepare_InvalidRegion(t *testing.T) {
	p := New(0.4, 0.8, 0, 0)
	frame := createTextFrame(80, 20)

	tests := []struct {
		name   string
		region image.Rectangle
	}{
		{"x out of bounds", image.Rect(0, 0, 81, 20)},
		{"y out of bounds", image.Rect(0, 0, 80, 21)},
		{"negative origin", image.Rect(-1, 0, 40, 20)},
		{"empty region", image.Rect(10, 10, 10, 10)},
		{"inverted region", image.Rect(40, 10, 10, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Prepare(frame, tt.region)
			if !errors.Is(err, ErrInvalidRegion) {
				t.Errorf("expected ErrInvalidRegion, got %v", err)
			}
		})
	}
}

func TestPrepare_NilFrame(t *testing.T) {
	p := New(0.4, 0.8, 0, 0)
	if _, err := p.Prepare(nil, image.Rect(0, 0, 10, 10)); !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("expected ErrInvalidRegion for nil frame, got %v", err)
	}
}

func TestPrepare_UpscalesSmallRegions(t *testing.T) {
	p := New(0.4, 0.8, 32, 0)
	frame := createTextFrame(80, 16)

	out, err := p.Prepare(frame, image.Rect(0, 0, 80, 16))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if got := out.Img.Bounds().Dy(); got != 32 {
		t.Errorf("height: got %d, want 32", got)
	}
	// Aspect ratio preserved: 80x16 doubled is 160x32.
	if got := out.Img.Bounds().Dx(); got != 160 {
		t.Errorf("width: got %d, want 160", got)
	}
	if out.Scale != 2.0 {
		t.Errorf("scale: got %v, want 2.0", out.Scale)
	}
}

func TestPrepare_KeepsLargeRegions(t *testing.T) {
	p := New(0.4, 0.8, 32, 0)
	frame := createTextFrame(100, 40)

	out, err := p.Prepare(frame, image.Rect(0, 0, 100, 40))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if got := out.Img.Bounds().Dy(); got != 40 {
		t.Errorf("height: got %d, want unchanged 40", got)
	}
	if out.Scale != 1.0 {
		t.Errorf("scale: got %v, want 1.0", out.Scale)
	}
}

func TestPrepare_BinarizesBeforeUpscale(t *testing.T) {
	// With no upscaling the output must be strictly two-level.
	p := New(0.4, 0, 0, 0)
	frame := createTextFrame(80, 40)

	out, err := p.Prepare(frame, image.Rect(0, 0, 80, 40))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	bounds := out.Img.Bounds()
	sawDark, sawLight := false, false
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := out.Img.At(x, y).RGBA()
			v := r >> 8
			if r != g || g != b {
				t.Fatalf("pixel (%d,%d) not grayscale", x, y)
			}
			switch v {
			case 0:
				sawDark = true
			case 255:
				sawLight = true
			default:
				t.Fatalf("pixel (%d,%d) value %d not binary", x, y, v)
			}
		}
	}
	if !sawDark || !sawLight {
		t.Error("expected both text and background pixels after thresholding")
	}
}

func TestPrepare_TracksSourceRegion(t *testing.T) {
	p := New(0.4, 0.8, 0, 0)
	frame := createTextFrame(80, 40)
	region := image.Rect(5, 5, 70, 30)

	out, err := p.Prepare(frame, region)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if out.SourceRegion != region {
		t.Errorf("SourceRegion: got %v, want %v", out.SourceRegion, region)
	}
}
