// Package capture provides screen frame acquisition for the scan loop.
//
// A Frame is an immutable snapshot of a screen region: once returned it is
// never written to again, so downstream stages may hold onto it freely.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/go-vgo/robotgo"
)

// ErrCapture indicates a screen capture attempt failed. Capture failures
// are transient: callers retry with backoff up to a configured ceiling.
var ErrCapture = errors.New("screen capture failed")

// Frame is a single captured screen region with its dimensions and the
// time the pixels were read.
type Frame struct {
	Img        image.Image
	Width      int
	Height     int
	CapturedAt time.Time
}

// Bounds returns the pixel bounds of the frame's image.
func (f *Frame) Bounds() image.Rectangle {
	return f.Img.Bounds()
}

// Source produces frames for a screen region.
type Source interface {
	Capture(ctx context.Context, region image.Rectangle) (*Frame, error)
}

// ScreenSource captures live pixels from the display.
type ScreenSource struct{}

// NewScreenSource returns a Source backed by the local display.
func NewScreenSource() *ScreenSource {
	return &ScreenSource{}
}

// Capture grabs the given screen region. The region is in absolute screen
// coordinates. Returns ErrCapture when the display read fails or yields an
// empty image.
func (s *ScreenSource) Capture(ctx context.Context, region image.Rectangle) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if region.Empty() {
		return nil, fmt.Errorf("%w: empty region %v", ErrCapture, region)
	}

	img, err := robotgo.CaptureImg(region.Min.X, region.Min.Y, region.Dx(), region.Dy())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty frame for region %v", ErrCapture, region)
	}

	return &Frame{
		Img:        img,
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		CapturedAt: time.Now(),
	}, nil
}
