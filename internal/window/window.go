// Package window discovers the game window and derives the screen
// regions the scan loop works in.
package window

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/go-vgo/robotgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound indicates no window matched the title pattern.
	ErrNotFound = errors.New("window not found")

	// ErrUnusable indicates the window was found but cannot host a
	// scan (too small, empty bounds).
	ErrUnusable = errors.New("window unusable")
)

// Handle identifies a discovered window.
type Handle struct {
	PID   int32
	Title string
}

// Margins exclude window chrome and game UI panels from the usable area,
// as fractions of the window dimensions.
type Margins struct {
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
}

// Manager finds and tracks one game window per session.
type Manager struct {
	titlePattern string
	minWidth     int
	minHeight    int
	log          zerolog.Logger
}

// NewManager returns a manager that matches windows whose title contains
// titlePattern and rejects windows smaller than the given minimum.
func NewManager(titlePattern string, minWidth, minHeight int) *Manager {
	return &Manager{
		titlePattern: titlePattern,
		minWidth:     minWidth,
		minHeight:    minHeight,
		log:          log.With().Str("module", "window").Logger(),
	}
}

// Find locates the first window matching the title pattern and raises it.
func (m *Manager) Find() (*Handle, error) {
	ids, err := robotgo.FindIds(m.titlePattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrNotFound, m.titlePattern, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, m.titlePattern)
	}

	pid := ids[0]
	title := strings.TrimSpace(robotgo.GetTitle(pid))
	if err := robotgo.ActivePid(pid); err != nil {
		m.log.Warn().Err(err).Int32("pid", pid).Msg("could not raise window; continuing")
	}
	m.log.Info().Int32("pid", pid).Str("title", title).Msg("window found")

	return &Handle{PID: pid, Title: title}, nil
}

// Region returns the window's bounds in absolute screen coordinates.
// Consumed once per session, and again on capture retries if the handle
// becomes invalid.
func (m *Manager) Region(h *Handle) (image.Rectangle, error) {
	x, y, w, hgt := robotgo.GetBounds(h.PID)
	if w <= 0 || hgt <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: empty bounds for pid %d", ErrUnusable, h.PID)
	}
	if w < m.minWidth || hgt < m.minHeight {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d below minimum %dx%d",
			ErrUnusable, w, hgt, m.minWidth, m.minHeight)
	}
	return image.Rect(x, y, x+w, y+hgt), nil
}

// EffectiveArea shrinks the window rectangle by the UI margins, leaving
// the portion of the window that actually shows the map.
func EffectiveArea(win image.Rectangle, m Margins) image.Rectangle {
	w := float64(win.Dx())
	h := float64(win.Dy())
	return image.Rect(
		win.Min.X+int(w*m.Left),
		win.Min.Y+int(h*m.Top),
		win.Max.X-int(w*m.Right),
		win.Max.Y-int(h*m.Bottom),
	)
}

// SubRegion cuts a fractional rectangle out of area. Fractions are
// relative to the area's own width and height, so the same configuration
// works across window sizes.
func SubRegion(area image.Rectangle, fx1, fy1, fx2, fy2 float64) image.Rectangle {
	w := float64(area.Dx())
	h := float64(area.Dy())
	return image.Rect(
		area.Min.X+int(w*fx1),
		area.Min.Y+int(h*fy1),
		area.Min.X+int(w*fx2),
		area.Min.Y+int(h*fy2),
	)
}
