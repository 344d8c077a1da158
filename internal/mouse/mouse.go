// Package mouse issues relative pointer movements clamped to the game
// area.
package mouse

import (
	"errors"
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInput indicates a pointer movement could not be issued.
var ErrInput = errors.New("pointer input failed")

// Controller moves the pointer relative to its current position, keeping
// it inside the effective game area with a safety margin. The pointer
// device is exclusively owned by the active session; no other actor may
// move it while a session is correcting.
type Controller struct {
	area   image.Rectangle
	margin int
	log    zerolog.Logger
}

// NewController returns a controller clamped to area with the given
// margin in pixels.
func NewController(area image.Rectangle, margin int) *Controller {
	return &Controller{
		area:   area,
		margin: margin,
		log:    log.With().Str("module", "mouse").Logger(),
	}
}

// Recenter moves the pointer to the center of the area. Called once
// before a session issues its first relative move, so clamping has a
// predictable starting point.
func (c *Controller) Recenter() {
	cx := c.area.Min.X + c.area.Dx()/2
	cy := c.area.Min.Y + c.area.Dy()/2
	robotgo.Move(cx, cy)
	c.log.Debug().Int("x", cx).Int("y", cy).Msg("pointer recentered")
}

// MoveBy moves the pointer by (dx, dy), clamped so the pointer never
// leaves the area minus the margin. Returns ErrInput when the move is
// rejected by the input layer.
func (c *Controller) MoveBy(dx, dy int) error {
	x, y := robotgo.Location()
	tx := clamp(x+dx, c.area.Min.X+c.margin, c.area.Max.X-c.margin)
	ty := clamp(y+dy, c.area.Min.Y+c.margin, c.area.Max.Y-c.margin)

	if !robotgo.MoveSmooth(tx, ty) {
		return fmt.Errorf("%w: move to (%d, %d)", ErrInput, tx, ty)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if lo > hi {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
