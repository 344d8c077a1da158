// Package safety validates extractions and planned movements against
// configured bounds.
//
// A violation means the automation's model of the screen may be wrong
// (window moved, game state changed, wrong region captured). Violations
// are always fatal to the session and never retried: the design trades
// availability for never issuing unintended input.
package safety

import (
	"fmt"
	"math"
	"time"

	"github.com/softsignal/maplock/internal/ocr"
)

// Bounds is the configuration-derived invariant set for one session.
// Read-only for the session's lifetime.
type Bounds struct {
	// CoordMin and CoordMax delimit the allowed coordinate value range
	// on both axes.
	CoordMin int
	CoordMax int

	// MaxDeltaPerMove caps the magnitude of a single movement.
	MaxDeltaPerMove int

	// MaxConsecutiveFailures caps back-to-back capture or extraction
	// failures before the session aborts.
	MaxConsecutiveFailures int

	// MaxAttempts caps full correction loops before the session is
	// declared exhausted.
	MaxAttempts int

	// MaxSessionDuration caps total session wall time.
	MaxSessionDuration time.Duration
}

// Violation is a detected safety inconsistency. Always fatal.
type Violation struct {
	Reason string
}

func (v *Violation) Error() string {
	return "safety violation: " + v.Reason
}

// Guard checks coordinates, movements, and session progress against a
// fixed set of bounds.
type Guard struct {
	Bounds Bounds
}

// NewGuard returns a guard enforcing the given bounds.
func NewGuard(b Bounds) *Guard {
	return &Guard{Bounds: b}
}

// CheckCoordinate verifies the extracted coordinate lies within the
// allowed range.
func (g *Guard) CheckCoordinate(c ocr.Coordinate) error {
	b := g.Bounds
	if c.X < b.CoordMin || c.X > b.CoordMax || c.Y < b.CoordMin || c.Y > b.CoordMax {
		return &Violation{Reason: fmt.Sprintf(
			"coordinate %s outside allowed range [%d, %d]", c, b.CoordMin, b.CoordMax)}
	}
	return nil
}

// CheckMovement verifies a planned movement's magnitude does not exceed
// the per-move cap.
func (g *Guard) CheckMovement(dx, dy int) error {
	mag := math.Hypot(float64(dx), float64(dy))
	if mag > float64(g.Bounds.MaxDeltaPerMove) {
		return &Violation{Reason: fmt.Sprintf(
			"movement (%d, %d) magnitude %.1f exceeds max delta per move %d",
			dx, dy, mag, g.Bounds.MaxDeltaPerMove)}
	}
	return nil
}

// CheckElapsed verifies the session has not exceeded its duration bound.
func (g *Guard) CheckElapsed(elapsed time.Duration) error {
	if elapsed > g.Bounds.MaxSessionDuration {
		return &Violation{Reason: fmt.Sprintf(
			"session duration %s exceeds limit %s", elapsed.Round(time.Millisecond), g.Bounds.MaxSessionDuration)}
	}
	return nil
}
