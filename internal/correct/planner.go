// Package correct turns a coordinate delta into a bounded pointer
// movement.
//
// Two regimes: far from the target the planner emits large capped steps
// (coarse mode), near the target it emits small damped steps (fine mode).
// The split prevents both overshoot from full-distance jumps and
// oscillation around the target.
package correct

import (
	"math"

	"github.com/softsignal/maplock/internal/ocr"
)

// Mode tags a plan as coarse or fine.
type Mode int

const (
	ModeCoarse Mode = iota
	ModeFine
)

func (m Mode) String() string {
	if m == ModeCoarse {
		return "coarse"
	}
	return "fine"
}

// MarshalText lets plans render their mode as a string in reports.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// MovementPlan is a single bounded movement toward the target. Plans are
// created fresh each loop iteration and never persisted.
type MovementPlan struct {
	DX      int  `json:"dx"`
	DY      int  `json:"dy"`
	Mode    Mode `json:"mode"`
	Attempt int  `json:"attempt"`
}

// Magnitude returns the Euclidean length of the plan's vector.
func (p *MovementPlan) Magnitude() float64 {
	return math.Hypot(float64(p.DX), float64(p.DY))
}

// Planner computes movement plans. Not safe for concurrent use; one
// planner belongs to one scan session.
type Planner struct {
	// CoarseThreshold is the distance above which coarse mode applies.
	CoarseThreshold float64

	// FineStep is the base step size in fine mode, damped as the
	// remaining distance shrinks.
	FineStep float64

	// MaxStep caps the magnitude of any emitted plan. Mirrors the
	// guard's max-delta bound so a well-formed plan always passes the
	// movement check.
	MaxStep int

	// Epsilon is the convergence distance: at or below it, no plan is
	// emitted.
	Epsilon float64

	attempts int
}

// NewPlanner returns a planner with the given thresholds.
func NewPlanner(coarseThreshold, fineStep, epsilon float64, maxStep int) *Planner {
	return &Planner{
		CoarseThreshold: coarseThreshold,
		FineStep:        fineStep,
		MaxStep:         maxStep,
		Epsilon:         epsilon,
	}
}

// Attempts returns how many plans this planner has emitted since the
// last Reset.
func (p *Planner) Attempts() int {
	return p.attempts
}

// Reset clears the attempt counter so the planner can serve a new
// session.
func (p *Planner) Reset() {
	p.attempts = 0
}

// Plan computes the next movement from current toward target.
//
// Returns (nil, true) when the remaining distance is within Epsilon:
// converged, nothing to do. Otherwise returns a plan whose magnitude
// never exceeds MaxStep. A non-zero delta smaller than one step still
// yields a minimum one-unit nudge rather than a stall.
func (p *Planner) Plan(current, target ocr.Coordinate) (*MovementPlan, bool) {
	dx := float64(target.X - current.X)
	dy := float64(target.Y - current.Y)
	dist := math.Hypot(dx, dy)

	if dist <= p.Epsilon {
		return nil, true
	}

	p.attempts++

	var step float64
	mode := ModeFine
	if dist > p.CoarseThreshold {
		mode = ModeCoarse
		step = math.Min(float64(p.MaxStep), dist)
	} else {
		// Proportional damping: the step shrinks with the remaining
		// distance so the loop settles instead of oscillating.
		step = p.FineStep * dist / p.CoarseThreshold
		if step > dist {
			step = dist
		}
	}

	scale := step / dist
	plan := &MovementPlan{
		DX:      int(math.Round(dx * scale)),
		DY:      int(math.Round(dy * scale)),
		Mode:    mode,
		Attempt: p.attempts,
	}

	if plan.DX == 0 && plan.DY == 0 {
		// Sub-pixel delta: nudge along the dominant axis.
		if math.Abs(dx) >= math.Abs(dy) {
			plan.DX = sign(dx)
		} else {
			plan.DY = sign(dy)
		}
	}

	// Rounding both components up can push the magnitude fractionally
	// past MaxStep; trim the larger component until it fits.
	for p.MaxStep > 0 && plan.Magnitude() > float64(p.MaxStep) {
		if abs(plan.DX) >= abs(plan.DY) {
			plan.DX -= sign(float64(plan.DX))
		} else {
			plan.DY -= sign(float64(plan.DY))
		}
	}

	return plan, false
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	if v > 0 {
		return 1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
