package correct

import (
	"math"
	"testing"

	"github.com/softsignal/maplock/internal/ocr"
)

func coord(x, y int) ocr.Coordinate {
	return ocr.Coordinate{X: x, Y: y, Confidence: 1}
}

func TestPlan_ConvergenceWithinEpsilon(t *testing.T) {
	p := NewPlanner(50, 10, 2, 120)

	tests := []struct {
		name    string
		current ocr.Coordinate
	}{
		{"exact", coord(500, 500)},
		{"one off x", coord(499, 500)},
		{"one off y", coord(500, 501)},
		{"diagonal within epsilon", coord(499, 499)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, converged := p.Plan(tt.current, coord(500, 500))
			if !converged {
				t.Error("expected convergence")
			}
			if plan != nil {
				t.Errorf("converged call must not emit a plan, got %+v", plan)
			}
		})
	}

	if p.Attempts() != 0 {
		t.Errorf("converged calls must not consume attempts, got %d", p.Attempts())
	}
}

func TestPlan_CoarseModeCapped(t *testing.T) {
	p := NewPlanner(50, 10, 2, 120)

	plan, converged := p.Plan(coord(100, 100), coord(500, 500))
	if converged {
		t.Fatal("unexpected convergence")
	}
	if plan.Mode != ModeCoarse {
		t.Errorf("mode: got %s, want coarse", plan.Mode)
	}
	if mag := plan.Magnitude(); mag > 120 {
		t.Errorf("magnitude %.2f exceeds cap 120", mag)
	}
	if plan.DX <= 0 || plan.DY <= 0 {
		t.Errorf("plan (%d, %d) must point toward the target", plan.DX, plan.DY)
	}
	if plan.Attempt != 1 {
		t.Errorf("attempt: got %d, want 1", plan.Attempt)
	}
}

func TestPlan_CoarseDoesNotOvershoot(t *testing.T) {
	// Distance just above the coarse threshold but below the cap: the
	// step is the remaining distance, not the full cap.
	p := NewPlanner(50, 10, 2, 120)

	plan, _ := p.Plan(coord(0, 0), coord(60, 0))
	if plan.Mode != ModeCoarse {
		t.Fatalf("mode: got %s, want coarse", plan.Mode)
	}
	if plan.DX != 60 || plan.DY != 0 {
		t.Errorf("got (%d, %d), want (60, 0)", plan.DX, plan.DY)
	}
}

func TestPlan_FineModeDamping(t *testing.T) {
	p := NewPlanner(50, 10, 2, 120)

	farPlan, _ := p.Plan(coord(460, 500), coord(500, 500)) // distance 40
	nearPlan, _ := p.Plan(coord(490, 500), coord(500, 500)) // distance 10

	if farPlan.Mode != ModeFine || nearPlan.Mode != ModeFine {
		t.Fatalf("modes: got %s/%s, want fine/fine", farPlan.Mode, nearPlan.Mode)
	}
	if farPlan.Magnitude() > 10 {
		t.Errorf("fine step %.2f exceeds base step 10", farPlan.Magnitude())
	}
	if nearPlan.Magnitude() >= farPlan.Magnitude() {
		t.Errorf("damping: near step %.2f should be smaller than far step %.2f",
			nearPlan.Magnitude(), farPlan.Magnitude())
	}
}

func TestPlan_MinimumNudge(t *testing.T) {
	// Delta beyond epsilon but whose damped step rounds to zero still
	// yields a one-unit nudge instead of stalling.
	p := NewPlanner(50, 10, 2, 120)

	plan, converged := p.Plan(coord(497, 500), coord(500, 500))
	if converged {
		t.Fatal("distance 3 with epsilon 2 must not converge")
	}
	if plan.DX == 0 && plan.DY == 0 {
		t.Fatal("expected a minimum nudge, got a zero plan")
	}
	if plan.DX != 1 || plan.DY != 0 {
		t.Errorf("got (%d, %d), want dominant-axis nudge (1, 0)", plan.DX, plan.DY)
	}
}

func TestPlan_MinimumNudgeNegative(t *testing.T) {
	p := NewPlanner(50, 10, 1, 120)

	plan, converged := p.Plan(coord(500, 502), coord(500, 500))
	if converged {
		t.Fatal("unexpected convergence")
	}
	if plan.DX != 0 || plan.DY != -1 {
		t.Errorf("got (%d, %d), want (0, -1)", plan.DX, plan.DY)
	}
}

func TestPlan_AttemptCounterMonotonic(t *testing.T) {
	p := NewPlanner(50, 10, 2, 120)

	for want := 1; want <= 5; want++ {
		plan, _ := p.Plan(coord(0, 0), coord(1000, 1000))
		if plan.Attempt != want {
			t.Fatalf("attempt: got %d, want %d", plan.Attempt, want)
		}
	}
}

func TestPlan_ResetRestartsAttempts(t *testing.T) {
	p := NewPlanner(50, 10, 2, 120)

	for i := 0; i < 3; i++ {
		p.Plan(coord(0, 0), coord(1000, 1000))
	}
	if p.Attempts() != 3 {
		t.Fatalf("attempts before reset: got %d, want 3", p.Attempts())
	}

	p.Reset()
	if p.Attempts() != 0 {
		t.Errorf("attempts after reset: got %d, want 0", p.Attempts())
	}
	plan, _ := p.Plan(coord(0, 0), coord(1000, 1000))
	if plan.Attempt != 1 {
		t.Errorf("first attempt after reset: got %d, want 1", plan.Attempt)
	}
}

func TestPlan_RoundingNeverExceedsCap(t *testing.T) {
	// Diagonal deltas are the worst case: rounding both components up
	// can push the magnitude past the cap without the trim step.
	p := NewPlanner(10, 5, 1, 36)

	for d := 11; d < 200; d += 7 {
		plan, converged := p.Plan(coord(0, 0), coord(d, d))
		if converged {
			t.Fatalf("distance %d unexpectedly converged", d)
		}
		if mag := plan.Magnitude(); mag > 36 {
			t.Errorf("delta (%d,%d): magnitude %.3f exceeds cap 36", d, d, mag)
		}
	}
}

func TestPlan_SimulatedConvergence(t *testing.T) {
	// Monotonic progress: applying each plan strictly reduces the
	// distance until convergence, well within a sane attempt budget.
	p := NewPlanner(50, 10, 2, 120)
	current := coord(100, 100)
	target := coord(500, 500)
	lastDist := math.Inf(1)

	for i := 0; i < 60; i++ {
		plan, converged := p.Plan(current, target)
		if converged {
			return
		}
		current = coord(current.X+plan.DX, current.Y+plan.DY)

		dist := math.Hypot(float64(target.X-current.X), float64(target.Y-current.Y))
		if dist >= lastDist {
			t.Fatalf("iteration %d: distance %.2f did not decrease from %.2f", i, dist, lastDist)
		}
		lastDist = dist
	}
	t.Fatalf("did not converge within 60 iterations, final distance %.2f", lastDist)
}
