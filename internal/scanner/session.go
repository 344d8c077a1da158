package scanner

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/softsignal/maplock/internal/ocr"
)

// Outcome is the terminal result of a scan session.
type Outcome int

const (
	// OutcomeConverged means the readout reached the target within
	// epsilon.
	OutcomeConverged Outcome = iota

	// OutcomeExhausted means the attempt budget ran out without a
	// safety inconsistency: ordinary failure to converge.
	OutcomeExhausted

	// OutcomeAborted means a safety violation, failure ceiling,
	// timeout, or cancellation halted automated input.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConverged:
		return "converged"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "aborted"
	}
}

// MarshalText renders the outcome as a string in JSON reports.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the session outcome reported to the caller. Best carries the
// closest coordinate seen even on aborted or exhausted sessions, to aid
// diagnosis.
type Result struct {
	SessionID string          `json:"session_id"`
	Outcome   Outcome         `json:"outcome"`
	Reason    string          `json:"reason,omitempty"`
	Final     *ocr.Coordinate `json:"final,omitempty"`
	Best      *ocr.Coordinate `json:"best,omitempty"`
	Attempts  int             `json:"attempts"`
	Elapsed   time.Duration   `json:"elapsed_ns"`
}

// session is the mutable state owned solely by the orchestrator for one
// run. Created at scan start, discarded when the loop terminates.
type session struct {
	id       string
	target   ocr.Coordinate
	started  time.Time
	attempts int

	// consecutiveFailures counts back-to-back capture or extraction
	// failures; reset by every successful extraction.
	consecutiveFailures int

	// inputFailures counts back-to-back pointer move failures; reset by
	// every successfully issued movement.
	inputFailures int

	current  *ocr.Coordinate
	best     *ocr.Coordinate
	bestDist float64
}

func newSession(target ocr.Coordinate) *session {
	return &session{
		id:       uuid.NewString(),
		target:   target,
		started:  time.Now(),
		bestDist: math.Inf(1),
	}
}

func (s *session) elapsed() time.Duration {
	return time.Since(s.started)
}

// observe records a successfully extracted coordinate, tracking the one
// closest to the target for the final report.
func (s *session) observe(c ocr.Coordinate) {
	s.current = &c
	s.consecutiveFailures = 0

	dist := math.Hypot(float64(s.target.X-c.X), float64(s.target.Y-c.Y))
	if dist < s.bestDist {
		s.bestDist = dist
		cc := c
		s.best = &cc
	}
}

func (s *session) result(outcome Outcome, reason string) *Result {
	return &Result{
		SessionID: s.id,
		Outcome:   outcome,
		Reason:    reason,
		Final:     s.current,
		Best:      s.best,
		Attempts:  s.attempts,
		Elapsed:   s.elapsed(),
	}
}
