// Package scanner drives the scan-extract-correct loop.
//
// One Scanner runs one session at a time: capture a frame of the
// coordinate readout, preprocess it, recognize and parse the coordinate,
// validate it against the safety bounds, plan a bounded correction, and
// forward it to the pointer, repeating until converged, exhausted, or
// aborted. The loop is strictly sequential; pointer input is never issued
// concurrently with an in-flight screen read.
package scanner

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/softsignal/maplock/internal/capture"
	"github.com/softsignal/maplock/internal/correct"
	"github.com/softsignal/maplock/internal/ocr"
	"github.com/softsignal/maplock/internal/preprocess"
	"github.com/softsignal/maplock/internal/safety"
)

// Abort reasons reported in session results.
const (
	ReasonCancelled        = "cancelled"
	ReasonCaptureFailures  = "capture failure limit exceeded"
	ReasonExtractFailures  = "extraction failure limit exceeded"
	ReasonInputFailures    = "pointer input failure limit exceeded"
	ReasonAttemptsExceeded = "max attempts exceeded"
)

// state is the orchestrator's position in the loop. Terminal states are
// represented by returning; only live states appear here.
type state int

const (
	stateCapturing state = iota
	stateExtracting
	stateValidating
	stateCorrecting
)

// maxBackoff caps the retry delay regardless of the configured curve.
const maxBackoff = 2 * time.Second

// Pointer issues relative movements. Movement is relative, never
// absolute, so planner deltas apply directly.
type Pointer interface {
	MoveBy(dx, dy int) error
}

// Snapshotter records frames whose extraction failed, for offline
// diagnosis. Implementations must tolerate being called with any image.
type Snapshotter interface {
	Save(sessionID string, attempt int, img image.Image)
}

// Options tune loop behavior outside the safety bounds.
type Options struct {
	// RetryBackoff is the base delay before re-capturing after a
	// transient failure.
	RetryBackoff time.Duration

	// RetryBackoffFactor scales the delay per consecutive failure.
	// 1.0 gives a fixed delay, 2.0 doubles it each time.
	RetryBackoffFactor float64

	// SettleDelay is the pause between issuing a movement and the next
	// capture, so the map stops scrolling before the readout is
	// re-read.
	SettleDelay time.Duration

	// PixelsPerUnit converts planner deltas (map units) into pointer
	// pixels. Negative values flip the drag direction for maps that
	// scroll opposite to the pointer.
	PixelsPerUnit float64
}

// Scanner orchestrates one scan session at a time over a fixed set of
// collaborators.
type Scanner struct {
	source  capture.Source
	pre     *preprocess.Preprocessor
	engine  ocr.Engine
	parse   ocr.ParseOptions
	planner *correct.Planner
	guard   *safety.Guard
	pointer Pointer
	snap    Snapshotter

	region image.Rectangle
	opts   Options
	log    zerolog.Logger
}

// New builds a scanner. region is the absolute screen rectangle of the
// coordinate readout. snap may be nil.
func New(
	source capture.Source,
	pre *preprocess.Preprocessor,
	engine ocr.Engine,
	parse ocr.ParseOptions,
	planner *correct.Planner,
	guard *safety.Guard,
	pointer Pointer,
	snap Snapshotter,
	region image.Rectangle,
	opts Options,
) *Scanner {
	if opts.RetryBackoffFactor <= 0 {
		opts.RetryBackoffFactor = 1.0
	}
	if opts.PixelsPerUnit == 0 {
		opts.PixelsPerUnit = 1.0
	}
	return &Scanner{
		source:  source,
		pre:     pre,
		engine:  engine,
		parse:   parse,
		planner: planner,
		guard:   guard,
		pointer: pointer,
		snap:    snap,
		region:  region,
		opts:    opts,
		log:     log.With().Str("module", "scanner").Logger(),
	}
}

// Run executes one session toward the target. It always returns a
// terminal Result; no per-step error escapes the loop.
//
// Cancellation is checked at every state boundary, never mid-step, and
// transitions immediately to Aborted without issuing further input.
func (s *Scanner) Run(ctx context.Context, target ocr.Coordinate) *Result {
	ses := newSession(target)
	s.planner.Reset()
	slog := s.log.With().Str("session", ses.id).Logger()
	slog.Info().
		Str("target", target.String()).
		Int("max_attempts", s.guard.Bounds.MaxAttempts).
		Msg("session started")

	st := stateCapturing
	var frame *capture.Frame
	var coord ocr.Coordinate

	for {
		// State boundary checks: cancellation first, then wall time.
		// Duration is enforced even mid-retry.
		if ctx.Err() != nil {
			return s.finish(ses, ses.result(OutcomeAborted, ReasonCancelled))
		}
		if err := s.guard.CheckElapsed(ses.elapsed()); err != nil {
			return s.finish(ses, s.abortOn(ses, err))
		}

		switch st {
		case stateCapturing:
			f, err := s.source.Capture(ctx, s.region)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return s.finish(ses, ses.result(OutcomeAborted, ReasonCancelled))
				}
				slog.Warn().Err(err).Int("consecutive", ses.consecutiveFailures+1).Msg("capture failed")
				if done := s.recordFailure(ctx, ses); done {
					return s.finish(ses, ses.result(OutcomeAborted, ReasonCaptureFailures))
				}
				continue
			}
			frame = f
			st = stateExtracting

		case stateExtracting:
			c, err := s.extract(frame)
			if err != nil {
				// A stale or corrupted frame, not bad parsing
				// logic, is the common cause: re-capture.
				slog.Warn().Err(err).Int("consecutive", ses.consecutiveFailures+1).Msg("extraction failed")
				if s.snap != nil {
					s.snap.Save(ses.id, ses.attempts, frame.Img)
				}
				if done := s.recordFailure(ctx, ses); done {
					return s.finish(ses, ses.result(OutcomeAborted, ReasonExtractFailures))
				}
				st = stateCapturing
				continue
			}
			coord = c
			ses.observe(c)
			slog.Debug().Str("coordinate", c.String()).Float64("confidence", c.Confidence).Msg("coordinate extracted")
			st = stateValidating

		case stateValidating:
			if err := s.guard.CheckCoordinate(coord); err != nil {
				return s.finish(ses, s.abortOn(ses, err))
			}
			st = stateCorrecting

		case stateCorrecting:
			plan, converged := s.planner.Plan(coord, ses.target)
			if converged {
				return s.finish(ses, ses.result(OutcomeConverged, ""))
			}
			ses.attempts = plan.Attempt
			if ses.attempts > s.guard.Bounds.MaxAttempts {
				return s.finish(ses, ses.result(OutcomeExhausted, ReasonAttemptsExceeded))
			}
			if err := s.guard.CheckMovement(plan.DX, plan.DY); err != nil {
				return s.finish(ses, s.abortOn(ses, err))
			}

			dx := int(float64(plan.DX) * s.opts.PixelsPerUnit)
			dy := int(float64(plan.DY) * s.opts.PixelsPerUnit)
			if err := s.pointer.MoveBy(dx, dy); err != nil {
				slog.Warn().Err(err).Int("consecutive", ses.inputFailures+1).Msg("pointer move failed")
				ses.inputFailures++
				if ses.inputFailures > s.guard.Bounds.MaxConsecutiveFailures {
					return s.finish(ses, ses.result(OutcomeAborted, ReasonInputFailures))
				}
				if !sleepCtx(ctx, s.backoff(ses.inputFailures)) {
					return s.finish(ses, ses.result(OutcomeAborted, ReasonCancelled))
				}
				st = stateCapturing
				continue
			}
			ses.inputFailures = 0
			slog.Debug().
				Int("dx", plan.DX).Int("dy", plan.DY).
				Stringer("mode", plan.Mode).
				Int("attempt", plan.Attempt).
				Msg("movement issued")

			if !sleepCtx(ctx, s.opts.SettleDelay) {
				return s.finish(ses, ses.result(OutcomeAborted, ReasonCancelled))
			}
			st = stateCapturing
		}
	}
}

// extract runs preprocessing, recognition, and parsing over one frame.
func (s *Scanner) extract(frame *capture.Frame) (ocr.Coordinate, error) {
	img, err := s.pre.Prepare(frame, frame.Bounds())
	if err != nil {
		return ocr.Coordinate{}, err
	}
	res, err := s.engine.Recognize(img)
	if err != nil {
		return ocr.Coordinate{}, err
	}
	opts := s.parse
	if img.Scale != 1 {
		// The prior is configured in readout pixels; candidate boxes
		// come from the upscaled image.
		opts.ExpectedAt = image.Pt(
			int(float64(opts.ExpectedAt.X)*img.Scale),
			int(float64(opts.ExpectedAt.Y)*img.Scale),
		)
	}
	return ocr.ParseCoordinate(res, opts)
}

// recordFailure bumps the consecutive-failure counter and sleeps the
// backoff delay. Returns true when the ceiling is exceeded or the context
// was cancelled during the wait.
func (s *Scanner) recordFailure(ctx context.Context, ses *session) bool {
	ses.consecutiveFailures++
	if ses.consecutiveFailures > s.guard.Bounds.MaxConsecutiveFailures {
		return true
	}
	return !sleepCtx(ctx, s.backoff(ses.consecutiveFailures))
}

// backoff computes the retry delay for the nth consecutive failure.
func (s *Scanner) backoff(failures int) time.Duration {
	d := float64(s.opts.RetryBackoff)
	for i := 1; i < failures; i++ {
		d *= s.opts.RetryBackoffFactor
		if time.Duration(d) >= maxBackoff {
			return maxBackoff
		}
	}
	if time.Duration(d) > maxBackoff {
		return maxBackoff
	}
	return time.Duration(d)
}

// abortOn converts a guard error into an aborted result.
func (s *Scanner) abortOn(ses *session, err error) *Result {
	var v *safety.Violation
	if errors.As(err, &v) {
		return ses.result(OutcomeAborted, v.Reason)
	}
	return ses.result(OutcomeAborted, err.Error())
}

func (s *Scanner) finish(ses *session, res *Result) *Result {
	ev := s.log.Info().
		Str("session", ses.id).
		Stringer("outcome", res.Outcome).
		Int("attempts", res.Attempts).
		Dur("elapsed", res.Elapsed)
	if res.Reason != "" {
		ev = ev.Str("reason", res.Reason)
	}
	if res.Final != nil {
		ev = ev.Str("final", res.Final.String())
	}
	ev.Msg("session finished")
	return res
}

// sleepCtx waits for d or until ctx is cancelled. Returns false on
// cancellation. A zero or negative d returns immediately.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
