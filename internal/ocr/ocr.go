// Package ocr recognizes coordinate text in preprocessed readout images.
//
// Recognition and parsing are split: an Engine produces ranked text
// candidates with confidence scores, and ParseCoordinate selects the
// candidate that matches the coordinate grammar. Engines are
// interchangeable behind the Engine interface and selected at session
// construction.
package ocr

import (
	"errors"
	"fmt"
	"image"
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/softsignal/maplock/internal/preprocess"
)

var (
	// ErrUnavailable indicates the recognition backend could not run at
	// all (missing engine, bad initialization). Transient from the
	// loop's point of view: retried with backoff.
	ErrUnavailable = errors.New("recognition engine unavailable")

	// ErrNoCoordinate indicates no candidate text matched the
	// coordinate grammar.
	ErrNoCoordinate = errors.New("no candidate matches coordinate grammar")

	// ErrLowConfidence indicates the best grammar match fell below the
	// configured confidence threshold.
	ErrLowConfidence = errors.New("best coordinate match below confidence threshold")
)

// coordPattern is the recognized coordinate grammar: two signed integers
// of up to six digits separated by a comma, with optional whitespace.
// The boundary guards keep digit runs longer than six from matching via
// a spliced subsequence ("1234567,8" is garbage, not (234567, 8)).
var coordPattern = regexp.MustCompile(`(?:^|[^\d-])(-?\d{1,6})\s*,\s*(-?\d{1,6})(?:$|[^\d])`)

// Coordinate is a parsed map coordinate with the confidence of the OCR
// candidate it came from. Coordinates are only produced by
// ParseCoordinate from text matching the grammar.
type Coordinate struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Confidence float64 `json:"confidence"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Candidate is one recognized text fragment with its confidence score
// (0.0 to 1.0) and bounding box within the recognized image.
type Candidate struct {
	Text       string
	Confidence float64
	Bounds     image.Rectangle
}

// Result holds recognition candidates in the engine's ranking order.
type Result struct {
	Candidates []Candidate
}

// Engine runs text recognition over a preprocessed image.
type Engine interface {
	Recognize(img *preprocess.Image) (*Result, error)
}

// ParseOptions controls candidate selection in ParseCoordinate.
type ParseOptions struct {
	// MinConfidence is the minimum confidence (0.0 to 1.0) for the
	// selected candidate.
	MinConfidence float64

	// ExpectedAt is the prior for where the coordinate text should sit
	// within the recognized image. Confidence ties are broken by
	// bounding-box distance to this point, which filters out unrelated
	// on-screen text that happens to look like a coordinate.
	ExpectedAt image.Point
}

// ParseCoordinate selects the best grammar-matching candidate and parses
// it into a Coordinate.
//
// Candidates are considered in descending confidence order; equal
// confidence is broken by distance of the bounding-box center to the
// ExpectedAt prior. Returns ErrNoCoordinate when nothing matches the
// grammar and ErrLowConfidence when the best match is below
// MinConfidence. Callers must treat the two differently: both count
// against the failure ceiling, but diagnosis differs.
func ParseCoordinate(res *Result, opts ParseOptions) (Coordinate, error) {
	if res == nil || len(res.Candidates) == 0 {
		return Coordinate{}, ErrNoCoordinate
	}

	type match struct {
		x, y int
		cand Candidate
		dist float64
	}

	var matches []match
	for _, cand := range res.Candidates {
		m := coordPattern.FindStringSubmatch(cand.Text)
		if m == nil {
			continue
		}
		x, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		y, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		center := cand.Bounds.Min.Add(cand.Bounds.Max).Div(2)
		dx := float64(center.X - opts.ExpectedAt.X)
		dy := float64(center.Y - opts.ExpectedAt.Y)
		matches = append(matches, match{x: x, y: y, cand: cand, dist: math.Hypot(dx, dy)})
	}

	if len(matches) == 0 {
		return Coordinate{}, ErrNoCoordinate
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].cand.Confidence != matches[j].cand.Confidence {
			return matches[i].cand.Confidence > matches[j].cand.Confidence
		}
		return matches[i].dist < matches[j].dist
	})

	best := matches[0]
	if best.cand.Confidence < opts.MinConfidence {
		return Coordinate{}, fmt.Errorf("%w: %.2f < %.2f for %q",
			ErrLowConfidence, best.cand.Confidence, opts.MinConfidence, best.cand.Text)
	}

	return Coordinate{X: best.x, Y: best.y, Confidence: best.cand.Confidence}, nil
}
