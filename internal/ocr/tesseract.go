package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/softsignal/maplock/internal/preprocess"
)

// coordWhitelist restricts recognition to the characters that can appear
// in a coordinate readout. Cuts false reads from map decorations that
// resemble letters.
const coordWhitelist = "0123456789-, "

// TesseractEngine recognizes text using a local Tesseract installation
// via gosseract. A fresh client is created per call; gosseract clients
// are not safe to reuse across images with different settings.
type TesseractEngine struct {
	Language string
}

// NewTesseractEngine returns an engine for the given Tesseract language
// code (e.g. "eng").
func NewTesseractEngine(language string) *TesseractEngine {
	return &TesseractEngine{Language: language}
}

// Recognize runs Tesseract over the preprocessed image and returns
// line-level candidates in the engine's ranking order. Returns
// ErrUnavailable when the engine cannot be initialized or run.
func (e *TesseractEngine) Recognize(img *preprocess.Image) (*Result, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.Language); err != nil {
		return nil, fmt.Errorf("%w: set language: %v", ErrUnavailable, err)
	}
	if err := client.SetWhitelist(coordWhitelist); err != nil {
		return nil, fmt.Errorf("%w: set whitelist: %v", ErrUnavailable, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return nil, fmt.Errorf("%w: set page seg mode: %v", ErrUnavailable, err)
	}
	if err := client.SetImageFromBytes(img.PNG); err != nil {
		return nil, fmt.Errorf("%w: set image: %v", ErrUnavailable, err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		// Text without per-line confidence cannot be trusted for
		// automated input. Surface it with zero confidence so the
		// parse step rejects it instead of acting on it.
		text = strings.TrimSpace(text)
		if text == "" {
			return &Result{}, nil
		}
		return &Result{Candidates: []Candidate{{Text: text, Confidence: 0}}}, nil
	}

	candidates := make([]Candidate, 0, len(boxes))
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Text:       word,
			Confidence: box.Confidence / 100.0,
			Bounds:     box.Box,
		})
	}

	return &Result{Candidates: candidates}, nil
}
