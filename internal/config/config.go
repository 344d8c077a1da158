// Package config loads and validates the scanner configuration.
//
// Values come from defaults, an optional YAML file, and MAPLOCK_*
// environment variables, in increasing precedence. Invalid values are a
// startup error, never a per-iteration failure.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/softsignal/maplock/internal/safety"
	"github.com/softsignal/maplock/internal/window"
)

// ErrInvalid wraps every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full configuration surface consumed by the scanner and
// its collaborators. Constructed once at startup and passed by reference;
// no process-wide mutable state.
type Config struct {
	// Window discovery.
	WindowTitle     string
	MinWindowWidth  int
	MinWindowHeight int
	Margins         window.Margins

	// Readout region as fractions of the effective game area, plus the
	// expected-location prior in region pixels.
	ReadoutX1, ReadoutY1 float64
	ReadoutX2, ReadoutY2 float64
	ExpectedAtX          int
	ExpectedAtY          int

	// OCR.
	Language      string
	MinConfidence float64

	// Preprocessing.
	Contrast      float64
	BlurRadius    float64
	MinTextHeight int
	ThresholdBias int

	// Correction planning.
	CoarseThreshold float64
	FineStep        float64
	Epsilon         float64
	PixelsPerUnit   float64

	// Safety bounds.
	CoordMin               int
	CoordMax               int
	MaxDeltaPerMove        int
	MaxConsecutiveFailures int
	MaxAttempts            int
	MaxSessionDuration     time.Duration

	// Loop timing.
	RetryBackoff       time.Duration
	RetryBackoffFactor float64
	SettleDelay        time.Duration

	// Pointer clamping margin in pixels.
	PointerMargin int

	// DebugDir enables failure snapshots when non-empty.
	DebugDir string
}

// Load builds a Config from defaults, the optional file at path, and
// MAPLOCK_* environment variables, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MAPLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalid, path, err)
		}
	}

	cfg := &Config{
		WindowTitle:     v.GetString("window.title"),
		MinWindowWidth:  v.GetInt("window.min_width"),
		MinWindowHeight: v.GetInt("window.min_height"),
		Margins: window.Margins{
			Left:   v.GetFloat64("window.margin_left"),
			Right:  v.GetFloat64("window.margin_right"),
			Top:    v.GetFloat64("window.margin_top"),
			Bottom: v.GetFloat64("window.margin_bottom"),
		},
		ReadoutX1:   v.GetFloat64("readout.x1"),
		ReadoutY1:   v.GetFloat64("readout.y1"),
		ReadoutX2:   v.GetFloat64("readout.x2"),
		ReadoutY2:   v.GetFloat64("readout.y2"),
		ExpectedAtX: v.GetInt("readout.expected_x"),
		ExpectedAtY: v.GetInt("readout.expected_y"),

		Language:      v.GetString("ocr.language"),
		MinConfidence: v.GetFloat64("ocr.min_confidence"),

		Contrast:      v.GetFloat64("preprocess.contrast"),
		BlurRadius:    v.GetFloat64("preprocess.blur_radius"),
		MinTextHeight: v.GetInt("preprocess.min_text_height"),
		ThresholdBias: v.GetInt("preprocess.threshold_bias"),

		CoarseThreshold: v.GetFloat64("correction.coarse_threshold"),
		FineStep:        v.GetFloat64("correction.fine_step"),
		Epsilon:         v.GetFloat64("correction.epsilon"),
		PixelsPerUnit:   v.GetFloat64("correction.pixels_per_unit"),

		CoordMin:               v.GetInt("safety.coord_min"),
		CoordMax:               v.GetInt("safety.coord_max"),
		MaxDeltaPerMove:        v.GetInt("safety.max_delta_per_move"),
		MaxConsecutiveFailures: v.GetInt("safety.max_consecutive_failures"),
		MaxAttempts:            v.GetInt("safety.max_attempts"),
		MaxSessionDuration:     v.GetDuration("safety.max_session_duration"),

		RetryBackoff:       v.GetDuration("retry.backoff"),
		RetryBackoffFactor: v.GetFloat64("retry.backoff_factor"),
		SettleDelay:        v.GetDuration("capture.settle_delay"),

		PointerMargin: v.GetInt("pointer.margin"),
		DebugDir:      v.GetString("debug.dir"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("window.title", "Last War-Survival Game")
	v.SetDefault("window.min_width", 500)
	v.SetDefault("window.min_height", 300)
	v.SetDefault("window.margin_left", 0.06)
	v.SetDefault("window.margin_right", 0.12)
	v.SetDefault("window.margin_top", 0.08)
	v.SetDefault("window.margin_bottom", 0.12)

	v.SetDefault("readout.x1", 0.35)
	v.SetDefault("readout.y1", 0.0)
	v.SetDefault("readout.x2", 0.65)
	v.SetDefault("readout.y2", 0.08)
	v.SetDefault("readout.expected_x", 0)
	v.SetDefault("readout.expected_y", 0)

	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.min_confidence", 0.6)

	v.SetDefault("preprocess.contrast", 0.4)
	v.SetDefault("preprocess.blur_radius", 0.8)
	v.SetDefault("preprocess.min_text_height", 32)
	v.SetDefault("preprocess.threshold_bias", 0)

	v.SetDefault("correction.coarse_threshold", 50.0)
	v.SetDefault("correction.fine_step", 10.0)
	v.SetDefault("correction.epsilon", 2.0)
	v.SetDefault("correction.pixels_per_unit", 1.0)

	v.SetDefault("safety.coord_min", 0)
	v.SetDefault("safety.coord_max", 2000)
	v.SetDefault("safety.max_delta_per_move", 120)
	v.SetDefault("safety.max_consecutive_failures", 5)
	v.SetDefault("safety.max_attempts", 60)
	v.SetDefault("safety.max_session_duration", 2*time.Minute)

	v.SetDefault("retry.backoff", 250*time.Millisecond)
	v.SetDefault("retry.backoff_factor", 2.0)
	v.SetDefault("capture.settle_delay", 400*time.Millisecond)

	v.SetDefault("pointer.margin", 50)
	v.SetDefault("debug.dir", "")
}

// Validate checks every value the loop depends on. Returns an error
// wrapping ErrInvalid naming the first offending field.
func (c *Config) Validate() error {
	switch {
	case c.WindowTitle == "":
		return fmt.Errorf("%w: window.title must not be empty", ErrInvalid)
	case c.MinWindowWidth <= 0 || c.MinWindowHeight <= 0:
		return fmt.Errorf("%w: window minimum size must be positive", ErrInvalid)
	case !validMargin(c.Margins.Left) || !validMargin(c.Margins.Right) ||
		!validMargin(c.Margins.Top) || !validMargin(c.Margins.Bottom):
		return fmt.Errorf("%w: window margins must be in [0, 1)", ErrInvalid)
	case c.Margins.Left+c.Margins.Right >= 1 || c.Margins.Top+c.Margins.Bottom >= 1:
		return fmt.Errorf("%w: window margins leave no effective area", ErrInvalid)
	case c.ReadoutX1 < 0 || c.ReadoutY1 < 0 || c.ReadoutX2 > 1 || c.ReadoutY2 > 1:
		return fmt.Errorf("%w: readout fractions must be within [0, 1]", ErrInvalid)
	case c.ReadoutX1 >= c.ReadoutX2 || c.ReadoutY1 >= c.ReadoutY2:
		return fmt.Errorf("%w: readout region must have positive area", ErrInvalid)
	case c.Language == "":
		return fmt.Errorf("%w: ocr.language must not be empty", ErrInvalid)
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return fmt.Errorf("%w: ocr.min_confidence must be in [0, 1]", ErrInvalid)
	case c.CoarseThreshold <= 0:
		return fmt.Errorf("%w: correction.coarse_threshold must be positive", ErrInvalid)
	case c.FineStep <= 0:
		return fmt.Errorf("%w: correction.fine_step must be positive", ErrInvalid)
	case c.Epsilon < 0:
		return fmt.Errorf("%w: correction.epsilon must not be negative", ErrInvalid)
	case c.PixelsPerUnit == 0:
		return fmt.Errorf("%w: correction.pixels_per_unit must not be zero", ErrInvalid)
	case c.CoordMin >= c.CoordMax:
		return fmt.Errorf("%w: safety.coord_min must be below safety.coord_max", ErrInvalid)
	case c.MaxDeltaPerMove <= 0:
		return fmt.Errorf("%w: safety.max_delta_per_move must be positive", ErrInvalid)
	case c.MaxConsecutiveFailures <= 0:
		return fmt.Errorf("%w: safety.max_consecutive_failures must be positive", ErrInvalid)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("%w: safety.max_attempts must be positive", ErrInvalid)
	case c.MaxSessionDuration <= 0:
		return fmt.Errorf("%w: safety.max_session_duration must be positive", ErrInvalid)
	case c.RetryBackoff < 0:
		return fmt.Errorf("%w: retry.backoff must not be negative", ErrInvalid)
	case c.RetryBackoffFactor < 1:
		return fmt.Errorf("%w: retry.backoff_factor must be at least 1", ErrInvalid)
	case c.SettleDelay < 0:
		return fmt.Errorf("%w: capture.settle_delay must not be negative", ErrInvalid)
	case c.PointerMargin < 0:
		return fmt.Errorf("%w: pointer.margin must not be negative", ErrInvalid)
	}
	return nil
}

func validMargin(m float64) bool {
	return m >= 0 && m < 1
}

// SafetyBounds derives the session's read-only invariant set.
func (c *Config) SafetyBounds() safety.Bounds {
	return safety.Bounds{
		CoordMin:               c.CoordMin,
		CoordMax:               c.CoordMax,
		MaxDeltaPerMove:        c.MaxDeltaPerMove,
		MaxConsecutiveFailures: c.MaxConsecutiveFailures,
		MaxAttempts:            c.MaxAttempts,
		MaxSessionDuration:     c.MaxSessionDuration,
	}
}
