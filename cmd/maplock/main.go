// maplock locates a map position in a game window by OCR-reading the
// coordinate readout and issuing bounded corrective mouse movements until
// the readout matches the target.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/softsignal/maplock/internal/capture"
	"github.com/softsignal/maplock/internal/config"
	"github.com/softsignal/maplock/internal/correct"
	"github.com/softsignal/maplock/internal/debug"
	"github.com/softsignal/maplock/internal/mouse"
	"github.com/softsignal/maplock/internal/ocr"
	"github.com/softsignal/maplock/internal/preprocess"
	"github.com/softsignal/maplock/internal/safety"
	"github.com/softsignal/maplock/internal/scanner"
	"github.com/softsignal/maplock/internal/window"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var targetPattern = regexp.MustCompile(`^\s*(-?\d{1,6})\s*,\s*(-?\d{1,6})\s*$`)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("maplock %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		}
	}

	var (
		targetFlag = flag.String("target", "", "target coordinate as \"x,y\" (required)")
		configFlag = flag.String("config", "", "path to YAML configuration file")
		windowFlag = flag.String("window", "", "override the configured window title")
		debugFlag  = flag.String("debug-dir", "", "directory for failing-frame snapshots")
	)
	flag.Parse()

	// .env before anything reads the environment; missing file is fine.
	_ = godotenv.Load()

	setupLogging()

	target, err := parseTarget(*targetFlag)
	if err != nil {
		log.Error().Err(err).Msg("invalid -target")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(1)
	}
	if *windowFlag != "" {
		cfg.WindowTitle = *windowFlag
	}
	if *debugFlag != "" {
		cfg.DebugDir = *debugFlag
	}

	res, err := run(cfg, target)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}

	out, err := sonic.MarshalIndent(res, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("failed to encode result")
		os.Exit(1)
	}
	fmt.Println(string(out))

	switch res.Outcome {
	case scanner.OutcomeConverged:
		os.Exit(0)
	case scanner.OutcomeExhausted:
		os.Exit(2)
	default:
		os.Exit(3)
	}
}

func run(cfg *config.Config, target ocr.Coordinate) (*scanner.Result, error) {
	mgr := window.NewManager(cfg.WindowTitle, cfg.MinWindowWidth, cfg.MinWindowHeight)
	handle, err := mgr.Find()
	if err != nil {
		return nil, err
	}
	win, err := mgr.Region(handle)
	if err != nil {
		return nil, err
	}

	area := window.EffectiveArea(win, cfg.Margins)
	readout := window.SubRegion(area, cfg.ReadoutX1, cfg.ReadoutY1, cfg.ReadoutX2, cfg.ReadoutY2)
	log.Info().
		Stringer("window", win).
		Stringer("effective_area", area).
		Stringer("readout", readout).
		Msg("regions resolved")

	expected := image.Pt(cfg.ExpectedAtX, cfg.ExpectedAtY)
	if expected.Eq(image.Point{}) {
		// Default prior: the readout text sits in the middle of its
		// own region.
		expected = image.Pt(readout.Dx()/2, readout.Dy()/2)
	}

	pointer := mouse.NewController(area, cfg.PointerMargin)
	pointer.Recenter()

	var snap scanner.Snapshotter
	if s := debug.New(cfg.DebugDir); s != nil {
		snap = s
	}

	sc := scanner.New(
		capture.NewScreenSource(),
		preprocess.New(cfg.Contrast, cfg.BlurRadius, cfg.MinTextHeight, cfg.ThresholdBias),
		ocr.NewTesseractEngine(cfg.Language),
		ocr.ParseOptions{MinConfidence: cfg.MinConfidence, ExpectedAt: expected},
		correct.NewPlanner(cfg.CoarseThreshold, cfg.FineStep, cfg.Epsilon, cfg.MaxDeltaPerMove),
		safety.NewGuard(cfg.SafetyBounds()),
		pointer,
		snap,
		readout,
		scanner.Options{
			RetryBackoff:       cfg.RetryBackoff,
			RetryBackoffFactor: cfg.RetryBackoffFactor,
			SettleDelay:        cfg.SettleDelay,
			PixelsPerUnit:      cfg.PixelsPerUnit,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sc.Run(ctx, target), nil
}

func setupLogging() {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(os.Getenv("MAPLOCK_LOG_LEVEL")); err == nil && l != zerolog.NoLevel {
		level = l
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
}

// parseTarget parses "x,y" using the same grammar the OCR pipeline
// recognizes.
func parseTarget(s string) (ocr.Coordinate, error) {
	m := targetPattern.FindStringSubmatch(s)
	if m == nil {
		return ocr.Coordinate{}, fmt.Errorf("target %q must match \"x,y\"", s)
	}
	x, _ := strconv.Atoi(m[1])
	y, _ := strconv.Atoi(m[2])
	return ocr.Coordinate{X: x, Y: y, Confidence: 1}, nil
}
