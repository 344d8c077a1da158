// Package debug dumps frames that failed extraction, so bad reads can be
// inspected offline.
package debug

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vcaesar/imgo"
)

// Snapshots writes failing frames as PNGs named by session and attempt.
// Failures to write are logged and otherwise ignored; diagnosis output
// must never break the scan loop.
type Snapshots struct {
	dir string
	seq int
	log zerolog.Logger
}

// New returns a snapshot writer for dir, creating it if needed. Returns
// nil (and logs) when the directory cannot be created; callers treat a
// nil writer as "snapshots disabled".
func New(dir string) *Snapshots {
	logger := log.With().Str("module", "debug").Logger()
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("snapshot directory unavailable")
		return nil
	}
	return &Snapshots{dir: dir, log: logger}
}

// Save writes img to <dir>/<session-prefix>-attempt<NNN>-<seq>.png. The
// sequence number keeps consecutive failures at the same attempt from
// overwriting each other.
func (s *Snapshots) Save(sessionID string, attempt int, img image.Image) {
	if s == nil || img == nil {
		return
	}
	s.seq++
	prefix := sessionID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-attempt%03d-%03d.png", prefix, attempt, s.seq))
	if err := imgo.SaveToPNG(path, img); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to save snapshot")
		return
	}
	s.log.Debug().Str("path", path).Msg("saved failing frame")
}
