// Package media extracts filesystem and container metadata for inventoried
// video files.
package media

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"clipdex/internal/logging"
	"clipdex/internal/media/ffprobe"
)

// Metadata describes a single media file at scan time.
type Metadata struct {
	Filename        string
	SizeBytes       int64
	ModifiedAt      time.Time
	DurationSeconds float64
}

var probe = ffprobe.Inspect

// SetProbeForTests replaces the ffprobe invocation and returns a restore func.
func SetProbeForTests(fn func(ctx context.Context, binary, path string) (ffprobe.Result, error)) func() {
	previous := probe
	probe = fn
	return func() { probe = previous }
}

// Extractor produces Metadata for media files.
type Extractor struct {
	binary string
	logger *slog.Logger
}

// NewExtractor constructs an extractor using the given ffprobe binary.
func NewExtractor(binary string, logger *slog.Logger) *Extractor {
	return &Extractor{binary: binary, logger: logging.WithComponent(logger, "media")}
}

// Extract stats the file and probes its duration. A failed duration probe is
// tolerated: the file is still inventoried with DurationSeconds zero. Only a
// failed stat is an error.
func (e *Extractor) Extract(ctx context.Context, path string) (Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Metadata{}, err
	}

	meta := Metadata{
		Filename:   filepath.Base(path),
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime().UTC(),
	}

	result, probeErr := probe(ctx, e.binary, path)
	if probeErr != nil {
		e.logger.Warn("duration probe failed; inventorying without duration",
			logging.String(logging.FieldPath, path),
			logging.Error(probeErr),
		)
		return meta, nil
	}
	meta.DurationSeconds = result.DurationSeconds()
	return meta, nil
}
