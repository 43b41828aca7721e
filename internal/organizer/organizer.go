// Package organizer moves inventoried videos into the target library layout:
// linked videos into a directory named after their transcript category,
// everything else into _unlinked.
package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"clipdex/internal/config"
	"clipdex/internal/fileutil"
	"clipdex/internal/inventory"
	"clipdex/internal/logging"
	"clipdex/internal/registry"
	"clipdex/internal/services"
	"clipdex/internal/textutil"
)

// UnlinkedDir is the target subdirectory for videos without a transcript.
const UnlinkedDir = "_unlinked"

// Summary reports what one reorganize run did.
type Summary struct {
	Moved   int
	Skipped int
	Errors  int
}

// Organizer plans and executes library moves.
type Organizer struct {
	cfg    *config.Config
	store  *inventory.Store
	logger *slog.Logger
}

func New(cfg *config.Config, store *inventory.Store, logger *slog.Logger) *Organizer {
	return &Organizer{
		cfg:    cfg,
		store:  store,
		logger: logging.WithComponent(logger, "organizer"),
	}
}

// Reorganize moves every settled record to its computed destination. Each
// successful move is persisted before the next one starts, so a crash
// mid-run never leaves the inventory pointing at a stale path. A second run
// over an already organized library moves nothing.
func (o *Organizer) Reorganize(ctx context.Context) (Summary, error) {
	target := strings.TrimSpace(o.cfg.Paths.TargetDir)
	if target == "" {
		return Summary{}, services.Wrap(services.ErrConfiguration, "organizer", "reorganize", "target directory is not configured", nil)
	}

	inv, err := o.store.Load()
	if err != nil {
		return Summary{}, err
	}

	ids := make([]string, 0, len(inv.Videos))
	for id := range inv.Videos {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var summary Summary
	for _, id := range ids {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		record := inv.Videos[id]
		switch record.Status {
		case inventory.StatusMissing:
			summary.Skipped++
			continue
		case inventory.StatusProcessing:
			o.logger.Warn("skipping video with transcription in flight",
				logging.String(logging.FieldVideoID, record.ID),
			)
			summary.Skipped++
			continue
		}

		moved, err := o.place(record)
		if err != nil {
			o.logger.Warn("move failed",
				logging.String(logging.FieldVideoID, record.ID),
				logging.Error(err),
			)
			summary.Errors++
			continue
		}
		if moved {
			summary.Moved++
		} else {
			summary.Skipped++
		}
	}

	o.logger.Info("reorganize complete",
		logging.Int("moved", summary.Moved),
		logging.Int("skipped", summary.Skipped),
		logging.Int("errors", summary.Errors),
	)
	return summary, nil
}

// place moves one record into its destination directory and persists the new
// path. Returns false when the record is already where it belongs.
func (o *Organizer) place(record *inventory.VideoRecord) (bool, error) {
	destDir := filepath.Join(o.cfg.Paths.TargetDir, o.directoryFor(record))
	dest := filepath.Join(destDir, record.Filename)

	if samePath(record.CurrentPath, dest) {
		return false, nil
	}
	if fileutil.SameFile(record.CurrentPath, dest) {
		return false, nil
	}
	if _, err := os.Stat(record.CurrentPath); err != nil {
		return false, fmt.Errorf("source file not accessible: %w", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return false, fmt.Errorf("create destination directory: %w", err)
	}

	dest, err := resolveCollision(record.CurrentPath, dest)
	if err != nil {
		return false, err
	}
	if dest == record.CurrentPath {
		return false, nil
	}

	if err := fileutil.MoveFile(record.CurrentPath, dest); err != nil {
		return false, err
	}
	o.logger.Info("moved",
		logging.String(logging.FieldVideoID, record.ID),
		logging.String("from", record.CurrentPath),
		logging.String("to", dest),
	)

	record.CurrentPath = dest
	return true, o.store.Mutate(func(inv *inventory.Inventory) error {
		stored, ok := inv.Videos[record.ID]
		if !ok {
			return fmt.Errorf("record %s vanished during reorganize", record.ID)
		}
		stored.CurrentPath = dest
		return nil
	})
}

// directoryFor maps a record to its target subdirectory name. Linked records
// go under their category code so a relabeled category never moves files.
func (o *Organizer) directoryFor(record *inventory.VideoRecord) string {
	if !record.IsLinked() {
		return UnlinkedDir
	}
	name := textutil.SanitizeFileName(registry.CategoryFor(record.TranscriptID))
	if name == "" {
		return UnlinkedDir
	}
	return name
}

// resolveCollision returns a destination that does not clobber an existing
// file, appending _1, _2, ... before the extension as needed. If the existing
// occupant is the source itself, the original destination is returned.
func resolveCollision(source, dest string) (string, error) {
	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(dest, ext)
	candidate := dest
	for i := 1; ; i++ {
		_, err := os.Stat(candidate)
		if err != nil {
			if os.IsNotExist(err) {
				return candidate, nil
			}
			return "", fmt.Errorf("probe destination: %w", err)
		}
		if fileutil.SameFile(source, candidate) {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
