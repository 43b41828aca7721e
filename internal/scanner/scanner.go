// Package scanner discovers video files under the configured sources, keeps
// inventory identities stable across moves, and feeds unlinked records to the
// transcript matcher.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"clipdex/internal/config"
	"clipdex/internal/identity"
	"clipdex/internal/inventory"
	"clipdex/internal/logging"
	"clipdex/internal/matcher"
	"clipdex/internal/media"
	"clipdex/internal/registry"
	"clipdex/internal/services"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
	".m4v":  {},
	".avi":  {},
}

// IsVideoFile reports whether a path has a recognized video extension.
func IsVideoFile(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Options adjust a scan run.
type Options struct {
	// Quick skips transcript matching; only discovery and missing-file
	// bookkeeping run.
	Quick bool
}

// Summary reports what one scan did.
type Summary struct {
	Discovered int
	New        int
	Moved      int
	Linked     int
	Missing    int
	Recovered  int
	Errors     int
}

// Scanner walks sources and reconciles the inventory against the filesystem.
type Scanner struct {
	cfg       *config.Config
	store     *inventory.Store
	extractor *media.Extractor
	matcher   *matcher.Matcher
	registry  *registry.Registry
	logger    *slog.Logger
	now       func() time.Time
}

func New(cfg *config.Config, store *inventory.Store, extractor *media.Extractor, m *matcher.Matcher, reg *registry.Registry, logger *slog.Logger) *Scanner {
	return &Scanner{
		cfg:       cfg,
		store:     store,
		extractor: extractor,
		matcher:   m,
		registry:  reg,
		logger:    logging.WithComponent(logger, "scanner"),
		now:       time.Now,
	}
}

// Scan walks every configured source plus the target directory, then updates
// the inventory in one persisted mutation. Running it twice in a row with an
// unchanged filesystem produces an identical inventory apart from the scan
// timestamp.
func (s *Scanner) Scan(ctx context.Context, opts Options) (Summary, error) {
	if len(s.cfg.Sources) == 0 {
		return Summary{}, services.Wrap(services.ErrConfiguration, "scanner", "scan", "no sources configured", nil)
	}

	paths, summary := s.discover(ctx)

	var transcripts []registry.Transcript
	if !opts.Quick {
		var err error
		transcripts, err = s.registry.Transcripts()
		if err != nil {
			s.logger.Warn("transcript knowledge base unavailable; skipping matching", logging.Error(err))
			summary.Errors++
		}
	}

	err := s.store.Mutate(func(inv *inventory.Inventory) error {
		s.reconcile(ctx, inv, paths, transcripts, opts, &summary)
		now := s.now().UTC()
		inv.LastScan = &now
		return nil
	})
	if err != nil {
		return summary, err
	}

	s.logger.Info("scan complete",
		logging.Int("discovered", summary.Discovered),
		logging.Int("new", summary.New),
		logging.Int("moved", summary.Moved),
		logging.Int("linked", summary.Linked),
		logging.Int("missing", summary.Missing),
		logging.Int("recovered", summary.Recovered),
		logging.Int("errors", summary.Errors),
	)
	return summary, nil
}

// discover walks the sources and target directory and returns every video
// file found, deduplicated and sorted for deterministic processing order.
func (s *Scanner) discover(ctx context.Context) ([]string, Summary) {
	var summary Summary
	seen := map[string]struct{}{}

	roots := make([]string, 0, len(s.cfg.Sources)+1)
	for _, src := range s.cfg.Sources {
		roots = append(roots, src.Path)
	}
	if s.cfg.Paths.TargetDir != "" {
		roots = append(roots, s.cfg.Paths.TargetDir)
	}

	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.Warn("walk error", logging.String(logging.FieldPath, path), logging.Error(err))
				summary.Errors++
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !IsVideoFile(path) {
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				summary.Errors++
				return nil
			}
			if _, dup := seen[abs]; !dup {
				seen[abs] = struct{}{}
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("source walk failed", logging.String(logging.FieldPath, root), logging.Error(err))
			summary.Errors++
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	summary.Discovered = len(paths)
	return paths, summary
}

func (s *Scanner) reconcile(ctx context.Context, inv *inventory.Inventory, paths []string, transcripts []registry.Transcript, opts Options, summary *Summary) {
	onDisk := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		onDisk[p] = struct{}{}
	}

	taken := inv.LinkedTranscriptIDs()

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		record := inv.ByCurrentPath(path)
		if record == nil {
			meta, err := s.extractor.Extract(ctx, path)
			if err != nil {
				s.logger.Warn("skipping unreadable file", logging.String(logging.FieldPath, path), logging.Error(err))
				summary.Errors++
				continue
			}
			if moved := s.findMoved(inv, meta, onDisk); moved != nil {
				s.logger.Info("video moved",
					logging.String(logging.FieldVideoID, moved.ID),
					logging.String("from", moved.CurrentPath),
					logging.String("to", path),
				)
				if moved.Status == inventory.StatusMissing {
					summary.Recovered++
				}
				moved.CurrentPath = path
				moved.ModifiedAt = meta.ModifiedAt
				moved.MarkSeen()
				summary.Moved++
				record = moved
			} else {
				record = &inventory.VideoRecord{
					ID:              identity.AssignID(path),
					Filename:        meta.Filename,
					OriginalPath:    path,
					CurrentPath:     path,
					SourceLabel:     s.sourceLabelFor(path),
					SizeBytes:       meta.SizeBytes,
					ModifiedAt:      meta.ModifiedAt,
					DurationSeconds: meta.DurationSeconds,
					Status:          inventory.StatusUnlinked,
				}
				inv.Videos[record.ID] = record
				summary.New++
				s.logger.Info("new video",
					logging.String(logging.FieldVideoID, record.ID),
					logging.String(logging.FieldPath, path),
				)
			}
		} else {
			if record.Status == inventory.StatusMissing {
				summary.Recovered++
				s.logger.Info("video recovered",
					logging.String(logging.FieldVideoID, record.ID),
					logging.String(logging.FieldPath, path),
				)
			}
			record.MarkSeen()
		}

		if opts.Quick || record.IsLinked() || record.Status == inventory.StatusProcessing {
			continue
		}
		if match, ok := s.matcher.Match(ctx, record, transcripts, taken); ok {
			if err := record.Link(match.TranscriptID, match.Confidence, s.now().UTC()); err != nil {
				s.logger.Warn("link refused", logging.String(logging.FieldVideoID, record.ID), logging.Error(err))
				summary.Errors++
				continue
			}
			taken[match.TranscriptID] = struct{}{}
			summary.Linked++
		}
	}

	// Records whose file vanished since the last scan.
	for _, record := range inv.Videos {
		if _, present := onDisk[record.CurrentPath]; present {
			continue
		}
		if record.Status == inventory.StatusMissing {
			continue
		}
		record.MarkMissing(s.now().UTC())
		summary.Missing++
		s.logger.Warn("video missing",
			logging.String(logging.FieldVideoID, record.ID),
			logging.String(logging.FieldPath, record.CurrentPath),
		)
	}
}

// findMoved locates a missing or stale record that matches the discovered
// file by name and size, so a relocated video keeps its identity.
func (s *Scanner) findMoved(inv *inventory.Inventory, meta media.Metadata, onDisk map[string]struct{}) *inventory.VideoRecord {
	var candidates []*inventory.VideoRecord
	for _, record := range inv.Videos {
		if record.Filename != meta.Filename || record.SizeBytes != meta.SizeBytes {
			continue
		}
		if _, stillThere := onDisk[record.CurrentPath]; stillThere {
			continue
		}
		candidates = append(candidates, record)
	}
	if len(candidates) != 1 {
		// Zero candidates means a genuinely new file; more than one is
		// ambiguous and safer to treat as new.
		return nil
	}
	return candidates[0]
}

func (s *Scanner) sourceLabelFor(path string) string {
	best := ""
	bestLen := -1
	for _, src := range s.cfg.Sources {
		prefix := strings.TrimSuffix(src.Path, string(filepath.Separator)) + string(filepath.Separator)
		if strings.HasPrefix(path, prefix) && len(prefix) > bestLen {
			best = src.Label
			bestLen = len(prefix)
		}
	}
	if best == "" && s.cfg.Paths.TargetDir != "" {
		prefix := strings.TrimSuffix(s.cfg.Paths.TargetDir, string(filepath.Separator)) + string(filepath.Separator)
		if strings.HasPrefix(path, prefix) {
			return "library"
		}
	}
	return best
}
