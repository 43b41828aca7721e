// Package matcher links video records to transcripts in two stages: path
// similarity against the source paths recorded in transcript headers, then
// content similarity between a sampled transcription and transcript text.
package matcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"clipdex/internal/config"
	"clipdex/internal/inventory"
	"clipdex/internal/logging"
	"clipdex/internal/registry"
	"clipdex/internal/textutil"
	"clipdex/internal/transcriber"
)

// Method records which stage produced a match.
type Method string

const (
	MethodPath    Method = "path"
	MethodContent Method = "content"
)

// Match is a candidate transcript link for one video record.
type Match struct {
	TranscriptID string
	Confidence   float64
	Method       Method
}

// PathSimilarity scores how alike two file paths are by counting matching
// trailing components. The score is the match count divided by the component
// count of the longer path, so renamed parent directories still score high
// when the tail of the path agrees.
func PathSimilarity(a, b string) float64 {
	ca := splitComponents(a)
	cb := splitComponents(b)
	if len(ca) == 0 || len(cb) == 0 {
		return 0
	}

	matched := 0
	for i, j := len(ca)-1, len(cb)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if !strings.EqualFold(ca[i], cb[j]) {
			break
		}
		matched++
	}

	longer := len(ca)
	if len(cb) > longer {
		longer = len(cb)
	}
	return float64(matched) / float64(longer)
}

func splitComponents(path string) []string {
	cleaned := filepath.ToSlash(filepath.Clean(strings.TrimSpace(path)))
	parts := strings.Split(cleaned, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}

// Matcher evaluates transcript candidates for video records. A nil transcriber
// disables the content stage; the matcher also disables it for the rest of a
// run after the first transcription failure so one broken tool does not stall
// a whole scan.
type Matcher struct {
	registry    *registry.Registry
	transcriber transcriber.Transcriber
	settings    config.Matching
	logger      *slog.Logger

	contentDisabled bool
	warnedDisabled  bool
}

// New builds a matcher. transcriber may be nil when speech-to-text tooling is
// unavailable.
func New(reg *registry.Registry, tr transcriber.Transcriber, settings config.Matching, logger *slog.Logger) *Matcher {
	return &Matcher{
		registry:    reg,
		transcriber: tr,
		settings:    settings,
		logger:      logging.WithComponent(logger, "matcher"),
	}
}

// Match finds the best transcript for a record among the given candidates.
// Transcripts whose ID is in taken are skipped so no transcript is linked to
// two videos. Returns false when nothing clears the configured thresholds.
func (m *Matcher) Match(ctx context.Context, record *inventory.VideoRecord, transcripts []registry.Transcript, taken map[string]struct{}) (Match, bool) {
	candidates := make([]registry.Transcript, 0, len(transcripts))
	for _, t := range transcripts {
		if _, linked := taken[t.ID]; linked {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return Match{}, false
	}

	if match, ok := m.matchByPath(record, candidates); ok {
		return match, true
	}
	return m.matchByContent(ctx, record, candidates)
}

// matchByPath compares each candidate's recorded source paths against the
// record's original and current locations. Both are checked because either the
// video or the transcript notes may predate a reorganization.
func (m *Matcher) matchByPath(record *inventory.VideoRecord, candidates []registry.Transcript) (Match, bool) {
	best := Match{Method: MethodPath}
	for _, t := range candidates {
		for _, source := range t.SourcePaths {
			score := PathSimilarity(source, record.OriginalPath)
			if s := PathSimilarity(source, record.CurrentPath); s > score {
				score = s
			}
			if score > best.Confidence {
				best.TranscriptID = t.ID
				best.Confidence = score
			}
		}
	}
	if best.Confidence > m.settings.PathThreshold && best.TranscriptID != "" {
		m.logger.Info("path match",
			logging.String(logging.FieldVideoID, record.ID),
			logging.String("transcript_id", best.TranscriptID),
			logging.Float64("confidence", best.Confidence),
		)
		return best, true
	}
	return Match{}, false
}

func (m *Matcher) matchByContent(ctx context.Context, record *inventory.VideoRecord, candidates []registry.Transcript) (Match, bool) {
	if m.transcriber == nil || m.contentDisabled {
		m.warnContentDisabled()
		return Match{}, false
	}

	sample, err := m.transcriber.Transcribe(ctx, record.CurrentPath, transcriber.Options{
		MaxDurationSeconds: m.settings.SampleSeconds,
	})
	if err != nil {
		m.contentDisabled = true
		m.logger.Warn("sample transcription failed; content matching disabled for this run",
			logging.String(logging.FieldVideoID, record.ID),
			logging.Error(err),
		)
		return Match{}, false
	}

	sampleFingerprint := textutil.NewFingerprint(sample.Text)
	if sampleFingerprint == nil {
		// No recognizable speech in the opening sample.
		return Match{}, false
	}

	best := Match{Method: MethodContent}
	for _, t := range candidates {
		text, err := m.registry.LeadingText(t, m.settings.SampleChars)
		if err != nil {
			m.logger.Warn("skipping unreadable transcript",
				logging.String("transcript_id", t.ID),
				logging.Error(err),
			)
			continue
		}
		score := textutil.CosineSimilarity(sampleFingerprint, textutil.NewFingerprint(text))
		if score > best.Confidence {
			best.TranscriptID = t.ID
			best.Confidence = score
		}
	}
	if best.Confidence > m.settings.ContentThreshold && best.TranscriptID != "" {
		m.logger.Info("content match",
			logging.String(logging.FieldVideoID, record.ID),
			logging.String("transcript_id", best.TranscriptID),
			logging.Float64("confidence", best.Confidence),
		)
		return best, true
	}
	return Match{}, false
}

func (m *Matcher) warnContentDisabled() {
	if m.transcriber != nil || m.warnedDisabled {
		return
	}
	m.warnedDisabled = true
	m.logger.Warn("transcriber unavailable; matching by path similarity only")
}
