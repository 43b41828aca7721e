// Package testsupport provides shared fixtures for package tests: throwaway
// configurations rooted in temp directories, fake video files, and a stubbed
// ffprobe.
package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"clipdex/internal/config"
	"clipdex/internal/media"
	"clipdex/internal/media/ffprobe"
	"clipdex/internal/transcriber"
)

// NewConfig returns a config rooted entirely in t.TempDir() with one source
// directory per label. All directories exist on return.
func NewConfig(t *testing.T, sourceLabels ...string) *config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Paths.TargetDir = filepath.Join(root, "organized")
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.TranscriptsDir = filepath.Join(root, "transcripts")

	for _, label := range sourceLabels {
		dir := filepath.Join(root, "src-"+label)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create source dir: %v", err)
		}
		cfg.Sources = append(cfg.Sources, config.Source{Path: dir, Label: label})
	}

	for _, dir := range []string{cfg.Paths.TargetDir, cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.TranscriptsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create config dir: %v", err)
		}
	}
	return &cfg
}

// SourceDir returns the configured source directory with the given label.
func SourceDir(t *testing.T, cfg *config.Config, label string) string {
	t.Helper()
	for _, src := range cfg.Sources {
		if src.Label == label {
			return src.Path
		}
	}
	t.Fatalf("no source labeled %q", label)
	return ""
}

// WriteVideo creates a fake video file of the given size and returns its path.
func WriteVideo(t *testing.T, dir, name string, size int) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create video dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Repeat("v", size)), 0o644); err != nil {
		t.Fatalf("write video fixture: %v", err)
	}
	return path
}

// StubProbe replaces the ffprobe call with a canned duration for the rest of
// the test.
func StubProbe(t *testing.T, durationSeconds string) {
	t.Helper()
	restore := media.SetProbeForTests(func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Format: ffprobe.Format{Duration: durationSeconds},
			Streams: []ffprobe.Stream{
				{CodecType: "video", CodecName: "h264"},
				{CodecType: "audio", CodecName: "aac"},
			},
		}, nil
	})
	t.Cleanup(restore)
}

// WriteTranscript drops a transcript file with source headers into the
// configured transcripts directory and returns its path.
func WriteTranscript(t *testing.T, cfg *config.Config, id string, sourcePaths []string, body string) string {
	t.Helper()
	var b strings.Builder
	for _, src := range sourcePaths {
		b.WriteString("source: " + src + "\n")
	}
	b.WriteString("\n")
	b.WriteString(body)
	path := filepath.Join(cfg.Paths.TranscriptsDir, id+".md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write transcript fixture: %v", err)
	}
	return path
}

// StubTranscriber is a canned Transcriber for matcher and worker tests.
type StubTranscriber struct {
	mu    sync.Mutex
	Text  string
	Err   error
	calls int
}

func (s *StubTranscriber) Transcribe(ctx context.Context, path string, opts transcriber.Options) (transcriber.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return transcriber.Result{}, s.Err
	}
	return transcriber.Result{Text: s.Text}, nil
}

// Calls reports how many transcriptions were requested.
func (s *StubTranscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
