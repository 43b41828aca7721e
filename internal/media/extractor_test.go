package media_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"clipdex/internal/logging"
	"clipdex/internal/media"
	"clipdex/internal/media/ffprobe"
)

func TestExtractReturnsMetadata(t *testing.T) {
	restore := media.SetProbeForTests(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{Format: ffprobe.Format{Duration: "93.5"}}, nil
	})
	t.Cleanup(restore)

	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	meta, err := media.NewExtractor("ffprobe", logging.NewNop()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.Filename != "clip.mp4" {
		t.Fatalf("filename = %q", meta.Filename)
	}
	if meta.SizeBytes != 10 {
		t.Fatalf("size = %d", meta.SizeBytes)
	}
	if meta.DurationSeconds != 93.5 {
		t.Fatalf("duration = %v", meta.DurationSeconds)
	}
}

func TestExtractToleratesProbeFailure(t *testing.T) {
	restore := media.SetProbeForTests(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("corrupt container")
	})
	t.Cleanup(restore)

	path := filepath.Join(t.TempDir(), "broken.mkv")
	if err := os.WriteFile(path, []byte("xx"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	meta, err := media.NewExtractor("ffprobe", logging.NewNop()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("probe failure must not drop the file: %v", err)
	}
	if meta.DurationSeconds != 0 {
		t.Fatalf("duration = %v, want 0", meta.DurationSeconds)
	}
}

func TestExtractUsesConfiguredProbeBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub probe script requires a POSIX shell")
	}
	dir := t.TempDir()
	binary := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat <<'EOF'\n{\"format\": {\"duration\": \"120.5\"}}\nEOF\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub probe: %v", err)
	}
	path := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(path, []byte("0123"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	meta, err := media.NewExtractor(binary, logging.NewNop()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.DurationSeconds != 120.5 {
		t.Fatalf("duration = %v, want 120.5 from the probe binary", meta.DurationSeconds)
	}
}

func TestExtractMissingFileFails(t *testing.T) {
	_, err := media.NewExtractor("ffprobe", logging.NewNop()).Extract(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))
	if err == nil {
		t.Fatal("expected stat error")
	}
}
