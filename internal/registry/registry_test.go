package registry_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipdex/internal/logging"
	"clipdex/internal/registry"
)

func writeTranscript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write transcript fixture: %v", err)
	}
	return path
}

func TestCategoryFor(t *testing.T) {
	cases := map[string]string{
		"12-quarterly-planning": "12",
		"31-intro":              "31",
		"nocategory":            "nocategory",
		" 12-padded ":           "12",
	}
	for id, want := range cases {
		if got := registry.CategoryFor(id); got != want {
			t.Errorf("CategoryFor(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	if got := registry.DisplayTitle("12-quarterly-planning"); got != "Quarterly Planning" {
		t.Fatalf("DisplayTitle = %q", got)
	}
	if got := registry.DisplayTitle("12-"); got != "" {
		t.Fatalf("DisplayTitle of bare category = %q, want empty", got)
	}
}

func TestLabelFallsBackToCode(t *testing.T) {
	reg := registry.New(t.TempDir(), map[string]string{"12": "Planning"}, logging.NewNop())
	if got := reg.Label("12"); got != "Planning" {
		t.Fatalf("Label(12) = %q", got)
	}
	if got := reg.Label("99"); got != "99" {
		t.Fatalf("Label(99) = %q, want code fallback", got)
	}
}

func TestTranscriptsParsesSourceHeaders(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "12-meeting.md", "source: /videos/team/meeting.mp4\nsource: /videos/backup/meeting.mp4\n\nWe discussed the roadmap.\n")
	writeTranscript(t, dir, "31-notes.txt", "Just body text with no headers.\n")
	writeTranscript(t, dir, "ignored.pdf", "binary-ish")

	reg := registry.New(dir, nil, logging.NewNop())
	transcripts, err := reg.Transcripts()
	if err != nil {
		t.Fatalf("Transcripts: %v", err)
	}
	if len(transcripts) != 2 {
		t.Fatalf("got %d transcripts, want 2", len(transcripts))
	}

	byID := map[string]registry.Transcript{}
	for _, tr := range transcripts {
		byID[tr.ID] = tr
	}
	meeting, ok := byID["12-meeting"]
	if !ok {
		t.Fatalf("12-meeting not found in %v", transcripts)
	}
	if len(meeting.SourcePaths) != 2 || meeting.SourcePaths[0] != "/videos/team/meeting.mp4" {
		t.Fatalf("unexpected source paths: %v", meeting.SourcePaths)
	}
	if notes := byID["31-notes"]; len(notes.SourcePaths) != 0 {
		t.Fatalf("headerless transcript should have no sources, got %v", notes.SourcePaths)
	}
}

func TestTranscriptsMissingDirectory(t *testing.T) {
	reg := registry.New(filepath.Join(t.TempDir(), "absent"), nil, logging.NewNop())
	transcripts, err := reg.Transcripts()
	if err != nil {
		t.Fatalf("Transcripts on absent dir: %v", err)
	}
	if len(transcripts) != 0 {
		t.Fatalf("expected empty knowledge base, got %v", transcripts)
	}
}

func TestLeadingTextSkipsHeaders(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "12-meeting.md", "source: /videos/meeting.mp4\ntags: planning, q3\n\nThe quick brown fox jumps over the lazy dog.\nSecond line.\n")

	reg := registry.New(dir, nil, logging.NewNop())
	transcripts, err := reg.Transcripts()
	if err != nil {
		t.Fatalf("Transcripts: %v", err)
	}
	text, err := reg.LeadingText(transcripts[0], 19)
	if err != nil {
		t.Fatalf("LeadingText: %v", err)
	}
	if text != "The quick brown fox" {
		t.Fatalf("LeadingText = %q", text)
	}
}

func TestSaveTranscriptDisambiguates(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New(dir, nil, logging.NewNop())

	first, err := reg.SaveTranscript("12", "Quarterly Planning", "/videos/q3.mp4", "Roadmap discussion.", []string{"planning"})
	if err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	if first.ID != "12-quarterly-planning" {
		t.Fatalf("first ID = %q", first.ID)
	}

	second, err := reg.SaveTranscript("12", "Quarterly Planning", "/videos/q4.mp4", "Another one.", nil)
	if err != nil {
		t.Fatalf("SaveTranscript second: %v", err)
	}
	if second.ID != "12-quarterly-planning-1" {
		t.Fatalf("second ID = %q", second.ID)
	}

	data, err := os.ReadFile(first.Path)
	if err != nil {
		t.Fatalf("read saved transcript: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "source: /videos/q3.mp4\n") {
		t.Fatalf("saved transcript missing source header:\n%s", content)
	}
	if !strings.Contains(content, "tags: planning\n") {
		t.Fatalf("saved transcript missing tags header:\n%s", content)
	}

	transcripts, err := reg.Transcripts()
	if err != nil {
		t.Fatalf("Transcripts after save: %v", err)
	}
	if len(transcripts) != 2 {
		t.Fatalf("got %d transcripts after save, want 2", len(transcripts))
	}
}
