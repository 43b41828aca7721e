// Package registry reads the transcript knowledge base and resolves category
// codes.
//
// A transcript identifier is a structured code whose leading segment (before
// the first hyphen) is the category, e.g. "12-quarterly-planning" belongs to
// category "12". Transcript files live in a flat directory as .md or .txt,
// named after their identifier, with optional "source:" header lines recording
// the video file(s) they were produced from. Those recorded paths drive the
// path-similarity matching stage.
package registry

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipdex/internal/logging"
	"clipdex/internal/textutil"
)

const sourceHeaderPrefix = "source:"

var transcriptExtensions = map[string]struct{}{
	".md":  {},
	".txt": {},
}

var titleCaser = cases.Title(language.English)

// Transcript describes one known transcript in the knowledge base.
type Transcript struct {
	ID          string
	Path        string
	SourcePaths []string
}

// CategoryFor returns the leading category segment of a transcript identifier.
func CategoryFor(transcriptID string) string {
	trimmed := strings.TrimSpace(transcriptID)
	if idx := strings.Index(trimmed, "-"); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}

// DisplayTitle renders the slug portion of a transcript identifier for humans,
// e.g. "12-quarterly-planning" becomes "Quarterly Planning".
func DisplayTitle(transcriptID string) string {
	trimmed := strings.TrimSpace(transcriptID)
	if idx := strings.Index(trimmed, "-"); idx > 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(trimmed, "-", " "))
}

// Registry provides access to the transcript directory and category labels.
type Registry struct {
	dir    string
	labels map[string]string
	logger *slog.Logger
}

// New constructs a registry over the given transcript directory. The labels
// map (from configuration) overrides category display names.
func New(dir string, labels map[string]string, logger *slog.Logger) *Registry {
	cp := make(map[string]string, len(labels))
	for code, label := range labels {
		cp[strings.TrimSpace(code)] = strings.TrimSpace(label)
	}
	return &Registry{
		dir:    dir,
		labels: cp,
		logger: logging.WithComponent(logger, "registry"),
	}
}

// Dir returns the transcript directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Label returns the human-readable label for a category code. Unknown codes
// fall back to the code itself.
func (r *Registry) Label(code string) string {
	code = strings.TrimSpace(code)
	if label, ok := r.labels[code]; ok && label != "" {
		return label
	}
	return code
}

// Transcripts enumerates the knowledge base. A missing directory yields an
// empty list; unreadable individual files are logged and skipped, never fatal.
func (r *Registry) Transcripts() ([]Transcript, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transcript directory: %w", err)
	}

	transcripts := make([]Transcript, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := transcriptExtensions[ext]; !ok {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		sources, err := readSourceHeaders(path)
		if err != nil {
			r.logger.Warn("skipping unreadable transcript",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
			)
			continue
		}
		transcripts = append(transcripts, Transcript{
			ID:          strings.TrimSuffix(entry.Name(), ext),
			Path:        path,
			SourcePaths: sources,
		})
	}
	return transcripts, nil
}

// LeadingText returns up to maxChars characters of the transcript body,
// skipping header lines.
func (r *Registry) LeadingText(t Transcript, maxChars int) (string, error) {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return "", fmt.Errorf("read transcript %s: %w", t.ID, err)
	}
	body := stripHeaders(string(data))
	if maxChars > 0 && len(body) > maxChars {
		body = body[:maxChars]
	}
	return body, nil
}

// SaveTranscript writes a newly produced transcript into the knowledge base
// and returns its Transcript entry. The identifier is {category}-{slug(title)},
// disambiguated with a numeric suffix when taken.
func (r *Registry) SaveTranscript(category, title, sourcePath, text string, tags []string) (Transcript, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return Transcript{}, fmt.Errorf("category is required")
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return Transcript{}, fmt.Errorf("ensure transcript directory: %w", err)
	}

	base := category + "-" + textutil.Slug(title)
	id := base
	path := filepath.Join(r.dir, id+".md")
	for attempt := 1; ; attempt++ {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				break
			}
			return Transcript{}, fmt.Errorf("probe transcript path: %w", err)
		}
		id = fmt.Sprintf("%s-%d", base, attempt)
		path = filepath.Join(r.dir, id+".md")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", sourceHeaderPrefix, sourcePath)
	if len(tags) > 0 {
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(tags, ", "))
	}
	fmt.Fprintf(&b, "transcribed: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return Transcript{}, fmt.Errorf("write transcript: %w", err)
	}
	return Transcript{ID: id, Path: path, SourcePaths: []string{sourcePath}}, nil
}

func readSourceHeaders(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var sources []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		lowered := strings.ToLower(line)
		if strings.HasPrefix(lowered, sourceHeaderPrefix) {
			value := strings.TrimSpace(line[len(sourceHeaderPrefix):])
			if value != "" {
				sources = append(sources, value)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sources, nil
}

func stripHeaders(content string) string {
	lines := strings.Split(content, "\n")
	start := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			start = i + 1
			break
		}
		if !looksLikeHeader(line) {
			start = i
			break
		}
		start = i + 1
	}
	return strings.TrimSpace(strings.Join(lines[start:], "\n"))
}

func looksLikeHeader(line string) bool {
	trimmed := strings.TrimSpace(line)
	idx := strings.Index(trimmed, ":")
	if idx <= 0 {
		return false
	}
	key := trimmed[:idx]
	return !strings.ContainsAny(key, " \t")
}
