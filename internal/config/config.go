package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Source describes one scanned source directory.
type Source struct {
	Path  string `toml:"path"`
	Label string `toml:"label"`
}

// Paths contains directory configuration.
type Paths struct {
	TargetDir      string `toml:"target_dir"`
	DataDir        string `toml:"data_dir"`
	LogDir         string `toml:"log_dir"`
	TranscriptsDir string `toml:"transcripts_dir"`
}

// Matching contains transcript-matching thresholds. The thresholds and the
// sample window are tunable defaults, not hard invariants.
type Matching struct {
	PathThreshold    float64 `toml:"path_threshold"`
	ContentThreshold float64 `toml:"content_threshold"`
	SampleSeconds    int     `toml:"sample_seconds"`
	SampleChars      int     `toml:"sample_chars"`
}

// Transcriber contains configuration for the external transcription pipeline.
type Transcriber struct {
	FFmpegBinary         string `toml:"ffmpeg_binary"`
	FFprobeBinary        string `toml:"ffprobe_binary"`
	WhisperBinary        string `toml:"whisper_binary"`
	ModelPath            string `toml:"model_path"`
	Language             string `toml:"language"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	SampleTimeoutSeconds int    `toml:"sample_timeout_seconds"`
}

// Worker contains configuration for the background transcription worker.
type Worker struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipdex.
//
// Configuration sections by subsystem:
//   - Sources: scanned source directories with labels
//   - Paths: target/library layout and state directories
//   - Matching: transcript matching thresholds and sample window
//   - Transcriber: ffmpeg/whisper binaries, model, timeouts
//   - Worker: background worker polling
//   - Logging: log format and level
//   - Categories: category code to human-readable label overrides
type Config struct {
	Sources     []Source          `toml:"sources"`
	Paths       Paths             `toml:"paths"`
	Matching    Matching          `toml:"matching"`
	Transcriber Transcriber       `toml:"transcriber"`
	Worker      Worker            `toml:"worker"`
	Logging     Logging           `toml:"logging"`
	Categories  map[string]string `toml:"categories"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipdex/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// config file was found on disk.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipdex.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for operation. TargetDir
// is created best-effort so status queries work when storage is offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.TargetDir) != "" {
		_ = os.MkdirAll(c.Paths.TargetDir, 0o755)
	}
	if strings.TrimSpace(c.Paths.TranscriptsDir) != "" {
		_ = os.MkdirAll(c.Paths.TranscriptsDir, 0o755)
	}
	return nil
}

// InventoryPath returns the location of the inventory document.
func (c *Config) InventoryPath() string {
	return filepath.Join(c.Paths.DataDir, "inventory.json")
}

// QueueDBPath returns the location of the transcription queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
