package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSources(); err != nil {
		return err
	}
	c.normalizeMatching()
	c.normalizeTranscriber()
	c.normalizeWorker()
	c.normalizeLogging()
	if c.Categories == nil {
		c.Categories = map[string]string{}
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.TargetDir) == "" {
		c.Paths.TargetDir = defaultTargetDir
	}
	if c.Paths.TargetDir, err = expandPath(c.Paths.TargetDir); err != nil {
		return fmt.Errorf("paths.target_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TranscriptsDir) == "" {
		c.Paths.TranscriptsDir = defaultTranscriptsDir
	}
	if c.Paths.TranscriptsDir, err = expandPath(c.Paths.TranscriptsDir); err != nil {
		return fmt.Errorf("paths.transcripts_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSources() error {
	for i := range c.Sources {
		expanded, err := expandPath(strings.TrimSpace(c.Sources[i].Path))
		if err != nil {
			return fmt.Errorf("sources[%d].path: %w", i, err)
		}
		c.Sources[i].Path = expanded
		if strings.TrimSpace(c.Sources[i].Label) == "" {
			c.Sources[i].Label = labelFromPath(expanded)
		}
	}
	return nil
}

func (c *Config) normalizeMatching() {
	if c.Matching.PathThreshold == 0 {
		c.Matching.PathThreshold = defaultPathThreshold
	}
	if c.Matching.ContentThreshold == 0 {
		c.Matching.ContentThreshold = defaultContentThreshold
	}
	if c.Matching.SampleSeconds <= 0 {
		c.Matching.SampleSeconds = defaultSampleSeconds
	}
	if c.Matching.SampleChars <= 0 {
		c.Matching.SampleChars = defaultSampleChars
	}
}

func (c *Config) normalizeTranscriber() {
	if strings.TrimSpace(c.Transcriber.FFmpegBinary) == "" {
		c.Transcriber.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Transcriber.FFprobeBinary) == "" {
		c.Transcriber.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Transcriber.WhisperBinary) == "" {
		c.Transcriber.WhisperBinary = defaultWhisperBinary
	}
	if strings.TrimSpace(c.Transcriber.Language) == "" {
		c.Transcriber.Language = defaultLanguage
	}
	if c.Transcriber.TimeoutSeconds <= 0 {
		c.Transcriber.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Transcriber.SampleTimeoutSeconds <= 0 {
		c.Transcriber.SampleTimeoutSeconds = defaultSampleTimeoutSeconds
	}
	if strings.TrimSpace(c.Transcriber.ModelPath) != "" {
		if expanded, err := expandPath(c.Transcriber.ModelPath); err == nil {
			c.Transcriber.ModelPath = expanded
		}
	}
}

func (c *Config) normalizeWorker() {
	if c.Worker.PollIntervalSeconds <= 0 {
		c.Worker.PollIntervalSeconds = defaultPollIntervalSeconds
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func labelFromPath(path string) string {
	trimmed := strings.TrimRight(path, "/\\")
	if idx := strings.LastIndexAny(trimmed, "/\\"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return "source"
	}
	return trimmed
}
