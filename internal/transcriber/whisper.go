package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipdex/internal/config"
	"clipdex/internal/logging"
	"clipdex/internal/services"
)

// commandRunner abstracts process execution so tests can substitute recorded
// outputs for real ffmpeg/whisper invocations.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
	}
	return result, err
}

// WhisperTranscriber runs ffmpeg preprocessing followed by whisper.cpp. The
// audio is downmixed to 16 kHz mono PCM, which is what whisper.cpp expects.
type WhisperTranscriber struct {
	ffmpegBinary  string
	whisperBinary string
	modelPath     string
	language      string
	runner        commandRunner
	logger        *slog.Logger
}

// NewFromConfig builds the production transcriber, verifying up front that the
// model file and both external binaries can be found. Callers that can operate
// without content transcription treat the returned error as "unavailable"
// rather than fatal.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*WhisperTranscriber, error) {
	tc := cfg.Transcriber
	if strings.TrimSpace(tc.ModelPath) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcriber", "init", "whisper model path is not configured", nil)
	}
	if _, err := os.Stat(tc.ModelPath); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcriber", "init",
			fmt.Sprintf("whisper model not found at %s", tc.ModelPath), err)
	}
	for _, binary := range []string{tc.FFmpegBinary, tc.WhisperBinary} {
		if _, err := exec.LookPath(binary); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "transcriber", "init",
				fmt.Sprintf("%s not found in PATH", binary), err)
		}
	}
	return &WhisperTranscriber{
		ffmpegBinary:  tc.FFmpegBinary,
		whisperBinary: tc.WhisperBinary,
		modelPath:     tc.ModelPath,
		language:      tc.Language,
		runner:        execRunner{},
		logger:        logging.WithComponent(logger, "transcriber"),
	}, nil
}

// Transcribe extracts audio from the video at path and runs speech recognition
// over it. The temporary WAV workspace is removed before returning.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, path string, opts Options) (Result, error) {
	if _, err := os.Stat(path); err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "transcriber", "transcribe", "input video is not accessible", err)
	}

	workDir, err := os.MkdirTemp("", "clipdex-transcribe-*")
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "transcriber", "transcribe", "create temp workspace", err)
	}
	defer os.RemoveAll(workDir)

	audioPath := filepath.Join(workDir, "audio-16k-mono.wav")
	ffmpegArgs := w.ffmpegArgs(path, audioPath, opts.MaxDurationSeconds)

	started := time.Now()
	res, runErr := w.runner.Run(ctx, w.ffmpegBinary, ffmpegArgs...)
	if runErr != nil {
		return Result{}, w.commandError(ctx, "ffmpeg audio extraction failed", w.ffmpegBinary, res, runErr)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "transcriber", "transcribe",
			"ffmpeg completed but produced no audio output", err)
	}

	outputBase := filepath.Join(workDir, "transcript")
	whisperArgs := w.whisperArgs(audioPath, outputBase)

	res, runErr = w.runner.Run(ctx, w.whisperBinary, whisperArgs...)
	if runErr != nil {
		return Result{}, w.commandError(ctx, "whisper transcription failed", w.whisperBinary, res, runErr)
	}

	result, err := parseWhisperOutput(outputBase + ".json")
	if err != nil {
		return Result{}, err
	}

	w.logger.Info("transcription complete",
		logging.String(logging.FieldPath, path),
		logging.Int("segments", len(result.Segments)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (w *WhisperTranscriber) ffmpegArgs(inputPath, audioPath string, maxSeconds int) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
	}
	if maxSeconds > 0 {
		args = append(args, "-t", strconv.Itoa(maxSeconds))
	}
	return append(args,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		audioPath,
	)
}

func (w *WhisperTranscriber) whisperArgs(audioPath, outputBase string) []string {
	args := []string{
		"-m", w.modelPath,
		"-f", audioPath,
		"-of", outputBase,
		"-oj",
	}
	if lang := strings.TrimSpace(w.language); lang != "" && !strings.EqualFold(lang, "auto") {
		args = append(args, "-l", lang)
	}
	return args
}

func (w *WhisperTranscriber) commandError(ctx context.Context, message, binary string, res commandResult, runErr error) error {
	if ctx.Err() != nil {
		return services.Wrap(services.ErrTimeout, "transcriber", "transcribe", message, ctx.Err())
	}
	w.logger.Warn("external command failed",
		logging.String("binary", binary),
		logging.Int("exit_code", res.ExitCode),
		logging.String("stderr", tail(res.Stderr, 500)),
	)
	return services.Wrap(services.ErrExternalTool, "transcriber", "transcribe",
		fmt.Sprintf("%s (exit %d)", message, res.ExitCode), runErr)
}

// whisperOutput mirrors the JSON document whisper.cpp emits with -oj. Offsets
// are milliseconds from the start of the audio.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperOutput(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "transcriber", "transcribe",
			"whisper completed but produced no JSON output", err)
	}
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "transcriber", "transcribe",
			"whisper JSON output is malformed", err)
	}

	result := Result{Segments: make([]Segment, 0, len(out.Transcription))}
	var parts []string
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		result.Segments = append(result.Segments, Segment{
			Start: time.Duration(seg.Offsets.From) * time.Millisecond,
			End:   time.Duration(seg.Offsets.To) * time.Millisecond,
			Text:  text,
		})
		parts = append(parts, text)
	}
	result.Text = strings.Join(parts, " ")
	if n := len(result.Segments); n > 0 {
		result.DurationSeconds = result.Segments[n-1].End.Seconds()
	}
	return result, nil
}

func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
