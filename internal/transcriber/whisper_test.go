package transcriber

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipdex/internal/logging"
	"clipdex/internal/services"
)

type fakeRunner struct {
	calls []fakeCall
	run   func(call fakeCall) (commandResult, error)
}

type fakeCall struct {
	Name string
	Args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (commandResult, error) {
	call := fakeCall{Name: name, Args: args}
	f.calls = append(f.calls, call)
	return f.run(call)
}

func lastArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}

// argAfter returns the value following a flag, or "" when absent.
func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newTestTranscriber(runner commandRunner) *WhisperTranscriber {
	return &WhisperTranscriber{
		ffmpegBinary:  "ffmpeg",
		whisperBinary: "whisper-cli",
		modelPath:     "/models/ggml-base.bin",
		language:      "en",
		runner:        runner,
		logger:        logging.NewNop(),
	}
}

func writeVideoFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.mp4")
	if err := os.WriteFile(path, []byte("not a real video"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestTranscribeParsesSegments(t *testing.T) {
	video := writeVideoFixture(t)
	runner := &fakeRunner{}
	runner.run = func(call fakeCall) (commandResult, error) {
		switch call.Name {
		case "ffmpeg":
			if err := os.WriteFile(lastArg(call.Args), []byte("RIFF"), 0o644); err != nil {
				t.Fatalf("fake ffmpeg output: %v", err)
			}
		case "whisper-cli":
			base := argAfter(call.Args, "-of")
			payload := `{"transcription": [` +
				`{"offsets": {"from": 0, "to": 4000}, "text": " We discussed the quarterly roadmap."},` +
				`{"offsets": {"from": 4000, "to": 9500}, "text": " Action items follow."}]}`
			if err := os.WriteFile(base+".json", []byte(payload), 0o644); err != nil {
				t.Fatalf("fake whisper output: %v", err)
			}
		default:
			t.Fatalf("unexpected command %q", call.Name)
		}
		return commandResult{}, nil
	}

	result, err := newTestTranscriber(runner).Transcribe(context.Background(), video, Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(result.Segments))
	}
	if result.Text != "We discussed the quarterly roadmap. Action items follow." {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if result.DurationSeconds != 9.5 {
		t.Fatalf("duration = %v, want 9.5", result.DurationSeconds)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 external commands, got %d", len(runner.calls))
	}
}

func TestTranscribeSampleLimitsFFmpeg(t *testing.T) {
	video := writeVideoFixture(t)
	runner := &fakeRunner{}
	runner.run = func(call fakeCall) (commandResult, error) {
		switch call.Name {
		case "ffmpeg":
			if got := argAfter(call.Args, "-t"); got != "60" {
				t.Fatalf("ffmpeg -t = %q, want 60", got)
			}
			if err := os.WriteFile(lastArg(call.Args), []byte("RIFF"), 0o644); err != nil {
				t.Fatalf("fake ffmpeg output: %v", err)
			}
		case "whisper-cli":
			base := argAfter(call.Args, "-of")
			if err := os.WriteFile(base+".json", []byte(`{"transcription": []}`), 0o644); err != nil {
				t.Fatalf("fake whisper output: %v", err)
			}
		}
		return commandResult{}, nil
	}

	result, err := newTestTranscriber(runner).Transcribe(context.Background(), video, Options{MaxDurationSeconds: 60})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "" || len(result.Segments) != 0 {
		t.Fatalf("expected empty result for silent sample, got %+v", result)
	}
}

func TestTranscribeFFmpegFailure(t *testing.T) {
	video := writeVideoFixture(t)
	runner := &fakeRunner{}
	runner.run = func(call fakeCall) (commandResult, error) {
		return commandResult{ExitCode: 1, Stderr: "No such device"}, errors.New("exit status 1")
	}

	_, err := newTestTranscriber(runner).Transcribe(context.Background(), video, Options{})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "ffmpeg") {
		t.Fatalf("error should name ffmpeg: %v", err)
	}
}

func TestTranscribeCanceledContext(t *testing.T) {
	video := writeVideoFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{}
	runner.run = func(call fakeCall) (commandResult, error) {
		cancel()
		return commandResult{ExitCode: -1}, context.Canceled
	}

	_, err := newTestTranscriber(runner).Transcribe(ctx, video, Options{})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
}

func TestTranscribeMissingInput(t *testing.T) {
	runner := &fakeRunner{run: func(fakeCall) (commandResult, error) {
		return commandResult{}, nil
	}}
	_, err := newTestTranscriber(runner).Transcribe(context.Background(), "/nope/missing.mp4", Options{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
