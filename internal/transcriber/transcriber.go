// Package transcriber produces speech-to-text transcripts from video files by
// driving ffmpeg and whisper.cpp as external tools.
package transcriber

import (
	"context"
	"time"
)

// Options control a single transcription run.
type Options struct {
	// MaxDurationSeconds caps how much of the input is transcribed. Zero
	// means the full file. Matching uses a short sample; the worker
	// transcribes in full.
	MaxDurationSeconds int
}

// Segment is one timed span of recognized speech.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result holds the recognized text for one input.
type Result struct {
	Text            string
	Segments        []Segment
	DurationSeconds float64
}

// Transcriber converts a video file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, opts Options) (Result, error)
}

// WithTimeout bounds every Transcribe call on tr with the given timeout.
// Matching uses this to keep sample transcriptions from stalling a scan.
func WithTimeout(tr Transcriber, timeout time.Duration) Transcriber {
	if timeout <= 0 {
		return tr
	}
	return timeoutTranscriber{inner: tr, timeout: timeout}
}

type timeoutTranscriber struct {
	inner   Transcriber
	timeout time.Duration
}

func (t timeoutTranscriber) Transcribe(ctx context.Context, path string, opts Options) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Transcribe(ctx, path, opts)
}
