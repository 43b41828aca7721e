package config

const (
	defaultTargetDir            = "~/videos/organized"
	defaultDataDir              = "~/.local/share/clipdex"
	defaultLogDir               = "~/.local/share/clipdex/logs"
	defaultTranscriptsDir       = "~/knowledge/transcripts"
	defaultPathThreshold        = 0.5
	defaultContentThreshold     = 0.7
	defaultSampleSeconds        = 60
	defaultSampleChars          = 500
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultWhisperBinary        = "whisper-cli"
	defaultModelPath            = "~/.local/share/clipdex/models"
	defaultLanguage             = "auto"
	defaultTimeoutSeconds       = 1800
	defaultSampleTimeoutSeconds = 120
	defaultPollIntervalSeconds  = 2
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TargetDir:      defaultTargetDir,
			DataDir:        defaultDataDir,
			LogDir:         defaultLogDir,
			TranscriptsDir: defaultTranscriptsDir,
		},
		Matching: Matching{
			PathThreshold:    defaultPathThreshold,
			ContentThreshold: defaultContentThreshold,
			SampleSeconds:    defaultSampleSeconds,
			SampleChars:      defaultSampleChars,
		},
		Transcriber: Transcriber{
			FFmpegBinary:         defaultFFmpegBinary,
			FFprobeBinary:        defaultFFprobeBinary,
			WhisperBinary:        defaultWhisperBinary,
			ModelPath:            defaultModelPath,
			Language:             defaultLanguage,
			TimeoutSeconds:       defaultTimeoutSeconds,
			SampleTimeoutSeconds: defaultSampleTimeoutSeconds,
		},
		Worker: Worker{
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Categories: map[string]string{},
	}
}
