package config

const (
	defaultDataDir  = "~/.local/share/demostudio"
	defaultMediaDir = "~/.local/share/demostudio/media"
	defaultLogDir   = "~/.local/share/demostudio/logs"
	defaultAPIBind  = "127.0.0.1:7311"

	defaultPollIntervalSeconds = 2
	defaultRetentionHours      = 24

	defaultSpeechBaseURL        = "https://api.elevenlabs.io"
	defaultSpeechVoice          = "rachel"
	defaultSpeechTimeoutSeconds = 60

	defaultThumbnailWidth  = 1280
	defaultThumbnailHeight = 720

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
//
// Lane policies mirror the cost profile of each lane: export jobs are
// expensive and user-triggered so they fail fast with a long backoff, while
// per-segment voice jobs are cheap and absorb more transient failures.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Queue: Queue{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			RetentionHours:      defaultRetentionHours,
			Transform: LanePolicy{
				Concurrency:    5,
				MaxAttempts:    3,
				BackoffSeconds: 2,
				TimeoutSeconds: 600,
				KeepCompleted:  10,
				KeepFailed:     5,
			},
			Voice: LanePolicy{
				Concurrency:    10,
				MaxAttempts:    3,
				BackoffSeconds: 1,
				TimeoutSeconds: 300,
				KeepCompleted:  10,
				KeepFailed:     5,
			},
			Export: LanePolicy{
				Concurrency:    3,
				MaxAttempts:    2,
				BackoffSeconds: 5,
				TimeoutSeconds: 1800,
				KeepCompleted:  5,
				KeepFailed:     3,
			},
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			DefaultVoice:   defaultSpeechVoice,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
		},
		Export: Export{
			ThumbnailWidth:  defaultThumbnailWidth,
			ThumbnailHeight: defaultThumbnailHeight,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
