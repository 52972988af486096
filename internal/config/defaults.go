package config

import "time"

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			LogFile:       "",
			LogMaxSizeMB:  10,
			LogMaxBackups: 3,
			ExportDir:     "",
		},
		Capture: CaptureConfig{
			Source:            "pipewire",
			Device:            "",
			SampleRate:        16000,
			Channels:          1,
			BitDepth:          16,
			BufferSize:        8192,
			ChannelBufferSize: 30,
		},
		Recording: RecordingConfig{
			Dir:         "",
			Prefix:      "recording",
			QueueSize:   64,
			MaxDuration: 0,
		},
		Transcription: TranscriptionConfig{
			Enabled:   false,
			Provider:  "openai",
			Language:  "",
			Model:     "whisper-1",
			Interval:  3 * time.Second,
			MaxBuffer: 60 * time.Second,
		},
		Providers: make(map[string]ProviderConfig),
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "log",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}
