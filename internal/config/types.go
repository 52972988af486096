package config

import (
	"reflect"
	"time"

	"github.com/leonardotrapani/remotescribe/internal/notify"
)

type Config struct {
	General       GeneralConfig             `toml:"general"`
	Capture       CaptureConfig             `toml:"capture"`
	Recording     RecordingConfig           `toml:"recording"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Providers     map[string]ProviderConfig `toml:"providers"`
	Notifications NotificationsConfig       `toml:"notifications"`
	Metrics       MetricsConfig             `toml:"metrics"`
}

// GeneralConfig holds global settings that apply across the application
type GeneralConfig struct {
	LogFile       string `toml:"log_file"` // empty = stderr
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	ExportDir     string `toml:"export_dir"`
}

type CaptureConfig struct {
	Source            string `toml:"source"` // "pipewire" or "file"
	Path              string `toml:"path"`   // file source only; "-" = stdin
	Device            string `toml:"device"`
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	BitDepth          int    `toml:"bit_depth"`
	BufferSize        int    `toml:"buffer_size"`
	ChannelBufferSize int    `toml:"channel_buffer_size"`
}

type RecordingConfig struct {
	Dir         string        `toml:"dir"` // empty = system temp dir
	Prefix      string        `toml:"prefix"`
	QueueSize   int           `toml:"queue_size"`
	MaxDuration time.Duration `toml:"max_duration"` // 0 = unlimited
}

type TranscriptionConfig struct {
	Enabled   bool          `toml:"enabled"`
	Provider  string        `toml:"provider"`
	Language  string        `toml:"language"`
	Model     string        `toml:"model"`
	Interval  time.Duration `toml:"interval"`
	MaxBuffer time.Duration `toml:"max_buffer"`
}

// ProviderConfig holds credentials for a provider
type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type NotificationsConfig struct {
	Enabled  bool           `toml:"enabled"`
	Type     string         `toml:"type"` // "desktop", "log", "none"
	Messages MessagesConfig `toml:"messages"`
}

type MessageConfig struct {
	Title string `toml:"title"`
	Body  string `toml:"body"`
}

type MessagesConfig struct {
	RecordingStarted         MessageConfig `toml:"recording_started"`
	RecordingSaved           MessageConfig `toml:"recording_saved"`
	RecordingEmpty           MessageConfig `toml:"recording_empty"`
	RecordingFailed          MessageConfig `toml:"recording_failed"`
	Exported                 MessageConfig `toml:"exported"`
	TranscriptionUnavailable MessageConfig `toml:"transcription_unavailable"`
	ConfigReloaded           MessageConfig `toml:"config_reloaded"`
}

// Resolve merges user config with defaults from MessageDefs
func (m *MessagesConfig) Resolve() map[notify.MessageType]notify.Message {
	result := make(map[notify.MessageType]notify.Message)

	v := reflect.ValueOf(m).Elem()
	t := v.Type()
	tagToField := make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		tagToField[t.Field(i).Tag.Get("toml")] = i
	}

	for _, def := range notify.MessageDefs {
		msg := notify.Message{
			Title:   def.DefaultTitle,
			Body:    def.DefaultBody,
			IsError: def.IsError,
		}
		if idx, ok := tagToField[def.ConfigKey]; ok {
			userMsg := v.Field(idx).Interface().(MessageConfig)
			if userMsg.Title != "" {
				msg.Title = userMsg.Title
			}
			if userMsg.Body != "" {
				msg.Body = userMsg.Body
			}
		}
		result[def.Type] = msg
	}
	return result
}
