package config

import (
	"os"
	"path/filepath"

	"github.com/leonardotrapani/remotescribe/internal/capture"
	"github.com/leonardotrapani/remotescribe/internal/language"
	"github.com/leonardotrapani/remotescribe/internal/recording"
	"github.com/leonardotrapani/remotescribe/internal/transcriber"
)

var providerEnvVars = map[string]string{
	"openai": "OPENAI_API_KEY",
	"groq":   "GROQ_API_KEY",
}

func (c *Config) ToCaptureConfig() capture.Config {
	return capture.Config{
		Source:            c.Capture.Source,
		Path:              c.Capture.Path,
		Device:            c.Capture.Device,
		SampleRate:        c.Capture.SampleRate,
		Channels:          c.Capture.Channels,
		BitDepth:          c.Capture.BitDepth,
		BufferSize:        c.Capture.BufferSize,
		ChannelBufferSize: c.Capture.ChannelBufferSize,
	}
}

func (c *Config) ToRecordingConfig() recording.Config {
	return recording.Config{
		Dir:         expandHome(c.Recording.Dir),
		Prefix:      c.Recording.Prefix,
		QueueSize:   c.Recording.QueueSize,
		MaxDuration: c.Recording.MaxDuration,
	}
}

func (c *Config) ToTranscriberConfig() transcriber.Config {
	config := transcriber.Config{
		Provider:  c.Transcription.Provider,
		Language:  c.transcriptionLanguage(),
		Model:     c.Transcription.Model,
		Interval:  c.Transcription.Interval,
		MaxBuffer: c.Transcription.MaxBuffer,
	}
	config.APIKey = c.resolveAPIKeyForProvider(c.Transcription.Provider)
	if pc, ok := c.Providers[c.Transcription.Provider]; ok {
		config.BaseURL = pc.BaseURL
	}
	return config
}

// transcriptionLanguage is the configured locale reduced to the ISO 639-1
// code providers accept; Validate rejects anything it cannot reduce.
func (c *Config) transcriptionLanguage() string {
	code, _ := language.Normalize(c.Transcription.Language)
	return code
}

// ExportDir is where exported recordings go, defaulting to ~/Music/remotescribe.
func (c *Config) ExportDir() string {
	if c.General.ExportDir != "" {
		return expandHome(c.General.ExportDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appDir, "exports")
	}
	return filepath.Join(home, "Music", appDir)
}

// LogFile is the expanded general.log_file, empty when logging to stderr.
func (c *Config) LogFile() string {
	return expandHome(c.General.LogFile)
}

// resolveAPIKeyForProvider returns the API key for a provider from config or environment
func (c *Config) resolveAPIKeyForProvider(providerName string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[providerName]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}
	if envVar := providerEnvVars[providerName]; envVar != "" {
		return os.Getenv(envVar)
	}
	return ""
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
