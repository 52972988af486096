package config

import (
	"fmt"

	"github.com/leonardotrapani/remotescribe/internal/language"
)

func (c *Config) Validate() error {
	switch c.Capture.Source {
	case "pipewire":
	case "file":
		if c.Capture.Path == "" {
			return fmt.Errorf("invalid capture.path: empty (required for the file source, use \"-\" for stdin)")
		}
	default:
		return fmt.Errorf("invalid capture.source: %q (must be pipewire or file)", c.Capture.Source)
	}
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("invalid capture.sample_rate: %d", c.Capture.SampleRate)
	}
	if c.Capture.Channels <= 0 || c.Capture.Channels > 8 {
		return fmt.Errorf("invalid capture.channels: %d", c.Capture.Channels)
	}
	switch c.Capture.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("invalid capture.bit_depth: %d (must be 16, 24 or 32)", c.Capture.BitDepth)
	}
	if c.Capture.BufferSize <= 0 {
		return fmt.Errorf("invalid capture.buffer_size: %d", c.Capture.BufferSize)
	}
	if c.Capture.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid capture.channel_buffer_size: %d", c.Capture.ChannelBufferSize)
	}

	if c.Recording.Prefix == "" {
		return fmt.Errorf("invalid recording.prefix: empty")
	}
	if c.Recording.QueueSize <= 0 {
		return fmt.Errorf("invalid recording.queue_size: %d", c.Recording.QueueSize)
	}
	if c.Recording.MaxDuration < 0 {
		return fmt.Errorf("invalid recording.max_duration: %v", c.Recording.MaxDuration)
	}

	if c.Transcription.Enabled {
		if err := c.validateTranscription(); err != nil {
			return err
		}
	}

	if c.Notifications.Enabled {
		validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
		if !validTypes[c.Notifications.Type] {
			return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("invalid metrics.addr: empty")
	}

	return nil
}

func (c *Config) validateTranscription() error {
	apiKey := c.resolveAPIKeyForProvider(c.Transcription.Provider)

	switch c.Transcription.Provider {
	case "openai":
		if apiKey == "" {
			return fmt.Errorf("OpenAI API key required: not found in config (providers.openai.api_key) or environment variable (OPENAI_API_KEY)")
		}

	case "groq":
		if apiKey == "" {
			return fmt.Errorf("Groq API key required: not found in config (providers.groq.api_key) or environment variable (GROQ_API_KEY)")
		}
		validGroqModels := map[string]bool{"whisper-large-v3": true, "whisper-large-v3-turbo": true}
		if c.Transcription.Model != "" && !validGroqModels[c.Transcription.Model] {
			return fmt.Errorf("invalid model for groq: %s (must be whisper-large-v3 or whisper-large-v3-turbo)", c.Transcription.Model)
		}

	case "":
		return fmt.Errorf("invalid transcription.provider: empty")

	default:
		return fmt.Errorf("unsupported transcription.provider: %s (must be openai or groq)", c.Transcription.Provider)
	}

	if _, err := language.Normalize(c.Transcription.Language); err != nil {
		return fmt.Errorf("invalid transcription.language: %w (leave empty for auto-detect, or use a code like 'en' or 'en-US')", err)
	}
	if c.Transcription.Model == "" {
		return fmt.Errorf("invalid transcription.model: empty")
	}
	if c.Transcription.Interval < 0 {
		return fmt.Errorf("invalid transcription.interval: %v", c.Transcription.Interval)
	}
	if c.Transcription.MaxBuffer <= 0 {
		return fmt.Errorf("invalid transcription.max_buffer: %v", c.Transcription.MaxBuffer)
	}
	return nil
}
