package transcriber

import (
	"context"
	"fmt"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
)

// Adapter interface for batch transcription backends. wav is a complete
// RIFF/WAVE file.
type BatchAdapter interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Configuration for the transcriber
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Language string
	Model    string
	// Interval between partial transcriptions of the current window.
	Interval time.Duration
	// MaxBuffer bounds the audio window sent to the service.
	MaxBuffer time.Duration
}

func DefaultConfig() Config {
	return Config{
		Provider:  ProviderOpenAI,
		Model:     "whisper-1",
		Interval:  3 * time.Second,
		MaxBuffer: 60 * time.Second,
	}
}

// NewAdapter builds the BatchAdapter for config.Provider.
func NewAdapter(config Config) (BatchAdapter, error) {
	switch config.Provider {
	case ProviderOpenAI:
		if config.APIKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
		}
		return NewOpenAIAdapter(config), nil

	case ProviderGroq:
		if config.APIKey == "" {
			return nil, fmt.Errorf("groq: %w", ErrMissingAPIKey)
		}
		return NewGroqAdapter(config), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}

// NewTranscriber creates a transcriber backed by the configured provider.
func NewTranscriber(config Config, opts ...Option) (*Transcriber, error) {
	adapter, err := NewAdapter(config)
	if err != nil {
		return nil, err
	}
	return New(config, adapter, opts...), nil
}
