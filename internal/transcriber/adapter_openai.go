package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements BatchAdapter for any OpenAI-compatible
// /audio/transcriptions endpoint.
type OpenAIAdapter struct {
	client       *openai.Client
	model        string
	language     string
	providerName string
}

func NewOpenAIAdapter(config Config) *OpenAIAdapter {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return newOpenAICompatible(clientConfig, config, ProviderOpenAI)
}

func newOpenAICompatible(clientConfig openai.ClientConfig, config Config, name string) *OpenAIAdapter {
	return &OpenAIAdapter{
		client:       openai.NewClientWithConfig(clientConfig),
		model:        config.Model,
		language:     config.Language,
		providerName: name,
	}
}

func (a *OpenAIAdapter) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", nil
	}

	req := openai.AudioRequest{
		Model:    a.model,
		Reader:   bytes.NewReader(wav),
		FilePath: "audio.wav",
		Language: a.language,
	}

	start := time.Now()
	resp, err := a.client.CreateTranscription(ctx, req)
	duration := time.Since(start)

	if err != nil {
		log.Printf("%s-adapter: API call failed after %v: %v", a.providerName, duration, err)
		if isAuthError(err) {
			return "", &UnavailableError{Provider: a.providerName, Err: err}
		}
		return "", fmt.Errorf("%s transcription: %w", a.providerName, err)
	}

	log.Printf("%s-adapter: transcribed %d bytes in %v: %q", a.providerName, len(wav), duration, resp.Text)
	return resp.Text, nil
}

// isAuthError reports whether the service rejected the credentials.
func isAuthError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden
	}
	return false
}
