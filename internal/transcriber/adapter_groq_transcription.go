package transcriber

import "github.com/sashabaranov/go-openai"

const groqBaseURL = "https://api.groq.com/openai/v1"

// NewGroqAdapter returns an adapter for Groq's OpenAI-compatible Whisper API.
func NewGroqAdapter(config Config) *OpenAIAdapter {
	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = groqBaseURL
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = "whisper-large-v3"
	}
	return newOpenAICompatible(clientConfig, config, ProviderGroq)
}
