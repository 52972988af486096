package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/leonardotrapani/remotescribe/internal/config"
	"github.com/leonardotrapani/remotescribe/internal/language"
)

// AllProviders is the list of supported transcription providers.
var AllProviders = []string{"openai", "groq"}

var providerDisplayNames = map[string]string{
	"openai": "OpenAI",
	"groq":   "Groq",
}

var providerKeyURLs = map[string]string{
	"openai": "https://platform.openai.com/api-keys",
	"groq":   "https://console.groq.com/keys",
}

var providerModels = map[string][]string{
	"openai": {"whisper-1", "gpt-4o-transcribe", "gpt-4o-mini-transcribe"},
	"groq":   {"whisper-large-v3-turbo", "whisper-large-v3"},
}

func getProviderDisplayName(providerName string) string {
	if name, ok := providerDisplayNames[providerName]; ok {
		return name
	}
	return providerName
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

func getConfiguredProviders(cfg *config.Config) []string {
	providers := make([]string, 0, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		if pc.APIKey != "" {
			providers = append(providers, name)
		}
	}
	sort.Strings(providers)
	return providers
}

func modelOptions(providerName, current string) []huh.Option[string] {
	var options []huh.Option[string]
	for _, m := range providerModels[providerName] {
		label := m
		if m == current {
			label += " (current)"
		}
		options = append(options, huh.NewOption(label, m))
	}
	return options
}

func languageOptions(current string) []huh.Option[string] {
	current, _ = language.Normalize(current)
	autoLabel := "Auto-detect (recommended)"
	if current == "" {
		autoLabel += " (current)"
	}
	options := []huh.Option[string]{huh.NewOption(autoLabel, "")}
	for _, lang := range language.List() {
		label := lang.Label()
		if lang.Code == current {
			label += " (current)"
		}
		options = append(options, huh.NewOption(label, lang.Code))
	}
	return options
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateDuration(allowZero bool) func(string) error {
	return func(s string) error {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("must be a duration like 30s or 1h")
		}
		if d < 0 || (d == 0 && !allowZero) {
			return fmt.Errorf("must be positive")
		}
		return nil
	}
}

// atoi is only called on values that passed validatePositiveInt.
func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}

func formatCaptureLabel(cfg *config.Config) string {
	src := cfg.Capture.Source
	if src == "file" {
		src = "file " + cfg.Capture.Path
	} else if cfg.Capture.Device != "" {
		src = "pipewire " + cfg.Capture.Device
	}
	return fmt.Sprintf("Capture (%s, %d Hz, %d ch, %d-bit)", src,
		cfg.Capture.SampleRate, cfg.Capture.Channels, cfg.Capture.BitDepth)
}

func formatRecordingLabel(cfg *config.Config) string {
	dir := cfg.Recording.Dir
	if dir == "" {
		dir = "temp dir"
	}
	limit := "unlimited"
	if cfg.Recording.MaxDuration > 0 {
		limit = cfg.Recording.MaxDuration.String()
	}
	return fmt.Sprintf("Recording (%s, max %s)", dir, limit)
}

func formatTranscriptionLabel(cfg *config.Config) string {
	if !cfg.Transcription.Enabled {
		return "Transcription (disabled)"
	}
	return fmt.Sprintf("Transcription (%s, %s)", getProviderDisplayName(cfg.Transcription.Provider), cfg.Transcription.Model)
}

func formatProvidersLabel(cfg *config.Config) string {
	configured := getConfiguredProviders(cfg)
	if len(configured) == 0 {
		return "Providers (none configured)"
	}
	return fmt.Sprintf("Providers (%s)", strings.Join(configured, ", "))
}

func formatNotificationsLabel(cfg *config.Config) string {
	if !cfg.Notifications.Enabled {
		return "Notifications (disabled)"
	}
	return fmt.Sprintf("Notifications (%s)", cfg.Notifications.Type)
}

func formatMetricsLabel(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return "Metrics (disabled)"
	}
	return fmt.Sprintf("Metrics (%s)", cfg.Metrics.Addr)
}

// summaryLines renders the configuration as label/value rows.
func summaryLines(cfg *config.Config) [][2]string {
	lines := [][2]string{
		{"Capture:", strings.TrimSuffix(strings.TrimPrefix(formatCaptureLabel(cfg), "Capture ("), ")")},
		{"Recording:", strings.TrimSuffix(strings.TrimPrefix(formatRecordingLabel(cfg), "Recording ("), ")")},
	}
	if cfg.Transcription.Enabled {
		lines = append(lines, [2]string{"Transcription:",
			fmt.Sprintf("%s (%s) every %s", cfg.Transcription.Provider, cfg.Transcription.Model, cfg.Transcription.Interval)})
		if cfg.Transcription.Language != "" {
			lang, _ := language.Lookup(cfg.Transcription.Language)
			lines = append(lines, [2]string{"Language:", lang.Name})
		}
	} else {
		lines = append(lines, [2]string{"Transcription:", "disabled"})
	}
	for _, name := range getConfiguredProviders(cfg) {
		lines = append(lines, [2]string{getProviderDisplayName(name) + ":", maskAPIKey(cfg.Providers[name].APIKey)})
	}
	if cfg.Notifications.Enabled {
		lines = append(lines, [2]string{"Notifications:", cfg.Notifications.Type})
	} else {
		lines = append(lines, [2]string{"Notifications:", "disabled"})
	}
	if cfg.Metrics.Enabled {
		lines = append(lines, [2]string{"Metrics:", cfg.Metrics.Addr})
	}
	return lines
}
