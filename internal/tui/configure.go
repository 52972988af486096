package tui

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/leonardotrapani/remotescribe/internal/config"
	"github.com/muesli/termenv"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

type ConfigSection string

const (
	SectionCapture       ConfigSection = "capture"
	SectionRecording     ConfigSection = "recording"
	SectionTranscription ConfigSection = "transcription"
	SectionProviders     ConfigSection = "providers"
	SectionNotifications ConfigSection = "notifications"
	SectionMetrics       ConfigSection = "metrics"
	SectionSaveExit      ConfigSection = "save_exit"
	SectionDiscardExit   ConfigSection = "discard_exit"
)

// Run starts the menu-based configuration editor on a copy of cfg.
func Run(existingConfig *config.Config) (*ConfigureResult, error) {
	if existingConfig == nil {
		existingConfig = config.DefaultConfig()
	}
	cfg := *existingConfig
	cfg.Providers = make(map[string]config.ProviderConfig, len(existingConfig.Providers))
	for k, v := range existingConfig.Providers {
		cfg.Providers[k] = v
	}

	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		section, err := selectSection(&cfg)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch section {
		case SectionSaveExit:
			if err := cfg.Validate(); err != nil {
				fmt.Println(StyleError.Render("Configuration is invalid: " + err.Error()))
				fmt.Println(StyleMuted.Render("Press enter to go back."))
				fmt.Scanln()
				continue
			}
			confirmed, err := showSummary(&cfg)
			if err != nil {
				return &ConfigureResult{Cancelled: true}, nil
			}
			if confirmed {
				return &ConfigureResult{Config: &cfg}, nil
			}

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case SectionCapture:
			_ = editCapture(&cfg)
		case SectionRecording:
			_ = editRecording(&cfg)
		case SectionTranscription:
			_ = editTranscription(&cfg)
		case SectionProviders:
			_ = editProviders(&cfg)
		case SectionNotifications:
			_ = editNotifications(&cfg)
		case SectionMetrics:
			_ = editMetrics(&cfg)
		}
	}
}

func selectSection(cfg *config.Config) (ConfigSection, error) {
	options := []huh.Option[ConfigSection]{
		huh.NewOption(formatCaptureLabel(cfg), SectionCapture),
		huh.NewOption(formatRecordingLabel(cfg), SectionRecording),
		huh.NewOption(formatTranscriptionLabel(cfg), SectionTranscription),
		huh.NewOption(formatProvidersLabel(cfg), SectionProviders),
		huh.NewOption(formatNotificationsLabel(cfg), SectionNotifications),
		huh.NewOption(formatMetricsLabel(cfg), SectionMetrics),
		huh.NewOption("Save & Exit", SectionSaveExit),
		huh.NewOption("Discard & Exit", SectionDiscardExit),
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

func editCapture(cfg *config.Config) error {
	source := cfg.Capture.Source
	device := cfg.Capture.Device
	path := cfg.Capture.Path
	sampleRate := strconv.Itoa(cfg.Capture.SampleRate)
	channels := strconv.Itoa(cfg.Capture.Channels)
	bitDepth := strconv.Itoa(cfg.Capture.BitDepth)
	bufferSize := strconv.Itoa(cfg.Capture.BufferSize)

	sourceForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Audio Source").
				Description("Where the remote participant's audio comes from").
				Options(
					huh.NewOption("PipeWire node (pw-record)", "pipewire"),
					huh.NewOption("Raw PCM file, FIFO or stdin", "file"),
				).
				Value(&source),
		),
	).WithTheme(getTheme())
	if err := sourceForm.Run(); err != nil {
		return err
	}

	var target huh.Field
	if source == "file" {
		target = huh.NewInput().
			Title("Path").
			Description("File or named pipe with raw PCM. Use - for stdin.").
			Value(&path).
			Validate(func(s string) error {
				if s == "" {
					return fmt.Errorf("path is required")
				}
				return nil
			})
	} else {
		target = huh.NewInput().
			Title("PipeWire Target").
			Description("Node to record, e.g. the call client's output monitor. Empty = default.").
			Value(&device)
	}

	form := huh.NewForm(
		huh.NewGroup(
			target,
			huh.NewInput().
				Title("Sample Rate (Hz)").
				Placeholder("16000").
				Value(&sampleRate).
				Validate(validatePositiveInt),
			huh.NewSelect[string]().
				Title("Channels").
				Options(
					huh.NewOption("1 (Mono)", "1"),
					huh.NewOption("2 (Stereo)", "2"),
				).
				Value(&channels),
			huh.NewSelect[string]().
				Title("Bit Depth").
				Options(
					huh.NewOption("16-bit - Recommended", "16"),
					huh.NewOption("24-bit", "24"),
					huh.NewOption("32-bit", "32"),
				).
				Value(&bitDepth),
			huh.NewInput().
				Title("Read Buffer (bytes)").
				Description("Bytes per frame read from the source.").
				Value(&bufferSize).
				Validate(validatePositiveInt),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Capture.Source = source
	cfg.Capture.Device = device
	cfg.Capture.Path = path
	cfg.Capture.SampleRate = atoi(sampleRate)
	cfg.Capture.Channels = atoi(channels)
	cfg.Capture.BitDepth = atoi(bitDepth)
	cfg.Capture.BufferSize = atoi(bufferSize)
	return nil
}

func editRecording(cfg *config.Config) error {
	dir := cfg.Recording.Dir
	prefix := cfg.Recording.Prefix
	maxDuration := cfg.Recording.MaxDuration.String()
	exportDir := cfg.General.ExportDir

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Recording Directory").
				Description("Where recordings are written. Empty = system temp dir.").
				Value(&dir),
			huh.NewInput().
				Title("File Prefix").
				Value(&prefix).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("prefix is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Max Duration").
				Description("Stop automatically after this long. 0s = unlimited.").
				Value(&maxDuration).
				Validate(validateDuration(true)),
			huh.NewInput().
				Title("Export Directory").
				Description("Where 'export' copies the latest recording. Empty = ~/Music/remotescribe.").
				Value(&exportDir),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Recording.Dir = dir
	cfg.Recording.Prefix = prefix
	cfg.Recording.MaxDuration = parseDuration(maxDuration)
	cfg.General.ExportDir = exportDir
	return nil
}

func editTranscription(cfg *config.Config) error {
	enabled := cfg.Transcription.Enabled
	enableForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Transcribe the remote audio live?").
				Description("Sends the stream to a speech recognition service while listening").
				Value(&enabled),
		),
	).WithTheme(getTheme())
	if err := enableForm.Run(); err != nil {
		return err
	}
	cfg.Transcription.Enabled = enabled
	if !enabled {
		return nil
	}

	provider := cfg.Transcription.Provider
	providerOptions := make([]huh.Option[string], 0, len(AllProviders))
	for _, name := range AllProviders {
		providerOptions = append(providerOptions, huh.NewOption(getProviderDisplayName(name), name))
	}
	providerForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Provider").
				Options(providerOptions...).
				Value(&provider),
		),
	).WithTheme(getTheme())
	if err := providerForm.Run(); err != nil {
		return err
	}

	model := cfg.Transcription.Model
	if provider != cfg.Transcription.Provider {
		model = providerModels[provider][0]
	}
	lang := cfg.Transcription.Language
	interval := cfg.Transcription.Interval.String()
	maxBuffer := cfg.Transcription.MaxBuffer.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Model").
				Options(modelOptions(provider, model)...).
				Value(&model),
			huh.NewSelect[string]().
				Title("Language").
				Options(languageOptions(lang)...).
				Filtering(true).
				Value(&lang),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Partial Result Interval").
				Description("How often the transcript is refreshed. 0s = only on stop.").
				Value(&interval).
				Validate(validateDuration(true)),
			huh.NewInput().
				Title("Audio Window").
				Description("Most recent audio sent with each request.").
				Value(&maxBuffer).
				Validate(validateDuration(false)),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Transcription.Provider = provider
	cfg.Transcription.Model = model
	cfg.Transcription.Language = lang
	cfg.Transcription.Interval = parseDuration(interval)
	cfg.Transcription.MaxBuffer = parseDuration(maxBuffer)

	if _, ok := cfg.Providers[provider]; !ok {
		fmt.Println(StyleWarning.Render(fmt.Sprintf("%s has no API key yet, add one under Providers.", getProviderDisplayName(provider))))
	}
	return nil
}

func editProviders(cfg *config.Config) error {
	for {
		var options []huh.Option[string]
		for _, name := range AllProviders {
			label := getProviderDisplayName(name)
			if pc, ok := cfg.Providers[name]; ok && pc.APIKey != "" {
				label += " [" + maskAPIKey(pc.APIKey) + "]"
			}
			options = append(options, huh.NewOption(label, name))
		}
		options = append(options, huh.NewOption("Done", "back"))

		var selected string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Provider Settings").
					Description("Select a provider to configure its API key").
					Options(options...).
					Value(&selected),
			),
		).WithTheme(getTheme())
		if err := form.Run(); err != nil {
			return err
		}
		if selected == "back" {
			return nil
		}

		pc := cfg.Providers[selected]
		apiKey := pc.APIKey
		baseURL := pc.BaseURL
		keyForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(getProviderDisplayName(selected)+" API Key").
					Description("Get one at "+providerKeyURLs[selected]+". Leave empty to use the environment.").
					EchoMode(huh.EchoModePassword).
					Value(&apiKey),
				huh.NewInput().
					Title("Base URL").
					Description("Override for OpenAI-compatible gateways. Empty = provider default.").
					Value(&baseURL),
			),
		).WithTheme(getTheme())
		if err := keyForm.Run(); err != nil {
			continue
		}

		if apiKey == "" && baseURL == "" {
			delete(cfg.Providers, selected)
			continue
		}
		cfg.Providers[selected] = config.ProviderConfig{APIKey: apiKey, BaseURL: baseURL}
	}
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	notifType := cfg.Notifications.Type
	if notifType == "" {
		notifType = "desktop"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable notifications?").
				Description("Notify when recordings start, are saved or fail").
				Value(&enabled),
			huh.NewSelect[string]().
				Title("Notification Type").
				Options(
					huh.NewOption("Desktop notifications (notify-send)", "desktop"),
					huh.NewOption("Log to console only", "log"),
					huh.NewOption("None (silent)", "none"),
				).
				Value(&notifType),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = notifType
	return nil
}

func editMetrics(cfg *config.Config) error {
	enabled := cfg.Metrics.Enabled
	addr := cfg.Metrics.Addr

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Serve Prometheus metrics?").
				Description("Frame, drop and session counters on /metrics").
				Value(&enabled),
			huh.NewInput().
				Title("Listen Address").
				Placeholder("127.0.0.1:9464").
				Value(&addr),
		),
	).WithTheme(getTheme())
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Metrics.Enabled = enabled
	cfg.Metrics.Addr = addr
	return nil
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Configuration Summary"))
	for _, line := range summaryLines(cfg) {
		fmt.Printf("  %s %s\n", StyleLabel.Render(line[0]), line[1])
	}
	fmt.Println()

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

// clearScreen clears the terminal screen
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}

func getTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Focused.Base = lipgloss.NewStyle().BorderForeground(ColorPrimary)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(ColorSecondary)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(ColorText)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Blurred.Description = lipgloss.NewStyle().Foreground(ColorSubtle)

	return t
}
