package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/leonardotrapani/remotescribe/internal/bus"
	"github.com/leonardotrapani/remotescribe/internal/capture"
	"github.com/leonardotrapani/remotescribe/internal/config"
	"github.com/leonardotrapani/remotescribe/internal/daemon"
	"github.com/leonardotrapani/remotescribe/internal/deps"
	"github.com/leonardotrapani/remotescribe/internal/export"
	"github.com/leonardotrapani/remotescribe/internal/notify"
	"github.com/leonardotrapani/remotescribe/internal/observe"
	"github.com/leonardotrapani/remotescribe/internal/tui"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "remotescribe",
		Short:        "Record and transcribe the remote side of a call",
		SilenceUsage: true,
	}
	root.AddCommand(
		serveCmd(),
		requestCmd("toggle", "Start or stop recording", bus.CmdToggle, "toggle recording"),
		requestCmd("status", "Get capture and recording status", bus.CmdStatus, "get status"),
		requestCmd("transcript", "Print the live transcript", bus.CmdTranscript, "get transcript"),
		requestCmd("latest", "Print the path of the last finished recording", bus.CmdLatest, "get latest recording"),
		requestCmd("export", "Copy the last recording to the export directory", bus.CmdExport, "export recording"),
		requestCmd("version", "Get protocol version", bus.CmdVersion, "get version"),
		requestCmd("stop", "Stop the daemon", bus.CmdQuit, "stop daemon"),
		playCmd(),
		watchCmd(),
		doctorCmd(),
		configureCmd(),
		recordCmd(),
	)
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := config.NewManager()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg := mgr.GetConfig()

			if lj := setupLogging(cfg); lj != nil {
				defer lj.Close()
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if cfg.Metrics.Enabled {
				shutdown, err := observe.InitProvider()
				if err != nil {
					return fmt.Errorf("failed to init metrics: %w", err)
				}
				defer func() {
					if err := shutdown(context.Background()); err != nil {
						log.Printf("Metrics: shutdown failed: %v", err)
					}
				}()
				go func() {
					if err := observe.Serve(ctx, cfg.Metrics.Addr); err != nil {
						log.Printf("Metrics: %v", err)
					}
				}()
			}

			d := daemon.New(cfg, newNotifier(cfg))
			d.WatchConfig(mgr)
			if err := mgr.StartWatching(ctx); err != nil {
				log.Printf("Config: hot reload disabled: %v", err)
			}
			defer mgr.Stop()

			return d.Run()
		},
	}
}

// setupLogging tees the standard logger into a rotated file when
// general.log_file is set.
func setupLogging(cfg *config.Config) io.Closer {
	path := cfg.LogFile()
	if path == "" {
		return nil
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.General.LogMaxSizeMB,
		MaxBackups: cfg.General.LogMaxBackups,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return lj
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if !cfg.Notifications.Enabled {
		return notify.Nop{}
	}
	return notify.New(cfg.Notifications.Type)
}

// requestCmd sends a single bus command and prints the reply body.
func requestCmd(use, short string, command byte, what string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := bus.Request(command)
			if err != nil {
				return fmt.Errorf("failed to %s: %w", what, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
}

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play [file]",
		Short: "Play a recording (the daemon's latest when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return export.Play(cmd.Context(), args[0])
			}
			body, err := bus.Request(bus.CmdPlay)
			if err != nil {
				return fmt.Errorf("failed to play recording: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of recording state and transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}
			return tui.Watch(fetchSnapshot, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "poll interval")

	return cmd
}

func fetchSnapshot() (tui.Snapshot, error) {
	body, err := bus.Request(bus.CmdStatus)
	if err != nil {
		return tui.Snapshot{}, err
	}
	snap := snapshotFrom(body)
	if snap.Transcription != "disabled" {
		if text, err := bus.Request(bus.CmdTranscript); err == nil {
			snap.Transcript = text
		}
	}
	return snap, nil
}

func snapshotFrom(body string) tui.Snapshot {
	return tui.Snapshot{
		Status:        bus.Field(body, "status"),
		Recording:     bus.Field(body, "recording") == "true",
		Written:       bus.Field(body, "written"),
		Dropped:       bus.Field(body, "dropped"),
		Rejected:      bus.Field(body, "rejected"),
		Transcription: bus.Field(body, "transcription"),
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, PipeWire, config and daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runDoctor(ctx context.Context, out io.Writer) error {
	statuses := deps.CheckAll()
	for _, s := range statuses {
		mark := tui.StyleSuccess.Render("ok")
		detail := s.Version
		if !s.Installed {
			mark = tui.StyleWarning.Render("--")
			if s.Required {
				mark = tui.StyleError.Render("!!")
			}
			detail = "not found"
		}
		fmt.Fprintf(out, "%s %-12s %s %s\n", mark, s.Name, detail, tui.StyleSubtle.Render("("+s.Purpose+")"))
	}

	if _, err := exec.LookPath("pw-record"); err == nil {
		if err := capture.CheckPipeWireAvailable(ctx); err != nil {
			fmt.Fprintf(out, "%s %-12s %v\n", tui.StyleError.Render("!!"), "pipewire", err)
		} else {
			fmt.Fprintf(out, "%s %-12s running\n", tui.StyleSuccess.Render("ok"), "pipewire")
		}
	}

	cfg, err := loadConfig()
	switch {
	case err != nil:
		fmt.Fprintf(out, "%s %-12s %v\n", tui.StyleError.Render("!!"), "config", err)
	case cfg.Validate() != nil:
		fmt.Fprintf(out, "%s %-12s %v\n", tui.StyleError.Render("!!"), "config", cfg.Validate())
	default:
		fmt.Fprintf(out, "%s %-12s valid\n", tui.StyleSuccess.Render("ok"), "config")
	}

	if body, err := bus.Request(bus.CmdVersion); err == nil {
		fmt.Fprintf(out, "%s %-12s running (%s)\n", tui.StyleSuccess.Render("ok"), "daemon", body)
	} else {
		fmt.Fprintf(out, "%s %-12s not running\n", tui.StyleWarning.Render("--"), "daemon")
	}

	if missing := deps.Missing(statuses); len(missing) > 0 {
		return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
	}
	return nil
}

// loadConfig reads the config file without creating one, falling back to
// defaults when it does not exist.
func loadConfig() (*config.Config, error) {
	path, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFile(path)
	if errors.Is(err, config.ErrConfigNotFound) {
		return config.DefaultConfig(), nil
	}
	return cfg, err
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration wizard for remotescribe.
This will guide you through setting up:
- Capture source and audio format
- Recording directory and limits
- Live transcription and provider API keys
- Notifications and metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd.OutOrStdout())
		},
	}
}

func runConfigure(out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}

	if result.Cancelled {
		fmt.Fprintln(out, "Configuration cancelled.")
		return nil
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Fprintf(out, "Configuration validation failed: %v\n", err)
		return err
	}

	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration saved successfully!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next Steps:")
	fmt.Fprintln(out, "1. Start the daemon: remotescribe serve (it picks up config changes while running)")
	fmt.Fprintln(out, "2. Check your setup: remotescribe doctor")
	fmt.Fprintln(out, "3. Record the call: remotescribe toggle")
	fmt.Fprintln(out)

	configPath, _ := config.GetConfigPath()
	fmt.Fprintf(out, "Config file location: %s\n", configPath)
	return nil
}
