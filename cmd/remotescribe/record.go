package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leonardotrapani/remotescribe/internal/audio"
	"github.com/leonardotrapani/remotescribe/internal/capture"
	"github.com/leonardotrapani/remotescribe/internal/pipeline"
	"github.com/leonardotrapani/remotescribe/internal/recording"
	"github.com/leonardotrapani/remotescribe/internal/transcriber"
	"github.com/spf13/cobra"
)

type recordOptions struct {
	input      string
	output     string
	rate       int
	channels   int
	bits       int
	transcribe bool
}

func recordCmd() *cobra.Command {
	var opts recordOptions

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record raw PCM from a file, fifo or stdin without the daemon",
		Long: `Record raw little-endian PCM into a WAV file without a running daemon.
The input is read at full speed and nothing is dropped. Use --input - to
read from stdin, e.g.:

  pw-record --format s16 --rate 16000 --channels 1 - | remotescribe record --input -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRecord(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "raw PCM file or fifo, - for stdin")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output WAV path (default: generated in recording.dir)")
	cmd.Flags().IntVar(&opts.rate, "rate", 0, "sample rate in Hz (default from config)")
	cmd.Flags().IntVar(&opts.channels, "channels", 0, "channel count (default from config)")
	cmd.Flags().IntVar(&opts.bits, "bits", 0, "bits per sample: 16, 24 or 32 (default from config)")
	cmd.Flags().BoolVar(&opts.transcribe, "transcribe", false, "transcribe the input with the configured provider")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runRecord(ctx context.Context, opts recordOptions, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	capCfg := cfg.ToCaptureConfig()
	capCfg.Source = capture.SourceFile
	capCfg.Path = opts.input
	capCfg.Blocking = true
	if opts.rate > 0 {
		capCfg.SampleRate = opts.rate
	}
	if opts.channels > 0 {
		capCfg.Channels = opts.channels
	}
	if opts.bits > 0 {
		capCfg.BitDepth = opts.bits
	}
	if err := capCfg.Format().Validate(); err != nil {
		return fmt.Errorf("invalid input format: %w", err)
	}

	recCfg := cfg.ToRecordingConfig()
	sessOpts := []recording.Option{
		recording.WithOpener(recording.WAVOpener(recCfg.QueueSize)),
	}
	if opts.output != "" {
		sessOpts = append(sessOpts, recording.WithPath(opts.output))
	} else {
		if recCfg.Dir != "" {
			sessOpts = append(sessOpts, recording.WithDir(recCfg.Dir))
		}
		sessOpts = append(sessOpts, recording.WithPrefix(recCfg.Prefix))
	}
	session := recording.NewSession(sessOpts...)

	var recognizer pipeline.Recognizer
	var live *transcriber.Transcriber
	if opts.transcribe {
		live, err = transcriber.NewTranscriber(cfg.ToTranscriberConfig())
		if err != nil {
			return fmt.Errorf("failed to create transcriber: %w", err)
		}
		recognizer = live
	}

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}

	p := pipeline.New(capture.New(capCfg), pacedSession{session}, recognizer)
	runErr := p.Run(ctx)

	res, ok := <-session.Stop()
	if runErr != nil && !errors.Is(runErr, context.Canceled) && (!ok || res.Err != nil) {
		return fmt.Errorf("capture failed: %w", runErr)
	}
	if !ok {
		return fmt.Errorf("recording ended without a result")
	}
	if res.Err != nil {
		if errors.Is(res.Err, recording.ErrNoAudio) {
			return fmt.Errorf("no audio in %s", opts.input)
		}
		return fmt.Errorf("recording failed: %w", res.Err)
	}

	printResult(out, res)
	if live != nil {
		fmt.Fprintf(out, "transcript: %s\n", live.Transcript())
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("capture ended with error: %w", runErr)
	}
	return nil
}

// pacedSession holds each frame back until the session can write it, so an
// offline input is recorded in full.
type pacedSession struct {
	s *recording.Session
}

func (p pacedSession) Feed(frame audio.Frame) {
	for !p.s.Ready() && p.s.State().Writing() {
		time.Sleep(time.Millisecond)
	}
	p.s.Feed(frame)
}

func (p pacedSession) IsRecording() bool {
	return p.s.State().Writing()
}

func printResult(out io.Writer, res recording.Result) {
	fmt.Fprintf(out, "saved %s\n", res.Path)
	fmt.Fprintf(out, "format %s, duration %s\n", res.Format, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "frames %d, dropped %d, rejected %d\n", res.Frames, res.Dropped, res.Rejected)
}
