package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/leonardotrapani/remotescribe/internal/bus"
	"github.com/leonardotrapani/remotescribe/internal/capture"
	"github.com/leonardotrapani/remotescribe/internal/config"
	"github.com/leonardotrapani/remotescribe/internal/export"
	"github.com/leonardotrapani/remotescribe/internal/notify"
	"github.com/leonardotrapani/remotescribe/internal/observe"
	"github.com/leonardotrapani/remotescribe/internal/pipeline"
	"github.com/leonardotrapani/remotescribe/internal/recording"
	"github.com/leonardotrapani/remotescribe/internal/transcriber"
)

const (
	finalizeTimeout = 30 * time.Second
	playTimeout     = 2 * time.Hour
)

// Recognizer is the live transcription side of the pipeline.
type Recognizer interface {
	pipeline.Recognizer
	Transcript() string
	Status() string
}

type Option func(*Daemon)

// WithSource overrides how the capture source is built from config.
func WithSource(fn func(capture.Config) pipeline.Source) Option {
	return func(d *Daemon) { d.newSource = fn }
}

// WithRecognizer overrides how the transcriber is built from config.
func WithRecognizer(fn func(transcriber.Config) (Recognizer, error)) Option {
	return func(d *Daemon) { d.newRecognizer = fn }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(d *Daemon) { d.metrics = m }
}

type Daemon struct {
	mu       sync.RWMutex
	config   *config.Config
	notifier notify.Notifier
	messages map[notify.MessageType]notify.Message

	ctx    context.Context
	cancel context.CancelFunc

	metrics       *observe.Metrics
	newSource     func(capture.Config) pipeline.Source
	newRecognizer func(transcriber.Config) (Recognizer, error)

	recorder   *recording.Recorder
	pipeline   pipeline.Pipeline
	recognizer Recognizer
	pipeDone   chan struct{}
}

func New(cfg *config.Config, n notify.Notifier, opts ...Option) *Daemon {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if n == nil {
		n = notify.Desktop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		config:   cfg,
		notifier: n,
		messages: cfg.Notifications.Messages.Resolve(),
		ctx:      ctx,
		cancel:   cancel,
		metrics:  observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.newSource == nil {
		d.newSource = func(c capture.Config) pipeline.Source {
			return capture.New(c, capture.WithMetrics(d.metrics))
		}
	}
	if d.newRecognizer == nil {
		d.newRecognizer = func(c transcriber.Config) (Recognizer, error) {
			return transcriber.NewTranscriber(c, transcriber.WithMetrics(d.metrics))
		}
	}

	d.recorder = recording.NewRecorder(cfg.ToRecordingConfig(),
		recording.WithRecorderMetrics(d.metrics),
		recording.OnFinished(d.recordingFinished),
	)
	return d
}

// WatchConfig applies every successful reload of m to the running daemon.
func (d *Daemon) WatchConfig(m *config.Manager) {
	m.OnChange(d.applyConfig)
}

func (d *Daemon) applyConfig(cfg *config.Config) {
	d.mu.Lock()
	prev := d.config
	d.config = cfg
	if cfg.Notifications.Enabled {
		d.notifier = notify.New(cfg.Notifications.Type)
	} else {
		d.notifier = notify.Nop{}
	}
	d.messages = cfg.Notifications.Messages.Resolve()
	restart := d.pipeline != nil && (prev.Capture != cfg.Capture || prev.Transcription != cfg.Transcription ||
		prev.Providers[cfg.Transcription.Provider] != cfg.Providers[cfg.Transcription.Provider])
	d.mu.Unlock()

	d.recorder.SetConfig(cfg.ToRecordingConfig())
	d.send(notify.MsgConfigReloaded)

	if !restart {
		return
	}
	if d.recorder.IsRecording() {
		log.Printf("Daemon: capture settings changed, they apply once the current recording stops")
		return
	}
	log.Printf("Daemon: capture settings changed, restarting pipeline")
	d.stopPipeline()
	if err := d.startPipeline(); err != nil {
		log.Printf("Daemon: failed to restart pipeline: %v", err)
	}
}

func (d *Daemon) send(mt notify.MessageType, arg ...string) {
	d.mu.RLock()
	n, msgs := d.notifier, d.messages
	d.mu.RUnlock()
	go notify.Send(n, msgs, mt, arg...)
}

func (d *Daemon) status() pipeline.Status {
	d.mu.RLock()
	p := d.pipeline
	d.mu.RUnlock()
	if p == nil {
		return pipeline.Idle
	}
	return p.Status()
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Daemon: received signal %v, shutting down gracefully", sig)
			d.cancel()
		case <-d.ctx.Done():
		}
	}()

	// Close the listener when context is done
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	if err := d.startPipeline(); err != nil {
		log.Printf("Daemon: capture not started: %v", err)
	}

	log.Printf("Daemon: started, listening on socket")

	var conns sync.WaitGroup
	defer d.shutdown()
	defer conns.Wait()

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				log.Printf("Daemon: shutdown requested")
				return nil
			}
			log.Printf("Daemon: accept error: %v", err)
			d.cancel()
			return fmt.Errorf("accept failed: %w", err)
		}
		conns.Add(1)
		go func() {
			defer conns.Done()
			d.handle(c)
		}()
	}
}

// shutdown stops an active recording and waits for its file to be finalized.
func (d *Daemon) shutdown() {
	if d.recorder.IsRecording() {
		log.Printf("Daemon: stopping active recording")
		d.recorder.Stop()
	}
	d.stopPipeline()

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	if err := d.recorder.Wait(ctx); err != nil {
		log.Printf("Daemon: recording finalization did not complete: %v", err)
	}
}

func (d *Daemon) startPipeline() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pipeline != nil {
		return nil
	}
	if d.ctx.Err() != nil {
		return d.ctx.Err()
	}

	cfg := d.config
	src := d.newSource(cfg.ToCaptureConfig())

	var rec Recognizer
	var pr pipeline.Recognizer
	if cfg.Transcription.Enabled {
		r, err := d.newRecognizer(cfg.ToTranscriberConfig())
		if err != nil {
			log.Printf("Daemon: transcription unavailable: %v", err)
			go notify.Send(d.notifier, d.messages, notify.MsgTranscriptionUnavailable, err.Error())
		} else {
			rec, pr = r, r
		}
	}

	p := pipeline.New(src, d.recorder, pr)
	done := make(chan struct{})
	d.pipeline, d.recognizer, d.pipeDone = p, rec, done

	go func() {
		defer close(done)
		if err := p.Run(d.ctx); err != nil {
			log.Printf("Daemon: pipeline ended: %v", err)
			d.send(notify.MsgRecordingFailed, err.Error())
		}
		if d.recorder.IsRecording() {
			log.Printf("Daemon: audio source ended, stopping recording")
			d.recorder.Stop()
		}
		d.mu.Lock()
		if d.pipeline == p {
			d.pipeline = nil
		}
		d.mu.Unlock()
	}()
	return nil
}

func (d *Daemon) stopPipeline() {
	d.mu.RLock()
	p, done := d.pipeline, d.pipeDone
	d.mu.RUnlock()
	if p == nil {
		return
	}
	p.Stop()
	<-done
}

func (d *Daemon) recordingFinished(res recording.Result) {
	switch {
	case res.Err == nil:
		log.Printf("Daemon: recording saved to %s (%v, %d frames, %d dropped, %d rejected)",
			res.Path, res.Duration, res.Frames, res.Dropped, res.Rejected)
		d.send(notify.MsgRecordingSaved, res.Path)
	case errors.Is(res.Err, recording.ErrNoAudio):
		d.send(notify.MsgRecordingEmpty)
	default:
		log.Printf("Daemon: recording failed: %v", res.Err)
		d.send(notify.MsgRecordingFailed, res.Err.Error())
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Printf("Daemon: client read error: %v", err)
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}
	cmd := line[0]

	switch cmd {
	case bus.CmdToggle:
		on, err := d.toggle()
		if err != nil {
			fmt.Fprintf(c, "ERR %s\n", oneLine(err.Error()))
			return
		}
		fmt.Fprintf(c, "OK recording=%t\n", on)
	case bus.CmdStatus:
		fmt.Fprintf(c, "STATUS %s\n", d.statusLine())
	case bus.CmdTranscript:
		d.mu.RLock()
		rec := d.recognizer
		d.mu.RUnlock()
		if rec == nil {
			fmt.Fprint(c, "ERR transcription_disabled\n")
			return
		}
		fmt.Fprintf(c, "OK %s\n", oneLine(rec.Transcript()))
	case bus.CmdLatest:
		res, ok := d.recorder.Latest()
		if !ok {
			fmt.Fprint(c, "ERR no_recording\n")
			return
		}
		fmt.Fprintf(c, "OK %s\n", res.Path)
	case bus.CmdExport:
		dst, err := d.exportLatest()
		if err != nil {
			fmt.Fprintf(c, "ERR %s\n", oneLine(err.Error()))
			return
		}
		fmt.Fprintf(c, "OK %s\n", dst)
	case bus.CmdPlay:
		res, ok := d.recorder.Latest()
		if !ok {
			fmt.Fprint(c, "ERR no_recording\n")
			return
		}
		go d.play(res.Path)
		fmt.Fprintf(c, "OK playing %s\n", res.Path)
	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)
	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()
	default:
		log.Printf("Daemon: unknown command: %c", cmd)
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}

// toggle starts a recording, bringing up capture if needed, or stops the
// running one and waits for it to be finalized. It reports whether a
// recording is running afterwards.
func (d *Daemon) toggle() (bool, error) {
	if d.recorder.IsRecording() {
		select {
		case <-d.recorder.Stop():
		case <-time.After(finalizeTimeout):
			return false, errors.New("finalization timed out")
		}
		return false, nil
	}

	if err := d.startPipeline(); err != nil {
		return false, fmt.Errorf("start capture: %w", err)
	}
	if err := d.recorder.Start(d.ctx); err != nil {
		d.send(notify.MsgRecordingFailed, err.Error())
		return false, err
	}
	d.send(notify.MsgRecordingStarted)
	return true, nil
}

func (d *Daemon) statusLine() string {
	stats := d.recorder.Stats()
	parts := []string{
		"status=" + string(d.status()),
		fmt.Sprintf("recording=%t", d.recorder.IsRecording()),
		"session=" + d.recorder.State().String(),
		fmt.Sprintf("written=%d", stats.Written),
		fmt.Sprintf("dropped=%d", stats.Dropped),
		fmt.Sprintf("rejected=%d", stats.Rejected),
	}
	d.mu.RLock()
	rec := d.recognizer
	d.mu.RUnlock()
	if rec != nil {
		state, _, _ := strings.Cut(rec.Status(), ":")
		parts = append(parts, "transcription="+state)
	} else {
		parts = append(parts, "transcription=disabled")
	}
	return strings.Join(parts, " ")
}

func (d *Daemon) exportLatest() (string, error) {
	res, ok := d.recorder.Latest()
	if !ok {
		return "", export.ErrNoSource
	}
	d.mu.RLock()
	dir := d.config.ExportDir()
	d.mu.RUnlock()

	dst, err := export.Export(res.Path, dir)
	if err != nil {
		return "", err
	}
	d.send(notify.MsgExported, dst)
	return dst, nil
}

func (d *Daemon) play(path string) {
	ctx, cancel := context.WithTimeout(d.ctx, playTimeout)
	defer cancel()
	if err := export.Play(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Daemon: playback failed: %v", err)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
