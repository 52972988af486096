package transcriber

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/leonardotrapani/remotescribe/internal/audio"
	"github.com/leonardotrapani/remotescribe/internal/observe"
)

const (
	StatusIdle        = "idle"
	StatusRecognizing = "recognizing"
)

type Option func(*Transcriber)

func WithMetrics(m *observe.Metrics) Option {
	return func(t *Transcriber) { t.metrics = m }
}

// Transcriber keeps a rolling window of the remote stream and re-transcribes
// it periodically, so Transcript always holds the best current guess.
type Transcriber struct {
	adapter BatchAdapter
	config  Config
	metrics *observe.Metrics

	// Audio collection
	bufferMu sync.Mutex
	format   audio.Format
	pcm      []byte
	dirty    bool

	// Control
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Transcription result
	resultMu   sync.RWMutex
	transcript string
	status     string
	fatal      error
}

func New(config Config, adapter BatchAdapter, opts ...Option) *Transcriber {
	t := &Transcriber{
		adapter: adapter,
		config:  config,
		metrics: observe.DefaultMetrics(),
		status:  StatusIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start consumes frames until Stop is called, ctx is done or frameCh is
// closed. Errors from partial transcriptions are reported on the returned
// channel, which is closed when collection ends.
func (t *Transcriber) Start(ctx context.Context, frameCh <-chan audio.Frame) (<-chan error, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil, fmt.Errorf("transcriber already running")
	}
	t.running = true

	t.resultMu.Lock()
	t.transcript = ""
	t.fatal = nil
	t.status = StatusRecognizing
	t.resultMu.Unlock()

	t.bufferMu.Lock()
	t.pcm = nil
	t.dirty = false
	t.bufferMu.Unlock()

	collectCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	errCh := make(chan error, 1)
	t.wg.Add(1)
	go t.collect(collectCtx, frameCh, errCh)

	return errCh, nil
}

// Stop ends collection and runs a final transcription of the window with ctx.
func (t *Transcriber) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	cancel()
	t.wg.Wait()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	if t.isFatal() {
		return nil
	}
	err := t.transcribe(ctx)

	t.resultMu.Lock()
	if t.fatal == nil {
		t.status = StatusIdle
	}
	t.resultMu.Unlock()
	return err
}

func (t *Transcriber) Transcript() string {
	t.resultMu.RLock()
	defer t.resultMu.RUnlock()
	return t.transcript
}

func (t *Transcriber) Status() string {
	t.resultMu.RLock()
	defer t.resultMu.RUnlock()
	return t.status
}

func (t *Transcriber) isFatal() bool {
	t.resultMu.RLock()
	defer t.resultMu.RUnlock()
	return t.fatal != nil
}

func (t *Transcriber) collect(ctx context.Context, frameCh <-chan audio.Frame, errCh chan<- error) {
	defer func() {
		close(errCh)
		t.wg.Done()
	}()

	var tick <-chan time.Time
	if t.config.Interval > 0 {
		ticker := time.NewTicker(t.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-frameCh:
			if !ok {
				log.Printf("transcriber: audio channel closed")
				return
			}
			t.append(frame)

		case <-tick:
			if t.isFatal() {
				continue
			}
			if err := t.transcribe(ctx); err != nil && ctx.Err() == nil {
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}
}

func (t *Transcriber) append(frame audio.Frame) {
	if frame.Validate() != nil {
		return
	}

	t.bufferMu.Lock()
	defer t.bufferMu.Unlock()

	if frame.Format != t.format {
		if len(t.pcm) > 0 {
			log.Printf("transcriber: format changed to %s, starting a new window", frame.Format)
		}
		t.format = frame.Format
		t.pcm = t.pcm[:0]
	}
	t.pcm = append(t.pcm, frame.Data...)
	t.dirty = true

	if t.config.MaxBuffer <= 0 {
		return
	}
	maxBytes := int(t.config.MaxBuffer.Seconds() * float64(t.format.BytesPerSecond()))
	maxBytes -= maxBytes % t.format.FrameSize()
	if maxBytes > 0 && len(t.pcm) > maxBytes {
		t.pcm = append(t.pcm[:0], t.pcm[len(t.pcm)-maxBytes:]...)
	}
}

// transcribe sends the current window if it changed since the last request.
func (t *Transcriber) transcribe(ctx context.Context) error {
	t.bufferMu.Lock()
	if !t.dirty || len(t.pcm) == 0 {
		t.bufferMu.Unlock()
		return nil
	}
	format := t.format
	pcm := make([]byte, len(t.pcm))
	copy(pcm, t.pcm)
	t.dirty = false
	t.bufferMu.Unlock()

	wav, err := encodeWAV(format, pcm)
	if err != nil {
		return fmt.Errorf("convert to WAV: %w", err)
	}

	start := time.Now()
	text, err := t.adapter.Transcribe(ctx, wav)
	t.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		t.metrics.RecordTranscriptionError(ctx, t.config.Provider)
		if IsUnavailable(err) {
			t.resultMu.Lock()
			t.fatal = err
			t.status = "unavailable: " + err.Error()
			t.resultMu.Unlock()
			log.Printf("transcriber: recognition unavailable: %v", err)
		} else {
			// retry with the next window
			t.bufferMu.Lock()
			t.dirty = true
			t.bufferMu.Unlock()
		}
		return fmt.Errorf("transcription failed: %w", err)
	}

	text = strings.TrimSpace(text)
	t.resultMu.Lock()
	t.transcript = text
	t.resultMu.Unlock()
	log.Printf("transcriber: %s of audio -> %q", format.Duration(len(pcm)/format.FrameSize()), text)
	return nil
}
