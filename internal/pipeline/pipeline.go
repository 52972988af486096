package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leonardotrapani/remotescribe/internal/audio"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	Idle      Status = "idle"
	Listening Status = "listening"
	Recording Status = "recording"
)

const (
	recognizerBuffer = 64
	finalTimeout     = 30 * time.Second
)

// Source produces the remote audio stream.
type Source interface {
	Start(ctx context.Context) (<-chan audio.Frame, <-chan error, error)
	Stop()
	Wait()
}

// Recorder receives every frame while a recording may be running.
type Recorder interface {
	Feed(frame audio.Frame)
	IsRecording() bool
}

// Recognizer transcribes the stream independently of recording.
type Recognizer interface {
	Start(ctx context.Context, frameCh <-chan audio.Frame) (<-chan error, error)
	Stop(ctx context.Context) error
}

type Pipeline interface {
	// Run blocks until the source ends, ctx is done or Stop is called.
	Run(ctx context.Context) error
	Stop()
	Status() Status
	Frames() int64
}

type pipeline struct {
	source     Source
	recorder   Recorder
	recognizer Recognizer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	frames  atomic.Int64
	dropped atomic.Int64
}

// New wires source to recorder and, when not nil, to recognizer.
func New(source Source, recorder Recorder, recognizer Recognizer) Pipeline {
	return &pipeline{source: source, recorder: recorder, recognizer: recognizer}
}

func (p *pipeline) Status() Status {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	switch {
	case !running:
		return Idle
	case p.recorder.IsRecording():
		return Recording
	default:
		return Listening
	}
}

func (p *pipeline) Frames() int64 {
	return p.frames.Load()
}

func (p *pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *pipeline) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("pipeline already running")
	}
	p.running = true
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.cancel = nil
		p.mu.Unlock()
	}()

	frameCh, srcErrCh, err := p.source.Start(runCtx)
	if err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	defer p.source.Wait()

	log.Printf("Pipeline: listening")

	g, gctx := errgroup.WithContext(runCtx)

	var recCh chan audio.Frame
	if p.recognizer != nil {
		recCh = make(chan audio.Frame, recognizerBuffer)
		recErrCh, err := p.recognizer.Start(gctx, recCh)
		if err != nil {
			p.source.Stop()
			return fmt.Errorf("start transcriber: %w", err)
		}
		g.Go(func() error {
			for err := range recErrCh {
				log.Printf("Pipeline: transcription error: %v", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		if recCh != nil {
			defer close(recCh)
		}
		for {
			select {
			case frame, ok := <-frameCh:
				if !ok {
					log.Printf("Pipeline: source ended after %d frames", p.frames.Load())
					return nil
				}
				p.frames.Add(1)
				p.recorder.Feed(frame)
				if recCh != nil {
					select {
					case recCh <- frame:
					default:
						if p.dropped.Add(1)%100 == 1 {
							log.Printf("Pipeline: transcriber lagging, %d frames skipped", p.dropped.Load())
						}
					}
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		if err, ok := <-srcErrCh; ok && err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		p.source.Stop()
		return nil
	})

	runErr := g.Wait()

	if p.recognizer != nil {
		finalCtx, finalCancel := context.WithTimeout(context.WithoutCancel(ctx), finalTimeout)
		if err := p.recognizer.Stop(finalCtx); err != nil {
			log.Printf("Pipeline: final transcription failed: %v", err)
		}
		finalCancel()
	}

	log.Printf("Pipeline: stopped")
	return runErr
}
