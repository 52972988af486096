package recording

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/leonardotrapani/remotescribe/internal/audio"
	"github.com/leonardotrapani/remotescribe/internal/observe"
)

type Config struct {
	Dir         string
	Prefix      string
	QueueSize   int
	MaxDuration time.Duration
}

type RecorderOption func(*Recorder)

func WithRecorderMetrics(m *observe.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

func WithRecorderOpener(o Opener) RecorderOption {
	return func(r *Recorder) { r.opener = o }
}

// OnFinished registers a callback run after every finalized session.
func OnFinished(fn func(Result)) RecorderOption {
	return func(r *Recorder) { r.onFinished = fn }
}

// Recorder runs one Session at a time and remembers the last finished output.
type Recorder struct {
	config     Config
	opener     Opener
	ownOpener  bool
	metrics    *observe.Metrics
	onFinished func(Result)

	mu      sync.Mutex
	session *Session
	timer   *time.Timer
	pending chan struct{}
	out     chan Result
	latest  Result
	hasLast bool
}

func NewRecorder(config Config, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		config:  config,
		metrics: observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.opener == nil {
		r.opener = WAVOpener(config.QueueSize)
		r.ownOpener = true
	}
	return r
}

// SetConfig replaces the configuration used for sessions started from now on.
func (r *Recorder) SetConfig(config Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ownOpener && config.QueueSize != r.config.QueueSize {
		r.opener = WAVOpener(config.QueueSize)
	}
	r.config = config
}

// Start begins a new session. A previous session that is still finalizing is
// waited for first.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.waitPending(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		return ErrSessionActive
	}

	opts := []Option{WithOpener(r.opener), WithMetrics(r.metrics)}
	if r.config.Dir != "" {
		opts = append(opts, WithDir(r.config.Dir))
	}
	if r.config.Prefix != "" {
		opts = append(opts, WithPrefix(r.config.Prefix))
	}

	s := NewSession(opts...)
	if err := s.Start(ctx); err != nil {
		return err
	}
	r.session = s

	if limit := r.config.MaxDuration; limit > 0 {
		r.timer = time.AfterFunc(limit, func() { r.expire(s, limit) })
	}
	return nil
}

func (r *Recorder) waitPending(ctx context.Context) error {
	r.mu.Lock()
	pending := r.pending
	r.mu.Unlock()
	if pending == nil {
		return nil
	}
	select {
	case <-pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the current session. The returned channel yields its Result once
// finalized; it is closed without a value when nothing was recording.
func (r *Recorder) Stop() <-chan Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

// expire stops s once it has run for the configured limit. A timer that
// fires after s was already stopped leaves any newer session alone.
func (r *Recorder) expire(s *Session, limit time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != s {
		return
	}
	log.Printf("Recording: max duration %v reached, stopping", limit)
	r.stopLocked()
}

func (r *Recorder) stopLocked() <-chan Result {
	out := make(chan Result, 1)
	if r.session == nil {
		close(out)
		return out
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	src := r.session.Stop()
	r.session = nil
	done := make(chan struct{})
	r.pending = done

	go func() {
		res, ok := <-src
		if ok {
			r.mu.Lock()
			if res.Err == nil {
				r.latest = res
				r.hasLast = true
			}
			r.mu.Unlock()
			if r.onFinished != nil {
				r.onFinished(res)
			}
			out <- res
		}
		close(out)
		close(done)
	}()
	return out
}

// Toggle starts a session when idle and stops the running one otherwise.
// It reports whether a session is running afterwards.
func (r *Recorder) Toggle(ctx context.Context) (bool, error) {
	if r.IsRecording() {
		r.Stop()
		return false, nil
	}
	if err := r.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Recorder) Feed(frame audio.Frame) {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s != nil {
		s.Feed(frame)
	}
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// State is the current session's state, Idle when none is running.
func (r *Recorder) State() State {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		return Idle
	}
	return s.State()
}

func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		return Stats{}
	}
	return s.Stats()
}

// Latest returns the most recent successfully finalized recording.
func (r *Recorder) Latest() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.hasLast
}

// Wait blocks until any in-flight finalization has completed.
func (r *Recorder) Wait(ctx context.Context) error {
	return r.waitPending(ctx)
}
