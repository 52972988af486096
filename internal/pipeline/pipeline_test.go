package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/remotescribe/internal/audio"
)

type fakeSource struct {
	frames   chan audio.Frame
	errs     chan error
	startErr error

	once    sync.Once
	stopped chan struct{}
}

func newFakeSource(n int) *fakeSource {
	return &fakeSource{
		frames:  make(chan audio.Frame, n),
		errs:    make(chan error, 1),
		stopped: make(chan struct{}),
	}
}

func (s *fakeSource) Start(ctx context.Context) (<-chan audio.Frame, <-chan error, error) {
	if s.startErr != nil {
		return nil, nil, s.startErr
	}
	return s.frames, s.errs, nil
}

func (s *fakeSource) Stop() {
	s.once.Do(func() { close(s.stopped) })
}

func (s *fakeSource) Wait() {}

// end closes the source the way a capturer does when its input runs out.
func (s *fakeSource) end(err error) {
	if err != nil {
		s.errs <- err
	}
	close(s.frames)
	close(s.errs)
}

type fakeRecorder struct {
	mu        sync.Mutex
	fed       int
	recording bool
}

func (r *fakeRecorder) Feed(audio.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fed++
}

func (r *fakeRecorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *fakeRecorder) Fed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fed
}

type fakeRecognizer struct {
	mu      sync.Mutex
	got     int
	stopped bool
	done    chan struct{}
}

func (f *fakeRecognizer) Start(ctx context.Context, frameCh <-chan audio.Frame) (<-chan error, error) {
	errCh := make(chan error)
	f.done = make(chan struct{})
	go func() {
		defer close(errCh)
		defer close(f.done)
		for range frameCh {
			f.mu.Lock()
			f.got++
			f.mu.Unlock()
		}
	}()
	return errCh, nil
}

func (f *fakeRecognizer) Stop(ctx context.Context) error {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func frame() audio.Frame {
	return audio.Frame{Data: make([]byte, 320), Format: audio.DefaultFormat}
}

func TestPipeline_FansOutFrames(t *testing.T) {
	src := newFakeSource(10)
	rec := &fakeRecorder{}
	recog := &fakeRecognizer{}
	p := New(src, rec, recog)

	for i := 0; i < 5; i++ {
		src.frames <- frame()
	}
	src.end(nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if rec.Fed() != 5 {
		t.Errorf("recorder got %d frames, want 5", rec.Fed())
	}
	if recog.got != 5 || !recog.stopped {
		t.Errorf("recognizer got %d frames, stopped=%v", recog.got, recog.stopped)
	}
	if p.Frames() != 5 {
		t.Errorf("Frames() = %d", p.Frames())
	}
	if p.Status() != Idle {
		t.Errorf("status after Run = %s", p.Status())
	}
}

func TestPipeline_WithoutRecognizer(t *testing.T) {
	src := newFakeSource(2)
	rec := &fakeRecorder{}
	p := New(src, rec, nil)

	src.frames <- frame()
	src.end(nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if rec.Fed() != 1 {
		t.Errorf("recorder got %d frames", rec.Fed())
	}
}

func TestPipeline_SourceError(t *testing.T) {
	src := newFakeSource(1)
	p := New(src, &fakeRecorder{}, nil)

	boom := errors.New("device gone")
	src.end(boom)

	if err := p.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() = %v, want %v", err, boom)
	}
}

func TestPipeline_StartError(t *testing.T) {
	src := newFakeSource(1)
	src.startErr = errors.New("no pipewire")
	p := New(src, &fakeRecorder{}, nil)

	if err := p.Run(context.Background()); err == nil {
		t.Error("Run() should fail when the source cannot start")
	}
}

func TestPipeline_StatusAndStop(t *testing.T) {
	src := newFakeSource(1)
	rec := &fakeRecorder{}
	p := New(src, rec, nil)

	if p.Status() != Idle {
		t.Errorf("initial status = %s", p.Status())
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for p.Status() != Listening {
		if time.Now().After(deadline) {
			t.Fatal("pipeline never started listening")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec.mu.Lock()
	rec.recording = true
	rec.mu.Unlock()
	if p.Status() != Recording {
		t.Errorf("status = %s, want recording", p.Status())
	}

	if err := p.Run(context.Background()); err == nil {
		t.Error("second Run() should fail")
	}

	p.Stop()
	select {
	case <-src.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("source was not stopped")
	}
	src.end(nil)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}
}

func TestPipeline_ContextCancel(t *testing.T) {
	src := newFakeSource(1)
	p := New(src, &fakeRecorder{}, &fakeRecognizer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-src.stopped
	src.end(nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
