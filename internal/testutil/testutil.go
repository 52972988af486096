package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leonardotrapani/remotescribe/internal/audio"
	"github.com/leonardotrapani/remotescribe/internal/config"
)

// TestConfig returns a valid configuration writing into per-test directories
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Recording.Dir = t.TempDir()
	cfg.General.ExportDir = t.TempDir()
	cfg.Notifications.Type = "none"
	return cfg
}

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(configContent), 0o600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

// MockAudioFrame returns a frame of silence holding samples sample frames.
func MockAudioFrame(format audio.Format, samples int, pts time.Duration) audio.Frame {
	return audio.Frame{
		Data:   make([]byte, samples*format.FrameSize()),
		Format: format,
		PTS:    pts,
	}
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// TickSource is a capture source emitting 10ms frames of silence until
// stopped, like a live call that never ends on its own.
type TickSource struct {
	Format audio.Format

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sent   int
}

func NewTickSource(format audio.Format) *TickSource {
	return &TickSource{Format: format}
}

func (s *TickSource) Start(ctx context.Context) (<-chan audio.Frame, <-chan error, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	frames := make(chan audio.Frame, 8)
	errs := make(chan error, 1)
	samples := s.Format.SampleRate / 100

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(frames)
		defer close(errs)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		var n int
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case frames <- MockAudioFrame(s.Format, samples, s.Format.Duration(n)):
					n += samples
					s.mu.Lock()
					s.sent++
					s.mu.Unlock()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return frames, errs, nil
}

func (s *TickSource) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *TickSource) Wait() { s.wg.Wait() }

// Sent is the number of frames delivered so far.
func (s *TickSource) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// MockRecognizer counts frames and reports a fixed transcript once any
// audio has arrived.
type MockRecognizer struct {
	Text string

	mu     sync.Mutex
	frames int
	stops  int
}

func NewMockRecognizer(text string) *MockRecognizer {
	return &MockRecognizer{Text: text}
}

func (r *MockRecognizer) Start(ctx context.Context, frameCh <-chan audio.Frame) (<-chan error, error) {
	errCh := make(chan error)
	go func() {
		defer close(errCh)
		for range frameCh {
			r.mu.Lock()
			r.frames++
			r.mu.Unlock()
		}
	}()
	return errCh, nil
}

func (r *MockRecognizer) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
	return nil
}

func (r *MockRecognizer) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frames == 0 {
		return ""
	}
	return r.Text
}

func (r *MockRecognizer) Status() string { return "recognizing" }

func (r *MockRecognizer) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *MockRecognizer) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}
