package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/leonardotrapani/remotescribe/internal/audio"
	"github.com/leonardotrapani/remotescribe/internal/observe"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewAdapter(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid openai config",
			config:  Config{Provider: "openai", APIKey: "test-key", Model: "whisper-1"},
			wantErr: false,
		},
		{
			name:    "openai config without api key",
			config:  Config{Provider: "openai", Model: "whisper-1"},
			wantErr: true,
		},
		{
			name:    "valid groq config",
			config:  Config{Provider: "groq", APIKey: "gsk-test-key"},
			wantErr: false,
		},
		{
			name:    "groq config without api key",
			config:  Config{Provider: "groq"},
			wantErr: true,
		},
		{
			name:    "unsupported provider",
			config:  Config{Provider: "deepgram", APIKey: "key"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewAdapter(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewAdapter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && adapter == nil {
				t.Error("NewAdapter() returned nil adapter")
			}
		})
	}
}

func TestGroqAdapterDefaults(t *testing.T) {
	a := NewGroqAdapter(Config{APIKey: "gsk"})
	if a.model != "whisper-large-v3" {
		t.Errorf("model = %q", a.model)
	}
	if a.providerName != ProviderGroq {
		t.Errorf("providerName = %q", a.providerName)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.Provider != "openai" || config.Model != "whisper-1" {
		t.Errorf("unexpected defaults: %+v", config)
	}
	if config.Interval <= 0 || config.MaxBuffer <= 0 {
		t.Errorf("interval and max buffer should be positive: %+v", config)
	}
}

// MockBatchAdapter implements BatchAdapter for testing
type MockBatchAdapter struct {
	mu             sync.Mutex
	calls          int
	lastWAV        []byte
	TranscribeFunc func(ctx context.Context, wav []byte) (string, error)
}

func (m *MockBatchAdapter) Transcribe(ctx context.Context, wav []byte) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastWAV = wav
	fn := m.TranscribeFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, wav)
	}
	return "mock transcription", nil
}

func (m *MockBatchAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func pcmFrame(samples int) audio.Frame {
	return audio.Frame{Data: make([]byte, samples*2), Format: audio.DefaultFormat}
}

func TestTranscriber_StartStop(t *testing.T) {
	adapter := &MockBatchAdapter{}
	tr := New(Config{Provider: "openai"}, adapter, WithMetrics(testMetrics(t)))
	ctx := context.Background()

	if err := tr.Stop(ctx); err != nil {
		t.Errorf("Stop() when not running = %v", err)
	}

	frameCh := make(chan audio.Frame, 10)
	errCh, err := tr.Start(ctx, frameCh)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if errCh == nil {
		t.Fatal("Start() returned nil error channel")
	}
	if _, err := tr.Start(ctx, frameCh); err == nil {
		t.Error("Start() should fail when already running")
	}
	if tr.Status() != StatusRecognizing {
		t.Errorf("status = %q", tr.Status())
	}

	if err := tr.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if adapter.Calls() != 0 {
		t.Errorf("no audio, adapter should not be called, got %d calls", adapter.Calls())
	}
	if tr.Status() != StatusIdle {
		t.Errorf("status after stop = %q", tr.Status())
	}
}

func TestTranscriber_FinalOnStop(t *testing.T) {
	adapter := &MockBatchAdapter{
		TranscribeFunc: func(ctx context.Context, data []byte) (string, error) {
			return "  hello world ", nil
		},
	}
	tr := New(Config{Provider: "openai"}, adapter, WithMetrics(testMetrics(t)))
	ctx := context.Background()

	frameCh := make(chan audio.Frame, 10)
	if _, err := tr.Start(ctx, frameCh); err != nil {
		t.Fatal(err)
	}
	frameCh <- pcmFrame(160)
	frameCh <- pcmFrame(160)
	close(frameCh)

	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := tr.Transcript(); got != "hello world" {
		t.Errorf("Transcript() = %q", got)
	}

	d := wav.NewDecoder(bytes.NewReader(adapter.lastWAV))
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("adapter received invalid wav: %v", err)
	}
	if len(buf.Data) != 320 || d.SampleRate != 16000 {
		t.Errorf("wav has %d samples at %d Hz", len(buf.Data), d.SampleRate)
	}
}

func TestTranscriber_PartialResults(t *testing.T) {
	var n int
	var mu sync.Mutex
	adapter := &MockBatchAdapter{
		TranscribeFunc: func(ctx context.Context, data []byte) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("partial %d", n), nil
		},
	}
	tr := New(Config{Provider: "openai", Interval: 20 * time.Millisecond}, adapter, WithMetrics(testMetrics(t)))
	ctx := context.Background()

	frameCh := make(chan audio.Frame, 10)
	if _, err := tr.Start(ctx, frameCh); err != nil {
		t.Fatal(err)
	}
	frameCh <- pcmFrame(160)

	deadline := time.Now().Add(2 * time.Second)
	for !strings.HasPrefix(tr.Transcript(), "partial") {
		if time.Now().After(deadline) {
			t.Fatal("no partial result")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// nothing new arrived, ticks must not resend the same window
	calls := adapter.Calls()
	time.Sleep(80 * time.Millisecond)
	if adapter.Calls() != calls {
		t.Errorf("unchanged window transcribed again: %d -> %d calls", calls, adapter.Calls())
	}

	if err := tr.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestTranscriber_Unavailable(t *testing.T) {
	adapter := &MockBatchAdapter{
		TranscribeFunc: func(ctx context.Context, data []byte) (string, error) {
			return "", &UnavailableError{Provider: "openai", Err: errors.New("invalid api key")}
		},
	}
	tr := New(Config{Provider: "openai", Interval: 10 * time.Millisecond}, adapter, WithMetrics(testMetrics(t)))
	ctx := context.Background()

	frameCh := make(chan audio.Frame, 10)
	errCh, err := tr.Start(ctx, frameCh)
	if err != nil {
		t.Fatal(err)
	}
	frameCh <- pcmFrame(160)

	select {
	case err := <-errCh:
		if !IsUnavailable(err) {
			t.Errorf("expected unavailable error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}

	if tr.Status() != "unavailable: openai: invalid api key" {
		t.Errorf("status = %q", tr.Status())
	}
	frameCh <- pcmFrame(160)
	time.Sleep(50 * time.Millisecond)
	if adapter.Calls() != 1 {
		t.Errorf("adapter called %d times after fatal error", adapter.Calls())
	}
	if err := tr.Stop(ctx); err != nil {
		t.Errorf("Stop() after fatal = %v", err)
	}
}

func TestTranscriber_TransientErrorRetries(t *testing.T) {
	var fail = true
	var mu sync.Mutex
	adapter := &MockBatchAdapter{
		TranscribeFunc: func(ctx context.Context, data []byte) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if fail {
				fail = false
				return "", errors.New("503")
			}
			return "recovered", nil
		},
	}
	tr := New(Config{Provider: "groq"}, adapter, WithMetrics(testMetrics(t)))
	ctx := context.Background()

	frameCh := make(chan audio.Frame, 1)
	if _, err := tr.Start(ctx, frameCh); err != nil {
		t.Fatal(err)
	}
	frameCh <- pcmFrame(160)
	close(frameCh)
	time.Sleep(10 * time.Millisecond)

	if err := tr.transcribe(ctx); err == nil {
		t.Fatal("first transcription should fail")
	}
	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	if tr.Transcript() != "recovered" {
		t.Errorf("Transcript() = %q", tr.Transcript())
	}
}

func TestTranscriber_MaxBuffer(t *testing.T) {
	tr := New(Config{Provider: "openai", MaxBuffer: 100 * time.Millisecond}, &MockBatchAdapter{}, WithMetrics(testMetrics(t)))

	for i := 0; i < 50; i++ {
		tr.append(pcmFrame(160))
	}
	want := audio.DefaultFormat.BytesPerSecond() / 10
	if len(tr.pcm) != want {
		t.Errorf("window is %d bytes, want %d", len(tr.pcm), want)
	}

	stereo := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
	tr.append(audio.Frame{Data: make([]byte, 400), Format: stereo})
	if tr.format != stereo || len(tr.pcm) != 400 {
		t.Errorf("format change should reset window, got %v with %d bytes", tr.format, len(tr.pcm))
	}
}

func TestUnavailableError(t *testing.T) {
	base := errors.New("401 unauthorized")
	err := fmt.Errorf("request: %w", &UnavailableError{Provider: "groq", Err: base})
	if !IsUnavailable(err) {
		t.Error("wrapped unavailable error not detected")
	}
	if !errors.Is(err, base) {
		t.Error("unavailable error should unwrap to its cause")
	}
	if err.Error() != "request: groq: 401 unauthorized" {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsUnavailable(base) {
		t.Error("plain error reported as unavailable")
	}
}

func TestNewAdapterMissingKey(t *testing.T) {
	for _, provider := range []string{ProviderOpenAI, ProviderGroq} {
		if _, err := NewAdapter(Config{Provider: provider}); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("NewAdapter(%s) = %v, want ErrMissingAPIKey", provider, err)
		}
	}
}

func TestEncodeWAV(t *testing.T) {
	format := audio.Format{SampleRate: 8000, Channels: 2, BitDepth: 16}
	data, err := encodeWAV(format, make([]byte, 8000*4/10))
	if err != nil {
		t.Fatal(err)
	}
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		t.Fatal("invalid wav")
	}
	dur, err := d.Duration()
	if err != nil {
		t.Fatal(err)
	}
	if dur != 100*time.Millisecond {
		t.Errorf("duration = %v", dur)
	}
}
