package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/leonardotrapani/remotescribe/internal/audio"
	"github.com/leonardotrapani/remotescribe/internal/observe"
)

const (
	SourcePipeWire = "pipewire"
	SourceFile     = "file"
)

type Config struct {
	Source string
	// Path is read by the file source; "-" means stdin.
	Path string
	// Device is the PipeWire node to record from, empty for the default.
	Device            string
	SampleRate        int
	Channels          int
	BitDepth          int
	BufferSize        int
	ChannelBufferSize int
	// Blocking makes the capture loop wait for the consumer instead of
	// dropping frames. Used for offline files.
	Blocking bool
}

func DefaultConfig() Config {
	return Config{
		Source:            SourcePipeWire,
		SampleRate:        16000,
		Channels:          1,
		BitDepth:          16,
		BufferSize:        8192,
		ChannelBufferSize: 30,
	}
}

func (c Config) Format() audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: c.Channels, BitDepth: c.BitDepth}
}

type Option func(*Capturer)

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Capturer) { c.metrics = m }
}

// WithReader replaces the configured source with r. Mostly for tests.
func WithReader(r io.Reader) Option {
	return func(c *Capturer) {
		c.open = func(context.Context) (io.ReadCloser, func() error, error) {
			return io.NopCloser(r), func() error { return nil }, nil
		}
	}
}

// Capturer reads raw PCM from a local source and emits audio frames.
type Capturer struct {
	config  Config
	metrics *observe.Metrics
	open    func(ctx context.Context) (io.ReadCloser, func() error, error)
	running atomic.Bool

	mu     sync.Mutex // guards cancel
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func New(config Config, opts ...Option) *Capturer {
	c := &Capturer{config: config, metrics: observe.DefaultMetrics()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Capturer) IsRunning() bool {
	return c.running.Load()
}

// Start launches the capture loop. Both channels are closed when it ends.
func (c *Capturer) Start(ctx context.Context) (<-chan audio.Frame, <-chan error, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, nil, fmt.Errorf("already capturing")
	}

	if err := c.validateConfig(); err != nil {
		c.running.Store(false)
		return nil, nil, err
	}

	if c.open == nil {
		switch c.config.Source {
		case SourcePipeWire:
			if err := CheckPipeWireAvailable(ctx); err != nil {
				c.running.Store(false)
				return nil, nil, fmt.Errorf("PipeWire not available: %w", err)
			}
			c.open = c.openPipeWire
		case SourceFile:
			c.open = c.openFile
		}
	}

	// Stop can cancel an open that is still waiting, e.g. on a fifo writer
	captureCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	rc, wait, err := c.open(captureCtx)
	if err != nil {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		c.running.Store(false)
		return nil, nil, err
	}

	frameCh := make(chan audio.Frame, c.config.ChannelBufferSize)
	errCh := make(chan error, 1)

	c.wg.Add(1)
	go c.captureLoop(captureCtx, rc, wait, frameCh, errCh)

	return frameCh, errCh, nil
}

func (c *Capturer) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *Capturer) Wait() {
	c.wg.Wait()
}

func (c *Capturer) openPipeWire(ctx context.Context) (io.ReadCloser, func() error, error) {
	cmd := exec.CommandContext(ctx, "pw-record", c.buildPwRecordArgs()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start pw-record: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Printf("Capture stderr: %s", scanner.Text())
		}
	}()

	return stdout, cmd.Wait, nil
}

func (c *Capturer) openFile(ctx context.Context) (io.ReadCloser, func() error, error) {
	if c.config.Path == "-" {
		return io.NopCloser(os.Stdin), func() error { return nil }, nil
	}
	f, err := openReadable(ctx, c.config.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open source %s: %w", c.config.Path, err)
	}
	go func() {
		<-ctx.Done()
		_ = f.Close()
	}()
	return f, func() error { return nil }, nil
}

// openReadable opens path for reading and gives up when ctx is done. Opening
// a fifo blocks until a writer shows up.
func openReadable(ctx context.Context, path string) (*os.File, error) {
	type opened struct {
		f   *os.File
		err error
	}
	result := make(chan opened, 1)
	go func() {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		result <- opened{f, err}
	}()

	select {
	case r := <-result:
		return r.f, r.err
	case <-ctx.Done():
	}

	// a non-blocking writer releases the reader still waiting in open
	if info, err := os.Stat(path); err == nil && info.Mode()&os.ModeNamedPipe != 0 {
		if w, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, 0); err == nil {
			_ = w.Close()
		}
	}
	go func() {
		if r := <-result; r.f != nil {
			_ = r.f.Close()
		}
	}()
	return nil, ctx.Err()
}

func (c *Capturer) captureLoop(ctx context.Context, rc io.ReadCloser, wait func() error, frameCh chan<- audio.Frame, errCh chan<- error) {
	defer func() {
		close(frameCh)
		close(errCh)
		_ = rc.Close()
		// reap the child process, if any
		_ = wait()

		c.mu.Lock()
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.mu.Unlock()

		c.running.Store(false)
		c.wg.Done()
	}()

	format := c.config.Format()
	frameSize := format.FrameSize()
	bufSize := c.config.BufferSize - c.config.BufferSize%frameSize
	if bufSize == 0 {
		bufSize = frameSize
	}
	buffer := make([]byte, bufSize)

	var samples int64
	var droppedCount int
	lastDropLog := time.Now()

	for {
		n, readErr := io.ReadFull(rc, buffer)
		n -= n % frameSize
		if n > 0 {
			data := make([]byte, n)
			copy(data, buffer[:n])

			frame := audio.Frame{Data: data, Format: format, PTS: format.Duration(int(samples))}
			samples += int64(n / frameSize)

			if c.config.Blocking {
				select {
				case frameCh <- frame:
				case <-ctx.Done():
					return
				}
			} else {
				select {
				case frameCh <- frame:
				case <-ctx.Done():
					return
				default:
					droppedCount++
					c.metrics.CaptureDropped.Add(ctx, 1)
					if time.Since(lastDropLog) > time.Second {
						log.Printf("Capture: dropped %d frames due to backpressure", droppedCount)
						lastDropLog = time.Now()
						droppedCount = 0
					}
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				log.Printf("Capture: source ended after %v", format.Duration(int(samples)))
				return
			}
			if ctx.Err() != nil {
				return
			}
			c.emitErr(errCh, fmt.Errorf("read audio: %w", readErr))
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (c *Capturer) emitErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
	log.Printf("Capture error: %v", err)
}

func pwFormat(bitDepth int) string {
	return "s" + strconv.Itoa(bitDepth)
}

func (c *Capturer) buildPwRecordArgs() []string {
	args := []string{
		"--format", pwFormat(c.config.BitDepth),
		"--rate", strconv.Itoa(c.config.SampleRate),
		"--channels", strconv.Itoa(c.config.Channels),
		"-", // stdout
	}
	if c.config.Device != "" {
		args = append(args, "--target", c.config.Device)
	}
	return args
}

func CheckPipeWireAvailable(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, "pw-cli", "info")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}

func (c *Capturer) validateConfig() error {
	switch c.config.Source {
	case SourcePipeWire:
	case SourceFile:
		if c.config.Path == "" && c.open == nil {
			return fmt.Errorf("file source requires a path")
		}
	default:
		if c.open == nil {
			return fmt.Errorf("invalid Source: %q", c.config.Source)
		}
	}
	if err := c.config.Format().Validate(); err != nil {
		return err
	}
	if c.config.BufferSize <= 0 {
		return fmt.Errorf("invalid BufferSize: %d", c.config.BufferSize)
	}
	if c.config.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid ChannelBufferSize: %d", c.config.ChannelBufferSize)
	}
	if frameBytes := c.config.Format().FrameSize(); c.config.BufferSize%frameBytes != 0 {
		log.Printf("Capture: BufferSize %d not aligned to frame size %d; reads will be trimmed",
			c.config.BufferSize, frameBytes)
	}
	return nil
}
