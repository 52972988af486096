package recording

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/go-audio/wav"
	"github.com/leonardotrapani/remotescribe/internal/audio"
)

// DefaultQueueSize is how many frames a track buffers before it reports not ready.
const DefaultQueueSize = 64

const wavPCMFormat = 1

// Container is an output media file holding at most one audio track.
type Container interface {
	Path() string
	// AddTrack builds an encoder track for format and attaches it.
	AddTrack(format audio.Format) (Track, error)
	// Finalize flushes pending samples and closes the file. It blocks. On
	// error the file is removed.
	Finalize() error
	// Abort closes the file and removes it.
	Abort() error
}

// Track accepts frames of a single format.
type Track interface {
	Format() audio.Format
	// Ready reports whether Append would accept a frame right now.
	Ready() bool
	// Append queues a frame. It never blocks; ErrNotReady means the frame
	// was not taken.
	Append(frame audio.Frame) error
}

// Opener creates a Container at path. The file must not exist.
type Opener func(path string) (Container, error)

// WAVOpener returns an Opener for RIFF/WAVE PCM files whose track buffers up
// to queueSize frames ahead of the background writer.
func WAVOpener(queueSize int) Opener {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return func(path string) (Container, error) {
		return openWAV(path, queueSize)
	}
}

type wavContainer struct {
	path      string
	file      *os.File
	queueSize int
	track     *wavTrack
}

func openWAV(path string, queueSize int) (*wavContainer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &wavContainer{path: path, file: f, queueSize: queueSize}, nil
}

func (c *wavContainer) Path() string { return c.path }

func (c *wavContainer) AddTrack(format audio.Format) (Track, error) {
	if c.track != nil {
		return nil, errors.New("container already has a track")
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	enc := wav.NewEncoder(c.file, format.SampleRate, format.BitDepth, format.Channels, wavPCMFormat)
	t := &wavTrack{
		format: format,
		enc:    enc,
		queue:  make(chan audio.Frame, c.queueSize),
		done:   make(chan struct{}),
	}
	go t.run()
	c.track = t
	return t, nil
}

func (c *wavContainer) Finalize() error {
	var trackErr error
	if c.track != nil {
		trackErr = c.track.close()
	} else {
		trackErr = ErrNoAudio
	}
	closeErr := c.file.Close()

	if trackErr != nil {
		// no audio or a failed write leaves RIFF sizes unpatched
		_ = os.Remove(c.path)
		return trackErr
	}
	if closeErr != nil {
		_ = os.Remove(c.path)
		return fmt.Errorf("close %s: %w", c.path, closeErr)
	}
	return nil
}

func (c *wavContainer) Abort() error {
	if c.track != nil {
		c.track.discard()
	}
	_ = c.file.Close()
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// wavTrack hands frames to a writer goroutine through a bounded queue.
type wavTrack struct {
	format audio.Format
	enc    *wav.Encoder
	queue  chan audio.Frame
	done   chan struct{}

	skip atomic.Bool

	// owned by run until done is closed
	written int
	err     error
}

func (t *wavTrack) Format() audio.Format { return t.format }

func (t *wavTrack) Ready() bool {
	return len(t.queue) < cap(t.queue)
}

func (t *wavTrack) Append(frame audio.Frame) error {
	if frame.Format != t.format {
		return fmt.Errorf("frame format %s does not match track format %s", frame.Format, t.format)
	}
	select {
	case t.queue <- frame.Clone():
		return nil
	default:
		return ErrNotReady
	}
}

func (t *wavTrack) run() {
	defer close(t.done)
	for frame := range t.queue {
		if t.err != nil || t.skip.Load() {
			continue
		}
		if err := t.enc.Write(frame.IntBuffer()); err != nil {
			t.err = fmt.Errorf("encode frame: %w", err)
			log.Printf("Recording: writer error: %v", t.err)
			continue
		}
		t.written++
	}
}

// close drains the queue and writes the final RIFF sizes.
func (t *wavTrack) close() error {
	close(t.queue)
	<-t.done
	if t.err != nil {
		return t.err
	}
	if t.written == 0 {
		return ErrNoAudio
	}
	if err := t.enc.Close(); err != nil {
		return fmt.Errorf("finish wav: %w", err)
	}
	return nil
}

func (t *wavTrack) discard() {
	t.skip.Store(true)
	close(t.queue)
	<-t.done
}
