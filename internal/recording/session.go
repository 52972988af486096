package recording

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leonardotrapani/remotescribe/internal/audio"
	"github.com/leonardotrapani/remotescribe/internal/observe"
)

type State int

const (
	Idle State = iota
	// Pending is Writing before the first valid frame fixed the track format.
	Pending
	// Active is Writing with an encoder track attached.
	Active
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "writing(pending)"
	case Active:
		return "writing(active)"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Writing reports whether frames are accepted in this state.
func (s State) Writing() bool {
	return s == Pending || s == Active
}

// Stats counts what happened to the frames fed into a session.
type Stats struct {
	Fed      int64
	Written  int64
	Dropped  int64
	Rejected int64
	Samples  int64
}

// Result is delivered once a stopped session has been finalized. When Err is
// set no file is left at Path.
type Result struct {
	Path   string
	Format audio.Format
	// Frames is the number of frames written into the container.
	Frames  int64
	Samples int64
	// Duration is the playback length of the written samples.
	Duration time.Duration
	// Span runs from the anchor PTS to the end of the last written frame.
	Span     time.Duration
	Dropped  int64
	Rejected int64
	Err      error
}

const fileExt = ".wav"

type Option func(*Session)

// WithDir sets the directory for generated output paths.
func WithDir(dir string) Option {
	return func(s *Session) { s.dir = dir }
}

// WithPrefix sets the file name prefix for generated output paths.
func WithPrefix(prefix string) Option {
	return func(s *Session) { s.prefix = prefix }
}

// WithPath makes the session write to path instead of generating one.
func WithPath(path string) Option {
	return func(s *Session) { s.path = path }
}

func WithOpener(o Opener) Option {
	return func(s *Session) { s.opener = o }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session persists one live stream of frames into one container file.
// All methods are safe for concurrent use; calls are serialized internally.
type Session struct {
	id      string
	dir     string
	prefix  string
	opener  Opener
	metrics *observe.Metrics

	mu        sync.Mutex
	state     State
	path      string
	container Container
	track     Track
	anchor    time.Duration
	lastEnd   time.Duration
	stats     Stats
	failure   error

	warnedMismatch bool
	lastDropLog    time.Time
	dropsSinceLog  int64
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		dir:     os.TempDir(),
		prefix:  "recording",
		opener:  WAVOpener(DefaultQueueSize),
		metrics: observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Path is the output location, empty until Start allocated it.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Err returns the error that moved the session to Failed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Ready reports whether Feed would accept a frame without dropping it. A
// session still waiting for its first frame is ready.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Pending:
		return true
	case Active:
		return s.track.Ready()
	default:
		return false
	}
}

// Start allocates the output location and opens the container writer.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Pending, Active:
		return ErrSessionActive
	case Finished, Failed:
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.path
	if path == "" {
		path = filepath.Join(s.dir, fmt.Sprintf("%s-%d%s", s.prefix, time.Now().UnixNano(), fileExt))
	}

	if err := removeStale(path); err != nil {
		s.fail(ctx, err)
		return err
	}

	c, err := s.opener(path)
	if err != nil {
		werr := &WriterInitError{Path: path, Err: err}
		s.fail(ctx, werr)
		return werr
	}

	s.path = path
	s.container = c
	s.state = Pending
	s.metrics.ActiveRecordings.Add(ctx, 1)
	log.Printf("Recording: session %s started, writing to %s", s.id, path)
	return nil
}

func removeStale(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &PathCollisionError{Path: path, Err: err}
	}
	if err := os.Remove(path); err != nil {
		return &PathCollisionError{Path: path, Err: err}
	}
	log.Printf("Recording: removed existing file at %s", path)
	return nil
}

// Feed hands one frame to the session. The first valid frame fixes the track
// format; later frames are written if the track is ready and dropped if not.
// Feed never reports errors; see Stats, State and Err.
func (s *Session) Feed(frame audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Writing() {
		return
	}

	ctx := context.Background()
	s.stats.Fed++
	s.metrics.FramesFed.Add(ctx, 1)

	if s.state == Pending {
		if err := frame.Format.Validate(); err != nil {
			s.failTrack(ctx, frame.Format, err)
			return
		}
		if err := frame.Validate(); err != nil {
			s.reject(ctx, "invalid")
			return
		}
		track, err := s.container.AddTrack(frame.Format)
		if err != nil {
			s.failTrack(ctx, frame.Format, err)
			return
		}
		s.track = track
		s.anchor = frame.PTS
		s.lastEnd = frame.PTS
		s.state = Active
		log.Printf("Recording: session %s track configured as %s, anchored at %v", s.id, frame.Format, frame.PTS)
	}

	if frame.Format != s.track.Format() {
		if !s.warnedMismatch {
			s.warnedMismatch = true
			log.Printf("Recording: session %s rejecting %s frames, track is %s", s.id, frame.Format, s.track.Format())
		}
		s.reject(ctx, "format_mismatch")
		return
	}
	if err := frame.Validate(); err != nil {
		s.reject(ctx, "invalid")
		return
	}

	if !s.track.Ready() {
		s.drop(ctx)
		return
	}
	if err := s.track.Append(frame); err != nil {
		s.drop(ctx)
		return
	}

	s.stats.Written++
	s.stats.Samples += int64(frame.Samples())
	if end := frame.PTS + frame.Duration(); end > s.lastEnd {
		s.lastEnd = end
	}
	s.metrics.FramesWritten.Add(ctx, 1)
}

func (s *Session) reject(ctx context.Context, reason string) {
	s.stats.Rejected++
	s.metrics.RecordRejected(ctx, reason)
}

func (s *Session) drop(ctx context.Context) {
	s.stats.Dropped++
	s.dropsSinceLog++
	s.metrics.FramesDropped.Add(ctx, 1)
	if time.Since(s.lastDropLog) > time.Second {
		log.Printf("Recording: session %s dropped %d frames, track not ready", s.id, s.dropsSinceLog)
		s.lastDropLog = time.Now()
		s.dropsSinceLog = 0
	}
}

func (s *Session) failTrack(ctx context.Context, format audio.Format, cause error) {
	err := &TrackInitError{Format: format.String(), Err: cause}
	if abortErr := s.container.Abort(); abortErr != nil {
		log.Printf("Recording: session %s abort failed: %v", s.id, abortErr)
	}
	s.container = nil
	s.metrics.ActiveRecordings.Add(ctx, -1)
	s.fail(ctx, err)
}

// fail must be called with mu held.
func (s *Session) fail(ctx context.Context, err error) {
	s.state = Failed
	s.failure = err
	s.metrics.RecordSession(ctx, "failed")
	log.Printf("Recording: session %s failed: %v", s.id, err)
}

// Stop ends the session. Finalization runs in the background; the returned
// channel yields one Result when it is done and is then closed. When the
// session was not writing the channel is closed without a value, except for a
// Failed session which yields its failure.
func (s *Session) Stop() <-chan Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Result, 1)

	switch s.state {
	case Idle, Finished:
		close(ch)
		return ch
	case Failed:
		ch <- Result{Path: s.path, Err: s.failure}
		close(ch)
		return ch
	}

	ctx := context.Background()
	prev := s.state
	s.state = Finished
	s.metrics.ActiveRecordings.Add(ctx, -1)

	res := Result{
		Path:     s.path,
		Frames:   s.stats.Written,
		Samples:  s.stats.Samples,
		Dropped:  s.stats.Dropped,
		Rejected: s.stats.Rejected,
	}
	if s.track != nil {
		res.Format = s.track.Format()
		res.Duration = res.Format.Duration(int(res.Samples))
		res.Span = s.lastEnd - s.anchor
	}

	c := s.container
	s.container = nil
	s.track = nil
	id := s.id

	go func() {
		defer close(ch)

		if prev == Pending {
			if err := c.Abort(); err != nil {
				log.Printf("Recording: session %s cleanup failed: %v", id, err)
			}
			res.Err = ErrNoAudio
			s.metrics.RecordSession(ctx, "empty")
			log.Printf("Recording: session %s stopped before any audio arrived", id)
			ch <- res
			return
		}

		start := time.Now()
		err := c.Finalize()
		s.metrics.FinalizeDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			res.Err = fmt.Errorf("finalize %s: %w", res.Path, err)
			s.metrics.RecordSession(ctx, "failed")
			log.Printf("Recording: session %s finalize failed: %v", id, err)
		} else {
			s.metrics.RecordSession(ctx, "finished")
			log.Printf("Recording: session %s finished writing %s (%d frames, %v, %d dropped, %d rejected)",
				id, res.Path, res.Frames, res.Duration, res.Dropped, res.Rejected)
		}
		ch <- res
	}()

	return ch
}
