package recording

import (
	"errors"
	"fmt"
)

var (
	ErrSessionActive = errors.New("recording session already active")
	ErrSessionClosed = errors.New("recording session closed")
	ErrNoAudio       = errors.New("no audio was recorded")
	ErrNotReady      = errors.New("track not ready for more data")
)

// PathCollisionError means a stale file at the output path could not be removed.
type PathCollisionError struct {
	Path string
	Err  error
}

func (e *PathCollisionError) Error() string {
	return fmt.Sprintf("remove stale output %s: %v", e.Path, e.Err)
}

func (e *PathCollisionError) Unwrap() error { return e.Err }

// WriterInitError means the container could not be opened at the destination.
type WriterInitError struct {
	Path string
	Err  error
}

func (e *WriterInitError) Error() string {
	return fmt.Sprintf("open container %s: %v", e.Path, e.Err)
}

func (e *WriterInitError) Unwrap() error { return e.Err }

// TrackInitError means no encoder track could be built for the observed format.
// It is fatal to the session.
type TrackInitError struct {
	Format string
	Err    error
}

func (e *TrackInitError) Error() string {
	return fmt.Sprintf("create track for %s: %v", e.Format, e.Err)
}

func (e *TrackInitError) Unwrap() error { return e.Err }
