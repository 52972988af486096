package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	goaudio "github.com/go-audio/audio"
)

var (
	ErrEmptyFrame     = errors.New("empty frame")
	ErrMisalignedData = errors.New("frame data not aligned to sample frame size")
)

// Format describes the PCM layout of a stream. Samples are signed little-endian.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is what speech services expect: 16kHz mono s16le.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 || f.Channels > 8 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	switch f.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth: %d", f.BitDepth)
	}
	return nil
}

// FrameSize is the number of bytes holding one sample for every channel.
func (f Format) FrameSize() int {
	return f.BitDepth / 8 * f.Channels
}

func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// Duration returns the playback length of n sample frames.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate)
}

func (f Format) String() string {
	layout := "mono"
	switch f.Channels {
	case 1:
	case 2:
		layout = "stereo"
	default:
		layout = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz/%s/s%dle", f.SampleRate, layout, f.BitDepth)
}

// Frame is one buffer of PCM audio pushed by a source. PTS is the
// presentation time relative to the start of the stream.
type Frame struct {
	Data   []byte
	Format Format
	PTS    time.Duration
}

// Samples returns the number of sample frames (one sample per channel) in f.
func (f Frame) Samples() int {
	size := f.Format.FrameSize()
	if size <= 0 {
		return 0
	}
	return len(f.Data) / size
}

func (f Frame) Duration() time.Duration {
	return f.Format.Duration(f.Samples())
}

// Validate checks the frame carries whole sample frames of a supported format.
func (f Frame) Validate() error {
	if err := f.Format.Validate(); err != nil {
		return err
	}
	if len(f.Data) == 0 {
		return ErrEmptyFrame
	}
	if len(f.Data)%f.Format.FrameSize() != 0 {
		return fmt.Errorf("%w: %d bytes, frame size %d", ErrMisalignedData, len(f.Data), f.Format.FrameSize())
	}
	return nil
}

// IntBuffer decodes the PCM payload into a go-audio buffer for encoders.
func (f Frame) IntBuffer() *goaudio.IntBuffer {
	width := f.Format.BitDepth / 8
	n := 0
	if width > 0 {
		n = len(f.Data) / width
	}
	data := make([]int, n)
	for i := 0; i < n; i++ {
		b := f.Data[i*width : (i+1)*width]
		switch width {
		case 2:
			data[i] = int(int16(binary.LittleEndian.Uint16(b)))
		case 3:
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			data[i] = int(v)
		case 4:
			data[i] = int(int32(binary.LittleEndian.Uint32(b)))
		}
	}
	return &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: f.Format.Channels,
			SampleRate:  f.Format.SampleRate,
		},
		Data:           data,
		SourceBitDepth: f.Format.BitDepth,
	}
}

// Clone returns a copy of f that does not alias the caller's buffer.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	f.Data = data
	return f
}
