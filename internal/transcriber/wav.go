package transcriber

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/leonardotrapani/remotescribe/internal/audio"
	"github.com/orcaman/writerseeker"
)

// encodeWAV wraps raw PCM of the given format into an in-memory WAV file.
func encodeWAV(format audio.Format, pcm []byte) ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, format.SampleRate, format.BitDepth, format.Channels, 1)

	frame := audio.Frame{Data: pcm, Format: format}
	if err := enc.Write(frame.IntBuffer()); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	data, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return data, nil
}
