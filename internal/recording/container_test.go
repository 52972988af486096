package recording

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/leonardotrapani/remotescribe/internal/audio"
)

func TestWAVOpenerRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exists.wav")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WAVOpener(4)(path); err == nil {
		t.Error("expected error opening over an existing file")
	}
}

func TestWAVOpenerCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "a.wav")
	c, err := WAVOpener(4)(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if c.Path() != path {
		t.Errorf("path = %q", c.Path())
	}
	if err := c.Abort(); err != nil {
		t.Errorf("abort: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("abort should remove the file")
	}
}

func TestWAVContainerSingleTrack(t *testing.T) {
	c, err := WAVOpener(4)(filepath.Join(t.TempDir(), "a.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Abort()

	if _, err := c.AddTrack(audio.DefaultFormat); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if _, err := c.AddTrack(audio.DefaultFormat); err == nil {
		t.Error("second AddTrack should fail")
	}
}

func TestWAVContainerFinalizeWithoutAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	c, err := WAVOpener(4)(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddTrack(audio.DefaultFormat); err != nil {
		t.Fatal(err)
	}
	if err := c.Finalize(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Finalize = %v, want ErrNoAudio", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("empty container should be removed")
	}
}

func TestWAVContainerFinalizeAfterWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	c, err := openWAV(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	track, err := c.AddTrack(audio.DefaultFormat)
	if err != nil {
		t.Fatal(err)
	}
	// pull the file out from under the encoder so its first write fails
	c.file.Close()
	if err := track.Append(pcmFrame(audio.DefaultFormat, 160, 0)); err != nil {
		t.Fatal(err)
	}

	err = c.Finalize()
	if err == nil || errors.Is(err, ErrNoAudio) {
		t.Fatalf("Finalize = %v, want a write error", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("a file with unpatched headers should be removed")
	}
}

func TestWAVTrackQueueBackpressure(t *testing.T) {
	c, err := WAVOpener(1)(filepath.Join(t.TempDir(), "q.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Abort()

	track, err := c.AddTrack(audio.DefaultFormat)
	if err != nil {
		t.Fatal(err)
	}

	other := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
	if err := track.Append(pcmFrame(other, 10, 0)); err == nil {
		t.Error("Append should refuse a frame of another format")
	}

	accepted, refused := 0, 0
	for i := 0; i < 200; i++ {
		switch err := track.Append(pcmFrame(audio.DefaultFormat, 1600, 0)); {
		case err == nil:
			accepted++
		case errors.Is(err, ErrNotReady):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted == 0 {
		t.Error("no frames accepted")
	}
	if accepted+refused != 200 {
		t.Errorf("accepted %d + refused %d != 200", accepted, refused)
	}
}

func TestWAVContainerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	c, err := WAVOpener(16)(path)
	if err != nil {
		t.Fatal(err)
	}
	format := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 24}
	track, err := c.AddTrack(format)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := track.Append(pcmFrame(format, 480, time.Duration(i)*10*time.Millisecond)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := c.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if int(d.SampleRate) != 48000 || int(d.NumChans) != 2 || int(d.BitDepth) != 24 {
		t.Errorf("header = %d/%d/%d", d.SampleRate, d.NumChans, d.BitDepth)
	}
	if got, want := len(buf.Data), 4*480*2; got != want {
		t.Errorf("decoded %d values, want %d", got, want)
	}
}
