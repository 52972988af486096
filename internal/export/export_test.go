package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExport(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "recording-1.wav")
	if err := os.WriteFile(src, []byte("RIFF data"), 0o600); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "exports", "nested")
	dst, err := Export(src, dir)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if dst != filepath.Join(dir, "recording-1.wav") {
		t.Errorf("Export() = %s", dst)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "RIFF data" {
		t.Errorf("exported content = %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected 1 file in export dir, found %d", len(entries))
	}

	// exporting again overwrites
	if err := os.WriteFile(src, []byte("RIFF newer"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Export(src, dir); err != nil {
		t.Fatalf("second Export() error = %v", err)
	}
	data, _ = os.ReadFile(dst)
	if string(data) != "RIFF newer" {
		t.Errorf("exported content after overwrite = %q", data)
	}
}

func TestExportSameDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.wav")
	if err := os.WriteFile(src, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	dst, err := Export(src, dir)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if dst != src {
		t.Errorf("Export() = %s, want %s", dst, src)
	}
	if data, _ := os.ReadFile(src); string(data) != "x" {
		t.Errorf("source clobbered: %q", data)
	}
}

func TestExportMissingSource(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"missing", filepath.Join(t.TempDir(), "gone.wav")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			_, err := Export(tt.src, dir)
			if !errors.Is(err, ErrNoSource) {
				t.Errorf("Export() error = %v, want ErrNoSource", err)
			}
			if _, err := os.Stat(dir); !os.IsNotExist(err) {
				t.Errorf("export dir should not be created for a missing source")
			}
		})
	}
}

func TestPlayMissingFile(t *testing.T) {
	err := Play(context.Background(), filepath.Join(t.TempDir(), "gone.wav"))
	if !errors.Is(err, ErrNoSource) {
		t.Errorf("Play() error = %v, want ErrNoSource", err)
	}
}

func TestPlayUsesPlayer(t *testing.T) {
	f := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(f, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	orig := Player
	defer func() { Player = orig }()

	Player = "true"
	if err := Play(context.Background(), f); err != nil {
		t.Errorf("Play() with true = %v", err)
	}

	Player = "false"
	if err := Play(context.Background(), f); err == nil {
		t.Errorf("Play() with false should fail")
	}

	Player = "remotescribe-no-such-player"
	if err := Play(context.Background(), f); err == nil {
		t.Errorf("Play() with a missing player should fail")
	}
}
