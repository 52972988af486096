package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

var ErrNoSource = errors.New("no recording to export")

// Export copies src into dir under its own base name and returns the new
// path. The copy lands through a temp file and rename so a partial file is
// never visible at the destination.
func Export(src, dir string) (string, error) {
	if src == "" {
		return "", ErrNoSource
	}
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNoSource, src)
		}
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	dst := filepath.Join(dir, filepath.Base(src))
	if same, _ := sameFile(src, dst); same {
		return dst, nil
	}

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return "", fmt.Errorf("copy recording: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("move export into place: %w", err)
	}

	log.Printf("Export: copied %s to %s", src, dst)
	return dst, nil
}

func sameFile(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}

// Player is the external command used by Play.
var Player = "pw-play"

// Play plays path through PipeWire and blocks until playback ends or ctx
// is cancelled.
func Play(ctx context.Context, path string) error {
	if path == "" {
		return ErrNoSource
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrNoSource, path)
	}
	if _, err := exec.LookPath(Player); err != nil {
		return fmt.Errorf("%s not found: %w", Player, err)
	}

	cmd := exec.CommandContext(ctx, Player, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w (%s)", Player, err, out)
	}
	return nil
}
