package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events an editor save produces.
const reloadDelay = 150 * time.Millisecond

// Manager owns the live configuration of a running daemon and reloads it
// when the file on disk changes. A reload that fails to parse or validate
// leaves the previous configuration in place.
type Manager struct {
	path string

	mu        sync.RWMutex
	current   *Config
	listeners []func(*Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewManager loads the user config, writing defaults first if the file
// does not exist yet.
func NewManager() (*Manager, error) {
	if _, err := Load(); err != nil {
		return nil, err
	}
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerFromPath(path)
}

// NewManagerFromPath manages the config file at path, which must exist.
func NewManagerFromPath(path string) (*Manager, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Config: %s has problems, using it anyway: %v", path, err)
	}
	return &Manager{path: path, current: cfg}, nil
}

func (m *Manager) Path() string { return m.path }

// GetConfig returns a copy of the current configuration.
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := *m.current
	return &c
}

// OnChange registers fn to run with a copy of every accepted reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// StartWatching reloads the file on change until ctx is done or Stop is
// called. The parent directory is watched since most editors replace the
// file rather than writing it in place.
func (m *Manager) StartWatching(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(m.path)); err != nil {
		w.Close()
		return fmt.Errorf("config watcher: %w", err)
	}

	m.watcher = w
	m.done = make(chan struct{})
	go m.watch(ctx)

	log.Printf("Config: watching %s", m.path)
	return nil
}

func (m *Manager) Stop() {
	if m.watcher == nil {
		return
	}
	m.watcher.Close()
	<-m.done
}

func (m *Manager) watch(ctx context.Context) {
	defer close(m.done)

	name := filepath.Base(m.path)
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			debounce.Reset(reloadDelay)

		case <-debounce.C:
			if err := m.reload(); err != nil {
				log.Printf("Config: reload rejected, keeping previous config: %v", err)
				continue
			}
			log.Printf("Config: reloaded %s", m.path)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config: watcher error: %v", err)

		case <-ctx.Done():
			return
		}
	}
}

// reload re-reads the file and, if it is valid, swaps it in and notifies
// listeners.
func (m *Manager) reload() error {
	cfg, err := LoadFile(m.path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = cfg
	listeners := append([]func(*Config){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		c := *cfg
		fn(&c)
	}
	return nil
}
