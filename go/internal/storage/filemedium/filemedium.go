// Package filemedium stores each key as a file in a shared directory so that
// separate processes on one host see the same game state.
package filemedium

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

const fileExt = ".json"

// Medium is a directory-backed storage.Medium.
type Medium struct {
	dir string

	mu      sync.Mutex
	closed  bool
	watches map[*fsnotify.Watcher]struct{}
}

// New creates the directory if needed and returns a medium rooted there.
func New(dir string) (*Medium, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", abs, err)
	}
	return &Medium{dir: abs, watches: make(map[*fsnotify.Watcher]struct{})}, nil
}

// Dir returns the absolute directory backing the medium.
func (m *Medium) Dir() string {
	return m.dir
}

func (m *Medium) path(key string) string {
	return filepath.Join(m.dir, fileName(key))
}

func fileName(key string) string {
	return strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(key) + fileExt
}

func (m *Medium) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(m.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Set writes to a temp file and renames it into place, so readers never
// observe a partially written value.
func (m *Medium) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(m.dir, "."+fileName(key)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, m.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

func (m *Medium) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(m.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Watch watches the directory, which survives the rename-based writes
// better than watching the file itself.
func (m *Medium) Watch(ctx context.Context, key string, fn func([]byte)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("filemedium: closed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(m.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch data dir %s: %w", m.dir, err)
	}
	m.watches[watcher] = struct{}{}

	done := make(chan struct{})
	go m.watchLoop(ctx, watcher, key, fn, done)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watches, watcher)
			m.mu.Unlock()
			if err := watcher.Close(); err != nil {
				log.Error().Err(err).Msg("error closing file watcher")
			}
			<-done
		})
	}
	return stop, nil
}

func (m *Medium) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, key string, fn func([]byte), done chan struct{}) {
	defer close(done)

	target := fileName(key)
	var last []byte
	delivered := false

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			value, err := m.Get(ctx, key)
			if errors.Is(err, storage.ErrNotFound) {
				value = nil
			} else if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to read changed value")
				continue
			}

			// Write and Create often arrive together for one rename.
			if delivered && bytes.Equal(value, last) && (value == nil) == (last == nil) {
				continue
			}
			last, delivered = value, true
			fn(value)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("key", key).Msg("file watcher error")
		}
	}
}

// Close stops every watch opened on the medium.
func (m *Medium) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	watchers := make([]*fsnotify.Watcher, 0, len(m.watches))
	for w := range m.watches {
		watchers = append(watchers, w)
	}
	m.watches = map[*fsnotify.Watcher]struct{}{}
	m.mu.Unlock()

	var errs []error
	for _, w := range watchers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

var _ storage.Medium = (*Medium)(nil)
