package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Store — атомарно подменяемый снапшот настроек.
type Store struct {
	path    string
	current atomic.Pointer[Settings]
	logger  *slog.Logger
}

// NewStore создаёт Store с начальным снапшотом.
func NewStore(initial *Settings, path string, logger *slog.Logger) *Store {
	if initial == nil {
		initial = Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}
	s.current.Store(initial)
	return s
}

// Open загружает файл и создаёт Store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStore(cfg, path, logger), nil
}

// Get возвращает текущий снапшот. Снапшот нельзя менять.
func (s *Store) Get() *Settings {
	return s.current.Load()
}

// Set подменяет снапшот.
func (s *Store) Set(cfg *Settings) {
	s.current.Store(cfg)
}

// Reload перечитывает файл. При ошибке текущий снапшот остаётся.
func (s *Store) Reload() error {
	cfg, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.current.Store(cfg)
	return nil
}

// Watch перечитывает файл при изменениях до отмены ctx.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			if err := s.Reload(); err != nil {
				s.logger.Warn("settings reload failed, keeping previous snapshot", "path", s.path, "error", err)
				return
			}
			s.logger.Info("settings reloaded", "path", s.path)
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	s.logger.Info("settings watcher started", "path", s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("settings watcher error", "error", err)
		}
	}
}
