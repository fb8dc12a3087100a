package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager owns the active datasource. Swapping the datasource (upload or
// reset) bumps a generation counter; schema caches key on the generation so
// a swap invalidates them atomically. Runs that already captured a schema
// keep using it.
type Manager struct {
	mu      sync.RWMutex
	current DataSource
	gen     uint64

	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewManager creates a manager with no active datasource.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{logger: logger}
}

// Current returns the active datasource and its generation.
func (m *Manager) Current() (DataSource, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, 0, fmt.Errorf("no datasource configured")
	}
	return m.current, m.gen, nil
}

// Generation returns the current generation counter.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// Swap replaces the active datasource with one built from cfg. The previous
// datasource is closed and the generation advances.
func (m *Manager) Swap(ctx context.Context, cfg Config) error {
	ds, err := Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open datasource: %w", err)
	}

	m.mu.Lock()
	old := m.current
	m.current = ds
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			m.logger.Warn("failed to close previous datasource", "error", err)
		}
	}

	m.logger.Info("datasource swapped", "type", cfg.Type, "generation", gen)
	return nil
}

// Invalidate advances the generation without replacing the datasource,
// forcing schema re-introspection on the next run.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.gen++
	m.mu.Unlock()
}

// Watch invalidates the schema whenever the backing database file changes on
// disk (e.g. replaced by an upload). Blocks until ctx is cancelled; only
// meaningful for file-based backends.
func (m *Manager) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	m.watcher = watcher
	m.logger.Debug("watching database file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
				m.logger.Info("database file changed, invalidating schema", "path", ev.Name)
				m.Invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watch error", "error", err)
		}
	}
}

// Close closes the active datasource.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}
