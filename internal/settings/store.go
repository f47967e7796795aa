package settings

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Store is a persisted key/value settings store backed by a single JSON
// file with flat dotted keys. Changes made through Set/Delete and changes
// applied externally to the file (detected via fsnotify) both fire the
// registered change watchers.
type Store struct {
	logger *zap.Logger
	path   string

	mu       sync.Mutex
	values   map[string]string
	watchers map[uint64]func(key, value string)
	nextID   uint64

	// lastWritten fingerprints our own persisted payload so the fsnotify
	// loop can tell self-writes apart from external edits.
	lastWritten [sha256.Size]byte
}

// NewStore loads the settings file at path, creating its directory if
// needed. A corrupt file is logged and treated as empty rather than
// blocking startup.
func NewStore(logger *zap.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings directory: %w", err)
	}

	s := &Store{
		logger:   logger,
		path:     path,
		values:   make(map[string]string),
		watchers: make(map[uint64]func(key, value string)),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run
	case err != nil:
		return nil, fmt.Errorf("read settings file: %w", err)
	default:
		if jsonErr := json.Unmarshal(data, &s.values); jsonErr != nil {
			logger.Warn("Settings file is corrupt, starting empty",
				zap.String("path", path),
				zap.Error(jsonErr))
			s.values = make(map[string]string)
		}
		s.lastWritten = sha256.Sum256(data)
	}

	logger.Info("Settings loaded",
		zap.String("path", path),
		zap.Int("keys", len(s.values)))
	return s, nil
}

// Get returns the stored value and whether the key exists
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// GetBool reports whether the key holds the literal "true"
func (s *Store) GetBool(key string) bool {
	v, _ := s.Get(key)
	return v == "true"
}

// Set stores a value, persists the file, and notifies watchers.
// Setting a key to its current value is a no-op.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	if old, ok := s.values[key]; ok && old == value {
		s.mu.Unlock()
		return nil
	}
	s.values[key] = value
	err := s.persistLocked()
	watchers, snapshot := s.watchersLocked(), value
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range watchers {
		fn(key, snapshot)
	}
	return nil
}

// Delete removes a key, persists, and notifies watchers with an empty value
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	if _, ok := s.values[key]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.values, key)
	err := s.persistLocked()
	watchers := s.watchersLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range watchers {
		fn(key, "")
	}
	return nil
}

// OnChange registers a watcher invoked for every key change. The returned
// function cancels the registration.
func (s *Store) OnChange(fn func(key, value string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Watch follows the backing file for external edits until ctx is done.
// Self-writes are recognized by content fingerprint and skipped.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors and atomic renames replace
	// the inode and would silently detach a file-level watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch settings directory: %w", err)
	}

	s.logger.Info("Watching settings file", zap.String("path", s.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path || !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			s.reloadExternal()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Settings watcher error", zap.Error(err))
		}
	}
}

// reloadExternal re-reads the file and fires watchers for every key whose
// value changed, including keys removed by the edit.
func (s *Store) reloadExternal() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("Failed to reload settings file", zap.Error(err))
		return
	}

	sum := sha256.Sum256(data)

	s.mu.Lock()
	if sum == s.lastWritten {
		s.mu.Unlock()
		return // our own write echoing back
	}

	fresh := make(map[string]string)
	if err := json.Unmarshal(data, &fresh); err != nil {
		s.mu.Unlock()
		s.logger.Warn("Ignoring corrupt external settings edit", zap.Error(err))
		return
	}

	type change struct{ key, value string }
	var changes []change
	for key, value := range fresh {
		if old, ok := s.values[key]; !ok || old != value {
			changes = append(changes, change{key, value})
		}
	}
	for key := range s.values {
		if _, ok := fresh[key]; !ok {
			changes = append(changes, change{key, ""})
		}
	}

	s.values = fresh
	s.lastWritten = sum
	watchers := s.watchersLocked()
	s.mu.Unlock()

	if len(changes) == 0 {
		return
	}
	s.logger.Info("Settings changed externally", zap.Int("changes", len(changes)))
	for _, c := range changes {
		for _, fn := range watchers {
			fn(c.key, c.value)
		}
	}
}

// persistLocked writes the current values atomically (temp file + rename)
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}

	s.lastWritten = sha256.Sum256(data)
	return nil
}

// watchersLocked snapshots the watcher set so callbacks run outside the lock
func (s *Store) watchersLocked() []func(key, value string) {
	out := make([]func(key, value string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		out = append(out, fn)
	}
	return out
}
