// Package filestore provides a Storage adapter backed by a JSON document on disk.
// Several console processes may share one document; each observes the others'
// changes through Watch.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/target/esg-checklist-ui/internal/ports"
)

const (
	filePerm    = 0o600
	dirPerm     = 0o700
	watchBuffer = 16
)

// Store persists key/value pairs in a single JSON file.
// Writes replace the file atomically (temp file + rename); concurrent writers
// from other processes are last-writer-wins.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// Options configures a Store.
type Options struct {
	Path   string
	Logger *slog.Logger
}

// New creates a Store for the given path, creating the parent directory if needed.
func New(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("storage path is required")
	}
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}, nil
}

// Path returns the absolute path of the backing document.
func (s *Store) Path() string { return s.path }

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

func (s *Store) SetMany(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for k, v := range values {
		doc[k] = v
	}
	return s.save(doc)
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := doc[k]; ok {
			delete(doc, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(doc)
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch observes the backing document and emits per-key change events.
func (s *Store) Watch(ctx context.Context) (<-chan ports.StorageEvent, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	// Watch the directory: atomic renames replace the file's inode.
	if err = watcher.Add(filepath.Dir(s.path)); err != nil {
		if cerr := watcher.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close watcher: %w", cerr))
		}
		return nil, fmt.Errorf("watch storage dir: %w", err)
	}

	last, err := s.load()
	if err != nil {
		last = map[string]string{}
	}

	out := make(chan ports.StorageEvent, watchBuffer)
	go func() {
		defer close(out)
		defer func() {
			if cerr := watcher.Close(); cerr != nil {
				s.logger.Warn("close storage watcher failed", "error", cerr)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path {
					continue
				}
				current, loadErr := s.load()
				if loadErr != nil {
					s.logger.Warn("reload storage document failed", "path", s.path, "error", loadErr)
					continue
				}
				for _, change := range diff(last, current) {
					select {
					case out <- change:
					case <-ctx.Done():
						return
					}
				}
				last = current
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("storage watcher error", "path", s.path, "error", werr)
			}
		}
	}()

	return out, nil
}

// load reads the document. A missing file is empty; a corrupt file is
// treated as empty and overwritten by the next write.
func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read storage: %w", err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	doc := map[string]string{}
	if err = json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("discarding corrupt storage document", "path", s.path, "error", err)
		return map[string]string{}, nil
	}
	return doc, nil
}

func (s *Store) save(doc map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".storage-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp storage file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		if rerr := os.Remove(tmpName); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			return errors.Join(cause, fmt.Errorf("remove temp storage file: %w", rerr))
		}
		return cause
	}

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return cleanup(fmt.Errorf("write temp storage file: %w", err))
	}
	if err = tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return cleanup(fmt.Errorf("chmod temp storage file: %w", err))
	}
	if err = tmp.Close(); err != nil {
		return cleanup(fmt.Errorf("close temp storage file: %w", err))
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return cleanup(fmt.Errorf("replace storage file: %w", err))
	}
	return nil
}

// diff returns the per-key changes between two document versions in key order.
func diff(before, after map[string]string) []ports.StorageEvent {
	var events []ports.StorageEvent
	for k, v := range after {
		if old, ok := before[k]; !ok || old != v {
			events = append(events, ports.StorageEvent{Key: k})
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			events = append(events, ports.StorageEvent{Key: k, Removed: true})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })
	return events
}
