package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	storeVersion    = 1
	historyFileMode = 0644
	historyDirMode  = 0755
)

type fileData struct {
	Version int                `json:"version"`
	Actors  map[string][]Entry `json:"actors"`
}

// FileStore keeps every actor's history in one JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the entries under key.
func (s *FileStore) Load(ctx context.Context, key string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	return append([]Entry(nil), data.Actors[key]...), nil
}

// Save replaces the entries under key.
func (s *FileStore) Save(ctx context.Context, key string, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadLocked()
	if err != nil {
		return err
	}
	data.Actors[key] = entries
	return s.saveLocked(data)
}

// Clear removes key.
func (s *FileStore) Clear(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadLocked()
	if err != nil {
		return err
	}
	if _, ok := data.Actors[key]; !ok {
		return nil
	}
	delete(data.Actors, key)
	return s.saveLocked(data)
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) loadLocked() (fileData, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileData{Version: storeVersion, Actors: map[string][]Entry{}}, nil
		}
		return fileData{}, fmt.Errorf("read history store: %w", err)
	}

	var parsed fileData
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fileData{}, fmt.Errorf("parse history store: %w", err)
	}
	if parsed.Actors == nil {
		parsed.Actors = map[string][]Entry{}
	}
	parsed.Version = storeVersion
	return parsed, nil
}

func (s *FileStore) saveLocked(data fileData) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, historyDirMode); err != nil {
		return fmt.Errorf("create history store dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "history-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history store: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(encoded); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp history store: %w", err)
	}
	if err := tmpFile.Chmod(historyFileMode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp history store: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp history store: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		if removeErr := os.Remove(s.path); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("replace history store: rename failed (%v), remove failed (%v)", err, removeErr)
		}
		if retryErr := os.Rename(tmpPath, s.path); retryErr != nil {
			return fmt.Errorf("replace history store after remove: %w", retryErr)
		}
	}
	return nil
}
