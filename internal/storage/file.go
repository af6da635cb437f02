package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/turfbook/turfbook/internal/logging"
)

const sessionFile = "session.json"

var errCorrupt = errors.New("storage: session file is corrupt")

// FileStore keeps every key in a single JSON document on disk. A document
// that cannot be parsed reads as an error and is replaced by the next write.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// Ensure FileStore implements Store at compile time.
var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and stores values in dir/session.json.
// An empty dir resolves to ~/.turfbook.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, ".turfbook")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, sessionFile), logger: logger}, nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.loadForWrite()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.loadForWrite()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return s.saveIfCorrupt(values)
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %w", errCorrupt, err)
	}
	return values, nil
}

// loadForWrite treats a corrupt document as empty so writes can replace it.
func (s *FileStore) loadForWrite() (map[string]string, error) {
	values, err := s.load()
	if errors.Is(err, errCorrupt) {
		s.logger.Warn("storage: discarding corrupt session file", slog.String("path", s.path), slog.Any("error", err))
		return map[string]string{}, nil
	}
	return values, err
}

// saveIfCorrupt rewrites the document when it does not parse, so removing
// keys from a corrupt file leaves a clean one behind.
func (s *FileStore) saveIfCorrupt(values map[string]string) error {
	if _, err := s.load(); errors.Is(err, errCorrupt) {
		return s.save(values)
	}
	return nil
}

// save writes through a temp file so a crash never leaves a torn document.
func (s *FileStore) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), sessionFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
