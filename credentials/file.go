package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	// LockTimeout bounds how long a FileStore waits for the lock file
	LockTimeout = 10 * time.Second

	lockRetryDelay = 25 * time.Millisecond
)

// FileStore keeps all provider records in one JSON file. Writes are atomic
// renames performed while holding an flock on "<path>.lock".
type FileStore struct {
	path string
	fl   *flock.Flock

	mu   sync.Mutex
	held int
}

// NewFileStore creates a store backed by the JSON file at path
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("credentials file path is required")
	}

	return &FileStore{
		path: path,
		fl:   flock.New(path + ".lock"),
	}, nil
}

// Path returns the credentials file path
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the record for provider
func (s *FileStore) Get(_ context.Context, provider string) (*Credentials, error) {
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	c, ok := all[provider]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q in %s", ErrNotFound, provider, s.path)
	}
	return c, nil
}

// UpdateTokens rewrites the OAuth fields for provider under the file lock
func (s *FileStore) UpdateTokens(ctx context.Context, provider string, update TokenUpdate) error {
	unlock, err := s.Lock(ctx, provider)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	all, err := s.loadAll()
	if err != nil {
		return err
	}

	c, ok := all[provider]
	if !ok {
		c = &Credentials{Provider: provider}
		all[provider] = c
	}
	update.apply(c)

	return s.saveAll(all)
}

// Lock takes the exclusive file lock. The lock covers the whole file, so
// provider only documents intent. It is reentrant within one process: nested
// holders share the lock and the last release unlocks the file.
func (s *FileStore) Lock(ctx context.Context, _ string) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held == 0 {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create credentials directory: %w", err)
		}

		lockCtx, cancel := context.WithTimeout(ctx, LockTimeout)
		defer cancel()

		locked, err := s.fl.TryLockContext(lockCtx, lockRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("failed to lock %s: %w", s.fl.Path(), err)
		}
		if !locked {
			return nil, fmt.Errorf("failed to lock %s: lock is held by another process", s.fl.Path())
		}
	}
	s.held++

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			s.held--
			if s.held == 0 {
				err = s.fl.Unlock()
			}
		})
		return err
	}, nil
}

func (s *FileStore) loadAll() (map[string]*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]*Credentials), nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var all map[string]*Credentials
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if all == nil {
		all = make(map[string]*Credentials)
	}
	return all, nil
}

func (s *FileStore) saveAll(all map[string]*Credentials) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "credentials-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmpFile.Chmod(0o600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod credentials: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close credentials: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(s.path)
			return os.Rename(tmpPath, s.path)
		}
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}
