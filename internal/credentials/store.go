// Package credentials persists the credential material the protocol layer
// hands back during pairing and reconnects, keyed by identity.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	storeDirMode   = 0o700
	credFileMode   = 0o600
	credFileSuffix = ".creds.json"
)

// ErrNotFound is returned by Load when no credential blob exists for a key.
var ErrNotFound = errors.New("credentials not found")

// FileStore stores one credential blob per identity key under a root
// directory. It satisfies transport.CredentialSink.
type FileStore struct {
	root string
	mu   sync.RWMutex
}

// NewFileStore creates a store rooted at root. The directory is created
// lazily on first save.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: filepath.Clean(root)}
}

// Save writes the credential blob for an identity, replacing any previous one.
func (s *FileStore) Save(identityKey string, blob []byte) error {
	path, err := s.pathForKey(identityKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, storeDirMode); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	if err := os.WriteFile(path, blob, credFileMode); err != nil {
		return fmt.Errorf("write credentials for %q: %w", identityKey, err)
	}
	return nil
}

// Load reads the credential blob for an identity.
func (s *FileStore) Load(identityKey string) ([]byte, error) {
	path, err := s.pathForKey(identityKey)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read credentials for %q: %w", identityKey, err)
	}
	return data, nil
}

// Delete removes the credential blob for an identity. Missing files are not
// an error.
func (s *FileStore) Delete(identityKey string) error {
	path, err := s.pathForKey(identityKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete credentials for %q: %w", identityKey, err)
	}
	return nil
}

func (s *FileStore) pathForKey(identityKey string) (string, error) {
	key := strings.TrimSpace(identityKey)
	if key == "" || strings.ContainsAny(key, `/\.`) {
		return "", fmt.Errorf("invalid credential key %q", identityKey)
	}
	return filepath.Join(s.root, key+credFileSuffix), nil
}
