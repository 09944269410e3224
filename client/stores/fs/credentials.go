// Package fs provides a file system-based credential store for the
// novaauth client.
package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/novaterm/novaauth/client"
)

// FSCredentialStore stores the session credential as a JSON file on
// the filesystem.
type FSCredentialStore struct {
	mu       sync.RWMutex
	path     string
	cred     *client.Credential
	modified bool
}

// NewFSCredentialStore creates a new FS-based credential store.
// If path is empty, defaults to ~/.config/<appName>/session.json
func NewFSCredentialStore(path string, appName string) (*FSCredentialStore, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "novaauth"
		}
		path = filepath.Join(configDir, appName, "session.json")
	}

	store := &FSCredentialStore{path: path}

	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return store, nil
}

func (s *FSCredentialStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var cred client.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}

	// Both halves or neither: a partial file is treated as no session.
	if cred.Complete() {
		s.cred = &cred
	}
	return nil
}

// GetCredential retrieves the stored credential, nil when absent.
func (s *FSCredentialStore) GetCredential() (*client.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, nil
}

// SetCredential stores the credential.
func (s *FSCredentialStore) SetCredential(cred *client.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.modified = true
	return nil
}

// RemoveCredential removes the stored credential.
func (s *FSCredentialStore) RemoveCredential() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	s.modified = true
	return nil
}

// Save persists pending changes to disk.
func (s *FSCredentialStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.modified {
		return nil
	}

	if s.cred == nil {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
		s.modified = false
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(s.cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	// Owner read/write only
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	s.modified = false
	return nil
}

// Path returns the path to the session file
func (s *FSCredentialStore) Path() string {
	return s.path
}
