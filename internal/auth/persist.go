package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Persister stores credentials between runs.
type Persister interface {
	// Load returns the stored credentials, or nil when none are stored.
	Load() (*Credentials, error)
	Save(Credentials) error
	Clear() error
}

// FileStore persists credentials as JSON with mode 0600.
type FileStore struct {
	Path string
}

// Load implements Persister.
func (f FileStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid session file: %w", err)
	}
	if c.User.UID == "" {
		return nil, nil
	}
	return &c, nil
}

// Save implements Persister.
func (f FileStore) Save(c Credentials) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0600)
}

// Clear implements Persister. Clearing an absent file is not an error.
func (f FileStore) Clear() error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
