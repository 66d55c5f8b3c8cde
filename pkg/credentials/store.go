// Package credentials remembers the token, organization and project between runs.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// Credentials is what login --remember stores.
type Credentials struct {
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Project      string `yaml:"project"`
}

// Store persists Credentials as a YAML file readable only by the owner.
type Store struct {
	Path string
}

// DefaultPath is credentials.yaml under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find config directory: %w", err)
	}
	return filepath.Join(dir, "ado-report", "credentials.yaml"), nil
}

// Load returns the stored credentials. ok is false when nothing is stored.
func (s Store) Load() (Credentials, bool, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, fmt.Errorf("failed to read credentials: %w", err)
	}
	var c Credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Credentials{}, false, fmt.Errorf("invalid credentials file %s: %w", s.Path, err)
	}
	if c.Token == "" {
		return Credentials{}, false, nil
	}
	return c, true, nil
}

// Save replaces the stored credentials atomically.
func (s Store) Save(c Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := atomic.WriteFile(s.Path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	// atomic.WriteFile does not set permissions on new files
	if err := os.Chmod(s.Path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict credentials file: %w", err)
	}
	return nil
}

// Forget deletes the stored credentials. Forgetting nothing is not an error.
func (s Store) Forget() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
