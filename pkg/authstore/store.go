// Package authstore is the single owner of persisted credentials. No other
// package reads or writes the token files, which keeps key naming from
// drifting across components.
package authstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftlab/assessor/pkg/models"
)

// canonicalFile is the one file holding the current token and user record.
const canonicalFile = "assessor_token.json"

// legacyFiles are token locations written by earlier client versions. They
// are read once by TokenFromAnySource, migrated into the canonical file and
// removed so two copies of the token can never disagree.
var legacyFiles = []string{"auth_token", "token", "access_token"}

type credentials struct {
	Token   string       `json:"token"`
	User    *models.User `json:"user,omitempty"`
	SavedAt time.Time    `json:"saved_at"`
}

// Store persists one token and user record under a state directory.
type Store struct {
	dir string
}

// New creates a credential store rooted at dir. The directory is created
// lazily on first write.
func New(dir string) *Store {
	return &Store{dir: strings.Replace(dir, "file://", "", 1)}
}

// SetToken writes the token to the canonical file and removes any legacy
// copies in the same write path.
func (s *Store) SetToken(token string) error {
	current, _ := s.read()
	current.Token = token
	current.SavedAt = time.Now().UTC()

	err := s.write(current)
	if err != nil {
		return err
	}

	s.removeLegacy()

	return nil
}

// Token returns the canonical token, or the empty string when none is stored.
func (s *Store) Token() string {
	current, err := s.read()
	if err != nil {
		return ""
	}

	return current.Token
}

// SetUser stores the authenticated account record next to the token.
func (s *Store) SetUser(user *models.User) error {
	current, _ := s.read()
	current.User = user
	current.SavedAt = time.Now().UTC()

	return s.write(current)
}

// User returns the stored account record, or nil when none is stored.
func (s *Store) User() *models.User {
	current, err := s.read()
	if err != nil {
		return nil
	}

	return current.User
}

// IsAuthenticated reports whether a token is currently stored.
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// ClearAuth removes the canonical file and every legacy file.
func (s *Store) ClearAuth() error {
	err := os.Remove(s.path(canonicalFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	s.removeLegacy()

	return nil
}

// TokenFromAnySource returns the canonical token if present, otherwise
// checks each legacy file in order, migrates the first hit into the
// canonical file and deletes all legacy files. Calling it twice yields the
// same token with no further mutation.
func (s *Store) TokenFromAnySource() (string, error) {
	if token := s.Token(); token != "" {
		return token, nil
	}

	for _, name := range legacyFiles {
		data, err := os.ReadFile(s.path(name))
		if err != nil {
			continue
		}

		token := strings.TrimSpace(string(data))
		if token == "" {
			continue
		}

		err = s.SetToken(token)
		if err != nil {
			return "", fmt.Errorf("failed to migrate legacy token %s: %w", name, err)
		}

		return token, nil
	}

	return "", nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) read() (credentials, error) {
	var current credentials

	data, err := os.ReadFile(s.path(canonicalFile))
	if err != nil {
		return current, err
	}

	err = json.Unmarshal(data, &current)
	if err != nil {
		return credentials{}, fmt.Errorf("failed to parse credential file: %w", err)
	}

	return current, nil
}

func (s *Store) write(current credentials) error {
	err := os.MkdirAll(s.dir, 0o750)
	if err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	return os.WriteFile(s.path(canonicalFile), data, 0o600)
}

func (s *Store) removeLegacy() {
	for _, name := range legacyFiles {
		_ = os.Remove(s.path(name))
	}
}
