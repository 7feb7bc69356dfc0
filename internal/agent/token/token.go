package agent_token

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var ErrNoCredentials = errors.New("no stored credentials")

type Credentials struct {
	Token  string    `json:"token"`
	UserID uuid.UUID `json:"user_id"`
}

// FileStore persists the bearer token and user id between runs.
// Issuance and revocation happen elsewhere (login/logout); this side
// only reads what was stored and clears it on demand.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cinematch-credentials.json"
	}
	return filepath.Join(home, ".cinematch", "credentials.json")
}

func (s *FileStore) Load() (Credentials, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, err
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, err
	}
	if creds.Token == "" || creds.UserID == uuid.Nil {
		return Credentials{}, ErrNoCredentials
	}

	return creds, nil
}

func (s *FileStore) Save(creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
