package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/example/taskify/domain/user"
)

// SessionStore keeps the signed-in session between calls. Load reports
// false when nobody is signed in.
type SessionStore interface {
	Load() (user.Session, bool, error)
	Save(session user.Session) error
	Clear() error
}

// MemorySessionStore holds the session for the lifetime of the process.
type MemorySessionStore struct {
	mu      sync.RWMutex
	session *user.Session
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) Load() (user.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return user.Session{}, false, nil
	}
	return *s.session, true, nil
}

func (s *MemorySessionStore) Save(session user.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &session
	return nil
}

func (s *MemorySessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

// FileSessionStore persists the session as JSON so it survives restarts of
// a command line client. The file is written with owner-only permissions.
type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

// NewFileSessionStore stores the session at path.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Path returns the session file location.
func (s *FileSessionStore) Path() string {
	return s.path
}

func (s *FileSessionStore) Load() (user.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return user.Session{}, false, nil
	}
	if err != nil {
		return user.Session{}, false, fmt.Errorf("read session: %w", err)
	}

	var session user.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return user.Session{}, false, fmt.Errorf("decode session %s: %w", s.path, err)
	}
	if session.AccessToken == "" {
		return user.Session{}, false, nil
	}
	return session, true, nil
}

func (s *FileSessionStore) Save(session user.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
