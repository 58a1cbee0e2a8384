package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound reports a session with no state file.
var ErrNotFound = errors.New("session not found")

const (
	storeDirMode  = 0o700
	storeFileMode = 0o600
	fileSuffix    = ".json"
)

// Store persists one JSON file per session under a directory. Files are
// written with a temp-and-rename so a crashed write never corrupts the
// previous state. Session IDs double as file names, so anything that is
// not a plain name is rejected before touching the filesystem.
type Store struct {
	dir string
}

// NewStore creates the session directory if needed and returns a store
// over it. The directory is private to the server process (0700).
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("session directory is required")
	}
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the session directory.
func (s *Store) Dir() string {
	return s.dir
}

// checkID rejects IDs that cannot serve as a file name directly inside
// the session directory. IDs normally come out of a signed token, but a
// forged or corrupted claim must not become a path.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("invalid session id %q", id)
	}
	if strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+fileSuffix)
}

// Load reads a session's state file. Returns ErrNotFound when the file
// is gone or the ID is unusable.
func (s *Store) Load(id string) (*Session, error) {
	if err := checkID(id); err != nil {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// A torn or hand-edited file is treated as absent; the caller
		// starts a fresh session and the file gets overwritten.
		return nil, ErrNotFound
	}
	if sess.ID != id {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Save writes a session's state file.
func (s *Store) Save(sess *Session) error {
	if err := checkID(sess.ID); err != nil {
		return err
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := s.path(sess.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, storeFileMode); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize session: %w", err)
	}
	return nil
}

// Delete removes a session's state file. A file that is already gone is
// not an error.
func (s *Store) Delete(id string) error {
	if err := checkID(id); err != nil {
		return nil
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
