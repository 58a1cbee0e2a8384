// Package blob provides the filesystem-backed blob store for group files.
//
// Layout under the upload root:
//
//	<root>/<group_id>/<stored_name>   committed blobs
//	<root>/tmp/                       chunk staging and merge locks
//
// Stored names are generated server-side (see NewStoredName); paths are
// never accepted from clients.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// TmpDirName is the reserved top-level directory for chunk staging.
const TmpDirName = "tmp"

// movePollStep is the interval between source existence probes in MoveInto.
const movePollStep = 50 * time.Millisecond

// ErrClosed is returned for operations on a closed store.
var ErrClosed = errors.New("blob store closed")

// ErrMissing reports a blob that should exist but is absent on disk.
var ErrMissing = errors.New("blob missing")

// MissingError wraps ErrMissing with the on-disk path that was probed.
type MissingError struct {
	Path string
}

func (e *MissingError) Error() string { return "blob missing: " + e.Path }
func (e *MissingError) Unwrap() error { return ErrMissing }

// Entry describes one top-level entry of the upload root.
type Entry struct {
	Name    string
	IsDir   bool
	ModTime time.Time
}

// Config holds configuration for the blob store.
type Config struct {
	// Root is the upload root directory. Group directories and the
	// chunk staging area live directly under it.
	Root string

	// CreateDir creates the root directory if it doesn't exist.
	// Default: true
	CreateDir bool

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0644
	FileMode os.FileMode

	// MoveMaxWait bounds how long MoveInto waits for its source file to
	// become visible. Default: 3s
	MoveMaxWait time.Duration
}

// DefaultConfig builds a Config rooted at root with the documented defaults.
func DefaultConfig(root string) Config {
	return Config{
		Root:        root,
		CreateDir:   true,
		DirMode:     0755,
		FileMode:    0644,
		MoveMaxWait: 3 * time.Second,
	}
}

// Store is the filesystem blob store. All methods are safe for
// concurrent use.
type Store struct {
	mu          sync.RWMutex
	root        string
	dirMode     os.FileMode
	fileMode    os.FileMode
	moveMaxWait time.Duration
	closed      bool
}

// New creates a blob store rooted at cfg.Root.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("upload root is required")
	}

	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}
	if cfg.MoveMaxWait == 0 {
		cfg.MoveMaxWait = 3 * time.Second
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.Root, cfg.DirMode); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Join(cfg.Root, TmpDirName), cfg.DirMode); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("upload root is not a directory")
	}

	return &Store{
		root:        cfg.Root,
		dirMode:     cfg.DirMode,
		fileMode:    cfg.FileMode,
		moveMaxWait: cfg.MoveMaxWait,
	}, nil
}

// Root returns the upload root directory.
func (s *Store) Root() string {
	return s.root
}

// TmpDir returns the chunk staging directory.
func (s *Store) TmpDir() string {
	return filepath.Join(s.root, TmpDirName)
}

// GroupDir returns the directory holding a group's blobs.
func (s *Store) GroupDir(groupID string) string {
	return filepath.Join(s.root, groupID)
}

// checkGroupID rejects IDs that cannot be used as a directory name
// directly under the root.
func checkGroupID(groupID string) error {
	if groupID == "" || groupID == "." || groupID == ".." || groupID == TmpDirName {
		return fmt.Errorf("invalid group id %q", groupID)
	}
	if strings.ContainsAny(groupID, `/\`) {
		return fmt.Errorf("invalid group id %q", groupID)
	}
	return nil
}

func (s *Store) blobPath(groupID, storedName string) (string, error) {
	if err := checkGroupID(groupID); err != nil {
		return "", err
	}
	if storedName == "" || filepath.Base(storedName) != storedName {
		return "", fmt.Errorf("invalid stored name %q", storedName)
	}
	return filepath.Join(s.root, groupID, storedName), nil
}

// EnsureGroupDir creates the group directory if needed and returns its path.
func (s *Store) EnsureGroupDir(ctx context.Context, groupID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrClosed
	}
	if err := checkGroupID(groupID); err != nil {
		return "", err
	}

	dir := s.GroupDir(groupID)
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return "", err
	}
	return dir, nil
}

// Save streams src into the group directory under storedName and returns
// the number of bytes written. The data is written to a temporary file,
// synced, and renamed into place.
func (s *Store) Save(ctx context.Context, groupID, storedName string, src io.Reader) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	path, err := s.blobPath(groupID, storedName)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), s.dirMode); err != nil {
		return 0, err
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, s.fileMode)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	return n, nil
}

// Open opens a blob for reading. A missing blob yields a MissingError
// carrying the probed path.
func (s *Store) Open(ctx context.Context, groupID, storedName string) (*os.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	path, err := s.blobPath(groupID, storedName)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingError{Path: path}
		}
		return nil, err
	}
	return f, nil
}

// Stat returns file info for a blob. A missing blob yields a MissingError.
func (s *Store) Stat(ctx context.Context, groupID, storedName string) (os.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	path, err := s.blobPath(groupID, storedName)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingError{Path: path}
		}
		return nil, err
	}
	return info, nil
}

// Remove unlinks one blob. A blob that is already gone is not an error.
func (s *Store) Remove(ctx context.Context, groupID, storedName string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	path, err := s.blobPath(groupID, storedName)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveGroupDir recursively deletes a group's directory.
func (s *Store) RemoveGroupDir(ctx context.Context, groupID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if err := checkGroupID(groupID); err != nil {
		return err
	}

	return os.RemoveAll(s.GroupDir(groupID))
}

// MoveInto moves a finished file at srcPath into the group directory
// under storedName. The source may still be settling after a rename on
// some filesystems, so its existence is polled for up to MoveMaxWait.
// A cross-device rename falls back to copy and remove.
func (s *Store) MoveInto(ctx context.Context, groupID, storedName, srcPath string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	dst, err := s.blobPath(groupID, storedName)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(s.moveMaxWait)
	for {
		if _, err := os.Stat(srcPath); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return err
		}
		if time.Now().After(deadline) {
			return &MissingError{Path: srcPath}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(movePollStep):
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), s.dirMode); err != nil {
		return err
	}

	if err := os.Rename(srcPath, dst); err != nil {
		if errors.Is(err, syscall.EXDEV) {
			return s.copyAcross(srcPath, dst)
		}
		return err
	}
	return nil
}

// copyAcross copies srcPath to dst and removes the source. Used when the
// staging area and the group directory are on different filesystems.
func (s *Store) copyAcross(srcPath, dst string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmpPath := dst + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, s.fileMode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Remove(srcPath)
}

// TopLevel lists the top-level entries of the upload root, including the
// staging directory. Used by reclamation to find group directories and
// stray files.
func (s *Store) TopLevel(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed while listing
			}
			return nil, err
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			IsDir:   de.IsDir(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// HealthCheck verifies the upload root is accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	_, err := os.Stat(s.root)
	return err
}

// Close shuts the store down. Every call after it returns ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
