package logger

import (
	"fmt"
	"os"
	"sync"
)

// rotatingFile is an io.Writer that rotates the underlying file once it
// grows past maxSize bytes. Rotation renames the file to <path>.1,
// shifting older backups up to <path>.<maxBackups>; the oldest is dropped.
// With maxSize <= 0 the file is appended to forever.
type rotatingFile struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
}

func newRotatingFile(path string, maxSize int64, maxBackups int) (*rotatingFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &rotatingFile{
		path:       path,
		maxSize:    maxSize,
		maxBackups: maxBackups,
		file:       f,
		size:       info.Size(),
	}, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSize > 0 && r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate closes the current file, shifts backups, and reopens a fresh file.
// Caller must hold r.mu.
func (r *rotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}

	if r.maxBackups > 0 {
		os.Remove(backupName(r.path, r.maxBackups))
		for i := r.maxBackups - 1; i >= 1; i-- {
			os.Rename(backupName(r.path, i), backupName(r.path, i+1))
		}
		if err := os.Rename(r.path, backupName(r.path, 1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	} else {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = 0
	return nil
}

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}
