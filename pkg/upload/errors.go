package upload

import (
	"errors"
	"fmt"
)

// ErrReadonly is returned when a probe or ingest targets a readonly group.
var ErrReadonly = errors.New("group is readonly")

// ErrInvalidRequest is wrapped by validation failures on client-supplied
// upload parameters.
var ErrInvalidRequest = errors.New("invalid upload request")

// TooLargeError reports a declared upload size above the configured cap.
type TooLargeError struct {
	Size int64 // declared total size in bytes
	Max  int64 // configured limit in bytes
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("upload of %d bytes exceeds the %d byte limit", e.Size, e.Max)
}

// SizeMismatchError reports a chunk whose on-disk size differs from the
// size the client declared. The chunk file has already been removed.
type SizeMismatchError struct {
	Chunk    int
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("chunk %d size mismatch: declared %d bytes, wrote %d", e.Chunk, e.Expected, e.Actual)
}

// MergeError reports a failed merge or commit. The merge lock has been
// released and the staged chunks are left in place for a retry.
type MergeError struct {
	GroupID string
	Err     error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge failed for group %s: %v", e.GroupID, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }
