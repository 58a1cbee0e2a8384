package models

import "errors"

// Common errors for group and file operations.
var (
	// Group errors
	ErrGroupNotFound  = errors.New("group not found")
	ErrDuplicateGroup = errors.New("group already exists")
	ErrGroupReadonly  = errors.New("group is read-only")
	ErrGroupExpired   = errors.New("group has expired")

	// File errors
	ErrFileNotFound  = errors.New("file not found")
	ErrDuplicateFile = errors.New("file already exists")

	// Version errors
	ErrVersionNotFound = errors.New("file version not found")

	// Conversion errors
	ErrConvertNotAllowed = errors.New("group does not allow conversion to read-only")
	ErrAlreadyReadonly   = errors.New("group is already read-only")
)
