package blob

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// maxExtLen caps a sanitized extension, dot included.
const maxExtLen = 16

// SafeExt returns a sanitized form of filename's extension: lowercased,
// stripped of anything but [a-z0-9.], and capped at 16 characters
// including the leading dot. Filenames without a usable extension yield
// the empty string.
func SafeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "" || out == "." {
		return ""
	}
	if len(out) > maxExtLen {
		out = out[:maxExtLen]
	}
	return out
}

// NewStoredName generates the on-disk name for a new blob: a fresh UUID
// plus the sanitized extension of the client-supplied filename.
func NewStoredName(originalFilename string) string {
	return uuid.NewString() + SafeExt(originalFilename)
}
