package logger

import (
	"log/slog"
)

// Field keys shared by every log statement. One spelling per concept
// keeps the aggregated logs queryable.
const (
	// ========================================================================
	// Request correlation
	// ========================================================================
	KeyTraceID   = "trace_id"   // OpenTelemetry trace ID
	KeySpanID    = "span_id"    // OpenTelemetry span ID
	KeyRequestID = "request_id" // Per-request ID from the HTTP middleware
	KeyClientIP  = "client_ip"  // Client IP address

	// ========================================================================
	// HTTP Request
	// ========================================================================
	KeyMethod = "method" // HTTP method
	KeyStatus = "status" // HTTP status code

	// KeyPath is the request path on HTTP lines and a filesystem path on
	// storage and reclamation lines; the message tells them apart.
	KeyPath = "path"

	// ========================================================================
	// Groups, Files, Versions
	// ========================================================================
	KeyGroupID    = "group_id"    // Group identifier
	KeyFileID     = "file_id"     // File identifier
	KeyVersionID  = "version_id"  // File version identifier
	KeyFilename   = "filename"    // Original (client-supplied) filename
	KeyStoredName = "stored_name" // On-disk blob name
	KeySize       = "size"        // Size in bytes

	// ========================================================================
	// Resumable Uploads
	// ========================================================================
	KeyUploadID    = "upload_id"    // Resumable upload identifier
	KeyChunk       = "chunk"        // Chunk number
	KeyTotalChunks = "total_chunks" // Total chunks declared by the client

	// ========================================================================
	// Sessions
	// ========================================================================
	KeySessionID = "session_id" // Browser session identifier

	// ========================================================================
	// Timing and errors
	// ========================================================================
	KeyDurationMs = "duration_ms" // Elapsed time in milliseconds
	KeyError      = "error"       // Error message
)

// ============================================================================
// Typed attribute constructors
// ============================================================================

// GroupID returns a slog.Attr for a group identifier.
func GroupID(id string) slog.Attr {
	return slog.String(KeyGroupID, id)
}

// FileID returns a slog.Attr for a file identifier.
func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

// VersionID returns a slog.Attr for a file version identifier.
func VersionID(id string) slog.Attr {
	return slog.String(KeyVersionID, id)
}

// Filename returns a slog.Attr for the original filename.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// StoredName returns a slog.Attr for an on-disk blob name.
func StoredName(name string) slog.Attr {
	return slog.String(KeyStoredName, name)
}

// Size returns a slog.Attr for a size in bytes.
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// UploadID returns a slog.Attr for a resumable upload identifier.
func UploadID(id string) slog.Attr {
	return slog.String(KeyUploadID, id)
}

// Chunk returns a slog.Attr for a chunk number.
func Chunk(n int) slog.Attr {
	return slog.Int(KeyChunk, n)
}

// TotalChunks returns a slog.Attr for the declared chunk count.
func TotalChunks(n int) slog.Attr {
	return slog.Int(KeyTotalChunks, n)
}

// Path returns a slog.Attr for a filesystem path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// SessionID returns a slog.Attr for a session identifier.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
