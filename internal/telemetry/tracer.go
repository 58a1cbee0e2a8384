package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for spans. Service-specific keys use the "group.",
// "file.", "upload." and "reclaim." prefixes; span names follow the
// same <component>.<operation> scheme.
const (
	// ========================================================================
	// Group attributes
	// ========================================================================
	AttrGroupID       = "group.id"
	AttrGroupName     = "group.name"
	AttrGroupReadonly = "group.readonly"
	AttrGroupExpired  = "group.expired"

	// ========================================================================
	// File and version attributes
	// ========================================================================
	AttrFileID    = "file.id"
	AttrFilename  = "file.name"
	AttrFileSize  = "file.size"
	AttrVersionID = "file.version_id"
	AttrUploader  = "file.uploader"

	// ========================================================================
	// Upload attributes
	// ========================================================================
	AttrUploadID          = "upload.identifier"
	AttrUploadChunk       = "upload.chunk"
	AttrUploadTotalChunks = "upload.total_chunks"
	AttrUploadTotalSize   = "upload.total_size"
	AttrUploadState       = "upload.state"

	// ========================================================================
	// Blob and reclamation attributes
	// ========================================================================
	AttrBlobPath       = "blob.path"
	AttrReclaimStep    = "reclaim.step"
	AttrReclaimRemoved = "reclaim.removed"
)

// GroupID returns an attribute for group ID
func GroupID(id string) attribute.KeyValue {
	return attribute.String(AttrGroupID, id)
}

// GroupName returns an attribute for group name
func GroupName(name string) attribute.KeyValue {
	return attribute.String(AttrGroupName, name)
}

// GroupReadonly returns an attribute for the readonly flag
func GroupReadonly(readonly bool) attribute.KeyValue {
	return attribute.Bool(AttrGroupReadonly, readonly)
}

// GroupExpired returns an attribute for the expired indicator
func GroupExpired(expired bool) attribute.KeyValue {
	return attribute.Bool(AttrGroupExpired, expired)
}

// FileID returns an attribute for file ID
func FileID(id string) attribute.KeyValue {
	return attribute.String(AttrFileID, id)
}

// Filename returns an attribute for the original filename
func Filename(name string) attribute.KeyValue {
	return attribute.String(AttrFilename, name)
}

// FileSize returns an attribute for file size in bytes
func FileSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrFileSize, size)
}

// VersionID returns an attribute for file version ID
func VersionID(id string) attribute.KeyValue {
	return attribute.String(AttrVersionID, id)
}

// Uploader returns an attribute for the uploader name
func Uploader(name string) attribute.KeyValue {
	return attribute.String(AttrUploader, name)
}

// UploadID returns an attribute for the client-supplied upload identifier
func UploadID(id string) attribute.KeyValue {
	return attribute.String(AttrUploadID, id)
}

// UploadChunk returns an attribute for the 1-based chunk number
func UploadChunk(n int) attribute.KeyValue {
	return attribute.Int(AttrUploadChunk, n)
}

// UploadTotalChunks returns an attribute for the declared chunk count
func UploadTotalChunks(n int) attribute.KeyValue {
	return attribute.Int(AttrUploadTotalChunks, n)
}

// UploadTotalSize returns an attribute for the declared upload size
func UploadTotalSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrUploadTotalSize, size)
}

// UploadState returns an attribute for the ingest outcome
func UploadState(state string) attribute.KeyValue {
	return attribute.String(AttrUploadState, state)
}

// BlobPath returns an attribute for a blob store path
func BlobPath(path string) attribute.KeyValue {
	return attribute.String(AttrBlobPath, path)
}

// ReclaimStep returns an attribute for a reclamation step name
func ReclaimStep(step string) attribute.KeyValue {
	return attribute.String(AttrReclaimStep, step)
}

// ReclaimRemoved returns an attribute for a removal count
func ReclaimRemoved(n int) attribute.KeyValue {
	return attribute.Int(AttrReclaimRemoved, n)
}

// StartUploadSpan starts a span for an upload pipeline operation with
// the group and upload attributes every such span carries.
func StartUploadSpan(ctx context.Context, operation, groupID, identifier string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		GroupID(groupID),
		UploadID(identifier),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "upload."+operation, trace.WithAttributes(allAttrs...))
}

// StartGroupSpan starts a span for a group operation.
func StartGroupSpan(ctx context.Context, operation, groupID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		GroupID(groupID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "group."+operation, trace.WithAttributes(allAttrs...))
}

// StartFileSpan starts a span for a file operation.
func StartFileSpan(ctx context.Context, operation, groupID, fileID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		GroupID(groupID),
		FileID(fileID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "file."+operation, trace.WithAttributes(allAttrs...))
}

// StartReclaimSpan starts a span for a reclamation step.
func StartReclaimSpan(ctx context.Context, step string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		ReclaimStep(step),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "reclaim."+step, trace.WithAttributes(allAttrs...))
}
