package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/internal/telemetry"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/store/models"
	"github.com/metorm/groupBin/pkg/upload"
)

// UploadParams are the client-supplied fields of a whole-file upload.
// A non-empty FileID appends a version to that file instead of creating
// a new one.
type UploadParams struct {
	GroupID     string
	FileID      string
	Filename    string
	Uploader    string
	Description string
	Comment     string
}

// RegisterUpload stores src as a blob in the group directory and commits
// the file and version rows. It shares the commit semantics of the chunk
// assembler: with a FileID a version is appended, and a FileID whose file
// vanished falls back to creating a fresh file.
func (s *Service) RegisterUpload(ctx context.Context, params UploadParams, src io.Reader, now time.Time) (string, error) {
	if params.Filename == "" {
		return "", fmt.Errorf("%w: missing filename", upload.ErrInvalidRequest)
	}

	group, err := s.db.GetGroup(ctx, params.GroupID)
	if err != nil {
		return "", err
	}
	if group.IsReadonly {
		return "", upload.ErrReadonly
	}

	// The cap is enforced on actual bytes: one byte past the limit stops
	// the copy, and the partial blob is removed.
	limited := src
	if s.maxSize > 0 {
		limited = io.LimitReader(src, s.maxSize+1)
	}

	storedName := blob.NewStoredName(params.Filename)
	size, err := s.blobs.Save(ctx, group.ID, storedName, limited)
	if err != nil {
		return "", fmt.Errorf("save blob: %w", err)
	}
	if s.maxSize > 0 && size > s.maxSize {
		if rmErr := s.blobs.Remove(ctx, group.ID, storedName); rmErr != nil {
			logger.WarnCtx(ctx, "could not remove oversized blob",
				logger.GroupID(group.ID), logger.StoredName(storedName), logger.Err(rmErr))
		}
		return "", &upload.TooLargeError{Size: size, Max: s.maxSize}
	}

	fileID, err := s.commit(ctx, group.ID, params, storedName, size, now)
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, group.ID, storedName); rmErr != nil {
			logger.WarnCtx(ctx, "could not remove uncommitted blob",
				logger.GroupID(group.ID), logger.StoredName(storedName), logger.Err(rmErr))
		}
		return "", err
	}

	logger.InfoCtx(ctx, "upload registered",
		logger.GroupID(group.ID),
		logger.FileID(fileID),
		logger.Filename(params.Filename),
		logger.Size(size))
	return fileID, nil
}

// commit writes the database rows for a stored blob.
func (s *Service) commit(ctx context.Context, groupID string, params UploadParams, storedName string, size int64, now time.Time) (string, error) {
	if params.FileID != "" {
		version := &models.FileVersion{
			StoredFilename: storedName,
			UploadedAt:     now,
			Uploader:       params.Uploader,
			Comment:        params.Comment,
			Size:           size,
		}

		err := s.db.AppendVersion(ctx, params.FileID, version)
		if err == nil {
			return params.FileID, nil
		}
		if !errors.Is(err, models.ErrFileNotFound) {
			return "", fmt.Errorf("append version: %w", err)
		}
	}

	file := &models.File{
		GroupID:          groupID,
		OriginalFilename: params.Filename,
		StoredFilename:   storedName,
		Description:      params.Description,
		Size:             size,
		UploadedAt:       now,
		ContentType:      mime.TypeByExtension(filepath.Ext(params.Filename)),
	}
	version := &models.FileVersion{
		StoredFilename: storedName,
		UploadedAt:     now,
		Uploader:       params.Uploader,
		Size:           size,
	}

	if err := s.db.CreateFileWithVersion(ctx, file, version); err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	return file.ID, nil
}

// ============================================================================
// Versions
// ============================================================================

// getGroupFile loads a file and verifies it belongs to the group. A file
// from another group reports not found rather than leaking its existence.
func (s *Service) getGroupFile(ctx context.Context, groupID, fileID string) (*models.File, error) {
	file, err := s.db.GetFileWithVersions(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.GroupID != groupID {
		return nil, models.ErrFileNotFound
	}
	return file, nil
}

// ListVersionHistory returns a file's versions, newest-first.
func (s *Service) ListVersionHistory(ctx context.Context, groupID, fileID string) (*models.File, []models.FileVersion, error) {
	file, err := s.getGroupFile(ctx, groupID, fileID)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Versions, nil
}

// LatestVersion returns the most recent version of a file.
func (s *Service) LatestVersion(ctx context.Context, groupID, fileID string) (*models.FileVersion, error) {
	file, err := s.getGroupFile(ctx, groupID, fileID)
	if err != nil {
		return nil, err
	}

	latest := file.LatestVersion()
	if latest == nil {
		return nil, models.ErrVersionNotFound
	}
	return latest, nil
}

// VersionContent is an open blob stream plus the metadata needed to
// serve it. The caller owns Content and must close it.
type VersionContent struct {
	File    *models.File
	Version *models.FileVersion
	Content io.ReadSeekCloser
}

// OpenVersion opens one version's blob for streaming. A blob that is
// gone from disk yields a blob.MissingError carrying the probed path.
func (s *Service) OpenVersion(ctx context.Context, groupID, fileID, versionID string) (*VersionContent, error) {
	ctx, span := telemetry.StartFileSpan(ctx, "open", groupID, fileID,
		telemetry.VersionID(versionID))
	defer span.End()

	file, err := s.getGroupFile(ctx, groupID, fileID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	version, err := s.db.GetVersion(ctx, versionID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	if version.FileID != file.ID {
		telemetry.RecordError(ctx, models.ErrVersionNotFound)
		return nil, models.ErrVersionNotFound
	}

	content, err := s.blobs.Open(ctx, groupID, version.StoredFilename)
	if err != nil {
		var miss *blob.MissingError
		if errors.As(err, &miss) {
			telemetry.SetAttributes(ctx, telemetry.BlobPath(miss.Path))
		}
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	telemetry.SetAttributes(ctx, telemetry.FileSize(version.Size))
	return &VersionContent{File: file, Version: version, Content: content}, nil
}

// DeleteFile removes a file's blobs and rows. Deleting from a read-only
// group is refused; deleting a file that is already gone reports not
// found.
func (s *Service) DeleteFile(ctx context.Context, groupID, fileID string) error {
	ctx, span := telemetry.StartFileSpan(ctx, "delete", groupID, fileID)
	defer span.End()

	group, err := s.db.GetGroup(ctx, groupID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	if group.IsReadonly {
		telemetry.RecordError(ctx, models.ErrGroupReadonly)
		return models.ErrGroupReadonly
	}

	file, err := s.getGroupFile(ctx, groupID, fileID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	telemetry.SetAttributes(ctx, telemetry.Filename(file.OriginalFilename))

	// Blobs first, rows second: a crash in between leaves rows that the
	// reclaimer can still resolve, never unreferenced blobs.
	for i := range file.Versions {
		if err := s.blobs.Remove(ctx, groupID, file.Versions[i].StoredFilename); err != nil {
			telemetry.RecordError(ctx, err)
			return fmt.Errorf("remove version blob: %w", err)
		}
	}
	if err := s.blobs.Remove(ctx, groupID, file.StoredFilename); err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("remove file blob: %w", err)
	}

	if err := s.db.DeleteFile(ctx, fileID); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	logger.InfoCtx(ctx, "file deleted",
		logger.GroupID(groupID),
		logger.FileID(fileID),
		logger.Filename(file.OriginalFilename),
		"versions", len(file.Versions))
	return nil
}
