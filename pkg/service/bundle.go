package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/internal/telemetry"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/store/models"
)

// entryTimeLayout stamps zip entry names with the version's upload time.
const entryTimeLayout = "01-02-15-04-05"

// ArchiveName returns the download filename for a group's zip bundle.
func ArchiveName(groupID string) string {
	return fmt.Sprintf("group_%s_files.zip", groupID)
}

// entryName returns the zip entry name for one version of a file. The
// upload timestamp prefix keeps versions of the same file apart.
func entryName(file *models.File, version *models.FileVersion) string {
	return "v-" + version.UploadedAt.Format(entryTimeLayout) + "_" + file.OriginalFilename
}

// BundleGroup streams a zip archive of every version of every file in
// the group to w. Blobs that have vanished from disk are skipped with a
// warning so a partially reclaimed group still yields its survivors.
func (s *Service) BundleGroup(ctx context.Context, groupID string, w io.Writer) error {
	ctx, span := telemetry.StartGroupSpan(ctx, "bundle", groupID)
	defer span.End()

	group, err := s.db.GetGroupWithFiles(ctx, groupID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	zw := zip.NewWriter(w)
	var bundled, skipped int

	for i := range group.Files {
		file := &group.Files[i]
		for j := range file.Versions {
			version := &file.Versions[j]
			if err := ctx.Err(); err != nil {
				zw.Close()
				return err
			}

			if err := s.bundleVersion(ctx, zw, groupID, file, version); err != nil {
				if errors.Is(err, blob.ErrMissing) {
					logger.WarnCtx(ctx, "skipping missing blob in bundle",
						logger.GroupID(groupID),
						logger.FileID(file.ID),
						logger.VersionID(version.ID),
						logger.StoredName(version.StoredFilename))
					skipped++
					continue
				}
				zw.Close()
				return err
			}
			bundled++
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	logger.InfoCtx(ctx, "group bundled",
		logger.GroupID(groupID),
		"entries", bundled,
		"skipped", skipped)
	return nil
}

// bundleVersion writes one version's blob as a deflate entry.
func (s *Service) bundleVersion(ctx context.Context, zw *zip.Writer, groupID string, file *models.File, version *models.FileVersion) error {
	src, err := s.blobs.Open(ctx, groupID, version.StoredFilename)
	if err != nil {
		return err
	}
	defer src.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entryName(file, version),
		Method:   zip.Deflate,
		Modified: version.UploadedAt,
	})
	if err != nil {
		return fmt.Errorf("create archive entry: %w", err)
	}

	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("write archive entry: %w", err)
	}
	return nil
}
