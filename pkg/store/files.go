package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/metorm/groupBin/pkg/store/models"
)

// ============================================
// FILES
// ============================================

func (s *GORMStore) GetFile(ctx context.Context, id string) (*models.File, error) {
	return firstBy[models.File](ctx, s.db, "id", id, models.ErrFileNotFound)
}

func (s *GORMStore) GetFileWithVersions(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("uploaded_at DESC, id DESC")
		}).
		Where("id = ?", id).
		First(&file).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrFileNotFound)
	}
	return &file, nil
}

func (s *GORMStore) ListFiles(ctx context.Context, groupID string) ([]*models.File, error) {
	var files []*models.File
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("uploaded_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *GORMStore) CreateFileWithVersion(ctx context.Context, file *models.File, version *models.FileVersion) error {
	if file.ID == "" {
		file.ID = uuid.New().String()
	}
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	version.FileID = file.ID

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.ErrDuplicateFile
			}
			return err
		}
		return tx.Create(version).Error
	})
}

func (s *GORMStore) AppendVersion(ctx context.Context, fileID string, version *models.FileVersion) error {
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	version.FileID = fileID

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file models.File
		if err := tx.Where("id = ?", fileID).First(&file).Error; err != nil {
			return convertNotFoundError(err, models.ErrFileNotFound)
		}

		// The file row keeps its creation-time fields; which version is
		// latest is derived from the version rows.
		return tx.Create(version).Error
	})
}

func (s *GORMStore) DeleteFile(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file models.File
		if err := tx.Where("id = ?", id).First(&file).Error; err != nil {
			return convertNotFoundError(err, models.ErrFileNotFound)
		}

		if err := tx.Where("file_id = ?", id).Delete(&models.FileVersion{}).Error; err != nil {
			return err
		}

		return tx.Delete(&file).Error
	})
}

// ============================================
// VERSIONS
// ============================================

func (s *GORMStore) GetVersion(ctx context.Context, id string) (*models.FileVersion, error) {
	return firstBy[models.FileVersion](ctx, s.db, "id", id, models.ErrVersionNotFound)
}

func (s *GORMStore) ListVersions(ctx context.Context, fileID string) ([]*models.FileVersion, error) {
	var versions []*models.FileVersion
	err := s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("uploaded_at DESC, id DESC").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}
