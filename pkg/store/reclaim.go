package store

import (
	"context"

	"github.com/metorm/groupBin/pkg/store/models"
)

// ============================================
// RECLAMATION
// ============================================

func (s *GORMStore) ListOrphanFiles(ctx context.Context) ([]*models.File, error) {
	groupIDs := s.db.Model(&models.Group{}).Select("id")

	var files []*models.File
	err := s.db.WithContext(ctx).
		Where("group_id NOT IN (?)", groupIDs).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *GORMStore) ListOrphanVersions(ctx context.Context) ([]*models.FileVersion, error) {
	fileIDs := s.db.Model(&models.File{}).Select("id")

	var versions []*models.FileVersion
	err := s.db.WithContext(ctx).
		Where("file_id NOT IN (?)", fileIDs).
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (s *GORMStore) DeleteFilesByID(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.File{}).Error
}

func (s *GORMStore) DeleteVersionsByID(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.FileVersion{}).Error
}

func (s *GORMStore) StoredNameKnown(ctx context.Context, storedName string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("stored_filename = ?", storedName).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	err = s.db.WithContext(ctx).
		Model(&models.FileVersion{}).
		Where("stored_filename = ?", storedName).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
