package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/metorm/groupBin/pkg/store/models"
)

// ============================================
// GROUPS
// ============================================

func (s *GORMStore) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	return firstBy[models.Group](ctx, s.db, "id", id, models.ErrGroupNotFound)
}

func (s *GORMStore) GetGroupWithFiles(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).
		Preload("Files").
		Preload("Files.Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("uploaded_at DESC, id DESC")
		}).
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrGroupNotFound)
	}
	return &group, nil
}

func (s *GORMStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	return list[models.Group](ctx, s.db)
}

func (s *GORMStore) ListGroupIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Group{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GORMStore) ListGroupsExpiredBefore(ctx context.Context, cutoff time.Time) ([]*models.Group, error) {
	var groups []*models.Group
	err := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *GORMStore) CreateGroup(ctx context.Context, group *models.Group) (string, error) {
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", models.ErrDuplicateGroup
		}
		return "", err
	}
	return group.ID, nil
}

func (s *GORMStore) UpdateGroup(ctx context.Context, group *models.Group) error {
	var existing models.Group
	if err := s.db.WithContext(ctx).Where("id = ?", group.ID).First(&existing).Error; err != nil {
		return convertNotFoundError(err, models.ErrGroupNotFound)
	}

	return s.db.WithContext(ctx).
		Model(&existing).
		Select("Name", "ExpiresAt", "CreatedDurationHours", "PasswordHash", "IsReadonly", "AllowConvertToReadonly", "Creator").
		Updates(group).Error
}

func (s *GORMStore) DeleteGroup(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Where("id = ?", id).First(&group).Error; err != nil {
			return convertNotFoundError(err, models.ErrGroupNotFound)
		}

		// Versions of every file in the group first, then the files,
		// then the group itself.
		var fileIDs []string
		if err := tx.Model(&models.File{}).Where("group_id = ?", id).Pluck("id", &fileIDs).Error; err != nil {
			return err
		}
		if len(fileIDs) > 0 {
			if err := tx.Where("file_id IN ?", fileIDs).Delete(&models.FileVersion{}).Error; err != nil {
				return err
			}
			if err := tx.Where("group_id = ?", id).Delete(&models.File{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&group).Error
	})
}
