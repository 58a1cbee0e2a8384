package store

import (
	"context"

	"gorm.io/gorm"
)

// Shared query shapes for the store implementation files. They work on
// the raw *gorm.DB so transactions can reuse them.

// firstBy loads the record of type T whose field equals value, with the
// named associations preloaded. gorm.ErrRecordNotFound comes back as
// notFound so callers surface domain errors.
func firstBy[T any](ctx context.Context, db *gorm.DB, field string, value any, notFound error, preloads ...string) (*T, error) {
	var record T
	q := db.WithContext(ctx)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.Where(field+" = ?", value).First(&record).Error; err != nil {
		return nil, convertNotFoundError(err, notFound)
	}
	return &record, nil
}

// list loads every record of type T with the named associations
// preloaded. No records is an empty slice, not an error.
func list[T any](ctx context.Context, db *gorm.DB, preloads ...string) ([]*T, error) {
	var records []*T
	q := db.WithContext(ctx)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
