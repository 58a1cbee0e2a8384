package models

import "time"

// File is a named upload within a group. The row keeps its
// creation-time fields; the upload history, including which version is
// latest, lives in FileVersion rows.
type File struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	GroupID          string    `gorm:"index;not null;size:36" json:"group_id"`
	OriginalFilename string    `gorm:"not null;size:512" json:"original_filename"`
	StoredFilename   string    `gorm:"not null;size:255" json:"stored_filename"`
	Description      string    `json:"description,omitempty"`
	Size             int64     `json:"size"`
	UploadedAt       time.Time `json:"uploaded_at"`
	ContentType      string    `gorm:"size:255" json:"content_type,omitempty"`

	Versions []FileVersion `gorm:"foreignKey:FileID" json:"versions,omitempty"`
}

// TableName returns the table name for File.
func (File) TableName() string {
	return "files"
}

// LatestVersion returns the most recent version among the loaded
// Versions: greatest UploadedAt, ties broken by the greater ID.
// Returns nil when no versions are loaded.
func (f *File) LatestVersion() *FileVersion {
	var latest *FileVersion
	for i := range f.Versions {
		v := &f.Versions[i]
		if latest == nil {
			latest = v
			continue
		}
		if v.UploadedAt.After(latest.UploadedAt) {
			latest = v
			continue
		}
		if v.UploadedAt.Equal(latest.UploadedAt) && v.ID > latest.ID {
			latest = v
		}
	}
	return latest
}
