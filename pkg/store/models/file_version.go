package models

import "time"

// FileVersion is one uploaded revision of a File. Every File has at
// least one version; re-uploads append new versions rather than
// overwriting the old blob.
type FileVersion struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	FileID         string    `gorm:"index;not null;size:36" json:"file_id"`
	StoredFilename string    `gorm:"not null;size:255" json:"stored_filename"`
	UploadedAt     time.Time `json:"uploaded_at"`
	Uploader       string    `gorm:"size:255" json:"uploader,omitempty"`
	Comment        string    `json:"comment,omitempty"`
	Size           int64     `json:"size"`
}

// TableName returns the table name for FileVersion.
func (FileVersion) TableName() string {
	return "file_versions"
}
