// Package store persists group, file, and version metadata.
//
// The Store interface hides the backend: SQLite serves the single-node
// default, PostgreSQL the shared setups. Blob contents never pass
// through here, only the rows describing them.
package store

import (
	"context"
	"time"

	"github.com/metorm/groupBin/pkg/store/models"
)

// Store is the metadata persistence interface. Implementations must
// tolerate concurrent calls; the HTTP handlers and the reclamation
// worker share one instance.
type Store interface {
	// ============================================
	// GROUPS
	// ============================================

	// GetGroup returns a group by ID.
	// Returns models.ErrGroupNotFound if the group doesn't exist.
	GetGroup(ctx context.Context, id string) (*models.Group, error)

	// GetGroupWithFiles returns a group by ID with its files and their
	// versions preloaded (versions newest-first).
	// Returns models.ErrGroupNotFound if the group doesn't exist.
	GetGroupWithFiles(ctx context.Context, id string) (*models.Group, error)

	// ListGroups returns all groups.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// ListGroupIDs returns the IDs of all groups.
	ListGroupIDs(ctx context.Context) ([]string, error)

	// ListGroupsExpiredBefore returns groups whose expiry is before the
	// given cutoff.
	ListGroupsExpiredBefore(ctx context.Context, cutoff time.Time) ([]*models.Group, error)

	// CreateGroup creates a new group.
	// The group ID will be generated if empty. Returns the generated ID.
	CreateGroup(ctx context.Context, group *models.Group) (string, error)

	// UpdateGroup persists changes to an existing group.
	// Returns models.ErrGroupNotFound if the group doesn't exist.
	UpdateGroup(ctx context.Context, group *models.Group) error

	// DeleteGroup deletes a group and all of its files and versions.
	// Returns models.ErrGroupNotFound if the group doesn't exist.
	DeleteGroup(ctx context.Context, id string) error

	// ============================================
	// FILES
	// ============================================

	// GetFile returns a file by ID.
	// Returns models.ErrFileNotFound if the file doesn't exist.
	GetFile(ctx context.Context, id string) (*models.File, error)

	// GetFileWithVersions returns a file with versions preloaded,
	// newest-first.
	// Returns models.ErrFileNotFound if the file doesn't exist.
	GetFileWithVersions(ctx context.Context, id string) (*models.File, error)

	// ListFiles returns all files of a group.
	ListFiles(ctx context.Context, groupID string) ([]*models.File, error)

	// CreateFileWithVersion creates a file and its initial version in a
	// single transaction. IDs are generated if empty.
	CreateFileWithVersion(ctx context.Context, file *models.File, version *models.FileVersion) error

	// AppendVersion adds a version to an existing file. The file row
	// itself keeps its creation-time fields.
	// Returns models.ErrFileNotFound if the file doesn't exist.
	AppendVersion(ctx context.Context, fileID string, version *models.FileVersion) error

	// DeleteFile deletes a file and its versions.
	// Returns models.ErrFileNotFound if the file doesn't exist.
	DeleteFile(ctx context.Context, id string) error

	// ============================================
	// VERSIONS
	// ============================================

	// GetVersion returns a file version by ID.
	// Returns models.ErrVersionNotFound if the version doesn't exist.
	GetVersion(ctx context.Context, id string) (*models.FileVersion, error)

	// ListVersions returns the versions of a file, newest-first.
	ListVersions(ctx context.Context, fileID string) ([]*models.FileVersion, error)

	// ============================================
	// RECLAMATION
	// ============================================

	// ListOrphanFiles returns files whose group no longer exists.
	ListOrphanFiles(ctx context.Context) ([]*models.File, error)

	// ListOrphanVersions returns versions whose file no longer exists.
	ListOrphanVersions(ctx context.Context) ([]*models.FileVersion, error)

	// DeleteFilesByID bulk-deletes files by ID. Versions are not touched;
	// orphaned versions are picked up by ListOrphanVersions.
	DeleteFilesByID(ctx context.Context, ids []string) error

	// DeleteVersionsByID bulk-deletes versions by ID.
	DeleteVersionsByID(ctx context.Context, ids []string) error

	// StoredNameKnown reports whether any file or version references the
	// given on-disk blob name.
	StoredNameKnown(ctx context.Context, storedName string) (bool, error)

	// ============================================
	// LIFECYCLE
	// ============================================

	// Healthcheck verifies the store is operational.
	Healthcheck(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}
