// Package service implements the operations behind the HTTP handlers:
// group lifecycle, whole-file upload registration, version lookup and
// streaming, file deletion, and zip bundling. It composes the metadata
// store and the blob store; time-sensitive operations take the current
// time from the caller so expiry rules stay testable.
package service

import (
	"context"
	"time"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/internal/telemetry"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/store"
	"github.com/metorm/groupBin/pkg/store/models"
)

// Config configures a Service.
type Config struct {
	// DefaultDuration is the lifetime assigned to groups created without
	// an explicit duration. Zero means models.DefaultGroupDurationHours.
	DefaultDuration time.Duration

	// MaxDuration caps the lifetime a client may request at creation.
	// Zero means uncapped.
	MaxDuration time.Duration

	// MaxSize is the per-file size cap in bytes for whole-file uploads.
	// Zero disables the check.
	MaxSize int64
}

// Service carries out group and file operations over the metadata store
// and the blob store.
type Service struct {
	db    store.Store
	blobs *blob.Store

	defaultDuration time.Duration
	maxDuration     time.Duration
	maxSize         int64
}

// New creates a Service over the given stores.
func New(db store.Store, blobs *blob.Store, cfg Config) *Service {
	defaultDuration := cfg.DefaultDuration
	if defaultDuration <= 0 {
		defaultDuration = time.Duration(models.DefaultGroupDurationHours) * time.Hour
	}

	return &Service{
		db:              db,
		blobs:           blobs,
		defaultDuration: defaultDuration,
		maxDuration:     cfg.MaxDuration,
		maxSize:         cfg.MaxSize,
	}
}

// ============================================================================
// Groups
// ============================================================================

// CreateGroupParams are the client-supplied fields of a group creation.
type CreateGroupParams struct {
	Name                   string
	DurationHours          int
	Password               string
	AllowConvertToReadonly bool
	Creator                string
}

// CreateGroup creates a group and its blob directory. A non-positive
// duration falls back to the configured default; a configured maximum
// caps whatever the client asked for.
func (s *Service) CreateGroup(ctx context.Context, params CreateGroupParams, now time.Time) (*models.Group, error) {
	hours := params.DurationHours
	if hours <= 0 {
		hours = int(s.defaultDuration.Hours())
	}
	if s.maxDuration > 0 {
		if max := int(s.maxDuration.Hours()); hours > max {
			hours = max
		}
	}

	group := &models.Group{
		Name:                   params.Name,
		CreatedAt:              now,
		ExpiresAt:              now.Add(time.Duration(hours) * time.Hour),
		CreatedDurationHours:   hours,
		AllowConvertToReadonly: params.AllowConvertToReadonly,
		Creator:                params.Creator,
	}
	if err := group.SetPassword(params.Password); err != nil {
		return nil, err
	}

	id, err := s.db.CreateGroup(ctx, group)
	if err != nil {
		return nil, err
	}
	group.ID = id

	if _, err := s.blobs.EnsureGroupDir(ctx, id); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "group created",
		logger.GroupID(id),
		"name", group.Name,
		"duration_hours", hours,
		"protected", group.HasPassword())
	return group, nil
}

// GetGroup returns a group by ID.
func (s *Service) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	return s.db.GetGroup(ctx, id)
}

// FileView is one file of a group with its latest version resolved.
type FileView struct {
	File         *models.File
	Latest       *models.FileVersion
	VersionCount int
}

// GroupView is the full projection of a group for rendering: the group,
// its files with their latest versions, and the expiry state. Expired
// groups still resolve so callers can render the expired state.
type GroupView struct {
	Group   *models.Group
	Files   []FileView
	Expired bool
}

// GroupView loads a group with its files and resolves each file's
// latest version.
func (s *Service) GroupView(ctx context.Context, id string, now time.Time) (*GroupView, error) {
	ctx, span := telemetry.StartGroupSpan(ctx, "view", id)
	defer span.End()

	group, err := s.db.GetGroupWithFiles(ctx, id)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	view := &GroupView{
		Group:   group,
		Files:   make([]FileView, 0, len(group.Files)),
		Expired: group.IsExpired(now),
	}
	for i := range group.Files {
		file := &group.Files[i]
		view.Files = append(view.Files, FileView{
			File:         file,
			Latest:       file.LatestVersion(),
			VersionCount: len(file.Versions),
		})
	}

	telemetry.SetAttributes(ctx,
		telemetry.GroupName(group.Name),
		telemetry.GroupReadonly(group.IsReadonly),
		telemetry.GroupExpired(view.Expired))
	return view, nil
}

// RefreshExpiration extends a group's expiry by the duration it was
// created with. An expiry already later than the result is kept.
func (s *Service) RefreshExpiration(ctx context.Context, id string, now time.Time) (*models.Group, error) {
	group, err := s.db.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	group.RefreshExpiration(now)
	if err := s.db.UpdateGroup(ctx, group); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "group expiration refreshed",
		logger.GroupID(id),
		"expires_at", group.ExpiresAt)
	return group, nil
}

// ConvertToReadonly marks a group read-only. The change is one-way:
// converting an already read-only group fails, as does converting a
// group created without the permission.
func (s *Service) ConvertToReadonly(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.db.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	if !group.AllowConvertToReadonly {
		return nil, models.ErrConvertNotAllowed
	}
	if group.IsReadonly {
		return nil, models.ErrAlreadyReadonly
	}

	group.IsReadonly = true
	if err := s.db.UpdateGroup(ctx, group); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "group converted to read-only", logger.GroupID(id))
	return group, nil
}

// CheckGroupPassword reports whether the candidate unlocks the group.
// Groups without a password accept any candidate.
func (s *Service) CheckGroupPassword(ctx context.Context, id, candidate string) (bool, error) {
	group, err := s.db.GetGroup(ctx, id)
	if err != nil {
		return false, err
	}
	return group.CheckPassword(candidate), nil
}
