package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/pkg/api/middleware"
	"github.com/metorm/groupBin/pkg/service"
	"github.com/metorm/groupBin/pkg/session"
	"github.com/metorm/groupBin/pkg/store/models"
)

// AuthOptions carries the site-wide password settings the group handlers
// enforce. Empty passwords disable their gate.
type AuthOptions struct {
	// UnifiedPassword is accepted for any group in place of the group's
	// own password.
	UnifiedPassword string

	// CreatePassword must be presented before creating groups.
	CreatePassword string

	// AuthDelay is the pause inserted before every failed password
	// response.
	AuthDelay time.Duration
}

// GroupHandler handles the group lifecycle endpoints.
type GroupHandler struct {
	svc      *service.Service
	sessions *session.Manager
	auth     AuthOptions
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(svc *service.Service, sessions *session.Manager, auth AuthOptions) *GroupHandler {
	return &GroupHandler{svc: svc, sessions: sessions, auth: auth}
}

// CreateGroupRequest is the request body for POST /group/create.
type CreateGroupRequest struct {
	Name                   string `json:"name"`
	DurationHours          int    `json:"duration_hours,omitempty"`
	Password               string `json:"password,omitempty"`
	AllowConvertToReadonly bool   `json:"allow_convert_to_readonly"`
	Creator                string `json:"creator,omitempty"`

	// CreatePassword answers the site-wide creation gate. Once accepted
	// it is remembered on the session.
	CreatePassword string `json:"create_password,omitempty"`
}

// UnlockRequest is the request body for POST /group/{groupID}/unlock.
type UnlockRequest struct {
	Password string `json:"password"`
}

// VersionSummary is one file version in API responses.
type VersionSummary struct {
	ID         string    `json:"id"`
	Size       int64     `json:"size"`
	Uploader   string    `json:"uploader,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// FileSummary is one file of a group view, with its latest version.
type FileSummary struct {
	ID           string          `json:"id"`
	Filename     string          `json:"filename"`
	Description  string          `json:"description,omitempty"`
	ContentType  string          `json:"content_type,omitempty"`
	Size         int64           `json:"size"`
	VersionCount int             `json:"version_count"`
	Latest       *VersionSummary `json:"latest,omitempty"`
}

// GroupResponse is the response body for group endpoints.
type GroupResponse struct {
	ID                     string        `json:"id"`
	Name                   string        `json:"name"`
	CreatedAt              time.Time     `json:"created_at"`
	ExpiresAt              time.Time     `json:"expires_at"`
	Expired                bool          `json:"expired"`
	IsReadonly             bool          `json:"is_readonly"`
	AllowConvertToReadonly bool          `json:"allow_convert_to_readonly"`
	HasPassword            bool          `json:"has_password"`
	Creator                string        `json:"creator,omitempty"`
	Files                  []FileSummary `json:"files,omitempty"`
}

// ActionResponse is the acknowledgement body for group and file
// mutations. Message is set when Success is false.
type ActionResponse struct {
	Success   bool       `json:"success"`
	GroupID   string     `json:"group_id,omitempty"`
	FileID    string     `json:"file_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// Create handles POST /group/create.
//
// When a creation password is configured the request must either come
// from a session that already passed the gate or carry the password in
// the create_password field.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		BadRequest(w, "Group name is required")
		return
	}

	if h.auth.CreatePassword != "" && !h.passCreateGate(r, req.CreatePassword) {
		h.failAuth(w, "Group creation requires a password")
		return
	}

	group, err := h.svc.CreateGroup(r.Context(), service.CreateGroupParams{
		Name:                   req.Name,
		DurationHours:          req.DurationHours,
		Password:               req.Password,
		AllowConvertToReadonly: req.AllowConvertToReadonly,
		Creator:                req.Creator,
	}, time.Now().UTC())
	if err != nil {
		InternalServerError(w, "Failed to create group")
		return
	}

	WriteJSONCreated(w, groupToResponse(group, false))
}

// passCreateGate reports whether the request may create groups, either
// because the session already unlocked creation or because the supplied
// password matches. A match is persisted on the session.
func (h *GroupHandler) passCreateGate(r *http.Request, candidate string) bool {
	sess := middleware.SessionFromContext(r.Context())
	if sess != nil && sess.CreateOK {
		return true
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(h.auth.CreatePassword)) != 1 {
		return false
	}
	if sess != nil {
		sess.CreateOK = true
		if err := h.sessions.Save(sess); err != nil {
			logger.WarnCtx(r.Context(), "could not persist session", logger.SessionID(sess.ID), logger.Err(err))
		}
	}
	return true
}

// View handles GET /group/{groupID}.
//
// Password gates: a group with its own password requires the session to
// have unlocked it; otherwise, when a unified password is configured,
// the session must have passed that. Open groups need neither.
func (h *GroupHandler) View(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		BadRequest(w, "Group ID is required")
		return
	}

	view, err := h.svc.GroupView(r.Context(), groupID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, models.ErrGroupNotFound) {
			NotFound(w, "Group not found")
			return
		}
		InternalServerError(w, "Failed to load group")
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	if !h.viewAllowed(view.Group, sess) {
		Unauthorized(w, "This group requires a password")
		return
	}

	if sess != nil {
		if err := h.sessions.RememberGroup(sess, groupID); err != nil {
			logger.WarnCtx(r.Context(), "could not persist session", logger.SessionID(sess.ID), logger.Err(err))
		}
	}

	resp := groupToResponse(view.Group, view.Expired)
	resp.Files = make([]FileSummary, 0, len(view.Files))
	for _, fv := range view.Files {
		resp.Files = append(resp.Files, fileToSummary(fv))
	}
	WriteJSONOK(w, resp)
}

// viewAllowed applies the group view gate for the given session.
func (h *GroupHandler) viewAllowed(group *models.Group, sess *session.Session) bool {
	if group.HasPassword() {
		return sess != nil && sess.IsUnlocked(group.ID)
	}
	if h.auth.UnifiedPassword != "" {
		return sess != nil && sess.UnifiedOK
	}
	return true
}

// Unlock handles POST /group/{groupID}/unlock.
//
// The group's own password and the unified password are both accepted.
// Failures answer 401 after the configured delay, slowing down guessing.
func (h *GroupHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		BadRequest(w, "Group ID is required")
		return
	}

	var req UnlockRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ok, err := h.svc.CheckGroupPassword(r.Context(), groupID, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrGroupNotFound) {
			NotFound(w, "Group not found")
			return
		}
		InternalServerError(w, "Failed to check password")
		return
	}

	sess := middleware.SessionFromContext(r.Context())

	unified := h.auth.UnifiedPassword != "" &&
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.auth.UnifiedPassword)) == 1
	if unified && sess != nil {
		sess.UnifiedOK = true
	}

	if !ok && !unified {
		h.failAuth(w, "Invalid password")
		return
	}

	if sess != nil {
		if err := h.sessions.Unlock(sess, groupID); err != nil {
			logger.WarnCtx(r.Context(), "could not persist session", logger.SessionID(sess.ID), logger.Err(err))
		}
	}

	WriteJSONOK(w, ActionResponse{Success: true, GroupID: groupID})
}

// Refresh handles GET|POST /group/{groupID}/refresh.
func (h *GroupHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		BadRequest(w, "Group ID is required")
		return
	}

	group, err := h.svc.RefreshExpiration(r.Context(), groupID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, models.ErrGroupNotFound) {
			NotFound(w, "Group not found")
			return
		}
		InternalServerError(w, "Failed to refresh group")
		return
	}

	WriteJSONOK(w, ActionResponse{Success: true, GroupID: group.ID, ExpiresAt: &group.ExpiresAt})
}

// Convert handles POST /group/{groupID}/convert-to-readonly.
//
// Converting is one-way. Groups created without the permission, and
// groups already read-only, answer 400 with success false.
func (h *GroupHandler) Convert(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		BadRequest(w, "Group ID is required")
		return
	}

	group, err := h.svc.ConvertToReadonly(r.Context(), groupID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrGroupNotFound):
			NotFound(w, "Group not found")
		case errors.Is(err, models.ErrConvertNotAllowed):
			WriteJSON(w, http.StatusBadRequest, ActionResponse{
				Success: false,
				GroupID: groupID,
				Message: "This group does not allow converting to readonly",
			})
		case errors.Is(err, models.ErrAlreadyReadonly):
			WriteJSON(w, http.StatusBadRequest, ActionResponse{
				Success: false,
				GroupID: groupID,
				Message: "The group is already readonly",
			})
		default:
			InternalServerError(w, "Failed to convert group")
		}
		return
	}

	WriteJSONOK(w, ActionResponse{Success: true, GroupID: group.ID})
}

// failAuth answers a failed password check. The delay applies to every
// failure so guesses cannot be distinguished by response time.
func (h *GroupHandler) failAuth(w http.ResponseWriter, detail string) {
	time.Sleep(h.auth.AuthDelay)
	Unauthorized(w, detail)
}

// groupToResponse converts a models.Group to GroupResponse.
func groupToResponse(g *models.Group, expired bool) GroupResponse {
	return GroupResponse{
		ID:                     g.ID,
		Name:                   g.Name,
		CreatedAt:              g.CreatedAt,
		ExpiresAt:              g.ExpiresAt,
		Expired:                expired,
		IsReadonly:             g.IsReadonly,
		AllowConvertToReadonly: g.AllowConvertToReadonly,
		HasPassword:            g.HasPassword(),
		Creator:                g.Creator,
	}
}

// fileToSummary converts a service.FileView to FileSummary.
func fileToSummary(fv service.FileView) FileSummary {
	summary := FileSummary{
		ID:           fv.File.ID,
		Filename:     fv.File.OriginalFilename,
		Description:  fv.File.Description,
		ContentType:  fv.File.ContentType,
		Size:         fv.File.Size,
		VersionCount: fv.VersionCount,
	}
	if fv.Latest != nil {
		summary.Latest = versionToSummary(fv.Latest)
		summary.Size = fv.Latest.Size
	}
	return summary
}

// versionToSummary converts a models.FileVersion to VersionSummary.
func versionToSummary(v *models.FileVersion) *VersionSummary {
	return &VersionSummary{
		ID:         v.ID,
		Size:       v.Size,
		Uploader:   v.Uploader,
		Comment:    v.Comment,
		UploadedAt: v.UploadedAt,
	}
}
