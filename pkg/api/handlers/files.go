package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/service"
	"github.com/metorm/groupBin/pkg/store/models"
)

// FileHandler handles the download, history, delete, and bundle endpoints.
type FileHandler struct {
	svc *service.Service
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(svc *service.Service) *FileHandler {
	return &FileHandler{svc: svc}
}

// VersionHistoryResponse is the response body for version history requests.
type VersionHistoryResponse struct {
	FileID   string           `json:"file_id"`
	GroupID  string           `json:"group_id"`
	Filename string           `json:"filename"`
	Versions []VersionSummary `json:"versions"`
}

// FileMissingResponse reports a version whose blob is gone from disk.
type FileMissingResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	FilePath string `json:"file_path"`
}

// Download handles GET /file/download/{groupID}/{fileID}.
//
// Redirects to the download URL of the file's latest version, so a stable
// link always serves current content.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	fileID := chi.URLParam(r, "fileID")
	if groupID == "" || fileID == "" {
		BadRequest(w, "Group ID and file ID are required")
		return
	}

	version, err := h.svc.LatestVersion(r.Context(), groupID, fileID)
	if err != nil {
		writeFileError(w, err)
		return
	}

	target := fmt.Sprintf("/file/%s/%s/version/%s", groupID, fileID, version.ID)
	http.Redirect(w, r, target, http.StatusFound)
}

// Stream handles GET /file/{groupID}/{fileID}/version/{versionID}.
//
// Streams the stored blob as an attachment under the file's original
// name. Range requests are honored.
func (h *FileHandler) Stream(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	fileID := chi.URLParam(r, "fileID")
	versionID := chi.URLParam(r, "versionID")
	if groupID == "" || fileID == "" || versionID == "" {
		BadRequest(w, "Group ID, file ID, and version ID are required")
		return
	}

	vc, err := h.svc.OpenVersion(r.Context(), groupID, fileID, versionID)
	if err != nil {
		writeFileError(w, err)
		return
	}
	defer vc.Content.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", vc.File.OriginalFilename))
	if vc.File.ContentType != "" {
		w.Header().Set("Content-Type", vc.File.ContentType)
	}
	http.ServeContent(w, r, vc.File.OriginalFilename, vc.Version.UploadedAt, vc.Content)
}

// VersionHistory handles GET /file/version_history/{groupID}/{fileID}.
// Versions are listed newest first.
func (h *FileHandler) VersionHistory(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	fileID := chi.URLParam(r, "fileID")
	if groupID == "" || fileID == "" {
		BadRequest(w, "Group ID and file ID are required")
		return
	}

	file, versions, err := h.svc.ListVersionHistory(r.Context(), groupID, fileID)
	if err != nil {
		writeFileError(w, err)
		return
	}

	resp := VersionHistoryResponse{
		FileID:   file.ID,
		GroupID:  file.GroupID,
		Filename: file.OriginalFilename,
		Versions: make([]VersionSummary, 0, len(versions)),
	}
	for i := range versions {
		resp.Versions = append(resp.Versions, *versionToSummary(&versions[i]))
	}
	WriteJSONOK(w, resp)
}

// Delete handles POST|DELETE /file/delete/{groupID}/{fileID}.
//
// Removes the file's blobs and rows. Readonly groups refuse with the
// permission_denied body upload clients already dispatch on.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	fileID := chi.URLParam(r, "fileID")
	if groupID == "" || fileID == "" {
		BadRequest(w, "Group ID and file ID are required")
		return
	}

	if err := h.svc.DeleteFile(r.Context(), groupID, fileID); err != nil {
		writeFileError(w, err)
		return
	}

	WriteJSONOK(w, ActionResponse{Success: true, GroupID: groupID, FileID: fileID})
}

// Bundle handles GET /file/zip/{groupID}.
//
// Streams a zip archive of every version of every file in the group.
// Once streaming starts, failures can only truncate the archive; they are
// logged rather than reported.
func (h *FileHandler) Bundle(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		BadRequest(w, "Group ID is required")
		return
	}

	group, err := h.svc.GetGroup(r.Context(), groupID)
	if err != nil {
		writeFileError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ArchiveName(group.ID)))

	if err := h.svc.BundleGroup(r.Context(), group.ID, w); err != nil {
		logger.ErrorCtx(r.Context(), "zip bundle failed", logger.GroupID(group.ID), logger.Err(err))
	}
}

// writeFileError maps file lookup and delete failures onto responses.
func writeFileError(w http.ResponseWriter, err error) {
	var missing *blob.MissingError

	switch {
	case errors.As(err, &missing):
		WriteJSON(w, http.StatusInternalServerError, FileMissingResponse{
			Error:    "file_missing",
			Message:  "The stored file is missing from disk",
			FilePath: missing.Path,
		})
	case errors.Is(err, models.ErrGroupReadonly):
		WriteJSON(w, http.StatusForbidden, PermissionDeniedResponse{
			Error:      "permission_denied",
			IsReadonly: true,
			Message:    "The group is readonly",
		})
	case errors.Is(err, models.ErrGroupNotFound):
		NotFound(w, "Group not found")
	case errors.Is(err, models.ErrFileNotFound):
		NotFound(w, "File not found")
	case errors.Is(err, models.ErrVersionNotFound):
		NotFound(w, "Version not found")
	default:
		InternalServerError(w, "File operation failed")
	}
}
