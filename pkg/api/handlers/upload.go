package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/metorm/groupBin/pkg/service"
	"github.com/metorm/groupBin/pkg/store/models"
	"github.com/metorm/groupBin/pkg/upload"
)

// UploadHandler handles the resumable chunk protocol and the one-shot
// whole-file upload endpoints.
type UploadHandler struct {
	svc *service.Service
	asm *upload.Assembler
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(svc *service.Service, asm *upload.Assembler) *UploadHandler {
	return &UploadHandler{svc: svc, asm: asm}
}

// UploadedResponse is the commit acknowledgement for a completed upload.
type UploadedResponse struct {
	Success bool   `json:"success"`
	FileID  string `json:"file_id"`
	GroupID string `json:"group_id"`
}

// PermissionDeniedResponse is returned when a write targets a readonly group.
type PermissionDeniedResponse struct {
	Error      string `json:"error"`
	IsReadonly bool   `json:"is_readonly"`
	Message    string `json:"message,omitempty"`
}

// TooLargeResponse is returned when a declared upload size exceeds the cap.
type TooLargeResponse struct {
	Error   string `json:"error"`
	MaxSize int64  `json:"max_size"`
	Message string `json:"message,omitempty"`
}

// SizeMismatchResponse reports a chunk whose written size differed from the
// declared one. The chunk has been discarded and must be resent.
type SizeMismatchResponse struct {
	Error    string `json:"error"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
	Chunk    int    `json:"chunk"`
	Message  string `json:"message,omitempty"`
}

// MergeFailedResponse reports a failed merge. The staged chunks are kept,
// so resending the final chunk retries the merge.
type MergeFailedResponse struct {
	Error   string `json:"error"`
	GroupID string `json:"group_id"`
	Message string `json:"message,omitempty"`
}

// uploadRequest maps the resumable.js parameters onto an upload.Request.
// The get function hides where the parameters live: the query string on
// probes, multipart form fields on ingests.
func uploadRequest(get func(string) string) upload.Request {
	return upload.Request{
		Identifier:       get("resumableIdentifier"),
		ChunkNumber:      formInt(get("resumableChunkNumber")),
		Filename:         get("resumableFilename"),
		TotalChunks:      formInt(get("resumableTotalChunks")),
		TotalSize:        formInt64(get("resumableTotalSize")),
		CurrentChunkSize: formInt64(get("resumableCurrentChunkSize")),
		FileID:           get("file_id"),
		Uploader:         get("uploader"),
		Description:      get("description"),
		Comment:          get("comment"),
	}
}

// Probe handles GET /file/upload - the resumable.js test request.
//
// Responds 200 "found" when the chunk is already persisted, 204 when it
// is not, so the client knows whether to resend it.
func (h *UploadHandler) Probe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	group, err := h.svc.GetGroup(r.Context(), q.Get("group_id"))
	if err != nil {
		writeUploadError(w, err)
		return
	}

	found, err := h.asm.Probe(r.Context(), group, uploadRequest(q.Get))
	if err != nil {
		writeUploadError(w, err)
		return
	}

	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "found")
}

// Ingest handles POST /file/upload - one resumable.js chunk.
//
// The chunk body streams straight from the multipart part into the
// staging area. When the chunk completes the upload the assembler merges
// and commits, and the response carries the new file's ID; otherwise the
// body is the plain text "chunk_uploaded".
func (h *UploadHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	fields, part, err := filePart(r, upload.ChunkPartName)
	if err != nil {
		BadRequest(w, "Malformed multipart body")
		return
	}
	if part == nil {
		BadRequest(w, "Missing file part")
		return
	}
	defer part.Close()

	get := func(key string) string { return fieldOrQuery(fields, r, key) }

	group, err := h.svc.GetGroup(r.Context(), get("group_id"))
	if err != nil {
		writeUploadError(w, err)
		return
	}

	result, err := h.asm.Ingest(r.Context(), group, uploadRequest(get), part)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	if result.State == upload.StateMerged {
		WriteJSONOK(w, UploadedResponse{Success: true, FileID: result.FileID, GroupID: result.GroupID})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "chunk_uploaded")
}

// UploadFile handles POST /file/upload/{groupID} - a whole file in one
// multipart request, for clients that do not speak the chunk protocol.
func (h *UploadHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	h.wholeFile(w, r, "")
}

// UploadVersion handles POST /file/upload_version/{groupID}/{fileID} -
// a whole file uploaded as a new version of an existing file.
func (h *UploadHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if fileID == "" {
		BadRequest(w, "File ID is required")
		return
	}
	h.wholeFile(w, r, fileID)
}

func (h *UploadHandler) wholeFile(w http.ResponseWriter, r *http.Request, fileID string) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		BadRequest(w, "Group ID is required")
		return
	}

	fields, part, err := filePart(r, upload.ChunkPartName)
	if err != nil {
		BadRequest(w, "Malformed multipart body")
		return
	}
	if part == nil {
		BadRequest(w, "Missing file part")
		return
	}
	defer part.Close()

	params := service.UploadParams{
		GroupID:     groupID,
		FileID:      fileID,
		Filename:    filepath.Base(part.FileName()),
		Uploader:    fields.Get("uploader"),
		Description: fields.Get("description"),
		Comment:     fields.Get("comment"),
	}

	committedID, err := h.svc.RegisterUpload(r.Context(), params, part, time.Now().UTC())
	if err != nil {
		writeUploadError(w, err)
		return
	}

	WriteJSONOK(w, UploadedResponse{Success: true, FileID: committedID, GroupID: groupID})
}

// writeUploadError maps upload failures onto the wire shapes the upload
// clients dispatch on.
func writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *upload.TooLargeError
	var mismatch *upload.SizeMismatchError
	var mergeErr *upload.MergeError

	switch {
	case errors.Is(err, upload.ErrReadonly) || errors.Is(err, models.ErrGroupReadonly):
		WriteJSON(w, http.StatusForbidden, PermissionDeniedResponse{
			Error:      "permission_denied",
			IsReadonly: true,
			Message:    "The group is readonly and does not accept uploads",
		})
	case errors.As(err, &tooLarge):
		WriteJSON(w, http.StatusRequestEntityTooLarge, TooLargeResponse{
			Error:   "file_too_large",
			MaxSize: tooLarge.Max,
			Message: err.Error(),
		})
	case errors.As(err, &mismatch):
		WriteJSON(w, http.StatusBadRequest, SizeMismatchResponse{
			Error:    "chunk_size_mismatch",
			Expected: mismatch.Expected,
			Actual:   mismatch.Actual,
			Chunk:    mismatch.Chunk,
			Message:  err.Error(),
		})
	case errors.As(err, &mergeErr):
		WriteJSON(w, http.StatusInternalServerError, MergeFailedResponse{
			Error:   "merge_failed",
			GroupID: mergeErr.GroupID,
			Message: "Merging the uploaded chunks failed; the upload can be retried",
		})
	case errors.Is(err, upload.ErrInvalidRequest):
		BadRequest(w, err.Error())
	case errors.Is(err, models.ErrGroupNotFound):
		NotFound(w, "Group not found")
	case errors.Is(err, models.ErrFileNotFound):
		NotFound(w, "File not found")
	default:
		InternalServerError(w, "Upload failed")
	}
}
