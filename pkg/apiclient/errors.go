package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is an RFC 7807 problem response from the API.
type APIError struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return e.Title
}

// IsNotFound returns true if the group, file, or version does not exist.
func (e *APIError) IsNotFound() bool {
	return e.Status == http.StatusNotFound
}

// IsUnauthorized returns true if the request failed a password gate.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// Upload error codes. The upload endpoints answer failures with an
// "error"-keyed JSON body instead of a problem document, so upload
// clients can dispatch without parsing messages.
const (
	CodePermissionDenied = "permission_denied"
	CodeFileTooLarge     = "file_too_large"
	CodeSizeMismatch     = "chunk_size_mismatch"
	CodeMergeFailed      = "merge_failed"
	CodeFileMissing      = "file_missing"
)

// UploadError is a structured upload or file operation failure. Only the
// fields belonging to the reported code are populated.
type UploadError struct {
	Status     int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message,omitempty"`
	MaxSize    int64  `json:"max_size,omitempty"`
	Expected   int64  `json:"expected,omitempty"`
	Actual     int64  `json:"actual,omitempty"`
	Chunk      int    `json:"chunk,omitempty"`
	IsReadonly bool   `json:"is_readonly,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
	FilePath   string `json:"file_path,omitempty"`
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// IsPermissionDenied returns true if the group refused the operation,
// usually because it is readonly.
func (e *UploadError) IsPermissionDenied() bool {
	return e.Code == CodePermissionDenied
}

// IsTooLarge returns true if the upload exceeds the size limit in MaxSize.
func (e *UploadError) IsTooLarge() bool {
	return e.Code == CodeFileTooLarge
}

// IsSizeMismatch returns true if a chunk body did not match its declared
// size.
func (e *UploadError) IsSizeMismatch() bool {
	return e.Code == CodeSizeMismatch
}

// IsMergeFailed returns true if merging the staged chunks failed. The
// chunks are kept, so the upload can be retried.
func (e *UploadError) IsMergeFailed() bool {
	return e.Code == CodeMergeFailed
}

// ActionRefusedError is an action the server declined with a structured
// response, like converting a group that was created without the
// permission.
type ActionRefusedError struct {
	Status  int
	GroupID string
	Message string
}

// Error implements the error interface.
func (e *ActionRefusedError) Error() string {
	return e.Message
}

// decodeError turns an error response body into the most specific error
// type it matches: the "error"-keyed upload failure shapes first, then
// RFC 7807 problems, then declined actions, then a bare APIError
// carrying the raw body. Upload shapes must be tried before declined
// actions because both carry a message field.
func decodeError(statusCode int, body []byte) error {
	var upErr UploadError
	if json.Unmarshal(body, &upErr) == nil && upErr.Code != "" {
		upErr.Status = statusCode
		return &upErr
	}

	var apiErr APIError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Title != "" {
		if apiErr.Status == 0 {
			apiErr.Status = statusCode
		}
		return &apiErr
	}

	var action ActionResponse
	if json.Unmarshal(body, &action) == nil && !action.Success && action.Message != "" {
		return &ActionRefusedError{
			Status:  statusCode,
			GroupID: action.GroupID,
			Message: action.Message,
		}
	}

	return &APIError{
		Status: statusCode,
		Title:  http.StatusText(statusCode),
		Detail: strings.TrimSpace(string(body)),
	}
}
