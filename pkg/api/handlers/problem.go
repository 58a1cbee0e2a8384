// Package handlers provides the HTTP handlers behind the GroupBin API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// ContentTypeProblemJSON is the media type of RFC 7807 responses.
const ContentTypeProblemJSON = "application/problem+json"

// Problem is an RFC 7807 problem details payload. The JSON API answers
// every error with one; the resumable upload protocol keeps its own
// error shapes for client compatibility.
type Problem struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes detail as an RFC 7807 response with the given
// status and title.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// statusProblem writes a problem titled with the canonical status text.
func statusProblem(w http.ResponseWriter, status int, detail string) {
	WriteProblem(w, status, http.StatusText(status), detail)
}

// Shorthands for the statuses the API answers with.

func BadRequest(w http.ResponseWriter, detail string) {
	statusProblem(w, http.StatusBadRequest, detail)
}

func Unauthorized(w http.ResponseWriter, detail string) {
	statusProblem(w, http.StatusUnauthorized, detail)
}

func Forbidden(w http.ResponseWriter, detail string) {
	statusProblem(w, http.StatusForbidden, detail)
}

func NotFound(w http.ResponseWriter, detail string) {
	statusProblem(w, http.StatusNotFound, detail)
}

func Conflict(w http.ResponseWriter, detail string) {
	statusProblem(w, http.StatusConflict, detail)
}

func InternalServerError(w http.ResponseWriter, detail string) {
	statusProblem(w, http.StatusInternalServerError, detail)
}

// WriteJSON writes data as JSON under the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes data as a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONCreated writes data as a 201 Created JSON response.
func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}
