//go:build integration

package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metorm/groupBin/pkg/service"
)

func TestFileHandler_Download(t *testing.T) {
	env := setupEnv(t)
	handler := NewFileHandler(env.svc)
	now := time.Now().UTC()

	groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "drop"}, now)
	fileID := mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, Filename: "doc.txt"}, "v1", now)
	mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, FileID: fileID, Filename: "doc.txt"}, "v2", now.Add(time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/file/download/"+groupID+"/"+fileID, nil)
	req = withRouteParams(req, map[string]string{"groupID": groupID, "fileID": fileID})
	w := httptest.NewRecorder()
	handler.Download(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Download() status = %d, want %d", w.Code, http.StatusFound)
	}

	latest, err := env.svc.LatestVersion(context.Background(), groupID, fileID)
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	want := fmt.Sprintf("/file/%s/%s/version/%s", groupID, fileID, latest.ID)
	if got := w.Header().Get("Location"); got != want {
		t.Errorf("Location = %s, want %s", got, want)
	}

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/file/download/"+groupID+"/nope", nil)
		req = withRouteParams(req, map[string]string{"groupID": groupID, "fileID": "nope"})
		w := httptest.NewRecorder()
		handler.Download(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("Download() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestFileHandler_Stream(t *testing.T) {
	env := setupEnv(t)
	handler := NewFileHandler(env.svc)
	ctx := context.Background()
	now := time.Now().UTC()

	groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "drop"}, now)
	fileID := mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, Filename: "doc.txt"}, "stream-me", now)

	versions, err := env.db.ListVersions(ctx, fileID)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	versionID := versions[0].ID

	stream := func(extra func(*http.Request)) *httptest.ResponseRecorder {
		target := fmt.Sprintf("/file/%s/%s/version/%s", groupID, fileID, versionID)
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req = withRouteParams(req, map[string]string{
			"groupID": groupID, "fileID": fileID, "versionID": versionID,
		})
		if extra != nil {
			extra(req)
		}
		w := httptest.NewRecorder()
		handler.Stream(w, req)
		return w
	}

	t.Run("serves the blob as an attachment", func(t *testing.T) {
		w := stream(nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Stream() status = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="doc.txt"` {
			t.Errorf("Content-Disposition = %s", got)
		}
		if w.Body.String() != "stream-me" {
			t.Errorf("Body = %q, want %q", w.Body.String(), "stream-me")
		}
	})

	t.Run("honors range requests", func(t *testing.T) {
		w := stream(func(r *http.Request) { r.Header.Set("Range", "bytes=0-3") })
		if w.Code != http.StatusPartialContent {
			t.Fatalf("Stream() status = %d, want %d", w.Code, http.StatusPartialContent)
		}
		if w.Body.String() != "stre" {
			t.Errorf("Body = %q, want %q", w.Body.String(), "stre")
		}
	})

	t.Run("missing version", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/file/"+groupID+"/"+fileID+"/version/nope", nil)
		req = withRouteParams(req, map[string]string{
			"groupID": groupID, "fileID": fileID, "versionID": "nope",
		})
		w := httptest.NewRecorder()
		handler.Stream(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("Stream() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("missing blob reports the path", func(t *testing.T) {
		blobPath := filepath.Join(env.blobs.GroupDir(groupID), versions[0].StoredFilename)
		if err := os.Remove(blobPath); err != nil {
			t.Fatalf("Failed to remove blob: %v", err)
		}

		w := stream(nil)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("Stream() status = %d, want %d", w.Code, http.StatusInternalServerError)
		}

		var resp FileMissingResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.Error != "file_missing" || resp.FilePath != blobPath {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})
}

func TestFileHandler_VersionHistory(t *testing.T) {
	env := setupEnv(t)
	handler := NewFileHandler(env.svc)
	now := time.Now().UTC()

	groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "drop"}, now)
	otherID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "other"}, now)
	fileID := mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, Filename: "doc.txt", Uploader: "alice"}, "v1", now)
	mustRegisterFile(t, env, service.UploadParams{
		GroupID: groupID, FileID: fileID, Filename: "doc.txt", Uploader: "bob", Comment: "fixup",
	}, "v2-longer", now.Add(time.Minute))

	history := func(group, file string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/file/version_history/"+group+"/"+file, nil)
		req = withRouteParams(req, map[string]string{"groupID": group, "fileID": file})
		w := httptest.NewRecorder()
		handler.VersionHistory(w, req)
		return w
	}

	w := history(groupID, fileID)
	if w.Code != http.StatusOK {
		t.Fatalf("VersionHistory() status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp VersionHistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.FileID != fileID || resp.GroupID != groupID || resp.Filename != "doc.txt" {
		t.Errorf("Unexpected response header: %+v", resp)
	}
	if len(resp.Versions) != 2 {
		t.Fatalf("Expected 2 versions, got %d", len(resp.Versions))
	}
	if !resp.Versions[0].UploadedAt.After(resp.Versions[1].UploadedAt) {
		t.Error("Expected newest version first")
	}
	if resp.Versions[0].Comment != "fixup" || resp.Versions[0].Uploader != "bob" {
		t.Errorf("Unexpected newest version: %+v", resp.Versions[0])
	}

	t.Run("file of another group", func(t *testing.T) {
		if w := history(otherID, fileID); w.Code != http.StatusNotFound {
			t.Errorf("VersionHistory() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestFileHandler_Delete(t *testing.T) {
	env := setupEnv(t)
	handler := NewFileHandler(env.svc)
	ctx := context.Background()
	now := time.Now().UTC()

	groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "drop", AllowConvertToReadonly: true}, now)
	fileID := mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, Filename: "doc.txt"}, "v1", now)

	versions, err := env.db.ListVersions(ctx, fileID)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}

	del := func(file string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/file/delete/"+groupID+"/"+file, nil)
		req = withRouteParams(req, map[string]string{"groupID": groupID, "fileID": file})
		w := httptest.NewRecorder()
		handler.Delete(w, req)
		return w
	}

	w := del(fileID)
	if w.Code != http.StatusOK {
		t.Fatalf("Delete() status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ActionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !resp.Success || resp.GroupID != groupID || resp.FileID != fileID {
		t.Errorf("Unexpected response: %+v", resp)
	}

	// Blobs are gone with the rows.
	for _, v := range versions {
		path := filepath.Join(env.blobs.GroupDir(groupID), v.StoredFilename)
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("Expected blob %s to be gone", v.StoredFilename)
		}
	}

	// Deleting again reports not found.
	if w := del(fileID); w.Code != http.StatusNotFound {
		t.Errorf("Delete() status = %d, want %d on second delete", w.Code, http.StatusNotFound)
	}

	t.Run("readonly group refuses", func(t *testing.T) {
		keptID := mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, Filename: "keep.txt"}, "keep", now)
		if _, err := env.svc.ConvertToReadonly(ctx, groupID); err != nil {
			t.Fatalf("ConvertToReadonly() error = %v", err)
		}

		w := del(keptID)
		if w.Code != http.StatusForbidden {
			t.Fatalf("Delete() status = %d, want %d", w.Code, http.StatusForbidden)
		}

		var resp PermissionDeniedResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.Error != "permission_denied" || !resp.IsReadonly {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})
}

func TestFileHandler_Bundle(t *testing.T) {
	env := setupEnv(t)
	handler := NewFileHandler(env.svc)
	now := time.Now().UTC()

	groupID := mustCreateGroup(t, env, service.CreateGroupParams{Name: "drop"}, now)
	fileID := mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, Filename: "report.txt"}, "v1-data", now)
	mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, FileID: fileID, Filename: "report.txt"}, "v2-data", now.Add(time.Minute))
	mustRegisterFile(t, env, service.UploadParams{GroupID: groupID, Filename: "image.png"}, "png-data", now)

	req := httptest.NewRequest(http.MethodGet, "/file/zip/"+groupID, nil)
	req = withRouteParams(req, map[string]string{"groupID": groupID})
	w := httptest.NewRecorder()
	handler.Bundle(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Bundle() status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %s, want application/zip", ct)
	}
	want := fmt.Sprintf("attachment; filename=%q", service.ArchiveName(groupID))
	if got := w.Header().Get("Content-Disposition"); got != want {
		t.Errorf("Content-Disposition = %s, want %s", got, want)
	}

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	if len(zr.File) != 3 {
		t.Errorf("Expected 3 archive entries, got %d", len(zr.File))
	}

	t.Run("missing group", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/file/zip/nope", nil)
		req = withRouteParams(req, map[string]string{"groupID": "nope"})
		w := httptest.NewRecorder()
		handler.Bundle(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("Bundle() status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
