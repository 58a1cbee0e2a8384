//go:build e2e

package e2e

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metorm/groupBin/pkg/apiclient"
	"github.com/metorm/groupBin/pkg/upload"
	"github.com/metorm/groupBin/test/e2e/helpers"
)

// makeContent builds deterministic binary content of the given size.
func makeContent(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// TestUploadDownload drives the upload protocols and the download
// endpoints end to end through the API client.
func TestUploadDownload(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}

	env := helpers.NewTestEnvironment(t, helpers.Options{})
	client := env.Client()
	group := helpers.CreateGroup(t, client, &apiclient.CreateGroupRequest{Name: "uploads"})

	content := makeContent(4096 + 100)
	var docID string

	t.Run("whole file upload and download", func(t *testing.T) {
		uploaded := helpers.UploadWholeFile(t, client, group.ID, "whole.bin", content, apiclient.UploadOptions{
			Uploader:    "alice",
			Description: "one-shot upload",
		})

		fetched := helpers.GetGroup(t, client, group.ID)
		require.Len(t, fetched.Files, 1)
		file := fetched.Files[0]
		assert.Equal(t, uploaded.FileID, file.ID)
		assert.Equal(t, "whole.bin", file.Filename)
		assert.Equal(t, "one-shot upload", file.Description)
		assert.Equal(t, int64(len(content)), file.Size)
		assert.Equal(t, 1, file.VersionCount)
		require.NotNil(t, file.Latest)
		assert.Equal(t, "alice", file.Latest.Uploader)

		dl, err := client.DownloadLatest(group.ID, file.ID)
		got := helpers.DownloadBytes(t, dl, err)
		assert.Equal(t, content, got)
	})

	t.Run("chunked upload", func(t *testing.T) {
		uploaded := helpers.UploadChunked(t, client, group.ID, "chunked.bin", content, apiclient.UploadOptions{
			ChunkSize: 1024,
			Uploader:  "bob",
		})

		dl, err := client.DownloadLatest(group.ID, uploaded.FileID)
		got := helpers.DownloadBytes(t, dl, err)
		assert.Equal(t, content, got)

		fetched := helpers.GetGroup(t, client, group.ID)
		assert.Len(t, fetched.Files, 2)
	})

	t.Run("version history", func(t *testing.T) {
		first := helpers.UploadWholeFile(t, client, group.ID, "doc.txt", []byte("draft one"), apiclient.UploadOptions{})
		docID = first.FileID

		_, err := client.UploadVersion(group.ID, docID, "doc.txt", strings.NewReader("draft two, longer"), apiclient.UploadOptions{
			Comment: "second pass",
		})
		require.NoError(t, err)

		// A new version can also arrive through the chunk protocol.
		v3 := makeContent(2000)
		helpers.UploadChunked(t, client, group.ID, "doc.txt", v3, apiclient.UploadOptions{
			ChunkSize: 1024,
			FileID:    docID,
			Comment:   "third pass",
		})

		history, err := client.VersionHistory(group.ID, docID)
		require.NoError(t, err)
		assert.Equal(t, "doc.txt", history.Filename)
		require.Len(t, history.Versions, 3)
		assert.Equal(t, "third pass", history.Versions[0].Comment)
		assert.Equal(t, int64(len(v3)), history.Versions[0].Size)

		// The listing reflects the newest version.
		fetched := helpers.GetGroup(t, client, group.ID)
		for _, f := range fetched.Files {
			if f.ID != docID {
				continue
			}
			assert.Equal(t, 3, f.VersionCount)
			assert.Equal(t, int64(len(v3)), f.Size)
			require.NotNil(t, f.Latest)
			assert.Equal(t, history.Versions[0].ID, f.Latest.ID)
		}

		// Old versions stay downloadable; the stable link serves the
		// newest one.
		oldest := history.Versions[len(history.Versions)-1]
		dl, err := client.DownloadVersion(group.ID, docID, oldest.ID)
		got := helpers.DownloadBytes(t, dl, err)
		assert.Equal(t, "draft one", string(got))

		dl, err = client.DownloadLatest(group.ID, docID)
		latest := helpers.DownloadBytes(t, dl, err)
		assert.Equal(t, v3, latest)
	})

	t.Run("zip bundle carries every version", func(t *testing.T) {
		dl, err := client.DownloadBundle(group.ID)
		data := helpers.DownloadBytes(t, dl, err)

		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)

		// whole.bin and chunked.bin with one version each, doc.txt with
		// three.
		require.Len(t, zr.File, 5)

		perFile := map[string]int{}
		for _, entry := range zr.File {
			idx := strings.Index(entry.Name, "_")
			require.Greater(t, idx, 0, "entry %q should carry a version prefix", entry.Name)
			perFile[entry.Name[idx+1:]]++
		}
		assert.Equal(t, map[string]int{"whole.bin": 1, "chunked.bin": 1, "doc.txt": 3}, perFile)

		for _, entry := range zr.File {
			if !strings.HasSuffix(entry.Name, "_whole.bin") {
				continue
			}
			rc, err := entry.Open()
			require.NoError(t, err)
			got := new(bytes.Buffer)
			_, err = got.ReadFrom(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, content, got.Bytes())
		}
	})

	t.Run("delete file", func(t *testing.T) {
		resp, err := client.DeleteFile(group.ID, docID)
		require.NoError(t, err)
		assert.True(t, resp.Success)

		fetched := helpers.GetGroup(t, client, group.ID)
		assert.Len(t, fetched.Files, 2)

		_, err = client.VersionHistory(group.ID, docID)
		require.Error(t, err)
		apiErr, ok := err.(*apiclient.APIError)
		require.True(t, ok)
		assert.True(t, apiErr.IsNotFound())
	})
}

// TestChunkedResume interrupts a chunked upload and finishes it from a
// second client using probes.
func TestChunkedResume(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}

	env := helpers.NewTestEnvironment(t, helpers.Options{})
	client := env.Client()
	group := helpers.CreateGroup(t, client, &apiclient.CreateGroupRequest{Name: "resume"})

	content := makeContent(2048)
	const identifier = "2048-resumebin"

	// Stage only the first chunk, as an interrupted uploader would.
	ctx := context.Background()
	stored, err := env.DB.GetGroup(ctx, group.ID)
	require.NoError(t, err)

	result, err := env.Assembler.Ingest(ctx, stored, upload.Request{
		Identifier:       identifier,
		ChunkNumber:      1,
		Filename:         "resume.bin",
		TotalChunks:      2,
		TotalSize:        int64(len(content)),
		CurrentChunkSize: 1024,
	}, bytes.NewReader(content[:1024]))
	require.NoError(t, err)
	require.Equal(t, upload.StateChunkUploaded, result.State)

	found, err := client.ProbeChunk(group.ID, identifier, 1)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = client.ProbeChunk(group.ID, identifier, 2)
	require.NoError(t, err)
	assert.False(t, found)

	// The resumed upload skips the staged chunk and completes the set.
	uploaded, err := client.UploadChunked(group.ID, "resume.bin", bytes.NewReader(content), int64(len(content)), apiclient.UploadOptions{
		ChunkSize:  1024,
		Identifier: identifier,
		Resume:     true,
	})
	require.NoError(t, err)
	require.True(t, uploaded.Success)

	dl, err := client.DownloadLatest(group.ID, uploaded.FileID)
	got := helpers.DownloadBytes(t, dl, err)
	assert.Equal(t, content, got)
}

// TestUploadRefusals covers the structured upload failure responses.
func TestUploadRefusals(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}

	t.Run("size limit", func(t *testing.T) {
		env := helpers.NewTestEnvironment(t, helpers.Options{MaxUploadSize: 1024})
		client := env.Client()
		group := helpers.CreateGroup(t, client, &apiclient.CreateGroupRequest{Name: "small"})

		big := makeContent(4096)

		_, err := client.UploadFile(group.ID, "big.bin", bytes.NewReader(big), apiclient.UploadOptions{})
		require.Error(t, err)
		upErr, ok := err.(*apiclient.UploadError)
		require.True(t, ok)
		assert.True(t, upErr.IsTooLarge())
		assert.Equal(t, int64(1024), upErr.MaxSize)

		// The chunk protocol rejects on the declared total before any
		// chunk is staged.
		_, err = client.UploadChunked(group.ID, "big.bin", bytes.NewReader(big), int64(len(big)), apiclient.UploadOptions{
			ChunkSize: 1024,
		})
		require.Error(t, err)
		upErr, ok = err.(*apiclient.UploadError)
		require.True(t, ok)
		assert.True(t, upErr.IsTooLarge())
	})

	t.Run("readonly group", func(t *testing.T) {
		env := helpers.NewTestEnvironment(t, helpers.Options{})
		client := env.Client()
		group := helpers.CreateGroup(t, client, &apiclient.CreateGroupRequest{
			Name:                   "frozen",
			AllowConvertToReadonly: true,
		})

		uploaded := helpers.UploadWholeFile(t, client, group.ID, "keep.bin", []byte("kept"), apiclient.UploadOptions{})

		resp, err := client.ConvertToReadonly(group.ID)
		require.NoError(t, err)
		require.True(t, resp.Success)

		_, err = client.UploadFile(group.ID, "more.bin", strings.NewReader("nope"), apiclient.UploadOptions{})
		require.Error(t, err)
		upErr, ok := err.(*apiclient.UploadError)
		require.True(t, ok)
		assert.True(t, upErr.IsPermissionDenied())
		assert.True(t, upErr.IsReadonly)

		_, err = client.UploadChunked(group.ID, "more.bin", strings.NewReader("nope"), 4, apiclient.UploadOptions{ChunkSize: 4})
		require.Error(t, err)
		upErr, ok = err.(*apiclient.UploadError)
		require.True(t, ok)
		assert.True(t, upErr.IsPermissionDenied())

		_, err = client.DeleteFile(group.ID, uploaded.FileID)
		require.Error(t, err)
		upErr, ok = err.(*apiclient.UploadError)
		require.True(t, ok)
		assert.True(t, upErr.IsPermissionDenied())

		// Content stays readable.
		dl, err := client.DownloadLatest(group.ID, uploaded.FileID)
		got := helpers.DownloadBytes(t, dl, err)
		assert.Equal(t, "kept", string(got))
	})

	t.Run("unknown group", func(t *testing.T) {
		env := helpers.NewTestEnvironment(t, helpers.Options{})
		client := env.Client()

		_, err := client.UploadFile("missing", "a.bin", strings.NewReader("x"), apiclient.UploadOptions{})
		require.Error(t, err)
		apiErr, ok := err.(*apiclient.APIError)
		require.True(t, ok)
		assert.True(t, apiErr.IsNotFound())
	})
}
