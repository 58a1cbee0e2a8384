//go:build e2e

package helpers

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/metorm/groupBin/pkg/apiclient"
)

// =============================================================================
// Group Helpers
// =============================================================================

// CreateGroup creates a group via the API client.
func CreateGroup(t *testing.T, client *apiclient.Client, req *apiclient.CreateGroupRequest) *apiclient.Group {
	t.Helper()

	group, err := client.CreateGroup(req)
	require.NoError(t, err, "Failed to create group %s", req.Name)
	require.NotEmpty(t, group.ID)

	return group
}

// Unlock unlocks a group on the client's session and expects success.
func Unlock(t *testing.T, client *apiclient.Client, groupID, password string) {
	t.Helper()

	resp, err := client.Unlock(groupID, password)
	require.NoError(t, err, "Failed to unlock group %s", groupID)
	require.True(t, resp.Success)
}

// GetGroup fetches a group and expects success.
func GetGroup(t *testing.T, client *apiclient.Client, groupID string) *apiclient.Group {
	t.Helper()

	group, err := client.GetGroup(groupID)
	require.NoError(t, err, "Failed to get group %s", groupID)

	return group
}

// =============================================================================
// Upload and Download Helpers
// =============================================================================

// UploadWholeFile uploads content through the whole-file endpoint.
func UploadWholeFile(t *testing.T, client *apiclient.Client, groupID, filename string, content []byte, opts apiclient.UploadOptions) *apiclient.UploadedResponse {
	t.Helper()

	uploaded, err := client.UploadFile(groupID, filename, bytes.NewReader(content), opts)
	require.NoError(t, err, "Failed to upload %s", filename)
	require.True(t, uploaded.Success)
	require.NotEmpty(t, uploaded.FileID)

	return uploaded
}

// UploadChunked uploads content through the resumable chunk protocol.
func UploadChunked(t *testing.T, client *apiclient.Client, groupID, filename string, content []byte, opts apiclient.UploadOptions) *apiclient.UploadedResponse {
	t.Helper()

	uploaded, err := client.UploadChunked(groupID, filename, bytes.NewReader(content), int64(len(content)), opts)
	require.NoError(t, err, "Failed to chunk-upload %s", filename)
	require.True(t, uploaded.Success)
	require.NotEmpty(t, uploaded.FileID)

	return uploaded
}

// DownloadBytes drains a download into memory and closes it.
func DownloadBytes(t *testing.T, dl *apiclient.Download, err error) []byte {
	t.Helper()

	require.NoError(t, err, "Failed to download")
	defer func() { _ = dl.Body.Close() }()

	data, readErr := io.ReadAll(dl.Body)
	require.NoError(t, readErr, "Failed to read download body")

	return data
}
