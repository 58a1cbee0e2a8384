package apiclient

import (
	"io"
	"mime"
)

// VersionHistoryResponse lists the stored versions of a file, newest
// first.
type VersionHistoryResponse struct {
	FileID   string           `json:"file_id"`
	GroupID  string           `json:"group_id"`
	Filename string           `json:"filename"`
	Versions []VersionSummary `json:"versions"`
}

// Download is a streamed file download. The caller must close Body.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// VersionHistory returns the version history of a file.
func (c *Client) VersionHistory(groupID, fileID string) (*VersionHistoryResponse, error) {
	return getResource[VersionHistoryResponse](c, resourcePath("/file/version_history/%s/%s", groupID, fileID))
}

// DeleteFile deletes a file and all its stored versions.
func (c *Client) DeleteFile(groupID, fileID string) (*ActionResponse, error) {
	return createResource[ActionResponse](c, resourcePath("/file/delete/%s/%s", groupID, fileID), nil)
}

// DownloadLatest downloads the current content of a file. The server
// redirects the stable link to its latest version; the redirect is
// followed.
func (c *Client) DownloadLatest(groupID, fileID string) (*Download, error) {
	return c.download(resourcePath("/file/download/%s/%s", groupID, fileID))
}

// DownloadVersion downloads one specific version of a file.
func (c *Client) DownloadVersion(groupID, fileID, versionID string) (*Download, error) {
	return c.download(resourcePath("/file/%s/%s/version/%s", groupID, fileID, versionID))
}

// DownloadBundle downloads a zip archive of every version of every file
// in the group.
func (c *Client) DownloadBundle(groupID string) (*Download, error) {
	return c.download(resourcePath("/file/zip/%s", groupID))
}

func (c *Client) download(path string) (*Download, error) {
	resp, err := c.getStream(path)
	if err != nil {
		return nil, err
	}

	d := &Download{
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		d.Filename = params["filename"]
	}
	return d, nil
}
