package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultChunkSize is the chunk size used when UploadOptions.ChunkSize
// is zero, matching the resumable.js default.
const DefaultChunkSize int64 = 1 << 20

// filePartName is the multipart part carrying chunk and file bodies.
const filePartName = "file"

// resumable.js parameter names, shared by probes and chunk uploads.
const (
	paramIdentifier       = "resumableIdentifier"
	paramChunkNumber      = "resumableChunkNumber"
	paramFilename         = "resumableFilename"
	paramTotalChunks      = "resumableTotalChunks"
	paramTotalSize        = "resumableTotalSize"
	paramCurrentChunkSize = "resumableCurrentChunkSize"
)

// UploadedResponse reports a committed upload.
type UploadedResponse struct {
	Success bool   `json:"success"`
	FileID  string `json:"file_id"`
	GroupID string `json:"group_id"`
}

// UploadOptions carries the optional upload metadata.
type UploadOptions struct {
	// FileID stores the content as a new version of an existing file.
	// UploadChunked only; the whole-file endpoints take the file ID as
	// an argument.
	FileID string

	Uploader    string
	Description string
	Comment     string

	// Identifier overrides the generated staging identifier, letting an
	// interrupted chunked upload resume under its old staging key.
	Identifier string

	// ChunkSize for chunked uploads. Defaults to DefaultChunkSize.
	ChunkSize int64

	// Resume probes for staged chunks and skips the ones already there.
	Resume bool
}

// formField is one multipart form field. Fields are sent as an ordered
// slice because the server reads metadata sequentially and stops at the
// file part.
type formField struct {
	name  string
	value string
}

// UploadFile uploads a whole file in one request and returns the
// committed file.
func (c *Client) UploadFile(groupID, filename string, content io.Reader, opts UploadOptions) (*UploadedResponse, error) {
	return c.wholeFile(resourcePath("/file/upload/%s", groupID), filename, content, opts)
}

// UploadVersion uploads a whole file as a new version of an existing
// file.
func (c *Client) UploadVersion(groupID, fileID, filename string, content io.Reader, opts UploadOptions) (*UploadedResponse, error) {
	return c.wholeFile(resourcePath("/file/upload_version/%s/%s", groupID, fileID), filename, content, opts)
}

func (c *Client) wholeFile(path, filename string, content io.Reader, opts UploadOptions) (*UploadedResponse, error) {
	resp, err := c.postMultipart(path, metadataFields(opts), filename, content)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp.StatusCode, respBody)
	}

	var uploaded UploadedResponse
	if err := json.Unmarshal(respBody, &uploaded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &uploaded, nil
}

// UploadChunked uploads content of a known size in resumable.js chunks.
// Every chunk is an independent request and the server merges once the
// set completes. The final chunk is always sent, even when Resume finds
// it staged, so the merge runs and the response carries the committed
// file ID.
func (c *Client) UploadChunked(groupID, filename string, content io.Reader, size int64, opts UploadOptions) (*UploadedResponse, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunked upload needs a positive size, got %d", size)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	identifier := opts.Identifier
	if identifier == "" {
		identifier = chunkIdentifier(size, filename)
	}
	totalChunks := int((size + chunkSize - 1) / chunkSize)

	buf := make([]byte, chunkSize)
	remaining := size
	for chunk := 1; chunk <= totalChunks; chunk++ {
		current := chunkSize
		if remaining < current {
			current = remaining
		}
		if _, err := io.ReadFull(content, buf[:current]); err != nil {
			return nil, fmt.Errorf("failed to read chunk %d: %w", chunk, err)
		}
		remaining -= current

		if opts.Resume && chunk < totalChunks {
			found, err := c.ProbeChunk(groupID, identifier, chunk)
			if err != nil {
				return nil, err
			}
			if found {
				continue
			}
		}

		fields := []formField{
			{"group_id", groupID},
			{paramIdentifier, identifier},
			{paramChunkNumber, strconv.Itoa(chunk)},
			{paramFilename, filename},
			{paramTotalChunks, strconv.Itoa(totalChunks)},
			{paramTotalSize, strconv.FormatInt(size, 10)},
			{paramCurrentChunkSize, strconv.FormatInt(current, 10)},
		}
		if opts.FileID != "" {
			fields = append(fields, formField{"file_id", opts.FileID})
		}
		fields = append(fields, metadataFields(opts)...)

		uploaded, merged, err := c.ingestChunk(fields, filename, bytes.NewReader(buf[:current]))
		if err != nil {
			return nil, err
		}
		if merged {
			return uploaded, nil
		}
	}

	return nil, fmt.Errorf("upload %s did not merge after %d chunks", identifier, totalChunks)
}

// ProbeChunk asks whether a staged chunk is already persisted, so an
// interrupted upload can skip resending it.
func (c *Client) ProbeChunk(groupID, identifier string, chunk int) (bool, error) {
	q := url.Values{}
	q.Set("group_id", groupID)
	q.Set(paramIdentifier, identifier)
	q.Set(paramChunkNumber, strconv.Itoa(chunk))

	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/file/upload?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNoContent:
		return false, nil
	default:
		return false, decodeError(resp.StatusCode, respBody)
	}
}

// ingestChunk posts one chunk. The server answers plain text until the
// final chunk completes the set, then JSON with the committed file.
func (c *Client) ingestChunk(fields []formField, filename string, chunk io.Reader) (*UploadedResponse, bool, error) {
	resp, err := c.postMultipart("/file/upload", fields, filename, chunk)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, false, decodeError(resp.StatusCode, respBody)
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return nil, false, nil
	}

	var uploaded UploadedResponse
	if err := json.Unmarshal(respBody, &uploaded); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}
	return &uploaded, true, nil
}

// postMultipart streams a multipart POST with the metadata fields ahead
// of the file part, the order the server reads them in.
func (c *Client) postMultipart(path string, fields []formField, filename string, content io.Reader) (*http.Response, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeParts(mw, fields, filename, content)
		if closeErr := mw.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		_ = pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func writeParts(mw *multipart.Writer, fields []formField, filename string, content io.Reader) error {
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile(filePartName, filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, content)
	return err
}

// metadataFields collects the optional descriptive fields. FileID is not
// included here; the chunk path sends it explicitly and the whole-file
// paths carry it in the URL.
func metadataFields(opts UploadOptions) []formField {
	var fields []formField
	if opts.Uploader != "" {
		fields = append(fields, formField{"uploader", opts.Uploader})
	}
	if opts.Description != "" {
		fields = append(fields, formField{"description", opts.Description})
	}
	if opts.Comment != "" {
		fields = append(fields, formField{"comment", opts.Comment})
	}
	return fields
}

// chunkIdentifier builds the default staging identifier the way
// resumable.js does: the size joined with the filename stripped to safe
// characters.
func chunkIdentifier(size int64, filename string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return -1
	}, filename)
	return fmt.Sprintf("%d-%s", size, cleaned)
}
