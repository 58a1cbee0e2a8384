package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// maxFieldBytes bounds the size of a single non-file multipart field.
const maxFieldBytes = 64 << 10

// decodeJSONBody decodes the request body into v. On bad input it writes
// the 400 itself and returns false, so callers just return.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// filePart walks a multipart body part by part, collecting ordinary form
// fields until it reaches the part named fileField. It returns the fields
// seen so far and the file part positioned for streaming; the caller must
// close the part. A nil part with a nil error means the body held no part
// with that name. Fields after the file part are never read, so clients
// must send their metadata first (resumable.js and plain HTML forms do).
func filePart(r *http.Request, fileField string) (url.Values, *multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, err
	}

	fields := url.Values{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return fields, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		if part.FormName() == fileField {
			return fields, part, nil
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		part.Close()
		if err != nil {
			return nil, nil, err
		}
		fields.Set(part.FormName(), string(value))
	}
}

// fieldOrQuery reads a parameter from the collected form fields, falling
// back to the URL query string.
func fieldOrQuery(fields url.Values, r *http.Request, key string) string {
	if v := fields.Get(key); v != "" {
		return v
	}
	return r.URL.Query().Get(key)
}

func formInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func formInt64(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
