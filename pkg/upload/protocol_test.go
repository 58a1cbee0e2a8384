package upload

import (
	"errors"
	"testing"
)

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"passthrough", "abc-123_XY", "abc-123_XY"},
		{"spaces", "my upload id", "my_upload_id"},
		{"path separators", "../../etc/passwd", "______etc_passwd"},
		{"dots", "a.b.c", "a_b_c"},
		{"non-ascii", "载荷-1", "__-1"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeIdentifier(tt.in); got != tt.want {
				t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMergeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"strips directories", "a/b/report.pdf", "report.pdf"},
		{"digits with extension", "42.bin", "42.bin"},
		{"pure digits", "42", "merged.out"},
		{"un-complete suffix", "3.un-complete", "merged.out"},
		{"empty", "", "merged.out"},
		{"dot", ".", "merged.out"},
		{"dotdot", "..", "merged.out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeName(tt.in); got != tt.want {
				t.Errorf("mergeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateIngest(t *testing.T) {
	valid := Request{
		Identifier:       "upload-1",
		ChunkNumber:      1,
		Filename:         "file.txt",
		TotalChunks:      3,
		TotalSize:        30,
		CurrentChunkSize: 10,
	}

	if err := validateIngest(valid); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing identifier", func(r *Request) { r.Identifier = "" }},
		{"zero chunk number", func(r *Request) { r.ChunkNumber = 0 }},
		{"negative chunk number", func(r *Request) { r.ChunkNumber = -2 }},
		{"zero total chunks", func(r *Request) { r.TotalChunks = 0 }},
		{"negative total size", func(r *Request) { r.TotalSize = -1 }},
		{"zero current chunk size", func(r *Request) { r.CurrentChunkSize = 0 }},
		{"missing filename", func(r *Request) { r.Filename = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := validateIngest(req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}
