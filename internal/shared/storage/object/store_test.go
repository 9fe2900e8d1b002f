package object

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestUploadKeyLayout(t *testing.T) {
	now := time.Date(2026, 4, 9, 12, 0, 0, 0, time.UTC)
	key := UploadKey("google:1", "../My CV.pdf", now)

	parts := strings.Split(key, "/")
	if len(parts) != 5 {
		t.Fatalf("expected 5 segments, got %q", key)
	}
	if parts[0] != "resumes" || parts[2] != "2026" || parts[3] != "04" {
		t.Fatalf("unexpected key %q", key)
	}
	if len(parts[1]) != 64 {
		t.Fatalf("expected hashed user segment, got %q", parts[1])
	}
	if !strings.HasSuffix(parts[4], "_My_CV.pdf") {
		t.Fatalf("expected sanitized file name suffix, got %q", parts[4])
	}
	if UploadKey("google:1", "cv.pdf", now) == UploadKey("google:1", "cv.pdf", now) {
		t.Fatalf("keys must be unique per upload")
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "resumes/a/b.pdf", want: "resumes/a/b.pdf"},
		{key: "resumes//a/./b.pdf", want: "resumes/a/b.pdf"},
		{key: `resumes\a\b.pdf`, want: "resumes/a/b.pdf"},
		{key: "", wantErr: true},
		{key: ".", wantErr: true},
		{key: "../etc/passwd", wantErr: true},
		{key: "/etc/passwd", wantErr: true},
		{key: "resumes/../../x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.key)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q): expected ErrInvalidKey, got %q, %v", tt.key, got, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", tt.key, got, err, tt.want)
		}
	}
}
