package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"cv.pdf", "cv.pdf"},
		{"  My CV.pdf ", "My_CV.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\ada\résumé.docx`, "r_sum_.docx"},
		{"..", "resume"},
		{"", "resume"},
		{"/", "resume"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
