package util

import (
	"path"
	"strings"
)

const maxFileNameLen = 100

// SanitizeFileName reduces a client-supplied name to a safe single path segment.
// Unsafe characters become underscores; an empty result falls back to "resume".
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > maxFileNameLen {
		out = out[len(out)-maxFileNameLen:]
	}
	if out == "" {
		return "resume"
	}
	return out
}
