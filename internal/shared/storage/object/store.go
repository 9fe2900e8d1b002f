package object

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"resuradar/internal/shared/util"
)

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ObjectStore saves and retrieves uploaded résumé files.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// UploadKey builds the storage key for a user's upload:
// resumes/<user hash>/<yyyy>/<mm>/<uuid>_<file name>.
func UploadKey(userID, fileName string, now time.Time) string {
	name := util.SanitizeFileName(fileName)
	return path.Join(
		"resumes",
		util.HashUserKey(userID),
		now.UTC().Format("2006"),
		now.UTC().Format("01"),
		uuid.NewString()+"_"+name,
	)
}

// CleanKey normalizes a key and rejects absolute or parent-relative paths.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if clean == "." || strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
