package storage

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strings"
	"time"
)

var ErrInvalidPath = errors.New("invalid storage path")

type SignedURL struct {
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Storage is the object store holding product images and customer designs.
type Storage interface {
	SignedUploadURL(ctx context.Context, objectPath string) (*SignedURL, error)
	SignedReadURL(ctx context.Context, objectPath string) (*SignedURL, error)
	Delete(ctx context.Context, objectPath string) error
	PublicURL(objectPath string) string
	// ObjectPath extracts the object path from a URL produced by PublicURL.
	ObjectPath(publicURL string) (string, bool)
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFilename keeps the base name of filename restricted to a safe character set.
func SanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-.")
	if base == "" {
		return "file"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return base
}

// JoinPath builds an object path from segments, rejecting traversal.
func JoinPath(segments ...string) (string, error) {
	cleaned := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s == "" || s == "." || s == ".." || strings.Contains(s, "..") {
			return "", ErrInvalidPath
		}
		cleaned = append(cleaned, s)
	}
	return strings.Join(cleaned, "/"), nil
}

// ParseObjectPath returns the object path of rawURL when it starts with baseURL.
func ParseObjectPath(baseURL, rawURL string) (string, bool) {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(rawURL, base+"/")
	if !ok {
		return "", false
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" || strings.Contains(rest, "..") {
		return "", false
	}
	return rest, true
}
