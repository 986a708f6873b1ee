package catalog

import (
	"regexp"
	"strings"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
)

// ToSlug lower-cases s, drops everything outside [a-z0-9 -], trims it and
// replaces whitespace runs with a single hyphen.
func ToSlug(s string) string {
	slug := strings.ToLower(s)
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = strings.TrimSpace(slug)
	return slugWhitespace.ReplaceAllString(slug, "-")
}
