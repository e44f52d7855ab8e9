// Package util provides utility functions for content hashing, URL slugs, and civil dates.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// Slugs are lowercase alphanumerics and hyphens, 3 to 64 characters,
// never starting or ending with a hyphen.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)

func IsValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from free text, for example a display name.
// The result is not guaranteed to be valid; callers still check IsValidSlug.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = nonSlugRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 64 {
		s = strings.TrimRight(s[:64], "-")
	}
	return s
}

// ParseCivilDate parses a yyyy-mm-dd form value into a UTC midnight instant.
func ParseCivilDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatCivilDate renders a date for yyyy-mm-dd form inputs. Nil gives "".
func FormatCivilDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
