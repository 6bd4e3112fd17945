package services

import (
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophdrive/internal/common"
)

// MaxNameLength is the longest accepted folder or file name in bytes.
const MaxNameLength = 255

// ValidateName trims surrounding whitespace and rejects names that cannot
// be stored as a path segment.
func ValidateName(name string) (string, error) {
	n := strings.TrimSpace(name)
	switch {
	case n == "", n == ".", n == "..":
		return "", common.ErrInvalidName
	case len(n) > MaxNameLength:
		return "", common.ErrInvalidName
	case !utf8.ValidString(n):
		return "", common.ErrInvalidName
	case strings.ContainsAny(n, "/\\\x00"):
		return "", common.ErrInvalidName
	}
	return n, nil
}
