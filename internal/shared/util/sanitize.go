package util

import (
	"errors"
	"strings"
)

const maxSegmentLen = 64

// ErrInvalidSegment is returned when nothing usable is left of a key segment.
var ErrInvalidSegment = errors.New("invalid key segment")

// KeySegment turns a user supplied name (a survey scope, typically) into a
// single object key segment. Letters, digits, '.', '_' and '-' are kept,
// every other run of characters becomes one '-'. Results made only of dots
// are rejected so the segment can never walk up a directory.
func KeySegment(name string) (string, error) {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > maxSegmentLen {
		s = strings.TrimRight(s[:maxSegmentLen], "-")
	}
	if strings.Trim(s, ".") == "" {
		return "", ErrInvalidSegment
	}
	return s, nil
}
