package yadisk

import (
	"fmt"
	"regexp"
	"strings"
)

// Public shares come in two shapes: /d/ for directories and /i/ for
// single files. Either domain serves both.
var publicURLPattern = regexp.MustCompile(`^https://disk\.yandex\.(ru|com)/(d|i)/[A-Za-z0-9_-]+$`)

// PublicRef is a validated public share URL. The URL itself is what the
// API expects as the public_key query parameter.
type PublicRef string

func ParsePublicURL(raw string) (PublicRef, error) {
	raw = strings.TrimSpace(raw)
	if !publicURLPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, raw)
	}
	return PublicRef(raw), nil
}

func (r PublicRef) String() string {
	return string(r)
}

// Key returns the trailing identifier of the share URL, used as the
// default output directory name.
func (r PublicRef) Key() string {
	s := string(r)
	return s[strings.LastIndex(s, "/")+1:]
}
