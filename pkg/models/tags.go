package models

import (
	"strings"
	"unicode"
)

// ExtractTags parses hashtags out of a caption. A tag token starts at '#'
// and ends at the next whitespace or '#'. Tags are case-folded and returned
// without the leading '#'; empty tokens are dropped.
func ExtractTags(caption string) map[string]struct{} {
	tags := make(map[string]struct{})

	var current strings.Builder
	inTag := false

	flush := func() {
		if inTag && current.Len() > 0 {
			tags[strings.ToLower(current.String())] = struct{}{}
		}
		current.Reset()
	}

	for _, r := range caption {
		switch {
		case r == '#':
			flush()
			inTag = true
		case unicode.IsSpace(r):
			flush()
			inTag = false
		case inTag:
			current.WriteRune(r)
		}
	}
	flush()

	return tags
}

// NormalizeTag lowercases a hashtag and strips a leading '#'.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(tag, "#"))
}
