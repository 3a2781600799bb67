package assetgate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidObjectKey reports whether key can address an object on a
// filesystem-backed store without escaping its root.
//
// A valid key is non-empty relative UTF-8 with no empty, "." or ".." segments,
// no trailing slash, and none of: backslash, '?', '#', '~', control characters
// or whitespace.
func IsValidObjectKey(key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}

	if strings.ContainsAny(key, `\?#~`) {
		return false
	}

	for _, r := range key {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	for _, segment := range strings.Split(key, "/") {
		switch segment {
		case "", ".", "..":
			return false
		}
	}

	return true
}
