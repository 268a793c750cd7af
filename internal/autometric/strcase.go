package autometric

import (
	"strings"
	"unicode"
)

// delimitedCase converts CamelCase identifier to lower case words joined by delim.
//
// Existing separators (spaces, '_', '-', '.') are collapsed into a single delim.
func delimitedCase(s string, delim rune) string {
	s = strings.TrimSpace(s)
	if !needsConversion(s, delim) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + 8)

	var prev, curr rune
	for i, next := range s {
		switch {
		case isDelim(curr):
			if !isDelim(prev) {
				sb.WriteRune(delim)
			}
		case isUpper(curr):
			if isLower(prev) ||
				(isUpper(prev) && isLower(next)) ||
				(isDigit(prev) && isAlpha(next)) {
				sb.WriteRune(delim)
			}
			sb.WriteRune(unicode.ToLower(curr))
		case i != 0:
			sb.WriteRune(unicode.ToLower(curr))
		}
		prev = curr
		curr = next
	}

	if s != "" {
		if isUpper(curr) && isLower(prev) {
			sb.WriteRune(delim)
		}
		sb.WriteRune(unicode.ToLower(curr))
	}

	return sb.String()
}

func needsConversion(s string, delim rune) bool {
	for _, c := range s {
		if isUpper(c) || (isDelim(c) && c != delim) {
			return true
		}
	}
	return false
}

func isDelim(ch rune) bool {
	return unicode.IsSpace(ch) || ch == '_' || ch == '-' || ch == '.'
}

func isAlpha(ch rune) bool {
	return isUpper(ch) || isLower(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isUpper(ch rune) bool {
	return ch >= 'A' && ch <= 'Z'
}

func isLower(ch rune) bool {
	return ch >= 'a' && ch <= 'z'
}
