package series

import "strings"

// LabelName converts attribute key or metric name to Prometheus label name.
func LabelName(key string) string {
	isDigit := func(r rune) bool {
		return r >= '0' && r <= '9'
	}
	isAlpha := func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}

	var label strings.Builder
	for i, r := range key {
		switch {
		case isDigit(r):
			// Label could not start with digit.
			if i == 0 {
				label.WriteString("_")
				goto slow
			}
		case r == '_' || isAlpha(r):
		default:
			label.WriteString(key[:i])
			key = key[i:]
			goto slow
		}
	}
	return key
slow:
	for _, r := range key {
		if r == '_' || isDigit(r) || isAlpha(r) {
			label.WriteRune(r)
			continue
		}
		label.WriteByte('_')
	}
	return label.String()
}
