package validators

import (
	"strings"
	"unicode/utf8"
)

// MaxSearchLength bounds free-text query parameters.
const MaxSearchLength = 200

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		trimmed = trimmed[:maxLen]
		// drop a rune split by the cut
		for len(trimmed) > 0 && !utf8.ValidString(trimmed) {
			trimmed = trimmed[:len(trimmed)-1]
		}
	}
	return trimmed
}
