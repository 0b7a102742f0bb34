package validators

import "strings"

// SanitizeString trims surrounding whitespace and caps the value at maxLen
// bytes. A maxLen of zero disables the cap.
func SanitizeString(input string, maxLen int) string {
	s := strings.TrimSpace(input)
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
