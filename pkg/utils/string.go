package utils

// Truncate shortens s to at most maxLen runes, appending "..." when anything
// was cut. Multi-byte characters are never split.
func Truncate(s string, maxLen int) string {
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
