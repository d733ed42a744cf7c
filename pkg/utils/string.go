package utils

// Truncate is a simple string truncate
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// EstimateTokens approximates a token count from raw text length. The 4:1
// bytes-to-token ratio tracks English prose closely enough for prompt sizing.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}
