// Package tokens estimates generation-model token counts for context window
// management. The heuristic is ~4 characters per token, which is conservative
// for English text (actual is 3-5).
package tokens

// Estimate returns the estimated token count for text (ceiling division).
// Empty or whitespace-only text counts as zero tokens.
func Estimate(text string) int {
	if !hasContent(text) {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateAll returns per-text token estimates in input order.
func EstimateAll(texts []string) []int {
	counts := make([]int, len(texts))
	for i, t := range texts {
		counts[i] = Estimate(t)
	}
	return counts
}

// WouldExceed reports whether adding text to a running total would push it
// past maxTokens.
func WouldExceed(currentTokens int, text string, maxTokens int) bool {
	return currentTokens+Estimate(text) > maxTokens
}

// hasContent reports whether text contains any non-whitespace byte.
func hasContent(text string) bool {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return true
		}
	}
	return false
}
