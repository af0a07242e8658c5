// Package tokens provides rough token estimation so oversized prompts can be
// flagged before a generation round starts. The byte-based chars/4 heuristic
// is deliberately model-agnostic.
package tokens

import "fmt"

// charsPerToken is the divisor for the byte-based estimator (roughly 4 bytes
// per token for typical English/code).
const charsPerToken = 4

// DefaultResponseReserve is the number of tokens assumed for the model's
// response when checking a prompt against a context limit. Whole-file output
// needs a large reserve.
const DefaultResponseReserve = 8192

// Estimate returns an estimated token count for text: (len+3)/4 bytes, so
// 0 bytes map to 0 tokens, 1-4 to 1, 5-8 to 2, and so on.
func Estimate(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// Warn returns a non-empty message when promptTokens plus the response
// reserve reaches or exceeds contextLimit. A non-positive contextLimit
// disables the check.
func Warn(promptTokens, contextLimit int) string {
	if contextLimit <= 0 || promptTokens < 0 {
		return ""
	}
	total := promptTokens + DefaultResponseReserve
	if total < contextLimit {
		return ""
	}
	return fmt.Sprintf("prompt is near the context limit: estimated %d of %d tokens including the response reserve",
		total, contextLimit)
}
