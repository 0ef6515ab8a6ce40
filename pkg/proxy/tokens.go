package proxy

import (
	"strings"
	"unicode/utf8"
)

// EstimateTokens returns a deterministic token estimate for text: the mean
// of a character-based estimate (4 characters per token, floored at 1) and
// a word-based estimate (1.3 tokens per word), never less than 1.
//
// The estimate feeds telemetry and usage accounting only; it never gates a
// request. Identical text always yields an identical estimate.
func EstimateTokens(text string) int {
	chars := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))

	charEst := chars / 4
	if charEst < 1 {
		charEst = 1
	}
	est := (charEst + int(float64(words)*1.3)) / 2
	if est < 1 {
		est = 1
	}
	return est
}

// CompletionTokens estimates tokens in a completion. An empty completion
// is zero tokens, unlike a prompt which always costs at least one.
func CompletionTokens(text string) int {
	if text == "" {
		return 0
	}
	return EstimateTokens(text)
}
