// Package toolresult truncates tool output before it re-enters the
// conversation, so a single verbose tool call cannot exhaust the context
// window on its own.
package toolresult

import (
	"fmt"

	agentcontext "github.com/kaivyy/agentd/internal/context"
)

// defaultMaxShare is the fraction of a model's total context a single tool
// result may occupy before it gets truncated.
const defaultMaxShare = 0.3

// keepShare is the fraction of the threshold kept when a result is over
// budget, leaving headroom for the truncation notice itself.
const keepShare = 0.8

// Truncator bounds tool result size relative to a model's context window.
type Truncator struct {
	maxContextTokens int
	maxShare         float64
	threshold        int
}

// New builds a Truncator for a model with the given context window. maxShare
// defaults to 0.3 (30% of the context window) when zero or negative.
func New(maxContextTokens int, maxShare float64) *Truncator {
	if maxContextTokens <= 0 {
		maxContextTokens = agentcontext.DefaultContextWindow
	}
	if maxShare <= 0 {
		maxShare = defaultMaxShare
	}
	return &Truncator{
		maxContextTokens: maxContextTokens,
		maxShare:         maxShare,
		threshold:        int(float64(maxContextTokens) * maxShare),
	}
}

// Truncate trims result to the truncator's token threshold, appending a
// warning that names the tool and how much was cut. Results already under
// the threshold pass through unchanged.
func (t *Truncator) Truncate(result, toolName string) string {
	tokenCount := agentcontext.EstimateTokens(result)
	if tokenCount <= t.threshold {
		return result
	}

	keepTokens := int(float64(t.threshold) * keepShare)
	truncated := truncateToTokens(result, keepTokens)
	warning := fmt.Sprintf(
		"\n\n[Output truncated: %d tokens exceeds limit of %d for %s. Showing first %d tokens...]",
		tokenCount, t.threshold, toolName, keepTokens,
	)
	return truncated + warning
}

// truncateToTokens keeps roughly targetTokens worth of text, using the same
// conservative chars-per-token ratio as the rest of the context accounting.
func truncateToTokens(text string, targetTokens int) string {
	if targetTokens <= 0 {
		return ""
	}
	keepChars := int(float64(targetTokens) / agentcontext.TokensPerChar)
	runes := []rune(text)
	if keepChars >= len(runes) {
		return text
	}
	return string(runes[:keepChars])
}
