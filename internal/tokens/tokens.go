// Package tokens approximates token counts for budgeting purposes. It does
// not attempt exact provider tokenization — an approximation within ±15% of
// the true count is sufficient for the context-budget arithmetic that
// consumes it.
package tokens

import "github.com/kestrelcode/tinyagent/internal/provider"

// charsPerToken is the approximation ratio used when no provider-specific
// tokenizer is available.
const charsPerToken = 4

// CountText returns the approximate token count of a string.
func CountText(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / charsPerToken
	if len(s)%charsPerToken != 0 {
		n++
	}
	return n
}

// CountMessage returns the approximate token count of a single message,
// including its tool-call arguments when present.
func CountMessage(m provider.Message) int {
	n := CountText(m.Content) + CountText(m.Reasoning)
	for _, tc := range m.ToolCalls {
		n += CountText(tc.Name) + CountText(string(tc.Arguments))
	}
	return n
}

// CountMessages returns the approximate token count of a message slice.
func CountMessages(msgs []provider.Message) int {
	total := 0
	for _, m := range msgs {
		total += CountMessage(m)
	}
	return total
}
