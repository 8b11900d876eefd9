package tokens

import (
	"encoding/json"
	"testing"

	"github.com/kestrelcode/tinyagent/internal/provider"
)

func TestCountTextApproximatesWithinRatio(t *testing.T) {
	tests := []struct {
		s    string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2}, // 5 chars, ceil(5/4) = 2
		{"12345678", 2},
		{"123456789", 3},
	}
	for _, tt := range tests {
		if got := CountText(tt.s); got != tt.want {
			t.Errorf("CountText(%q) = %d, want %d", tt.s, got, tt.want)
		}
	}
}

func TestCountMessageIncludesReasoningAndToolCalls(t *testing.T) {
	m := provider.Message{
		Content:   "1234", // 1 token
		Reasoning: "12345678", // 2 tokens
		ToolCalls: []provider.ToolCall{
			{Name: "1234", Arguments: json.RawMessage(`"12345678"`)}, // "1234" -> 1, `"12345678"` (10 chars) -> 3
		},
	}
	// content "1234" -> 1, reasoning "12345678" -> 2, tool name "1234" -> 1,
	// arguments `"12345678"` (10 bytes incl. quotes) -> 3.
	const want = 1 + 2 + 1 + 3
	if got := CountMessage(m); got != want {
		t.Errorf("CountMessage = %d, want %d", got, want)
	}
}

func TestCountMessagesSumsAcrossSlice(t *testing.T) {
	msgs := []provider.Message{
		{Content: "1234"},
		{Content: "12345678"},
	}
	const want = 1 + 2 // "1234" -> 1, "12345678" -> 2
	if got := CountMessages(msgs); got != want {
		t.Errorf("CountMessages = %d, want %d", got, want)
	}
}
