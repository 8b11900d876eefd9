package composer

import (
	"testing"

	"github.com/kestrelcode/tinyagent/internal/memory"
	"github.com/kestrelcode/tinyagent/internal/provider"
)

func msg(role, content string) provider.Message {
	return provider.Message{Role: role, Content: content}
}

func toolCallMsg(id string) provider.Message {
	return provider.Message{
		Role:      "assistant",
		ToolCalls: []provider.ToolCall{{ID: id, Name: "read_file", Arguments: []byte(`{}`)}},
	}
}

func toolResultMsg(id, content string) provider.Message {
	return provider.Message{Role: "tool", ToolCallID: id, Content: content}
}

func TestComposeAlwaysLeadsWithSystemMessage(t *testing.T) {
	out, _, _ := Compose("you are an agent", nil, nil, 8000, 0)
	if len(out) == 0 || out[0].Role != "system" || out[0].Content != "you are an agent" {
		t.Fatalf("expected first message to be the system prompt, got %+v", out)
	}
}

func TestComposeOmitsMemoryBlockWhenNoneSelected(t *testing.T) {
	out, stats, _ := Compose("sys", nil, []provider.Message{msg("user", "hi")}, 8000, 0)
	for _, m := range out {
		if m.Role == "system" && m.Content != "sys" {
			t.Fatalf("did not expect a memory system block, got %+v", out)
		}
	}
	if stats.MemoriesIncluded != 0 {
		t.Fatalf("expected 0 memories included, got %d", stats.MemoriesIncluded)
	}
}

func TestComposeInsertsMemoryBlockBetweenSystemAndHistory(t *testing.T) {
	mems := []memory.Memory{{ID: "1", Content: "user prefers tabs", Category: memory.CategoryUser}}
	history := []provider.Message{msg("user", "hi")}

	out, stats, _ := Compose("sys", mems, history, 8000, 0)
	if len(out) < 3 {
		t.Fatalf("expected system + memory + conversation messages, got %+v", out)
	}
	if out[0].Content != "sys" {
		t.Fatalf("expected out[0] to be the stable system prompt, got %+v", out[0])
	}
	if out[1].Role != "system" {
		t.Fatalf("expected out[1] to be the memory block, got %+v", out[1])
	}
	if out[2].Role != "user" {
		t.Fatalf("expected out[2] to be the conversation history, got %+v", out[2])
	}
	if stats.MemoriesIncluded != 1 {
		t.Fatalf("expected 1 memory included, got %d", stats.MemoriesIncluded)
	}
}

// TestComposeTruncationStopsAtFirstMiss pins down the "stop on first miss"
// semantics: once a unit walking newest-to-oldest doesn't fit the
// conversation budget, every older unit is dropped too, even if an older,
// smaller unit would individually have fit. This keeps the surviving
// history a contiguous, recent tail instead of a gapped patchwork.
func TestComposeTruncationStopsAtFirstMiss(t *testing.T) {
	// A long middle message that won't fit once budget is tight, preceded
	// by a short, older message that would fit on its own — but should
	// still be dropped because it is OLDER than the big one that missed.
	history := []provider.Message{
		msg("user", "short old one"),         // oldest
		msg("assistant", repeatString("x", 4000)), // big, will miss
		msg("user", "hi"),                     // newest, small, fits alone
	}

	// maxContextTokens tuned so conversationBudget is small enough that the
	// big middle message can't fit, but the system prompt + reserve leaves
	// just enough room for the single newest message.
	out, stats, truncated := Compose("sys", nil, history, 1300, 0)

	if !truncated {
		t.Fatal("expected truncation to be reported")
	}
	// Only the newest message should survive: system prompt + newest user msg.
	if len(out) != 2 {
		t.Fatalf("expected exactly 2 messages (system + newest), got %d: %+v", len(out), out)
	}
	if out[1].Content != "hi" {
		t.Fatalf("expected the surviving message to be the newest one, got %+v", out[1])
	}
	// Both the big missed unit and the older short unit must be counted as
	// dropped — a gapped walk would have kept "short old one" instead.
	if stats.MessagesDropped != 2 {
		t.Fatalf("expected 2 messages dropped, got %d", stats.MessagesDropped)
	}
}

// TestComposeKeepsToolCallGroupsAtomic covers the unit-grouping invariant:
// an assistant tool-call message and its tool-result messages must be
// included or dropped together, never split.
func TestComposeKeepsToolCallGroupsAtomic(t *testing.T) {
	history := []provider.Message{
		toolCallMsg("call1"),
		toolResultMsg("call1", "result"),
	}
	units := groupHistory(history)
	if len(units) != 1 {
		t.Fatalf("expected the tool call and its result to form one unit, got %d units", len(units))
	}
	if len(units[0].messages) != 2 {
		t.Fatalf("expected the unit to hold both messages, got %d", len(units[0].messages))
	}
}

func TestComposeMemoryBudgetCapsIncludedMemories(t *testing.T) {
	mems := []memory.Memory{
		{ID: "1", Content: repeatString("a", 4000), Category: memory.CategoryUser},
		{ID: "2", Content: "short", Category: memory.CategoryUser},
	}
	_, stats, truncated := Compose("sys", mems, nil, 1300, 0)
	if !truncated {
		t.Fatal("expected truncation when a memory exceeds its budget")
	}
	if stats.MemoriesDropped == 0 {
		t.Fatal("expected at least one memory to be dropped")
	}
}

func repeatString(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
