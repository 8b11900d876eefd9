// Package composer builds the message list sent to a provider on each Agent
// Loop iteration, splitting a token budget between relevant memories and
// conversation history so neither starves the other.
package composer

import (
	"github.com/kestrelcode/tinyagent/internal/memory"
	"github.com/kestrelcode/tinyagent/internal/provider"
	"github.com/kestrelcode/tinyagent/internal/tokens"
)

// reserveForResponse is held back from the budget to leave room for the
// model's own output.
const reserveForResponse = 1000

// memoryBudgetFraction is the share of the available budget memories may
// consume, after the response reserve and before conversation history.
const memoryBudgetFraction = 0.20

// ContextStats reports how the budget was spent, for diagnostics and the
// CLI's per-turn context-usage line.
type ContextStats struct {
	SystemTokens       int
	MemoryBudget       int
	MemoryTokens       int
	ConversationBudget int
	ConversationTokens int
	MemoriesIncluded   int
	MemoriesDropped    int
	MessagesIncluded   int
	MessagesDropped    int
}

// unit is an atomic slice of history that must be included or dropped as a
// whole — a lone message, or an assistant tool-call message together with
// its tool-result messages.
type unit struct {
	messages []provider.Message
	tokenCnt int
}

// Compose assembles the message list for one provider call. memories must
// already be ordered by relevance (e.g. the output of Store.FindRelevant);
// history must be in chronological order. maxMemoryTokens <= 0 means
// unbounded (limited only by the 20% fraction of the available budget).
func Compose(systemPrompt string, memories []memory.Memory, history []provider.Message, maxContextTokens, maxMemoryTokens int) ([]provider.Message, ContextStats, bool) {
	systemMsg := provider.Message{Role: "system", Content: systemPrompt}
	stats := ContextStats{SystemTokens: tokens.CountText(systemPrompt)}

	available := maxContextTokens - stats.SystemTokens - reserveForResponse
	if available <= 0 {
		return []provider.Message{systemMsg}, stats, true
	}

	memoryBudget := int(memoryBudgetFraction * float64(available))
	if maxMemoryTokens > 0 && maxMemoryTokens < memoryBudget {
		memoryBudget = maxMemoryTokens
	}
	conversationBudget := available - memoryBudget
	stats.MemoryBudget = memoryBudget
	stats.ConversationBudget = conversationBudget

	truncated := false

	selectedMemories := make([]memory.Memory, 0, len(memories))
	memTokens := 0
	for _, m := range memories {
		t := tokens.CountText(m.Content)
		if memTokens+t > memoryBudget {
			truncated = true
			continue
		}
		selectedMemories = append(selectedMemories, m)
		memTokens += t
	}
	stats.MemoriesIncluded = len(selectedMemories)
	stats.MemoriesDropped = len(memories) - len(selectedMemories)
	stats.MemoryTokens = memTokens

	units := groupHistory(history)

	var selectedUnits []unit
	remaining := conversationBudget
	messagesDropped := 0
	for i := len(units) - 1; i >= 0; i-- {
		u := units[i]
		if u.tokenCnt > remaining {
			truncated = true
			for _, dropped := range units[:i+1] {
				messagesDropped += len(dropped.messages)
			}
			break
		}
		selectedUnits = append(selectedUnits, u)
		remaining -= u.tokenCnt
	}
	// selectedUnits was built newest-first; reverse to chronological order.
	for i, j := 0, len(selectedUnits)-1; i < j; i, j = i+1, j-1 {
		selectedUnits[i], selectedUnits[j] = selectedUnits[j], selectedUnits[i]
	}

	convTokens := 0
	messagesIncluded := 0
	var convMessages []provider.Message
	for _, u := range selectedUnits {
		convMessages = append(convMessages, u.messages...)
		convTokens += u.tokenCnt
		messagesIncluded += len(u.messages)
	}
	stats.ConversationTokens = convTokens
	stats.MessagesIncluded = messagesIncluded
	stats.MessagesDropped = messagesDropped
	if messagesDropped > 0 {
		truncated = true
	}

	out := make([]provider.Message, 0, 2+len(convMessages))
	out = append(out, systemMsg)
	if len(selectedMemories) > 0 {
		out = append(out, provider.Message{Role: "system", Content: memory.ToContextString(selectedMemories)})
	}
	out = append(out, convMessages...)

	return out, stats, truncated
}

// groupHistory partitions chronological history into atomic units: a plain
// message stands alone, while an assistant message carrying tool calls is
// grouped with the run of "tool" role messages that immediately follow it
// so the pair can never be split by the budget walk.
func groupHistory(history []provider.Message) []unit {
	var units []unit
	i := 0
	for i < len(history) {
		m := history[i]
		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			group := []provider.Message{m}
			j := i + 1
			for j < len(history) && history[j].Role == "tool" {
				group = append(group, history[j])
				j++
			}
			units = append(units, unit{messages: group, tokenCnt: tokens.CountMessages(group)})
			i = j
			continue
		}
		units = append(units, unit{messages: []provider.Message{m}, tokenCnt: tokens.CountMessage(m)})
		i++
	}
	return units
}
