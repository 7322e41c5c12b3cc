// Package history keeps conversations inside a model's token budget.
package history

import "github.com/newsdesk-io/newsdesk/pkg/protocol"

// Trim returns the system prompt (msgs[0]) followed by the most recent
// messages that fit in budget, in their original order. Older messages are
// dropped from the first one that would overflow. The system prompt is kept
// even when it alone exceeds the budget. msgs is not modified.
func Trim(msgs []protocol.ChatMessage, budget int, counter Counter) []protocol.ChatMessage {
	if len(msgs) == 0 {
		return nil
	}
	if counter == nil {
		counter = DefaultCounter
	}

	total := counter.Count(msgs[0].Content)
	start := len(msgs)
	for i := len(msgs) - 1; i >= 1; i-- {
		n := counter.Count(msgs[i].Content)
		if total+n > budget {
			break
		}
		total += n
		start = i
	}

	out := make([]protocol.ChatMessage, 0, 1+len(msgs)-start)
	out = append(out, msgs[0])
	return append(out, msgs[start:]...)
}
