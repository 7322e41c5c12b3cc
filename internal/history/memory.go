package history

import (
	"strings"
	"sync"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// Memory is a bounded transcript of past exchanges. When more than Max
// messages are held the oldest are discarded.
type Memory struct {
	mu   sync.Mutex
	max  int
	msgs []protocol.ChatMessage
}

// NewMemory creates a memory holding at most max messages. max <= 0 means
// unbounded.
func NewMemory(max int) *Memory {
	return &Memory{max: max}
}

// Add records one user/assistant exchange.
func (m *Memory) Add(user, assistant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs,
		protocol.ChatMessage{Role: protocol.RoleUser, Content: user},
		protocol.ChatMessage{Role: protocol.RoleAssistant, Content: assistant},
	)
	if m.max > 0 && len(m.msgs) > m.max {
		m.msgs = append([]protocol.ChatMessage(nil), m.msgs[len(m.msgs)-m.max:]...)
	}
}

// Messages returns a copy of the held messages, oldest first.
func (m *Memory) Messages() []protocol.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]protocol.ChatMessage(nil), m.msgs...)
}

// Len returns the number of held messages.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

// Reset forgets everything.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = nil
}

// Transcript renders the memory as "role: content" lines.
func (m *Memory) Transcript() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.msgs))
	for i, msg := range m.msgs {
		lines[i] = msg.Role + ": " + msg.Content
	}
	return strings.Join(lines, "\n")
}
