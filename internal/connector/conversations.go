package connector

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/newsdesk-io/newsdesk/internal/history"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// DefaultMaxHistory is the number of messages replayed into each new agent.
const DefaultMaxHistory = 20

const (
	newConversationReply = "Starting a new conversation. Send me your question!"
	researchUsageReply   = "Usage: /research <question>"
)

// HelpText lists the chat commands.
const HelpText = `Available commands:
/new - Start a new conversation
/research <question> - Answer from local documents and live web search
/help - Show this help message

Any other message is answered by the news agent.`

// Desk is what Conversations needs to answer messages.
type Desk interface {
	Query(ctx context.Context, query string, prior []protocol.ChatMessage) string
	Research(ctx context.Context, query string, mem *history.Memory) string
	NewMemory() *history.Memory
}

// chat is the state of one platform chat.
type chat struct {
	mu       sync.Mutex // one turn at a time per chat
	history  *history.Memory
	research *history.Memory
}

// Conversations keeps per-chat history and routes each message to a fresh
// tool agent or to the research loop. Chats are independent; turns in the
// same chat never overlap. Connectors keep arrival order with a ChatQueue.
type Conversations struct {
	desk       Desk
	logger     *slog.Logger
	maxHistory int

	mu    sync.Mutex
	chats map[string]*chat
}

// NewConversations creates a router. maxHistory <= 0 uses DefaultMaxHistory.
func NewConversations(desk Desk, maxHistory int, logger *slog.Logger) *Conversations {
	if logger == nil {
		logger = slog.Default()
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Conversations{
		desk:       desk,
		logger:     logger,
		maxHistory: maxHistory,
		chats:      make(map[string]*chat),
	}
}

// Reply answers one inbound message.
func (c *Conversations) Reply(ctx context.Context, msg InboundMessage) string {
	text := strings.TrimSpace(msg.Content)
	cmd, args := msg.Command()

	switch cmd {
	case "/start", "/new":
		c.Reset(msg.ChatID)
		return newConversationReply
	case "/help":
		return HelpText
	case "/research":
		if args == "" {
			return researchUsageReply
		}
		ch := c.chat(msg.ChatID)
		ch.mu.Lock()
		defer ch.mu.Unlock()
		c.logger.Info("research request", "chat_id", msg.ChatID, "channel", msg.Channel)
		return c.desk.Research(ctx, args, ch.research)
	}

	ch := c.chat(msg.ChatID)
	ch.mu.Lock()
	defer ch.mu.Unlock()
	c.logger.Info("query", "chat_id", msg.ChatID, "channel", msg.Channel, "history", ch.history.Len())
	answer := c.desk.Query(ctx, text, ch.history.Messages())
	ch.history.Add(text, answer)
	return answer
}

// Handler adapts Reply to an InboundHandler that sends through send.
func (c *Conversations) Handler(send func(ctx context.Context, msg OutboundMessage) error) InboundHandler {
	return func(ctx context.Context, msg InboundMessage) error {
		reply := c.Reply(ctx, msg)
		return send(ctx, OutboundMessage{ChatID: msg.ChatID, Content: reply})
	}
}

// Reset forgets a chat's history.
func (c *Conversations) Reset(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.chats, chatID)
}

// Len returns the number of chats with state.
func (c *Conversations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chats)
}

func (c *Conversations) chat(id string) *chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.chats[id]
	if !ok {
		ch = &chat{history: history.NewMemory(c.maxHistory), research: c.desk.NewMemory()}
		c.chats[id] = ch
	}
	return ch
}
