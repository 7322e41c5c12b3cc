// Package connector links chat platforms to the desk. A Connector moves
// messages in and out of a platform; Conversations keeps per-chat state and
// decides which mode answers each message.
package connector

import (
	"context"
	"strings"
)

// Connector is a chat platform the desk answers on.
type Connector interface {
	Name() string
	// Start receives messages until ctx is cancelled.
	Start(ctx context.Context) error
	Stop() error
	// Send delivers a reply. Content is Markdown; the connector converts it
	// to whatever the platform renders.
	Send(ctx context.Context, msg OutboundMessage) error
}

// InboundMessage is a user message received from a platform.
type InboundMessage struct {
	Channel  string // connector name, e.g. "telegram"
	SenderID string
	ChatID   string // conversation key; history is kept per ChatID
	Content  string
}

// Command returns the leading /command (lowercased, @botname removed) and
// the text after it. Plain messages have no command.
func (m InboundMessage) Command() (cmd, args string) {
	text := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, args, _ = strings.Cut(text, " ")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// OutboundMessage is the desk's answer to one InboundMessage.
type OutboundMessage struct {
	ChatID  string
	Content string
}

// InboundHandler answers messages received by a Connector.
type InboundHandler func(ctx context.Context, msg InboundMessage) error
