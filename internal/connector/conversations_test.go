package connector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/newsdesk-io/newsdesk/internal/history"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

type fakeDesk struct {
	mu       sync.Mutex
	prior    [][]protocol.ChatMessage
	research []string
	mems     []*history.Memory
}

func (f *fakeDesk) Query(_ context.Context, query string, prior []protocol.ChatMessage) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prior = append(f.prior, prior)
	return "answer: " + query
}

func (f *fakeDesk) Research(_ context.Context, query string, mem *history.Memory) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.research = append(f.research, query)
	f.mems = append(f.mems, mem)
	mem.Add(query, "found")
	return "found"
}

func (f *fakeDesk) NewMemory() *history.Memory { return history.NewMemory(0) }

func msg(chatID, text string) InboundMessage {
	return InboundMessage{Channel: "test", SenderID: "u1", ChatID: chatID, Content: text}
}

func TestConversations_HistoryPerChat(t *testing.T) {
	desk := &fakeDesk{}
	c := NewConversations(desk, 0, nil)
	ctx := context.Background()

	if got := c.Reply(ctx, msg("1", "first")); got != "answer: first" {
		t.Fatalf("unexpected reply %q", got)
	}
	c.Reply(ctx, msg("1", "second"))
	c.Reply(ctx, msg("2", "other chat"))

	if len(desk.prior[0]) != 0 {
		t.Errorf("first turn should have no history, got %d", len(desk.prior[0]))
	}
	if len(desk.prior[1]) != 2 || desk.prior[1][0].Content != "first" || desk.prior[1][1].Content != "answer: first" {
		t.Errorf("second turn should see the first exchange, got %+v", desk.prior[1])
	}
	if len(desk.prior[2]) != 0 {
		t.Errorf("another chat should start empty, got %d", len(desk.prior[2]))
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 chats, got %d", c.Len())
	}
}

func TestConversations_HistoryIsBounded(t *testing.T) {
	desk := &fakeDesk{}
	c := NewConversations(desk, 4, nil)
	for _, q := range []string{"a", "b", "c", "d"} {
		c.Reply(context.Background(), msg("1", q))
	}
	if n := len(desk.prior[3]); n != 4 {
		t.Errorf("expected history capped at 4 messages, got %d", n)
	}
}

func TestConversations_NewResetsHistory(t *testing.T) {
	desk := &fakeDesk{}
	c := NewConversations(desk, 0, nil)
	ctx := context.Background()

	c.Reply(ctx, msg("1", "hello"))
	if got := c.Reply(ctx, msg("1", "/new")); got != newConversationReply {
		t.Errorf("unexpected reply %q", got)
	}
	c.Reply(ctx, msg("1", "again"))
	if n := len(desk.prior[1]); n != 0 {
		t.Errorf("expected empty history after /new, got %d", n)
	}
}

func TestConversations_Research(t *testing.T) {
	desk := &fakeDesk{}
	c := NewConversations(desk, 0, nil)
	ctx := context.Background()

	if got := c.Reply(ctx, msg("1", "/research@newsdesk_bot   who won?")); got != "found" {
		t.Fatalf("unexpected reply %q", got)
	}
	c.Reply(ctx, msg("1", "/research and then?"))

	if len(desk.research) != 2 || desk.research[0] != "who won?" {
		t.Errorf("unexpected research queries %q", desk.research)
	}
	if desk.mems[0] != desk.mems[1] {
		t.Error("research memory should persist within a chat")
	}
	if desk.mems[1].Len() != 4 {
		t.Errorf("expected 2 exchanges in research memory, got %d messages", desk.mems[1].Len())
	}
	if len(desk.prior) != 0 {
		t.Error("research should not call the tool agent")
	}
}

func TestConversations_Commands(t *testing.T) {
	c := NewConversations(&fakeDesk{}, 0, nil)
	ctx := context.Background()

	if got := c.Reply(ctx, msg("1", "/help")); got != HelpText {
		t.Errorf("unexpected help %q", got)
	}
	if got := c.Reply(ctx, msg("1", "/research")); got != researchUsageReply {
		t.Errorf("unexpected usage %q", got)
	}
}

func TestConversations_Handler(t *testing.T) {
	c := NewConversations(&fakeDesk{}, 0, nil)
	var sent []OutboundMessage
	h := c.Handler(func(_ context.Context, m OutboundMessage) error {
		sent = append(sent, m)
		return nil
	})

	if err := h(context.Background(), msg("42", "hi")); err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 || sent[0].ChatID != "42" || sent[0].Content != "answer: hi" {
		t.Errorf("unexpected outbound %+v", sent)
	}

	failing := c.Handler(func(context.Context, OutboundMessage) error { return errors.New("down") })
	if err := failing(context.Background(), msg("42", "hi")); err == nil {
		t.Error("expected send error to propagate")
	}
}

func TestInboundMessage_Command(t *testing.T) {
	tests := []struct {
		in, cmd, args string
	}{
		{"hello there", "", "hello there"},
		{"  /help", "/help", ""},
		{"/NEW", "/new", ""},
		{"/research@bot  q ", "/research", "q"},
	}
	for _, tt := range tests {
		cmd, args := InboundMessage{Content: tt.in}.Command()
		if cmd != tt.cmd || args != tt.args {
			t.Errorf("Command(%q) = %q, %q", tt.in, cmd, args)
		}
	}
}
