package history

import (
	"strings"
	"testing"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// lenCounter counts one token per byte.
type lenCounter struct{}

func (lenCounter) Count(s string) int { return len(s) }

func msgs(contents ...string) []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, len(contents))
	for i, c := range contents {
		role := protocol.RoleUser
		if i == 0 {
			role = protocol.RoleSystem
		}
		out[i] = protocol.ChatMessage{Role: role, Content: c}
	}
	return out
}

func contents(ms []protocol.ChatMessage) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Content
	}
	return out
}

func TestTrim_KeepsNewestWithinBudget(t *testing.T) {
	in := msgs("sys", "aaaa", "bbbb", "cccc", "dddd")
	got := contents(Trim(in, 3+8, lenCounter{}))
	want := []string{"sys", "cccc", "dddd"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTrim_StopsAtFirstOverflow(t *testing.T) {
	// "bb" would fit after "x" is skipped, but trimming never skips.
	in := msgs("s", "bb", "xxxxxxxxxx", "cc")
	got := contents(Trim(in, 5, lenCounter{}))
	if strings.Join(got, ",") != "s,cc" {
		t.Errorf("expected [s cc], got %v", got)
	}
}

func TestTrim_EverythingFits(t *testing.T) {
	in := msgs("s", "a", "b")
	got := Trim(in, 100, lenCounter{})
	if len(got) != 3 {
		t.Fatalf("expected all 3 messages, got %d", len(got))
	}
}

func TestTrim_SystemPromptAlwaysKept(t *testing.T) {
	in := msgs("a very long system prompt", "hi")
	got := Trim(in, 2, lenCounter{})
	if len(got) != 1 || got[0].Role != protocol.RoleSystem {
		t.Errorf("expected only the system prompt, got %v", got)
	}
}

func TestTrim_DoesNotModifyInput(t *testing.T) {
	in := msgs("s", "a", "b", "c")
	_ = Trim(in, 2, lenCounter{})
	if strings.Join(contents(in), ",") != "s,a,b,c" {
		t.Errorf("input modified: %v", contents(in))
	}
}

func TestTrim_Empty(t *testing.T) {
	if got := Trim(nil, 10, nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestTrim_OrderPreservedForAnyBudget(t *testing.T) {
	in := msgs("sys", "m1", "m2", "m3", "m4", "m5", "m6")
	for budget := 0; budget <= 20; budget++ {
		got := Trim(in, budget, lenCounter{})
		if got[0].Content != "sys" {
			t.Fatalf("budget %d: system prompt missing", budget)
		}
		rest := got[1:]
		// Kept messages are a suffix of the history.
		offset := len(in) - len(rest)
		for i, m := range rest {
			if m.Content != in[offset+i].Content {
				t.Fatalf("budget %d: expected suffix, got %v", budget, contents(got))
			}
		}
	}
}

func TestCharEstimate(t *testing.T) {
	c := CharEstimate{CharsPerToken: 3.5}
	if got := c.Count(strings.Repeat("x", 7)); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := c.Count(strings.Repeat("x", 10)); got != 2 {
		t.Errorf("expected truncation to 2, got %d", got)
	}
	if got := (CharEstimate{}).Count(strings.Repeat("x", 35)); got != 10 {
		t.Errorf("expected zero ratio to default to 3.5, got %d", got)
	}
}

func TestMemory_BoundedByMessageCount(t *testing.T) {
	m := NewMemory(4)
	m.Add("q1", "a1")
	m.Add("q2", "a2")
	m.Add("q3", "a3")

	if m.Len() != 4 {
		t.Fatalf("expected 4 messages, got %d", m.Len())
	}
	want := "user: q2\nassistant: a2\nuser: q3\nassistant: a3"
	if got := m.Transcript(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMemory_Unbounded(t *testing.T) {
	m := NewMemory(0)
	for i := 0; i < 10; i++ {
		m.Add("q", "a")
	}
	if m.Len() != 20 {
		t.Errorf("expected 20 messages, got %d", m.Len())
	}
	m.Reset()
	if m.Transcript() != "" {
		t.Error("expected empty transcript after reset")
	}
}
