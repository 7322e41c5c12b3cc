// Package toolcall extracts tool invocations from free-text model output.
//
// Calls are JSON objects wrapped in <tool_calls>...</tool_calls> tags. Each
// tagged block is decoded independently so one malformed block never hides
// its siblings.
package toolcall

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// Tags shared with the system prompt template.
const (
	TagToolCalls = "tool_calls"
	TagTools     = "tools"
)

var (
	tagCacheMu sync.Mutex
	tagCache   = map[string]*regexp.Regexp{}
)

func tagPattern(tag string) *regexp.Regexp {
	tagCacheMu.Lock()
	defer tagCacheMu.Unlock()
	re, ok := tagCache[tag]
	if !ok {
		q := regexp.QuoteMeta(tag)
		re = regexp.MustCompile(`(?s)<` + q + `>(.*?)</` + q + `>`)
		tagCache[tag] = re
	}
	return re
}

// ExtractTagContent returns the trimmed text between every <tag> and </tag>
// pair, in order of appearance.
func ExtractTagContent(text, tag string) []string {
	matches := tagPattern(tag).FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// Counter hands out call IDs "0", "1", ... It is owned by one agent.
type Counter struct {
	mu   sync.Mutex
	next int
}

// Next returns the next ID.
func (c *Counter) Next() string {
	return c.NextFree(nil)
}

// NextFree returns the next ID that is not in taken. Skipped values are
// consumed.
func (c *Counter) NextFree(taken map[string]bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		id := strconv.Itoa(c.next)
		c.next++
		if !taken[id] {
			return id
		}
	}
}

// Failure is a tagged block that could not be turned into a call.
type Failure struct {
	ID  string
	Raw string
	Err error
}

// Batch is everything found in one model response.
type Batch struct {
	Calls    []protocol.ToolCall
	Failures []Failure
}

// Empty reports whether the response contained no tool-call blocks at all.
func (b Batch) Empty() bool {
	return len(b.Calls) == 0 && len(b.Failures) == 0
}

// Errors for malformed blocks.
var (
	ErrMalformed   = errors.New("malformed tool call")
	ErrMissingName = errors.New("tool call has no name")
)

// Parser decodes tool-call blocks, assigning IDs from its Counter.
type Parser struct {
	Tag     string
	Counter *Counter
}

// NewParser returns a parser for TagToolCalls with a fresh counter.
func NewParser() *Parser {
	return &Parser{Tag: TagToolCalls, Counter: &Counter{}}
}

// Parse extracts and decodes every tool-call block in text. Every call and
// failure in the batch gets a distinct ID: IDs supplied by the model are
// reserved first, counter IDs skip them, and a repeated model ID is
// suffixed with "#2", "#3", ...
func (p *Parser) Parse(text string) Batch {
	tag := p.Tag
	if tag == "" {
		tag = TagToolCalls
	}
	if p.Counter == nil {
		p.Counter = &Counter{}
	}

	type item struct {
		call protocol.ToolCall
		raw  json.RawMessage
		err  error
	}
	var items []item
	reserved := map[string]bool{}
	for _, block := range ExtractTagContent(text, tag) {
		for _, raw := range splitBlock(block) {
			call, err := decode(raw)
			if call.ID != "" {
				reserved[call.ID] = true
			}
			items = append(items, item{call: call, raw: raw, err: err})
		}
	}

	var b Batch
	used := make(map[string]bool, len(items))
	for _, it := range items {
		it.call.ID = p.assignID(it.call.ID, reserved, used)
		used[it.call.ID] = true
		if it.err != nil {
			b.Failures = append(b.Failures, Failure{ID: it.call.ID, Raw: string(it.raw), Err: it.err})
			continue
		}
		b.Calls = append(b.Calls, it.call)
	}
	return b
}

func (p *Parser) assignID(modelID string, reserved, used map[string]bool) string {
	if modelID == "" {
		taken := make(map[string]bool, len(reserved)+len(used))
		for id := range reserved {
			taken[id] = true
		}
		for id := range used {
			taken[id] = true
		}
		return p.Counter.NextFree(taken)
	}
	if !used[modelID] {
		return modelID
	}
	for n := 2; ; n++ {
		id := modelID + "#" + strconv.Itoa(n)
		if !used[id] && !reserved[id] {
			return id
		}
	}
}

// splitBlock turns a block holding an object or an array of objects into
// individual raw objects. Anything else is returned whole for decode to fail on.
func splitBlock(block string) []json.RawMessage {
	trimmed := bytes.TrimSpace([]byte(block))
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil {
			return items
		}
	}
	return []json.RawMessage{json.RawMessage(trimmed)}
}

type wireCall struct {
	ID        any             `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// decode returns the call with the model's ID, if any, even on failure so
// the failure can be reported under it.
func decode(raw json.RawMessage) (protocol.ToolCall, error) {
	var w wireCall
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return protocol.ToolCall{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	call := protocol.ToolCall{Name: w.Name}
	call.ID, _ = normaliseID(w.ID)
	if call.Name == "" {
		return call, ErrMissingName
	}

	call.Arguments = map[string]any{}
	if len(w.Arguments) > 0 && string(w.Arguments) != "null" {
		args, err := decodeArguments(w.Arguments)
		if err != nil {
			return call, fmt.Errorf("%w: arguments: %v", ErrMalformed, err)
		}
		call.Arguments = args
	}
	return call, nil
}

// decodeArguments accepts an object, or a string holding an encoded object
// (some models double-encode).
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err == nil {
		return args, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.New("arguments must be an object")
	}
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, errors.New("arguments must be an object")
	}
	return args, nil
}

func normaliseID(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		if x != "" {
			return x, true
		}
	case json.Number:
		return x.String(), true
	}
	return "", false
}
