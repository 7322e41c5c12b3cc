// Package logbuf keeps recent log records in memory so the API can serve
// them, filtered by level, time, text or attribute (for example every
// record of one tool call).
package logbuf

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Entry is a single captured record. Attribute keys inside groups are
// flattened with dots.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   slog.Level     `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Filter selects entries in Query. The zero Filter matches everything.
type Filter struct {
	Since    time.Time
	MinLevel slog.Level
	Limit    int               // newest N after filtering; <= 0 means all
	Contains string            // case-insensitive message substring
	Attrs    map[string]string // attribute values compared by their %v form
}

func (f Filter) match(e Entry) bool {
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if e.Level < f.MinLevel {
		return false
	}
	if f.Contains != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.Contains)) {
		return false
	}
	for k, want := range f.Attrs {
		v, ok := e.Attrs[k]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

// attrParams are the query parameters ParseFilter maps onto attribute
// matches.
var attrParams = []string{"tool", "call_id", "component", "chat_id"}

// ParseFilter reads since (RFC 3339), level, limit, q and the attribute
// parameters tool, call_id, component and chat_id. Level defaults to
// DEBUG and limit to 100.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{MinLevel: slog.LevelDebug, Limit: 100, Contains: q.Get("q")}

	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid since: %w", err)
		}
		f.Since = t
	}
	if s := q.Get("level"); s != "" {
		if err := f.MinLevel.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
			return Filter{}, fmt.Errorf("invalid level %q", s)
		}
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid limit %q", s)
		}
		f.Limit = n
	}
	for _, k := range attrParams {
		if v := q.Get(k); v != "" {
			if f.Attrs == nil {
				f.Attrs = make(map[string]string)
			}
			f.Attrs[k] = v
		}
	}
	return f, nil
}

// Buffer is a thread-safe ring of the most recent entries.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// New creates a buffer holding up to size entries.
func New(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{entries: make([]Entry, size)}
}

// Write stores e, evicting the oldest entry when full.
func (b *Buffer) Write(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = e
	b.next++
	if b.next == len(b.entries) {
		b.next = 0
		b.full = true
	}
}

// Len returns the number of entries held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Query returns matching entries, oldest first.
func (b *Buffer) Query(f Filter) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	ordered := b.entries[:b.next]
	if b.full {
		ordered = append(append([]Entry(nil), b.entries[b.next:]...), b.entries[:b.next]...)
	}

	result := []Entry{}
	for _, e := range ordered {
		if f.match(e) {
			result = append(result, e)
		}
	}
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[len(result)-f.Limit:]
	}
	return result
}
