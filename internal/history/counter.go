package history

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates how many tokens a piece of text costs.
type Counter interface {
	Count(text string) int
}

// CharEstimate divides the character count by a fixed ratio, truncating.
type CharEstimate struct {
	CharsPerToken float64
}

// DefaultCounter is the 3.5 characters-per-token estimate.
var DefaultCounter Counter = CharEstimate{CharsPerToken: 3.5}

func (c CharEstimate) Count(text string) int {
	ratio := c.CharsPerToken
	if ratio <= 0 {
		ratio = 3.5
	}
	return int(float64(len(text)) / ratio)
}

// Tiktoken counts with the cl100k_base encoding. The encoding is loaded on
// first use; if it cannot be loaded the count falls back to len/4.
type Tiktoken struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func (t *Tiktoken) Count(text string) int {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.GetEncoding("cl100k_base")
	})
	if t.err != nil || t.enc == nil {
		return len(text) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Err returns the encoding load error, if any.
func (t *Tiktoken) Err() error { return t.err }
