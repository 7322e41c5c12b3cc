package vectorstore

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter breaks text into chunks of at most Size characters, preferring
// paragraph, then line, then word boundaries. Neighbouring chunks share up to
// Overlap characters.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewSplitter returns a splitter with the default separators.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{Size: size, Overlap: overlap, Separators: []string{"\n\n", "\n", " ", ""}}
}

// Split returns the chunks of text in order. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = []string{"\n\n", "\n", " ", ""}
	}
	return s.split(text, seps)
}

func (s *Splitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, candidate := range seps {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		pieces = strings.Split(text, sep)
	}

	var out, fitting []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if len(p) < s.Size {
			fitting = append(fitting, p)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, s.merge(fitting, sep)...)
			fitting = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, s.split(p, rest)...)
		}
	}
	if len(fitting) > 0 {
		out = append(out, s.merge(fitting, sep)...)
	}
	return out
}

// merge packs small pieces into chunks, carrying the tail of each chunk
// into the next one as overlap.
func (s *Splitter) merge(pieces []string, sep string) []string {
	var docs, current []string
	total := 0
	joinLen := func(n int) int {
		if n > 0 {
			return len(sep)
		}
		return 0
	}

	for _, p := range pieces {
		if total+len(p)+joinLen(len(current)) > s.Size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.Overlap || (total+len(p)+joinLen(len(current)) > s.Size && total > 0) {
				total -= len(current[0]) + joinLen(len(current)-1)
				current = current[1:]
			}
		}
		current = append(current, p)
		total += len(p) + joinLen(len(current)-1)
	}
	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}
