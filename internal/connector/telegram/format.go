package telegram

import (
	"html"
	"regexp"
	"strings"
)

// MaxMessageLen is Telegram's limit on message text, in UTF-16 units; we
// count bytes, which is never smaller.
const MaxMessageLen = 4096

var (
	reHeading = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
	reBold    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic  = regexp.MustCompile(`(^|[^*])\*([^*\s][^*]*?)\*`)
	reLink    = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
)

// ToHTML renders the Markdown subset models use in answers (headings, bold,
// italics, links, inline code and fenced blocks) as Telegram HTML.
func ToHTML(md string) string {
	var out []string
	var block []string
	inFence := false

	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inFence {
				out = append(out, "<pre>"+html.EscapeString(strings.Join(block, "\n"))+"</pre>")
				block = nil
			}
			inFence = !inFence
			continue
		}
		if inFence {
			block = append(block, line)
			continue
		}
		if m := reHeading.FindStringSubmatch(line); m != nil {
			out = append(out, "<b>"+inlineHTML(m[1])+"</b>")
			continue
		}
		out = append(out, inlineHTML(line))
	}
	if inFence {
		out = append(out, "<pre>"+html.EscapeString(strings.Join(block, "\n"))+"</pre>")
	}
	return strings.Join(out, "\n")
}

// inlineHTML formats one line. Odd segments between backticks are code and
// are only escaped.
func inlineHTML(line string) string {
	parts := strings.Split(line, "`")
	if len(parts)%2 == 0 {
		// Unbalanced backtick: treat the last one literally.
		parts[len(parts)-2] += "`" + parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	}
	var sb strings.Builder
	for i, p := range parts {
		if i%2 == 1 {
			sb.WriteString("<code>" + html.EscapeString(p) + "</code>")
			continue
		}
		s := html.EscapeString(p)
		s = reLink.ReplaceAllString(s, `<a href="$2">$1</a>`)
		s = reBold.ReplaceAllString(s, "<b>$1</b>")
		s = reItalic.ReplaceAllString(s, "$1<i>$2</i>")
		sb.WriteString(s)
	}
	return sb.String()
}

// PlainText strips the same Markdown subset. Links become "text (url)".
func PlainText(md string) string {
	var out []string
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		if m := reHeading.FindStringSubmatch(line); m != nil {
			line = m[1]
		}
		line = reLink.ReplaceAllString(line, "$1 ($2)")
		line = reBold.ReplaceAllString(line, "$1")
		line = reItalic.ReplaceAllString(line, "$1$2")
		line = strings.ReplaceAll(line, "`", "")
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Split breaks text into messages of at most limit bytes, preferring
// paragraph then line breaks. A single oversized line is cut hard.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	var msgs []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(text[:limit], "\n")
		}
		if cut <= 0 {
			cut = limit
			// Do not split a UTF-8 sequence.
			for cut > 0 && text[cut]&0xC0 == 0x80 {
				cut--
			}
		}
		msgs = append(msgs, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if strings.TrimSpace(text) != "" {
		msgs = append(msgs, text)
	}
	return msgs
}
