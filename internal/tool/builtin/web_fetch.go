package builtin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"

	"github.com/newsdesk-io/newsdesk/internal/tool"
)

const (
	maxFetchSize = 50 * 1024 // 50KB text output
	fetchTimeout = 30 * time.Second
)

var webFetchDescriptor = tool.MustDescriptor("web_fetch",
	"Fetch a URL and extract the readable text of the article.",
	tool.Param{Name: "url", Types: []tool.Kind{tool.KindString}, Description: "URL to fetch"},
)

// WebFetch fetches a page and extracts readable content.
type WebFetch struct {
	Client *http.Client
}

func (t *WebFetch) Descriptor() tool.Descriptor { return webFetchDescriptor }

func (t *WebFetch) Invoke(ctx context.Context, args tool.Args) (any, error) {
	rawURL := args.String("url", "")
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &tool.ClientError{Reason: fmt.Sprintf("invalid URL %q", rawURL), Err: tool.ErrValidation}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("web_fetch: %w", err)
	}
	req.Header.Set("User-Agent", "newsdesk/1.0")

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web_fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &tool.ClientError{Reason: fmt.Sprintf("%s returned HTTP %d", rawURL, resp.StatusCode)}
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxFetchSize)))
		return string(body), nil
	}

	title, text, err := ExtractArticle(resp.Body, parsedURL)
	if err != nil {
		return nil, fmt.Errorf("web_fetch: %w", err)
	}
	words := len(strings.Fields(text))
	if len(text) > maxFetchSize {
		text = text[:maxFetchSize] + "\n... [truncated]"
	}
	return fmt.Sprintf("Title: %s\nURL: %s\nWords: %d\n\n%s", title, rawURL, words, text), nil
}

// ExtractArticle runs readability over an HTML document and returns its
// title and plain text.
func ExtractArticle(r io.Reader, pageURL *url.URL) (title, text string, err error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return "", "", fmt.Errorf("parse: %w", err)
	}
	var buf bytes.Buffer
	if err := article.RenderText(&buf); err != nil {
		return "", "", fmt.Errorf("render: %w", err)
	}
	return article.Title(), buf.String(), nil
}
