package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newsdesk-io/newsdesk/internal/tool"
)

// DefaultNewsURL is the NewsAPI "everything" endpoint.
const DefaultNewsURL = "https://newsapi.org/v2/everything"

const newsTimeout = 30 * time.Second

// Languages accepted by news_search (ISO-639-1).
var Languages = []string{"en", "ar", "de", "es", "fr", "he", "it", "nl", "no", "pt", "ru", "sv", "ud", "zh"}

var newsDescriptor = tool.MustDescriptor("news_search",
	"Search the web for keywords or phrases in news articles.",
	tool.Param{Name: "q", Types: []tool.Kind{tool.KindString},
		Description: "keywords or phrases to look for in the article title or body"},
	tool.Param{Name: "searchIn", Types: []tool.Kind{tool.KindArray, tool.KindNull},
		Items:       &tool.Param{Enum: []string{"title", "description", "content"}},
		Description: "fields to restrict the search to"},
	tool.Param{Name: "dateFrom", Types: []tool.Kind{tool.KindString, tool.KindNull},
		Description: "ISO 8601 date of the oldest article allowed"},
	tool.Param{Name: "dateTo", Types: []tool.Kind{tool.KindString, tool.KindNull},
		Description: "ISO 8601 date of the newest article allowed"},
	tool.Param{Name: "language", Enum: Languages, Optional: true,
		Description: "2-letter ISO-639-1 language code"},
	tool.Param{Name: "sortBy", Enum: []string{"relevancy", "popularity", "publishedAt"}, Optional: true,
		Description: "order to sort the articles in"},
)

// NewsSearch queries a NewsAPI-compatible endpoint.
type NewsSearch struct {
	URL    string
	APIKey string
	Client *http.Client
	Now    func() time.Time
}

// NewNewsSearch creates the news_search tool. An empty url uses DefaultNewsURL.
func NewNewsSearch(url, apiKey string) *NewsSearch {
	if url == "" {
		url = DefaultNewsURL
	}
	return &NewsSearch{URL: url, APIKey: apiKey}
}

func (n *NewsSearch) Descriptor() tool.Descriptor { return newsDescriptor }

// Invoke returns a numbered article list. Transport failures come back as
// text so the model can report them.
func (n *NewsSearch) Invoke(ctx context.Context, args tool.Args) (any, error) {
	q := args.String("q", "")
	if q == "" {
		return nil, &tool.ClientError{Reason: "q must not be empty", Err: tool.ErrValidation}
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	t := now().UTC()
	params := url.Values{}
	params.Set("q", q)
	params.Set("dateFrom", args.String("dateFrom", isoSeconds(t.Add(-24*time.Hour))))
	params.Set("dateTo", args.String("dateTo", isoSeconds(t)))
	params.Set("language", args.String("language", "en"))
	params.Set("sortBy", args.String("sortBy", "publishedAt"))
	if in := args.Strings("searchIn"); len(in) > 0 {
		params.Set("searchIn", strings.Join(in, ","))
	}
	params.Set("apiKey", n.APIKey)

	resp, err := n.fetch(ctx, params)
	if err != nil {
		return fmt.Sprintf("Error when using tool news_search: %v", err), nil
	}

	var b strings.Builder
	for i, a := range resp.Articles {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. **%s**\n   %s\n   %s", i+1,
			orDefault(a.Title, "No Title"), orDefault(a.Description, "No Description"), orDefault(a.URL, "No Url"))
	}
	if b.Len() == 0 {
		return fmt.Sprintf("There was no articles found for the query %s. Please try again", q), nil
	}
	return fmt.Sprintf("Here are the latest news articles for the query %s:\n\n%s", q, b.String()), nil
}

func (n *NewsSearch) fetch(ctx context.Context, params url.Values) (*newsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.URL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: newsTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out newsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	return &out, nil
}

type newsResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func isoSeconds(t time.Time) string {
	return t.Format("2006-01-02T15:04:05") + "Z"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
