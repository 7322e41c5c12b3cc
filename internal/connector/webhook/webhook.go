// Package webhook accepts articles pushed by news feeds and stores them in
// the vector store, so the desk can answer from them without a re-ingest.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/newsdesk-io/newsdesk/internal/vectorstore"
)

const maxBodySize = 4 << 20

// Config maps source names to their auth settings.
type Config struct {
	Sources map[string]SourceConfig `json:"sources" yaml:"sources"`
}

// SourceConfig holds per-source auth. Secret enables HMAC-SHA256
// verification of X-Hub-Signature-256; otherwise BearerToken is checked.
// A source with neither is open.
type SourceConfig struct {
	Secret      string `json:"secret,omitempty" yaml:"secret,omitempty"`
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`
}

// Article is one pushed item. The body is either one Article or an array.
type Article struct {
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"title,omitempty"`
	URL         string            `json:"url,omitempty"`
	PublishedAt string            `json:"published_at,omitempty"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ChunkAdder stores one chunk. vectorstore.SQLiteStore implements it.
type ChunkAdder interface {
	AddChunk(ctx context.Context, content, id string, metadata map[string]string) error
}

// Handler serves POST /api/webhook/{source}.
type Handler struct {
	config   Config
	store    ChunkAdder
	splitter *vectorstore.Splitter
	logger   *slog.Logger
}

// New creates a webhook handler.
func New(cfg Config, store ChunkAdder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		config:   cfg,
		store:    store,
		splitter: vectorstore.NewSplitter(vectorstore.DefaultChunkSize, vectorstore.DefaultChunkOverlap),
		logger:   logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := r.PathValue("source")
	if name == "" {
		name = lastSegment(r.URL.Path)
	}
	source, ok := h.config.Sources[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown webhook source: %s", name))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !authenticate(r, source, body) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	articles, err := decodeArticles(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	chunks := 0
	for i, a := range articles {
		n, err := h.storeArticle(r.Context(), name, a)
		if errors.Is(err, vectorstore.ErrChunkTooShort) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("article %d: content is too short", i))
			return
		}
		if err != nil {
			h.logger.Error("webhook store error", "source", name, "article", a.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		chunks += n
	}

	h.logger.Info("webhook articles stored", "source", name, "articles", len(articles), "chunks", chunks)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "articles": len(articles), "chunks": chunks})
}

// storeArticle splits one article and stores its chunks under source:id#n. A
// re-pushed id replaces the chunks it overlaps.
func (h *Handler) storeArticle(ctx context.Context, source string, a Article) (int, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}

	meta := make(map[string]string, len(a.Metadata)+5)
	for k, v := range a.Metadata {
		meta[k] = v
	}
	// Pushed chunks never carry an ingest directory, so Reindex leaves them alone.
	delete(meta, "dir")
	meta["source"] = source
	meta["article_id"] = id
	for k, v := range map[string]string{"title": a.Title, "url": a.URL, "published_at": a.PublishedAt} {
		if v != "" {
			meta[k] = v
		}
	}

	text := a.Content
	if a.Title != "" {
		text = a.Title + "\n\n" + text
	}
	parts := h.splitter.Split(text)
	if len(parts) == 0 {
		return 0, vectorstore.ErrChunkTooShort
	}
	for i, p := range parts {
		meta["chunk"] = strconv.Itoa(i)
		if err := h.store.AddChunk(ctx, p, fmt.Sprintf("%s:%s#%d", source, id, i), meta); err != nil {
			return i, err
		}
	}
	return len(parts), nil
}

func decodeArticles(body []byte) ([]Article, error) {
	var articles []Article
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &articles); err != nil {
			return nil, errors.New("invalid JSON payload")
		}
	} else {
		var a Article
		if err := json.Unmarshal(trimmed, &a); err != nil {
			return nil, errors.New("invalid JSON payload")
		}
		articles = []Article{a}
	}
	if len(articles) == 0 {
		return nil, errors.New("no articles")
	}
	for i, a := range articles {
		if strings.TrimSpace(a.Content) == "" {
			return nil, fmt.Errorf("article %d: content is required", i)
		}
	}
	return articles, nil
}

func authenticate(r *http.Request, source SourceConfig, body []byte) bool {
	if source.Secret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if sig == "" {
			sig = r.Header.Get("X-Signature-256")
		}
		return verifyHMAC(body, source.Secret, sig)
	}
	if source.BearerToken != "" {
		return r.Header.Get("Authorization") == "Bearer "+source.BearerToken
	}
	return true
}

// verifyHMAC checks a "sha256=<hex>" signature of body.
func verifyHMAC(body []byte, secret, signature string) bool {
	want, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil || len(want) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// ComputeSignature returns the X-Hub-Signature-256 value for body.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func lastSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
