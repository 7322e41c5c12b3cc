// Package desk wires the provider, tools, vector store and web search into
// the two conversation modes: the tool agent and the research loop. Every
// front end (HTTP API, Telegram, CLI, scheduler) goes through a Desk.
package desk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/newsdesk-io/newsdesk/internal/agent"
	"github.com/newsdesk-io/newsdesk/internal/config"
	"github.com/newsdesk-io/newsdesk/internal/history"
	"github.com/newsdesk-io/newsdesk/internal/provider"
	"github.com/newsdesk-io/newsdesk/internal/research"
	"github.com/newsdesk-io/newsdesk/internal/tool"
	"github.com/newsdesk-io/newsdesk/internal/tool/builtin"
	"github.com/newsdesk-io/newsdesk/internal/vectorstore"
	"github.com/newsdesk-io/newsdesk/internal/websearch"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// ErrNoStore is returned by operations that need the vector store when the
// desk was built without one.
var ErrNoStore = errors.New("desk: no vector store configured")

// Options holds per-conversation limits.
type Options struct {
	Model             string
	MaxTotalTokens    int
	MaxResponseTokens int
	TopN              int
	MaxIterations     int
	MaxMemory         int // research memory messages kept per conversation
	Counter           history.Counter
}

// Desk is shared by all requests. Agents and researchers built from it are
// not; build one per conversation.
type Desk struct {
	Provider provider.Provider
	Tools    *tool.Registry
	Store    vectorstore.Store // may be nil
	Searcher research.Searcher // may be nil
	Logger   *slog.Logger
	Options  Options

	// OnIngest, when set, is told how many chunks each Ingest stored.
	OnIngest func(chunks int)
}

// NewAgent returns a fresh tool agent seeded with prior turns.
func (d *Desk) NewAgent(prior ...protocol.ChatMessage) *agent.ToolAgent {
	ag := agent.New(d.Provider, d.Tools,
		agent.WithLogger(d.logger().With("component", "agent")),
		agent.WithModel(d.Options.Model),
		agent.WithTokenLimits(d.Options.MaxTotalTokens, d.Options.MaxResponseTokens),
		agent.WithCounter(d.counter()),
	)
	ag.Seed(prior...)
	return ag
}

// Query runs one tool agent turn on a fresh agent.
func (d *Desk) Query(ctx context.Context, query string, prior []protocol.ChatMessage) string {
	return d.NewAgent(prior...).Run(ctx, query)
}

// NewMemory returns an empty research memory sized by the options.
func (d *Desk) NewMemory() *history.Memory {
	return history.NewMemory(d.Options.MaxMemory)
}

// NewResearcher returns a research loop bound to mem. A nil mem starts an
// empty one.
func (d *Desk) NewResearcher(mem *history.Memory) *research.Researcher {
	if mem == nil {
		mem = d.NewMemory()
	}
	// A nil interface, not a typed nil, when no store is configured.
	var retriever research.Retriever
	if d.Store != nil {
		retriever = d.Store
	}
	return research.New(d.Provider, retriever, d.Searcher,
		research.WithLogger(d.logger().With("component", "research")),
		research.WithModel(d.Options.Model),
		research.WithTopN(d.Options.TopN),
		research.WithMaxIterations(d.Options.MaxIterations),
		research.WithMemory(mem),
	)
}

// Research answers query with the research loop.
func (d *Desk) Research(ctx context.Context, query string, mem *history.Memory) string {
	return d.NewResearcher(mem).Chat(ctx, query)
}

// Ingest loads every supported document under dir into the vector store.
func (d *Desk) Ingest(ctx context.Context, dir string) (int, error) {
	if d.Store == nil {
		return 0, ErrNoStore
	}
	start := time.Now()
	n, err := d.Store.AddDocuments(ctx, dir)
	if err != nil {
		return n, fmt.Errorf("desk: ingest %s: %w", dir, err)
	}
	d.logger().Info("documents ingested", "dir", dir, "chunks", n, "duration", time.Since(start))
	if d.OnIngest != nil {
		d.OnIngest(n)
	}
	return n, nil
}

// dirRemover is implemented by stores that can drop one directory's chunks.
type dirRemover interface {
	RemoveDir(ctx context.Context, dir string) (int, error)
}

// Reindex replaces the chunks previously ingested from dir with a fresh
// load. Chunks from other sources, such as pushed articles, are kept. With a
// store that cannot remove by directory it behaves like Ingest.
func (d *Desk) Reindex(ctx context.Context, dir string) (int, error) {
	if d.Store == nil {
		return 0, ErrNoStore
	}
	if r, ok := d.Store.(dirRemover); ok {
		removed, err := r.RemoveDir(ctx, dir)
		if err != nil {
			return 0, fmt.Errorf("desk: reindex %s: %w", dir, err)
		}
		d.logger().Info("previous chunks removed", "dir", dir, "chunks", removed)
	}
	return d.Ingest(ctx, dir)
}

// Descriptors lists the registered tools.
func (d *Desk) Descriptors() []tool.Descriptor {
	return d.Tools.Descriptors()
}

// Close releases the vector store.
func (d *Desk) Close() error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}

func (d *Desk) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Desk) counter() history.Counter {
	if d.Options.Counter == nil {
		return history.DefaultCounter
	}
	return d.Options.Counter
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	toolMiddleware []tool.Middleware
}

// WithToolMiddleware adds middleware around every tool, outside the logging
// and timeout layers.
func WithToolMiddleware(mws ...tool.Middleware) BuildOption {
	return func(o *buildOptions) { o.toolMiddleware = append(o.toolMiddleware, mws...) }
}

// Build assembles a Desk from configuration. The caller owns Close.
func Build(cfg *config.Config, logger *slog.Logger, opts ...BuildOption) (*Desk, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	prov := NewProvider(cfg.Provider)
	logger.Info("provider initialized", "name", prov.Name(), "type", cfg.Provider.Type, "model", cfg.Provider.Model)

	store, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var searcher research.Searcher
	if cfg.WebSearch.APIKey != "" {
		var opts []websearch.Option
		if cfg.WebSearch.RateLimit > 0 {
			opts = append(opts, websearch.WithRateLimit(cfg.WebSearch.RateLimit, 1))
		}
		searcher = websearch.New(cfg.WebSearch.URL, cfg.WebSearch.APIKey, opts...)
	} else {
		logger.Warn("web search disabled: no api key")
	}

	tools := []tool.Tool{&builtin.WebFetch{}, &builtin.KnowledgeSearch{Retriever: store, TopN: cfg.RAG.TopN}}
	if cfg.News.APIKey != "" {
		tools = append(tools, builtin.NewNewsSearch(cfg.News.URL, cfg.News.APIKey))
	} else {
		logger.Warn("news_search disabled: no api key")
	}
	reg, err := tool.NewRegistry(tools...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("desk: tools: %w", err)
	}
	mws := append(bo.toolMiddleware,
		tool.WithLogging(logger.With("component", "tools")),
		tool.WithTimeout(time.Duration(cfg.Agent.ToolTimeout)*time.Second),
	)
	reg = reg.Use(mws...)

	counter := &history.Tiktoken{}
	return &Desk{
		Provider: prov,
		Tools:    reg,
		Store:    store,
		Searcher: searcher,
		Logger:   logger,
		Options: Options{
			MaxTotalTokens:    cfg.Agent.MaxTotalTokens,
			MaxResponseTokens: cfg.Agent.MaxResponseTokens,
			TopN:              cfg.RAG.TopN,
			MaxIterations:     cfg.RAG.MaxIterations,
			MaxMemory:         cfg.RAG.MaxConversationHistory,
			Counter:           counter,
		},
	}, nil
}

// NewProvider builds the chat provider, rate limited when configured.
func NewProvider(pc config.ProviderConfig) provider.Provider {
	var prov provider.Provider
	switch pc.Type {
	case "anthropic":
		var opts []provider.AnthropicOption
		if pc.BaseURL != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(pc.BaseURL))
		}
		if pc.Model != "" {
			opts = append(opts, provider.WithAnthropicModel(pc.Model))
		}
		prov = provider.NewAnthropic(pc.APIKey, opts...)
	default:
		var opts []provider.OpenAIOption
		if pc.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(pc.BaseURL))
		}
		if pc.Model != "" {
			opts = append(opts, provider.WithModel(pc.Model))
		}
		prov = provider.NewOpenAI(pc.APIKey, opts...)
	}
	if pc.RateLimit > 0 {
		prov = provider.NewLimited(prov, pc.RateLimit, pc.Burst)
	}
	return prov
}

// NewEmbedder builds the embedder selected by the config.
func NewEmbedder(ec config.EmbeddingConfig) vectorstore.Embedder {
	if ec.Type == "hash" {
		return vectorstore.HashEmbedder{Dims: ec.Dims}
	}
	return vectorstore.NewOpenAIEmbedder(ec.APIKey, ec.BaseURL, ec.Model)
}

// OpenStore opens the SQLite vector store at cfg.RAG.Path, creating its
// directory when needed.
func OpenStore(cfg *config.Config, logger *slog.Logger) (*vectorstore.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.RAG.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("desk: create store dir: %w", err)
		}
	}
	store, err := vectorstore.Open(cfg.RAG.Path, NewEmbedder(cfg.Embedding),
		vectorstore.WithLogger(logger.With("component", "vectorstore")))
	if err != nil {
		return nil, fmt.Errorf("desk: %w", err)
	}
	return store, nil
}
