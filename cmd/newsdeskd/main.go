package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	apiPkg "github.com/newsdesk-io/newsdesk/internal/api"
	"github.com/newsdesk-io/newsdesk/internal/config"
	"github.com/newsdesk-io/newsdesk/internal/connector"
	"github.com/newsdesk-io/newsdesk/internal/connector/telegram"
	"github.com/newsdesk-io/newsdesk/internal/connector/webhook"
	"github.com/newsdesk-io/newsdesk/internal/desk"
	"github.com/newsdesk-io/newsdesk/internal/logbuf"
	"github.com/newsdesk-io/newsdesk/internal/metrics"
	"github.com/newsdesk-io/newsdesk/internal/scheduler"
	"github.com/newsdesk-io/newsdesk/internal/tool"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (.json, .yaml)")
	configURL := flag.String("config-url", os.Getenv("NEWSDESK_CONFIG_URL"), "URL to fetch config from")
	configKey := flag.String("config-key", os.Getenv("NEWSDESK_CONFIG_KEY"), "Bearer token for -config-url")
	ingest := flag.Bool("ingest", false, "Ingest rag.documents_dir before serving")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load config (3 modes: file, remote, env)
	var cfg *config.Config
	var err error
	switch {
	case *configPath != "":
		cfg, err = config.Load(*configPath)
	case *configURL != "":
		logger.Info("loading remote config", "url", *configURL)
		cfg, err = config.LoadRemote(ctx, config.RemoteOptions{URL: *configURL, APIKey: *configKey})
	default:
		cfg, err = config.LoadFromEnv()
		if err == nil {
			err = cfg.Validate()
		}
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("newsdeskd starting", "provider", cfg.Provider.Type, "model", cfg.Provider.Model, "store", cfg.RAG.Path)

	// 1. Provider, vector store, tools
	m := metrics.New()
	d, err := desk.Build(cfg, logger, desk.WithToolMiddleware(m.Tools()))
	if err != nil {
		logger.Error("failed to build desk", "error", err)
		os.Exit(1)
	}
	defer d.Close()
	d.OnIngest = func(n int) { m.AddIngested("documents", n) }

	if *ingest {
		if cfg.RAG.DocumentsDir == "" {
			logger.Error("-ingest needs rag.documents_dir")
			os.Exit(1)
		}
		if _, err := d.Reindex(ctx, cfg.RAG.DocumentsDir); err != nil {
			logger.Error("initial ingest failed", "error", err)
			os.Exit(1)
		}
	}

	// 2. Scheduled re-ingestion
	if cfg.RAG.ReindexSchedule != "" {
		sched := scheduler.New(logger.With("component", "scheduler"))
		if err := sched.AddJob("reindex", cfg.RAG.ReindexSchedule, scheduler.ReindexJob(d, cfg.RAG.DocumentsDir)); err != nil {
			logger.Error("failed to schedule reindex", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "scheduler", func() { sched.Start(ctx) })
	}

	// 3. Telegram
	if cfg.Telegram.Token != "" {
		convs := connector.NewConversations(d, 0, logger.With("component", "conversations"))

		// Forward-declare tgConn so the handler closure can reference it
		var tgConn *telegram.Connector
		send := func(ctx context.Context, msg connector.OutboundMessage) error {
			return tgConn.Send(ctx, msg)
		}
		tgConn, err = telegram.New(
			telegram.Config{
				Token:     cfg.Telegram.Token,
				AllowFrom: cfg.Telegram.AllowFrom,
			},
			convs.Handler(send),
			logger.With("connector", "telegram"),
		)
		if err != nil {
			logger.Error("failed to init telegram connector", "error", err)
			os.Exit(1)
		}

		go safeGo(logger, "telegram", func() { tgConn.Start(ctx) })
		logger.Info("telegram connector started")
	}

	// 4. API server, with article webhooks when configured
	apiSrv := apiPkg.NewServer(&deskServiceAdapter{desk: d}, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), logBuf)
	apiSrv.Observe(m)
	apiSrv.Mount("GET /metrics", m.Handler())

	if len(cfg.Webhooks) > 0 {
		sources := make(map[string]webhook.SourceConfig, len(cfg.Webhooks))
		for name, src := range cfg.Webhooks {
			sources[name] = webhook.SourceConfig{Secret: src.Secret, BearerToken: src.BearerToken}
		}
		store := &countingStore{ChunkAdder: d.Store, m: m}
		hook := webhook.New(webhook.Config{Sources: sources}, store, logger.With("component", "webhook"))
		apiSrv.Mount("POST /api/webhook/{source}", hook)
		logger.Info("article webhooks enabled", "sources", len(sources))
	}

	go safeGo(logger, "api-server", func() {
		if err := apiSrv.Start(ctx); err != nil {
			logger.Error("api server failed", "error", err)
			cancel()
		}
	})

	// 5. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case <-ctx.Done():
	}
	cancel()
	logger.Info("newsdeskd stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}

// countingStore counts webhook chunks as they are stored.
type countingStore struct {
	webhook.ChunkAdder
	m *metrics.Metrics
}

func (s *countingStore) AddChunk(ctx context.Context, content, id string, metadata map[string]string) error {
	if err := s.ChunkAdder.AddChunk(ctx, content, id, metadata); err != nil {
		return err
	}
	s.m.AddIngested("webhook", 1)
	return nil
}

// deskServiceAdapter implements api.Service. Every research request starts
// from an empty memory.
type deskServiceAdapter struct {
	desk *desk.Desk
}

func (a *deskServiceAdapter) Query(ctx context.Context, query string, prior []protocol.ChatMessage) string {
	return a.desk.Query(ctx, query, prior)
}

func (a *deskServiceAdapter) Research(ctx context.Context, query string) string {
	return a.desk.Research(ctx, query, nil)
}

func (a *deskServiceAdapter) Descriptors() []tool.Descriptor {
	return a.desk.Descriptors()
}
