package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/newsdesk-io/newsdesk/internal/config"
	"github.com/newsdesk-io/newsdesk/internal/desk"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "newsdeskctl",
		Short:         "newsdesk command line",
		Long:          "Chat with the news agent, run research, manage the document store and query a running newsdeskd.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: environment and .env)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	root.AddCommand(
		chatCmd(),
		researchCmd(),
		ingestCmd(),
		toolsCmd(),
		configCmd(),
		remoteCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fatalError(err)
	}
}

// loadConfig reads --config when given, the environment otherwise.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// openDesk builds a desk for local commands. Logs go to stderr so they do
// not mix with answers.
func openDesk() (*desk.Desk, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	d, err := desk.Build(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return d, cfg, nil
}

func fatalError(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(r[:n]))
}
