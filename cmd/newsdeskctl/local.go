package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/newsdesk-io/newsdesk/internal/config"
	"github.com/newsdesk-io/newsdesk/internal/connector"
	"github.com/newsdesk-io/newsdesk/internal/history"
)

func chatCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the news agent",
		Long:  "Answer one prompt with -p, or start an interactive session that keeps conversation history.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, _, err := openDesk()
			if err != nil {
				return err
			}
			defer d.Close()

			ctx := cmd.Context()
			if prompt != "" {
				fmt.Println(d.Query(ctx, prompt, nil))
				return nil
			}

			mem := history.NewMemory(connector.DefaultMaxHistory)
			var names []string
			for _, desc := range d.Descriptors() {
				names = append(names, desc.Name)
			}
			banner("newsdesk chat", "Tools: "+strings.Join(names, ", "))
			return repl(ctx, func(ctx context.Context, line string) string {
				reply := d.Query(ctx, line, mem.Messages())
				mem.Add(line, reply)
				return reply
			}, mem.Reset)
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Single prompt (omit for interactive)")
	return cmd
}

func researchCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Answer from local documents and live web search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, _, err := openDesk()
			if err != nil {
				return err
			}
			defer d.Close()

			ctx := cmd.Context()
			mem := d.NewMemory()
			if prompt != "" {
				fmt.Println(d.Research(ctx, prompt, mem))
				return nil
			}

			banner("newsdesk research", "Answers use the document store and web search")
			return repl(ctx, func(ctx context.Context, line string) string {
				return d.Research(ctx, line, mem)
			}, mem.Reset)
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Single question (omit for interactive)")
	return cmd
}

// repl reads lines until EOF or quit. "/new" calls reset.
func repl(ctx context.Context, answer func(context.Context, string) string, reset func()) error {
	prompt := color.New(color.FgCyan, color.Bold)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		prompt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "/new":
			reset()
			color.Yellow("History cleared.\n")
			continue
		}
		fmt.Println(answer(ctx, line))
		fmt.Println()
	}
	return scanner.Err()
}

func banner(title, detail string) {
	color.New(color.FgGreen, color.Bold).Println(title + " (type 'quit' to exit, '/new' to reset)")
	color.New(color.Faint).Println(detail)
	fmt.Println()
}

func ingestCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Load documents into the vector store",
		Long:  "Load .txt, .json, .csv and .html files under dir (default: rag.documents_dir) into the vector store.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, cfg, err := openDesk()
			if err != nil {
				return err
			}
			defer d.Close()

			dir := cfg.RAG.DocumentsDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errors.New("no directory given and rag.documents_dir is not set")
			}

			ingest := d.Ingest
			if replace {
				ingest = d.Reindex
			}
			n, err := ingest(cmd.Context(), dir)
			if err != nil {
				return err
			}
			total, err := d.Store.Count(cmd.Context())
			if err != nil {
				return err
			}
			color.Green("Ingested %s chunks from %s (%s in store)\n", humanize.Comma(int64(n)), dir, humanize.Comma(int64(total)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Remove chunks previously loaded from dir first")
	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, _, err := openDesk()
			if err != nil {
				return err
			}
			defer d.Close()

			cyan := color.New(color.FgCyan)
			for _, desc := range d.Descriptors() {
				cyan.Printf("%-18s", desc.Name)
				fmt.Println(truncate(desc.Description, 80))
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a config file",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			cfg, err := config.Load(args[0])
			if err != nil {
				color.Red("invalid: %v\n", err)
				os.Exit(1)
			}
			color.Green("config is valid\n")
			fmt.Printf("  provider: %s (%s)\n", cfg.Provider.Type, cfg.Provider.Model)
			fmt.Printf("  store:    %s\n", cfg.RAG.Path)
		},
	})
	return cmd
}
