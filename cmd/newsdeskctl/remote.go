package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/newsdesk-io/newsdesk/internal/logbuf"
)

var (
	apiURL string
	apiKey string
)

// remoteCmd groups commands that talk to a running newsdeskd.
func remoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running newsdeskd",
	}
	cmd.PersistentFlags().StringVar(&apiURL, "url", envOr("NEWSDESK_API_URL", "http://localhost:8080"), "Daemon URL")
	cmd.PersistentFlags().StringVar(&apiKey, "key", envOr("NEWSDESK_API_KEY", ""), "API key")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "Check daemon health",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				body, err := apiDo(http.MethodGet, "/api/health", nil)
				if err != nil {
					return err
				}
				fmt.Println(prettyJSON(body))
				return nil
			},
		},
		&cobra.Command{
			Use:   "query <question>",
			Short: "Ask the news agent",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return ask("/query", strings.Join(args, " "))
			},
		},
		&cobra.Command{
			Use:   "research <question>",
			Short: "Run the research loop",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return ask("/research", strings.Join(args, " "))
			},
		},
		&cobra.Command{
			Use:   "tools",
			Short: "List the daemon's tools",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				body, err := apiDo(http.MethodGet, "/api/tools", nil)
				if err != nil {
					return err
				}
				var tools []struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				}
				if err := json.Unmarshal(body, &tools); err != nil {
					return fmt.Errorf("decode tools: %w", err)
				}
				cyan := color.New(color.FgCyan)
				for _, t := range tools {
					cyan.Printf("%-18s", t.Name)
					fmt.Println(truncate(t.Description, 80))
				}
				return nil
			},
		},
		logsCmd(),
	)
	return cmd
}

func logsCmd() *cobra.Command {
	var level, since, contains, tool string
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon logs",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			q := url.Values{}
			q.Set("limit", fmt.Sprint(limit))
			for k, v := range map[string]string{"level": level, "since": since, "q": contains, "tool": tool} {
				if v != "" {
					q.Set(k, v)
				}
			}
			body, err := apiDo(http.MethodGet, "/api/logs?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			var entries []logbuf.Entry
			if err := json.Unmarshal(body, &entries); err != nil {
				return fmt.Errorf("decode logs: %w", err)
			}
			for _, e := range entries {
				printEntry(e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&since, "since", "", "Only entries after this RFC3339 time")
	cmd.Flags().StringVarP(&contains, "grep", "q", "", "Substring to match in the message")
	cmd.Flags().StringVar(&tool, "tool", "", "Only entries for this tool")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Max entries")
	return cmd
}

func printEntry(e logbuf.Entry) {
	c := color.New(color.FgWhite)
	switch {
	case e.Level >= slog.LevelError:
		c = color.New(color.FgRed)
	case e.Level >= slog.LevelWarn:
		c = color.New(color.FgYellow)
	case e.Level < slog.LevelInfo:
		c = color.New(color.Faint)
	}
	c.Printf("%s %-5s ", e.Time.Format(time.TimeOnly), e.Level)
	fmt.Print(e.Message)
	for k, v := range e.Attrs {
		fmt.Printf(" %s=%v", k, v)
	}
	fmt.Println()
}

func ask(path, question string) error {
	payload, err := json.Marshal(map[string]string{"query": question})
	if err != nil {
		return err
	}
	body, err := apiDo(http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	var resp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Println(resp.Response)
	return nil
}

func apiDo(method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, strings.TrimSuffix(apiURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	// Agent turns can run several tool calls; allow for that.
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}
