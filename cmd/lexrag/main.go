// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/poiesic/lexrag"
	"github.com/poiesic/lexrag/config"
	"github.com/poiesic/lexrag/core"
	"github.com/poiesic/lexrag/ingestion"
	"github.com/poiesic/lexrag/reasoning"
	"github.com/poiesic/lexrag/reembed"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User id owning the conversation memory",
		Value:   "default",
	}
}

func askFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		userFlag(),
		&cli.StringFlag{
			Name:    "session",
			Aliases: []string{"s"},
			Usage:   "Session id (generated when empty)",
		},
		&cli.IntFlag{
			Name:    "top-k",
			Aliases: []string{"k"},
			Usage:   "Number of passages to retrieve (1-20, default from config)",
		},
		&cli.BoolFlag{
			Name:  "direct",
			Usage: "Quote the best articles without calling the language model",
		},
		&cli.BoolFlag{
			Name:  "no-memory",
			Usage: "Neither read nor record conversation memory",
		},
		&cli.BoolFlag{
			Name:  "show-thinking",
			Usage: "Print every reasoning stage",
		},
		&cli.StringFlag{
			Name:  "filter",
			Usage: `Restrict retrieval to a hierarchy subtree, e.g. "Livre I > Titre II"`,
		},
		&cli.BoolFlag{
			Name:  "exact",
			Usage: "Require the whole hierarchy path to equal --filter",
		},
	}
	return append(flags, extra...)
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lexrag",
		Usage: "Legal question answering over the Tunisian Labour Code",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a configuration file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error), overriding the configuration",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the passage index and long-term memory",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Answer a single question",
				ArgsUsage: "QUESTION",
				Flags:     askFlags(),
				Action:    askCommand,
			},
			{
				Name:   "chat",
				Usage:  "Interactive conversation; /clear, /save and /quit are understood",
				Flags:  askFlags(&cli.BoolFlag{Name: "save", Usage: "Save the session to long-term memory on exit"}),
				Action: chatCommand,
			},
			{
				Name:  "history",
				Usage: "List a user's saved sessions",
				Flags: []cli.Flag{
					userFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of sessions to list",
						Value: lexrag.DefaultHistoryLimit,
					},
				},
				Action: historyCommand,
			},
			{
				Name:   "forget",
				Usage:  "Delete a user's saved sessions",
				Flags:  []cli.Flag{userFlag()},
				Action: forgetCommand,
			},
			{
				Name:      "seed",
				Usage:     "Index passages from a chunk JSON file",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of passages embedded per request (default from config)",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N passages",
						Value: 100,
					},
				},
				Action: seedCommand,
			},
			{
				Name:  "reembed",
				Usage: "Recompute saved session vectors with the configured embedding model",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records embedded per request",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
				},
				Action: reembedCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show index and memory statistics",
				Action: statsCommand,
			},
		},
	}
}

// setup loads the configuration and installs the default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", cfg.LogLevel)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}

func openAssistant(c *cli.Context) (*lexrag.Assistant, *config.Config, error) {
	cfg := loadedConfig(c)
	assistant, err := lexrag.Open(cfg.DataDir, cfg.Options(slog.Default())...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", cfg.DataDir, err)
	}
	return assistant, cfg, nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func buildRequest(c *cli.Context, cfg *config.Config, question string) lexrag.Request {
	req := lexrag.DefaultRequest(question, c.String("user"))
	req.SessionID = c.String("session")
	req.TopK = cfg.Retrieval.TopK
	if c.IsSet("top-k") {
		req.TopK = c.Int("top-k")
	}
	req.EnableThinking = !c.Bool("direct")
	req.EnableMemory = !c.Bool("no-memory")
	req.ShowThinkingChain = c.Bool("show-thinking")
	req.Filter = parseFilter(c.String("filter"), c.Bool("exact"))
	return req
}

// parseFilter reads a hierarchy path written with ">" between labels.
func parseFilter(s string, exact bool) *core.HierarchyFilter {
	var labels []string
	for _, label := range strings.Split(s, ">") {
		if label = strings.TrimSpace(label); label != "" {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		return nil
	}
	return &core.HierarchyFilter{Labels: labels, Exact: exact}
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	assistant, cfg, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	ctx, cancel := commandContext()
	defer cancel()

	resp, err := assistant.Ask(ctx, buildRequest(c, cfg, question))
	if err != nil {
		return err
	}
	printResponse(c.App.Writer, resp)
	return nil
}

func chatCommand(c *cli.Context) error {
	assistant, cfg, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	ctx, cancel := commandContext()
	defer cancel()

	out := c.App.Writer
	userID := c.String("user")
	sessionID := c.String("session")

	scanner := bufio.NewScanner(c.App.Reader)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return endChat(ctx, c, assistant, userID, sessionID)
		case "/clear":
			if err := assistant.ClearSession(userID, sessionID); err != nil && !errors.Is(err, lexrag.ErrSessionNotFound) {
				return err
			}
			fmt.Fprintln(out, "Session cleared.")
			continue
		case "/save":
			record, err := assistant.SaveSession(ctx, userID, sessionID)
			switch {
			case errors.Is(err, lexrag.ErrSessionNotFound):
				fmt.Fprintln(out, "Nothing to save yet.")
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "Session saved as record %s.\n", record.ID)
			}
			continue
		}

		req := buildRequest(c, cfg, line)
		req.SessionID = sessionID
		resp, err := assistant.Ask(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(c.App.ErrWriter, "error: %v\n", err)
			continue
		}
		sessionID = resp.SessionID
		printResponse(out, resp)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return endChat(ctx, c, assistant, userID, sessionID)
}

func endChat(ctx context.Context, c *cli.Context, assistant *lexrag.Assistant, userID, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return assistant.EndSession(ctx, userID, sessionID, c.Bool("save"))
}

func historyCommand(c *cli.Context) error {
	assistant, _, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	records, err := assistant.History(c.Context, c.String("user"), c.Int("limit"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	if len(records) == 0 {
		fmt.Fprintln(out, "No saved sessions.")
		return nil
	}
	for _, record := range records {
		fmt.Fprintf(out, "%s  session %s  (%d turns)\n",
			record.Timestamp.Local().Format("2006-01-02 15:04"), record.SessionID, len(record.Turns))
		for _, turn := range record.Turns {
			fmt.Fprintf(out, "    %s: %s\n", turn.Role, preview(turn.Text, 100))
		}
	}
	return nil
}

func forgetCommand(c *cli.Context) error {
	assistant, _, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	n, err := assistant.ForgetUser(c.Context, c.String("user"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %d saved sessions for %s.\n", n, c.String("user"))
	return nil
}

func seedCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("a chunk file is required")
	}
	if c.Int("report-interval") <= 0 {
		return errors.New("report-interval must be greater than 0")
	}

	passages, err := ingestion.LoadPassages(path)
	if err != nil {
		return err
	}

	assistant, cfg, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	ctx, cancel := commandContext()
	defer cancel()

	progress := ingestion.NewProgressTracker(c.App.ErrWriter, len(passages), c.Int("report-interval"))
	opts := append(cfg.IngestionOptions(), ingestion.WithProgress(progress))
	if c.IsSet("batch-size") {
		opts = append(opts, ingestion.WithBatchSize(c.Int("batch-size")))
	}

	fmt.Fprintf(c.App.ErrWriter, "Data directory: %s\n", cfg.DataDir)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	progress.Start()
	n, err := assistant.Ingest(ctx, passages, opts...)
	progress.Finish()
	if err != nil {
		return fmt.Errorf("seeding failed after %d passages: %w", n, err)
	}
	fmt.Fprintf(c.App.Writer, "Indexed %d passages in %s.\n", n, progress.Elapsed().Round(time.Millisecond))
	return nil
}

func reembedCommand(c *cli.Context) error {
	if c.Int("batch-size") <= 0 {
		return errors.New("batch-size must be greater than 0")
	}
	if c.Int("report-interval") <= 0 {
		return errors.New("report-interval must be greater than 0")
	}

	assistant, cfg, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	ctx, cancel := commandContext()
	defer cancel()

	reembedConfig := reembed.DefaultConfig()
	reembedConfig.BatchSize = c.Int("batch-size")
	reembedConfig.ReportInterval = c.Int("report-interval")

	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	n, err := assistant.ReembedMemory(ctx, reembedConfig, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("reembedding failed after %d records: %w", n, err)
	}
	fmt.Fprintf(c.App.Writer, "Re-embedded %d saved sessions.\n", n)
	return nil
}

func statsCommand(c *cli.Context) error {
	assistant, _, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	stats := assistant.Stats()
	out := c.App.Writer
	fmt.Fprintf(out, "Collection:       %s\n", stats.Collection)
	fmt.Fprintf(out, "Passages:         %d\n", stats.TotalPassages)
	fmt.Fprintf(out, "Model:            %s\n", stats.Model)
	fmt.Fprintf(out, "Reasoning stages: %d\n", stats.ReasoningStages)
	fmt.Fprintf(out, "Memory enabled:   %t\n", stats.MemoryEnabled)
	return nil
}

func printResponse(w io.Writer, resp *lexrag.Response) {
	if resp.ThinkingChain != nil {
		fmt.Fprintln(w, reasoning.FormatThinkingChain(resp.ThinkingChain))
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, resp.Answer)
	if len(resp.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for _, source := range resp.Sources {
		fmt.Fprintf(w, "  [%d] %s (%.2f) %s\n", source.Rank, source.Label, source.Score, source.Hierarchy)
	}
}

func preview(text string, n int) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
