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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/adala"
	"github.com/poiesic/adala/config"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/ingestion"
	"github.com/poiesic/adala/search"
	"github.com/poiesic/adala/server"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "adala",
		Usage: "Legal question answering over Moroccan legal texts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or JSON configuration file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
				Value: "text",
			},
		},
		Before: before,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Index the corpus and serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.host and server.port)",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Reload the corpus when CSV files change",
					},
					&cli.BoolFlag{
						Name:  "reuse-index",
						Usage: "Skip indexing when the existing index matches the embedding model",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a single question",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "context-limit",
						Usage: "Number of passages used for the answer (0 uses query.context_limit)",
					},
				},
			},
			{
				Name:   "reload",
				Usage:  "Rebuild the index from the CSV files",
				Action: reloadCommand,
			},
			{
				Name:      "search",
				Usage:     "Show the passages retrieved for a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "partition",
						Usage: "Restrict the search to one source file",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of passages",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Minimum relevance in [0,1]",
						Value: 0,
					},
				},
			},
			{
				Name:   "history",
				Usage:  "List or clear the conversation history",
				Action: historyCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of most recent entries to show",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "clear",
						Usage: "Delete every entry",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Print the assistant status as JSON",
				Action: statusCommand,
			},
		},
	}
}

func before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	c.App.Metadata = map[string]any{configKey: cfg}
	return setupLogger(c)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))
	formatStr := strings.ToLower(c.String("log-format"))
	if cfg := loadedConfig(c); cfg != nil {
		if !c.IsSet("log-level") && cfg.App.LogLevel != "" {
			levelStr = strings.ToLower(cfg.App.LogLevel)
		}
		if !c.IsSet("log-format") && cfg.App.LogFormat != "" {
			formatStr = strings.ToLower(cfg.App.LogFormat)
		}
	}

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch formatStr {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", formatStr)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	cfg, _ := c.App.Metadata[configKey].(*config.Config)
	return cfg
}

func mustConfig(c *cli.Context) (*config.Config, error) {
	if cfg := loadedConfig(c); cfg != nil {
		return cfg, nil
	}
	return config.Load(c.String("config"))
}

func openAssistant(c *cli.Context) (*adala.Assistant, error) {
	cfg, err := mustConfig(c)
	if err != nil {
		return nil, err
	}
	a, err := adala.NewAssistant(c.Context, cfg, adala.WithProgress(os.Stderr))
	if err != nil {
		return nil, fmt.Errorf("failed to open assistant: %w", err)
	}
	return a, nil
}

// prepare reuses a compatible index and otherwise rebuilds it.
func prepare(ctx context.Context, a *adala.Assistant) error {
	err := a.Open(ctx)
	if err == nil {
		return nil
	}
	slog.Info("index not reusable, rebuilding", "reason", err)
	return a.Initialize(ctx)
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := mustConfig(c)
	if err != nil {
		return err
	}
	a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Bool("reuse-index") {
		err = prepare(ctx, a)
	} else {
		err = a.Initialize(ctx)
	}
	if err != nil {
		// The API still comes up; /health reports 503 until a reload succeeds.
		slog.Error("initialization failed", "err", err)
	}

	if cfg.Data.Watch || c.Bool("watch") {
		if err := a.Watch(ctx, ingestion.DefaultQuietPeriod); err != nil {
			slog.Error("failed to watch data directory", "dir", cfg.Data.Dir, "err", err)
		}
	}

	addr := c.String("addr")
	if addr == "" {
		addr = cfg.Addr()
	}
	srv := server.NewServer(a)
	return srv.Run(ctx, addr,
		time.Duration(cfg.Server.ReadTimeout)*time.Second,
		time.Duration(cfg.Server.WriteTimeout)*time.Second)
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := prepare(c.Context, a); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	answer, err := a.Ask(c.Context, core.Question{Text: question, ContextLimit: c.Int("context-limit")})
	if err != nil {
		return err
	}
	printAnswer(c.App.Writer, answer)
	return nil
}

func printAnswer(w io.Writer, answer *core.Answer) {
	fmt.Fprintln(w, answer.Text)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Confiance: %.2f | Temps: %.2fs\n", answer.Confidence, answer.ProcessingTime)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		printSources(w, answer.Sources)
	}
}

func printSources(w io.Writer, sources []core.ScoredSource) {
	for i, src := range sources {
		label := src.Doc
		if src.Article != "" {
			label += ", article " + src.Article
		}
		fmt.Fprintf(w, "  %d. %s (%s) pertinence %.2f\n", i+1, strings.TrimPrefix(label, ", "), src.SourceFile, src.Relevance)
	}
}

func reloadCommand(c *cli.Context) error {
	a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.Reload(c.Context)
	fmt.Fprintln(c.App.Writer, result.Message)
	if result.DocumentsProcessed == 0 {
		return cli.Exit("", 1)
	}
	fmt.Fprintf(c.App.Writer, "Temps: %.2fs\n", result.ProcessingTime)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}
	if c.Int("limit") <= 0 {
		return errors.New("limit must be greater than 0")
	}

	a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := prepare(c.Context, a); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	results := a.Search(c.Context, search.Query{
		Text:      query,
		Partition: c.String("partition"),
		Limit:     c.Int("limit"),
		MinScore:  c.Float64("min-score"),
	})
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "Aucun passage trouvé.")
		return nil
	}
	printSources(c.App.Writer, results)
	return nil
}

func historyCommand(c *cli.Context) error {
	cfg, err := mustConfig(c)
	if err != nil {
		return err
	}
	h, err := adala.OpenHistory(c.Context, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer h.Close()

	if c.Bool("clear") {
		if err := h.Clear(c.Context); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "Historique vidé avec succès")
		return nil
	}

	entries := h.List(c.Int("limit"))
	if len(entries) == 0 {
		fmt.Fprintln(c.App.Writer, "Aucune conversation.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(c.App.Writer, "[%s] %s\n  %s\n  (confiance %.2f, %d sources)\n",
			e.Timestamp.Format(time.RFC3339), e.Question, e.Answer, e.Confidence, len(e.Sources))
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	a, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Open(c.Context); err != nil {
		slog.Debug("index not reusable", "err", err)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(a.Status(c.Context))
}
