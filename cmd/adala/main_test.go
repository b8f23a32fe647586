package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage/jsonfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "conversation_history.json")
	cfg := "history:\n  path: " + historyPath + "\ndata:\n  dir: " + dir + "\n"
	path := filepath.Join(dir, "adala.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path, historyPath
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	err := app.Run(append([]string{"adala"}, args...))
	return out.String(), err
}

func TestCommands(t *testing.T) {
	app := newApp()

	for _, name := range []string{"serve", "ask", "reload", "search", "history", "status"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, name)
	}

	t.Run("search defaults", func(t *testing.T) {
		cmd := findCommand(t, app, "search")
		var limit *cli.IntFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "limit" {
				limit = f
			}
		}
		require.NotNil(t, limit)
		assert.Equal(t, 5, limit.Value)
	})

	t.Run("history defaults", func(t *testing.T) {
		cmd := findCommand(t, app, "history")
		var limit *cli.IntFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "limit" {
				limit = f
			}
		}
		require.NotNil(t, limit)
		assert.Equal(t, 50, limit.Value)
	})
}

func TestArgumentValidation(t *testing.T) {
	path, _ := writeTestConfig(t)

	t.Run("ask requires a question", func(t *testing.T) {
		_, err := runApp(t, "--config", path, "ask", "  ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question")
	})

	t.Run("search requires a query", func(t *testing.T) {
		_, err := runApp(t, "--config", path, "search")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query")
	})

	t.Run("search rejects a non-positive limit", func(t *testing.T) {
		_, err := runApp(t, "--config", path, "search", "--limit", "0", "capital")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limit")
	})

	t.Run("invalid config file", func(t *testing.T) {
		_, err := runApp(t, "--config", filepath.Join(t.TempDir(), "adala.toml"), "history")
		assert.Error(t, err)
	})
}

func TestHistoryCommand(t *testing.T) {
	path, historyPath := writeTestConfig(t)

	out, err := runApp(t, "--config", path, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Aucune conversation.")

	store := jsonfile.NewHistoryStore(historyPath)
	require.NoError(t, store.Save(context.Background(), []core.HistoryEntry{
		{ID: "1", Question: "Quel est le capital minimum ?", Answer: "300000 MAD", Confidence: 0.9, Timestamp: time.Now()},
		{ID: "2", Question: "Quel est le préavis ?", Answer: "Selon le contrat", Confidence: 0.7, Timestamp: time.Now()},
	}))

	out, err = runApp(t, "--config", path, "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Quel est le préavis ?")
	assert.NotContains(t, out, "capital minimum")

	out, err = runApp(t, "--config", path, "history", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Historique vidé avec succès")

	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrintAnswer(t *testing.T) {
	var out bytes.Buffer
	printAnswer(&out, &core.Answer{
		Text:           "Le capital minimum est de 300000 MAD.",
		Confidence:     0.9,
		ProcessingTime: 1.5,
		Sources: []core.ScoredSource{
			{Doc: "Loi 17-95", Article: "5", SourceFile: "societes.csv", Relevance: 0.82},
			{Article: "6", SourceFile: "societes.csv", Relevance: 0.4},
		},
	})

	assert.Contains(t, out.String(), "Le capital minimum est de 300000 MAD.")
	assert.Contains(t, out.String(), "Confiance: 0.90 | Temps: 1.50s")
	assert.Contains(t, out.String(), "1. Loi 17-95, article 5 (societes.csv) pertinence 0.82")
	assert.Contains(t, out.String(), "2. article 6 (societes.csv) pertinence 0.40")
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG"} {
			t.Run(level, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "log-level", Value: "info"},
						&cli.StringFlag{Name: "log-format", Value: "text"},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error { return nil },
				}

				err := app.Run([]string{"test", "--log-level", level})
				assert.NoError(t, err)
			})
		}
	})

	t.Run("json format", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Value: "info"},
				&cli.StringFlag{Name: "log-format", Value: "text"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}

		assert.NoError(t, app.Run([]string{"test", "--log-format", "json"}))
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, args := range [][]string{
			{"test", "--log-level", "verbose"},
			{"test", "--log-format", "xml"},
		} {
			app := &cli.App{
				Name: "test",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "log-level", Value: "info"},
					&cli.StringFlag{Name: "log-format", Value: "text"},
				},
				Before: setupLogger,
				Action: func(c *cli.Context) error { return nil },
			}

			err := app.Run(args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid log")
		}
	})
}
