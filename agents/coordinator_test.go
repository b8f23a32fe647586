package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/adala/ai"
	"github.com/poiesic/adala/ai/mock"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRetriever serves canned passages per partition.
type fakeRetriever struct {
	mu       sync.Mutex
	passages map[string][]core.ScoredSource
	order    []string
	queries  []search.Query
}

func newFakeRetriever() *fakeRetriever {
	return &fakeRetriever{passages: map[string][]core.ScoredSource{}}
}

func (f *fakeRetriever) add(dataset string, sources ...core.ScoredSource) {
	f.order = append(f.order, dataset)
	f.passages[dataset] = sources
}

func (f *fakeRetriever) Search(_ context.Context, q search.Query) []core.ScoredSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)

	var out []core.ScoredSource
	for _, s := range f.passages[q.Partition] {
		if s.Relevance >= q.MinScore && len(out) < q.Limit {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeRetriever) Partitions(context.Context) []string {
	return f.order
}

func source(dataset, article string, relevance float64) core.ScoredSource {
	return core.ScoredSource{
		Doc:        "Loi 17-95",
		Article:    article,
		Content:    "Le capital minimum est de 300000 MAD.",
		SourceFile: dataset,
		Relevance:  relevance,
	}
}

func isSupervisor(opts ai.CompletionOptions) bool {
	return strings.HasPrefix(opts.System, "Tu es "+supervisorRole)
}

func newTestCoordinator(t *testing.T, r Retriever, c ai.Completer, opts ...Option) *Coordinator {
	t.Helper()
	coord, err := NewCoordinator(r, c, opts...)
	require.NoError(t, err)
	t.Cleanup(coord.Release)
	return coord
}

func TestNewCoordinator(t *testing.T) {
	_, err := NewCoordinator(nil, mock.NewMockCompleter("m"))
	assert.ErrorIs(t, err, ErrRetrieverRequired)

	_, err = NewCoordinator(newFakeRetriever(), nil)
	assert.ErrorIs(t, err, ErrCompleterRequired)

	coord, err := NewCoordinator(newFakeRetriever(), mock.NewMockCompleter("qwen"), WithPoolSize(0))
	require.NoError(t, err)
	defer coord.Release()
	assert.Equal(t, "qwen", coord.Model())
}

func TestCoordinator_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("no partitions never runs an agent", func(t *testing.T) {
		completer := mock.NewMockCompleter("qwen")
		coord := newTestCoordinator(t, newFakeRetriever(), completer)

		_, err := coord.Run(ctx, "capital ?", 3)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Zero(t, completer.CallCount())
	})

	t.Run("partitions without passages are unavailable", func(t *testing.T) {
		r := newFakeRetriever()
		r.add("sa.csv", source("sa.csv", "6", 0.01))
		completer := mock.NewMockCompleter("qwen")
		coord := newTestCoordinator(t, r, completer)

		_, err := coord.Run(ctx, "capital ?", 3)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Zero(t, completer.CallCount())
	})

	t.Run("verdict from specialists and supervisor", func(t *testing.T) {
		r := newFakeRetriever()
		r.add("sa.csv", source("sa.csv", "6", 0.9), source("sa.csv", "7", 0.8))
		r.add("travail.csv", source("travail.csv", "1", 0.4))
		r.add("vide.csv")

		completer := mock.NewMockCompleter("qwen")
		completer.CompleteFunc = func(_ context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
			if isSupervisor(opts) {
				return `Synthèse: {"answer": "Le capital minimum est de 300000 MAD.", "confidence": 0.85, "citations": ["sa.csv - Article 6"]}`, nil
			}
			return `{"dataset": "x.csv", "score_confiance": 0.7, "points": [{"article": "6", "resume": "capital", "source_file": "sa.csv"}]}`, nil
		}
		coord := newTestCoordinator(t, r, completer)

		verdict, err := coord.Run(ctx, "capital minimum société anonyme", 1)
		require.NoError(t, err)

		assert.Equal(t, "Le capital minimum est de 300000 MAD.", verdict.Answer)
		assert.Equal(t, 0.85, verdict.Confidence)
		assert.Equal(t, []string{"sa.csv - Article 6"}, verdict.Citations)
		// capped at max(context_limit, 3)
		assert.Len(t, verdict.Sources, 3)

		// two specialists and one supervisor
		assert.Equal(t, 3, completer.CallCount())

		for _, q := range r.queries {
			assert.Equal(t, 3, q.Limit)
			assert.Equal(t, 0.05, q.MinScore)
		}

		prompts := completer.Prompts()
		supervisorPrompt := prompts[len(prompts)-1]
		assert.Contains(t, supervisorPrompt, "[sa.csv]\n")
		assert.Contains(t, supervisorPrompt, "[travail.csv]\n")
		assert.NotContains(t, supervisorPrompt, "vide.csv")
	})

	t.Run("agents use their sampling settings", func(t *testing.T) {
		r := newFakeRetriever()
		r.add("sa.csv", source("sa.csv", "6", 0.9))

		completer := mock.NewMockCompleter("qwen")
		completer.Reply = `{"answer": "oui"}`
		coord := newTestCoordinator(t, r, completer)

		_, err := coord.Run(ctx, "q", 3)
		require.NoError(t, err)

		opts := completer.Options()
		require.Len(t, opts, 2)
		assert.Equal(t, 0.2, opts[0].Temperature)
		assert.Equal(t, 0.15, opts[1].Temperature)
		assert.Equal(t, 800, opts[1].MaxTokens)
		assert.True(t, isSupervisor(opts[1]))
	})

	t.Run("supervisor waits for every specialist", func(t *testing.T) {
		r := newFakeRetriever()
		for _, name := range []string{"a.csv", "b.csv", "c.csv", "d.csv"} {
			r.add(name, source(name, "1", 0.9))
		}

		var finished atomic.Int32
		var seenBySupervisor atomic.Int32
		completer := mock.NewMockCompleter("qwen")
		completer.CompleteFunc = func(_ context.Context, _ string, opts ai.CompletionOptions) (string, error) {
			if isSupervisor(opts) {
				seenBySupervisor.Store(finished.Load())
				return `{"answer": "oui"}`, nil
			}
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
			return "{}", nil
		}
		coord := newTestCoordinator(t, r, completer, WithPoolSize(2))

		_, err := coord.Run(ctx, "q", 3)
		require.NoError(t, err)
		assert.Equal(t, int32(4), seenBySupervisor.Load())
	})

	t.Run("failed specialists are skipped", func(t *testing.T) {
		r := newFakeRetriever()
		r.add("a.csv", source("a.csv", "1", 0.9))
		r.add("b.csv", source("b.csv", "1", 0.9))

		completer := mock.NewMockCompleter("qwen")
		completer.CompleteFunc = func(_ context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
			if isSupervisor(opts) {
				return `{"answer": "oui"}`, nil
			}
			if strings.Contains(prompt, "fichier a.csv") {
				return "", errors.New("timeout")
			}
			return "analyse libre sans JSON", nil
		}
		coord := newTestCoordinator(t, r, completer)

		verdict, err := coord.Run(ctx, "q", 3)
		require.NoError(t, err)
		assert.Equal(t, DefaultVerdictConfidence, verdict.Confidence)

		prompts := completer.Prompts()
		supervisorPrompt := prompts[len(prompts)-1]
		assert.Contains(t, supervisorPrompt, "[b.csv]\nanalyse libre sans JSON")
		assert.NotContains(t, supervisorPrompt, "[a.csv]")
	})

	t.Run("every specialist failing", func(t *testing.T) {
		r := newFakeRetriever()
		r.add("a.csv", source("a.csv", "1", 0.9))

		completer := mock.NewMockCompleter("qwen")
		completer.CompleteFunc = func(context.Context, string, ai.CompletionOptions) (string, error) {
			return "", errors.New("down")
		}
		coord := newTestCoordinator(t, r, completer)

		_, err := coord.Run(ctx, "q", 3)
		assert.ErrorIs(t, err, ErrNoJudgments)
		assert.Equal(t, 1, completer.CallCount())
	})

	t.Run("unparseable supervisor output", func(t *testing.T) {
		r := newFakeRetriever()
		r.add("a.csv", source("a.csv", "1", 0.9))

		completer := mock.NewMockCompleter("qwen")
		completer.CompleteFunc = func(_ context.Context, _ string, opts ai.CompletionOptions) (string, error) {
			if isSupervisor(opts) {
				return "Je ne peux pas répondre.", nil
			}
			return "{}", nil
		}
		coord := newTestCoordinator(t, r, completer)

		_, err := coord.Run(ctx, "q", 3)
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("empty answer", func(t *testing.T) {
		r := newFakeRetriever()
		r.add("a.csv", source("a.csv", "1", 0.9))

		completer := mock.NewMockCompleter("qwen")
		completer.Reply = `{"answer": "  ", "confidence": 0.9}`
		coord := newTestCoordinator(t, r, completer)

		_, err := coord.Run(ctx, "q", 3)
		assert.ErrorIs(t, err, ErrEmptyVerdict)
	})

	t.Run("canceled request", func(t *testing.T) {
		r := newFakeRetriever()
		r.add("a.csv", source("a.csv", "1", 0.9))

		cctx, cancel := context.WithCancel(ctx)
		completer := mock.NewMockCompleter("qwen")
		completer.CompleteFunc = func(context.Context, string, ai.CompletionOptions) (string, error) {
			cancel()
			return "{}", nil
		}
		coord := newTestCoordinator(t, r, completer)

		_, err := coord.Run(cctx, "q", 3)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, completer.CallCount())
	})
}
