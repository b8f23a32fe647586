package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Watch(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sa.csv"), []byte("contenu\nx\n"), 0644))

	select {
	case ev := <-events:
		assert.Equal(t, filepath.Join(dir, "sa.csv"), ev.Path)
		assert.Contains(t, []FileOperation{FileCreated, FileModified}, ev.Operation)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for the CSV file")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := NewWatcher(nil)
	require.NoError(t, err)
	defer w.Stop()

	_, err = w.Watch(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestOnChange(t *testing.T) {
	t.Run("bursts are coalesced", func(t *testing.T) {
		events := make(chan FileEvent)
		var calls atomic.Int32
		done := make(chan struct{})

		go func() {
			defer close(done)
			OnChange(context.Background(), events, 30*time.Millisecond, func(context.Context) {
				calls.Add(1)
			})
		}()

		for range 5 {
			events <- FileEvent{Path: "a.csv", Operation: FileModified}
		}
		assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

		events <- FileEvent{Path: "b.csv", Operation: FileCreated}
		assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

		close(events)
		<-done
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("pending change flushed on close", func(t *testing.T) {
		events := make(chan FileEvent, 1)
		var calls atomic.Int32

		events <- FileEvent{Path: "a.csv", Operation: FileDeleted}
		close(events)
		OnChange(context.Background(), events, time.Hour, func(context.Context) { calls.Add(1) })

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("stops with the context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		OnChange(ctx, make(chan FileEvent), time.Millisecond, func(context.Context) {
			t.Error("unexpected call")
		})
	})
}
