package file

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("search.top_k", 5))

	watcher := NewWatcher(store)
	watcher.debounce = 10 * time.Millisecond

	var calls atomic.Int32
	watcher.Subscribe("search", func() error {
		calls.Add(1)
		return nil
	})
	watcher.Subscribe("failing", func() error { return errors.New("rejected") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// Writes before the watch is registered are not observed; keep writing
	// until the handler fires.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(store.Path(), []byte("[search]\ntop_k = 9\n"), 0600)
		return calls.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, 9, store.GetInt("search.top_k"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_InvalidFileKeepsValues(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("search.top_k", 5))

	watcher := NewWatcher(store)
	var calls atomic.Int32
	watcher.Subscribe("search", func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(store.Path(), []byte("not [valid"), 0600))
	watcher.reload()

	assert.Equal(t, 5, store.GetInt("search.top_k"))
	assert.Zero(t, calls.Load())
}

func TestWatcher_Unsubscribe(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	watcher := NewWatcher(store)
	var calls atomic.Int32
	watcher.Subscribe("search", func() error {
		calls.Add(1)
		return nil
	})
	watcher.Unsubscribe("search")

	watcher.reload()

	assert.Zero(t, calls.Load())
}
