package watch

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

func TestRunInvokesCallbackOnFileChange(t *testing.T) {
	dir := t.TempDir()

	w, err := New(Options{Root: dir, Debounce: 30 * time.Millisecond})
	require.NoError(t, err)

	var calls int32
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx, func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRunOnOpenTriggersImmediateRun(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{Root: dir, Debounce: 30 * time.Millisecond, RunOnOpen: true})
	require.NoError(t, err)

	var calls int32
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx, func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
		close(done)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestIsExcludedMatchesCacheDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".conflow", "cache"), 0o755))

	w, err := New(Options{Root: dir, CacheDir: ".conflow/cache"})
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.isExcluded(filepath.Join(dir, ".conflow", "cache")))
	assert.True(t, w.isExcluded(filepath.Join(dir, ".conflow", "cache", "ab")))
	assert.False(t, w.isExcluded(filepath.Join(dir, "stages")))
}
