package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcher_StartReturnsImmediately(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	path := writeRoutingFile(t, validRoutingYAML)

	w, err := NewWatcher(path, func(*RoutingConfig) {}, logger)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The caller starts the HTTP server right after this, so Start must
	// not block on the watch loop.
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return to its caller")
	}
}

func TestWatcher_ReloadOnWrite(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	path := writeRoutingFile(t, validRoutingYAML)

	reloaded := make(chan *RoutingConfig, 1)
	w, err := NewWatcher(path, func(cfg *RoutingConfig) { reloaded <- cfg }, logger)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	updated := validRoutingYAML + "\nmax_retries: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 5, cfg.MaxRetries)
	case <-time.After(3 * time.Second):
		t.Fatal("config change was not picked up")
	}
}

func TestWatcher_InvalidWriteKeepsPrevious(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	path := writeRoutingFile(t, validRoutingYAML)

	reloaded := make(chan *RoutingConfig, 1)
	w, err := NewWatcher(path, func(cfg *RoutingConfig) { reloaded <- cfg }, logger)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// No models at all: fails validation, so onChange must not fire.
	require.NoError(t, os.WriteFile(path, []byte("models: {}\n"), 0o644))

	select {
	case <-reloaded:
		t.Fatal("invalid config must not reach onChange")
	case <-time.After(2 * reloadDebounce):
	}
}
