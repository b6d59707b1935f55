package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lwdecomp/internal/filter"
)

func newTestWatcher(dirs map[string]string) *Watcher {
	w := &Watcher{
		Dirs:     dirs,
		Filter:   filter.Filter{Prefixes: filter.New("System."), Extension: ".dll"},
		Debounce: 50 * time.Millisecond,
		Run:      func(context.Context, string) error { return nil },
	}
	w.init()
	return w
}

func TestHandleEventIgnoresIneligibleFiles(t *testing.T) {
	w := newTestWatcher(map[string]string{"server": "/game/Server"})
	now := time.Now()

	assert.False(t, w.handleEvent(fsnotify.Event{Name: "/game/Server/readme.txt", Op: fsnotify.Write}, now))
	assert.False(t, w.handleEvent(fsnotify.Event{Name: "/game/Server/System.Xml.dll", Op: fsnotify.Write}, now))
	assert.False(t, w.handleEvent(fsnotify.Event{Name: "/game/Server/Game.dll", Op: fsnotify.Chmod}, now))
	assert.False(t, w.handleEvent(fsnotify.Event{Name: "/elsewhere/Game.dll", Op: fsnotify.Write}, now))
	assert.True(t, w.handleEvent(fsnotify.Event{Name: "/game/Server/Game.dll", Op: fsnotify.Create}, now))
}

func TestDueWaitsForQuietPeriod(t *testing.T) {
	w := newTestWatcher(map[string]string{"server": "/game/Server", "client": "/game/Managed"})
	start := time.Now()
	w.handleEvent(fsnotify.Event{Name: "/game/Server/A.dll", Op: fsnotify.Write}, start)
	w.handleEvent(fsnotify.Event{Name: "/game/Managed/B.dll", Op: fsnotify.Remove}, start)

	assert.Empty(t, w.due(start.Add(10*time.Millisecond)))

	w.handleEvent(fsnotify.Event{Name: "/game/Server/A.dll", Op: fsnotify.Write}, start.Add(40*time.Millisecond))
	assert.Equal(t, []string{"client"}, w.due(start.Add(60*time.Millisecond)))
	assert.Equal(t, []string{"server"}, w.due(start.Add(100*time.Millisecond)))
	assert.Empty(t, w.due(start.Add(time.Second)))
}

func TestStartRerunsBatchOnModuleChange(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	var runs []string

	w := newTestWatcher(map[string]string{"server": dir})
	w.Run = func(_ context.Context, label string) error {
		mu.Lock()
		defer mu.Unlock()
		runs = append(runs, label)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// Give the watcher time to register before writing.
	require.Eventually(t, func() bool {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Game.dll"), []byte("MZ"), 0o644))
		mu.Lock()
		defer mu.Unlock()
		return len(runs) > 0
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "server", runs[0])
}

func TestStartValidatesInput(t *testing.T) {
	assert.Error(t, (&Watcher{Dirs: map[string]string{"a": "/x"}}).Start(context.Background()))
	assert.Error(t, (&Watcher{Run: func(context.Context, string) error { return nil }}).Start(context.Background()))
}
