package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.NotNil(t, watcher.logger)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestStopTwice(t *testing.T) {
	watcher, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop())
}

func TestFilters(t *testing.T) {
	testCases := []struct {
		name   string
		filter FileFilter
		path   string
		want   bool
	}{
		{"source", SourceFilter, "/c/LoginScreen.tsx", true},
		{"source rejects ts", SourceFilter, "/c/util.ts", false},
		{"registry name", NameFilter("registry.json"), "/c/registry.json", true},
		{"other json", NameFilter("registry.json"), "/c/other.json", false},
		{"temp registry", NoTempFilter, "/c/.registry-123.json", false},
		{"swap file", NoTempFilter, "/c/Card.tsx~", false},
		{"plain file", NoTempFilter, "/c/Card.tsx", true},
		{"any of", AnyOf(SourceFilter, NameFilter("registry.json")), "/c/registry.json", true},
		{"any of none", AnyOf(SourceFilter, NameFilter("registry.json")), "/c/notes.md", false},
		{"any of empty", AnyOf(), "/c/Card.tsx", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter(tc.path))
		})
	}
}

func TestFiltersAreConjunctive(t *testing.T) {
	watcher, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(NoTempFilter)
	watcher.AddFilter(SourceFilter)

	assert.True(t, watcher.accepts("/c/Card.tsx"))
	assert.False(t, watcher.accepts("/c/.Card.tsx"))
	assert.False(t, watcher.accepts("/c/Card.md"))
}

func TestDebouncerDeduplicatesByPath(t *testing.T) {
	d := &Debouncer{
		delay:  20 * time.Millisecond,
		events: make(chan ChangeEvent, 10),
		output: make(chan []ChangeEvent, 10),
	}

	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "b.tsx"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "a.tsx"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "b.tsx"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.tsx", events[0].Path)
		assert.Equal(t, "b.tsx", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(time.Second):
		t.Fatal("debouncer did not flush")
	}
}

func TestDebouncerFlushEmpty(t *testing.T) {
	d := &Debouncer{output: make(chan []ChangeEvent, 1)}
	d.flush()
	assert.Empty(t, d.output)
}

func TestTouches(t *testing.T) {
	events := []ChangeEvent{{Path: "/c/Card.tsx"}, {Path: "/c/registry.json"}}
	assert.True(t, Touches(events, "registry.json"))
	assert.False(t, Touches(events[:1], "registry.json"))
}

func TestAddPathCreatesDirectory(t *testing.T) {
	watcher, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	dir := filepath.Join(t.TempDir(), "generated_components")
	require.NoError(t, watcher.AddPath(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Error(t, watcher.AddPath(""))

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.Error(t, watcher.AddPath(file))
}

func TestComponentsWatcherReportsChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping filesystem watcher test in short mode")
	}

	dir := t.TempDir()
	watcher, err := NewComponentsWatcher(dir, "registry.json", 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	var mu sync.Mutex
	var batches [][]ChangeEvent
	watcher.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, events)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".registry-1.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Card.tsx"), []byte("export default function Card() {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "registry.json"), []byte("{}"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		var all []ChangeEvent
		for _, b := range batches {
			all = append(all, b...)
		}
		return Touches(all, "Card.tsx") && Touches(all, "registry.json")
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, b := range batches {
		assert.False(t, Touches(b, "notes.md"))
		assert.False(t, Touches(b, ".registry-1.json"))
	}
}

func TestHandlerErrorsDoNotStopProcessing(t *testing.T) {
	dir := t.TempDir()
	watcher, err := NewComponentsWatcher(dir, "registry.json", 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	var mu sync.Mutex
	calls := 0
	watcher.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return assert.AnError
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.tsx"), []byte("a"), 0o644))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "B.tsx"), []byte("b"), 0o644))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, 3*time.Second, 20*time.Millisecond)
}
