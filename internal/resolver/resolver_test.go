package resolver

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/types"
)

// scriptedSource returns registry snapshots per read; the last one repeats.
type scriptedSource struct {
	mu        sync.Mutex
	snapshots []func() (*types.Registry, error)
	files     map[string]string
	loads     int
}

func (s *scriptedSource) Load(ctx context.Context) (*types.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.loads
	if i >= len(s.snapshots) {
		i = len(s.snapshots) - 1
	}
	s.loads++
	return s.snapshots[i]()
}

func (s *scriptedSource) ReadSource(ctx context.Context, filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.files[filename]
	if !ok {
		return "", errors.NewFileUnavailableError("SOURCE_UNREADABLE", "component file not readable", fmt.Errorf("open %s: no such file", filename))
	}
	return code, nil
}

func registryOf(entries ...types.ComponentEntry) func() (*types.Registry, error) {
	return func() (*types.Registry, error) {
		return &types.Registry{Components: entries}, nil
	}
}

func entry(id, name string) types.ComponentEntry {
	return types.ComponentEntry{ID: id, Name: name, Filename: name + ".tsx"}
}

type sleepRecorder struct {
	calls []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return ctx.Err()
}

func TestResolveExactFirstAttempt(t *testing.T) {
	src := &scriptedSource{
		snapshots: []func() (*types.Registry, error){registryOf(entry("comp_123", "Demo"))},
		files:     map[string]string{"Demo.tsx": "code"},
	}
	rec := &sleepRecorder{}

	res, err := New(src, WithSleeper(rec.sleep)).Resolve(context.Background(), "comp_123")
	require.NoError(t, err)

	assert.Equal(t, "comp_123", res.Component.ID)
	assert.Equal(t, "code", res.SourceText)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, rec.calls)
	assert.Equal(t, 1, src.loads)
}

func TestResolveEntryAppearsOnSecondRead(t *testing.T) {
	src := &scriptedSource{
		snapshots: []func() (*types.Registry, error){
			registryOf(),
			registryOf(entry("comp_123", "Demo")),
		},
		files: map[string]string{"Demo.tsx": "code"},
	}
	delay := 100 * time.Millisecond

	start := time.Now()
	res, err := New(src, WithDelay(delay)).Resolve(context.Background(), "comp_123")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.GreaterOrEqual(t, elapsed, delay)
	assert.Less(t, elapsed, 2*delay)
}

func TestResolveNotFoundAfterExhaustion(t *testing.T) {
	src := &scriptedSource{
		snapshots: []func() (*types.Registry, error){registryOf(entry("comp_999", "Other"))},
	}
	delay := 50 * time.Millisecond

	start := time.Now()
	_, err := New(src, WithDelay(delay)).Resolve(context.Background(), "comp_123")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, "component 'comp_123' not found after 3 attempts", errors.Reason(err))
	assert.Equal(t, 3, src.loads)
	assert.GreaterOrEqual(t, elapsed, 2*delay)
	assert.Less(t, elapsed, 3*delay)
}

func TestResolveSleepsBetweenAttemptsOnly(t *testing.T) {
	src := &scriptedSource{snapshots: []func() (*types.Registry, error){registryOf()}}
	rec := &sleepRecorder{}

	_, err := New(src, WithAttempts(4), WithDelay(time.Second), WithSleeper(rec.sleep)).
		Resolve(context.Background(), "missing")
	require.Error(t, err)

	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, rec.calls)
	assert.Equal(t, 4, src.loads)
}

func TestResolveFileUnreadable(t *testing.T) {
	src := &scriptedSource{
		snapshots: []func() (*types.Registry, error){registryOf(entry("comp_123", "Demo"))},
		files:     map[string]string{},
	}
	rec := &sleepRecorder{}

	_, err := New(src, WithSleeper(rec.sleep)).Resolve(context.Background(), "comp_123")
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrFileUnavailable)
	assert.Equal(t, "component file not readable", errors.Reason(err))
	assert.Len(t, rec.calls, 2)
	assert.Equal(t, 404, errors.HTTPStatus(err))
}

func TestResolveFileFlushedLate(t *testing.T) {
	src := &scriptedSource{
		snapshots: []func() (*types.Registry, error){registryOf(entry("comp_123", "Demo"))},
		files:     map[string]string{},
	}
	rec := &sleepRecorder{}
	sleeper := func(ctx context.Context, d time.Duration) error {
		src.mu.Lock()
		src.files["Demo.tsx"] = "late code"
		src.mu.Unlock()
		return rec.sleep(ctx, d)
	}

	res, err := New(src, WithSleeper(sleeper)).Resolve(context.Background(), "comp_123")
	require.NoError(t, err)
	assert.Equal(t, "late code", res.SourceText)
	assert.Equal(t, 2, res.Attempts)
}

func TestResolveRegistryError(t *testing.T) {
	broken := func() (*types.Registry, error) {
		return nil, errors.WrapIO(fmt.Errorf("unexpected end of JSON input"), "REGISTRY_PARSE", "cannot parse registry.json")
	}
	src := &scriptedSource{snapshots: []func() (*types.Registry, error){broken}}
	rec := &sleepRecorder{}

	_, err := New(src, WithSleeper(rec.sleep)).Resolve(context.Background(), "comp_123")
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrResolution)
	assert.True(t, errors.IsResolutionFailure(err))
	assert.Equal(t, 3, src.loads)
}

func TestResolveRegistryErrorThenRecovers(t *testing.T) {
	broken := func() (*types.Registry, error) {
		return nil, fmt.Errorf("partial write")
	}
	src := &scriptedSource{
		snapshots: []func() (*types.Registry, error){broken, registryOf(entry("comp_1", "Demo"))},
		files:     map[string]string{"Demo.tsx": "ok"},
	}
	rec := &sleepRecorder{}

	res, err := New(src, WithSleeper(rec.sleep)).Resolve(context.Background(), "comp_1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
}

func TestResolveContextCancelled(t *testing.T) {
	src := &scriptedSource{snapshots: []func() (*types.Registry, error){registryOf()}}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := New(src, WithDelay(10*time.Second)).Resolve(ctx, "comp_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestResolveEmptyID(t *testing.T) {
	src := &scriptedSource{snapshots: []func() (*types.Registry, error){registryOf(entry("comp_1", "Demo"))}}

	_, err := New(src).Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Equal(t, 0, src.loads)
}

func TestMatch(t *testing.T) {
	reg := &types.Registry{Components: []types.ComponentEntry{
		entry("comp_1712345678901_a1b2c3d4", "HeroSection"),
		entry("comp_1712345678999_ffff0000", "PricingCard"),
		{ID: "legacy-7", Name: "Legacy Widget", Filename: "LegacyWidget.tsx"},
	}}

	tests := []struct {
		name      string
		requested string
		wantID    string
	}{
		{"exact", "comp_1712345678999_ffff0000", "comp_1712345678999_ffff0000"},
		{"truncated id", "comp_1712345678901_a1b2", "comp_1712345678901_a1b2c3d4"},
		{"id with suffix", "comp_1712345678901_a1b2c3d4-preview", "comp_1712345678901_a1b2c3d4"},
		{"by name", "PricingCard", "comp_1712345678999_ffff0000"},
		{"by name with spaces", "Legacy Widget", "legacy-7"},
		{"by filename stem", "LegacyWidget", "legacy-7"},
		{"generated prefix skips name fallback", "comp_HeroSection", ""},
		{"unknown", "Nope", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(reg, tt.requested)
			if tt.wantID == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestMatchPrefersExactOverSubstring(t *testing.T) {
	reg := &types.Registry{Components: []types.ComponentEntry{
		entry("comp_12", "Short"),
		entry("comp_123", "Long"),
	}}

	got, ok := Match(reg, "comp_123")
	require.True(t, ok)
	assert.Equal(t, "Long", got.Name)
}
