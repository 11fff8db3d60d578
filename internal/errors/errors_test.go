package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewErrorError(t *testing.T) {
	err := NewFileUnavailableError("SOURCE_UNREADABLE", "component file not readable", fmt.Errorf("open Demo.tsx: no such file")).
		WithComponent("Demo")

	msg := err.Error()
	assert.Contains(t, msg, "[SOURCE_UNREADABLE]")
	assert.Contains(t, msg, "component:Demo")
	assert.Contains(t, msg, "component file not readable")
	assert.Contains(t, msg, "no such file")
	assert.Equal(t, "component file not readable", err.Reason())
}

func TestPreviewErrorIs(t *testing.T) {
	err := fmt.Errorf("resolve: %w", NewNotFoundError("COMPONENT_NOT_FOUND", "component 'x' not found after 3 attempts"))

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrFileUnavailable))
	assert.True(t, Is(err, NewNotFoundError("COMPONENT_NOT_FOUND", "")))
	assert.False(t, Is(err, NewNotFoundError("OTHER", "")))
}

func TestHTTPStatus(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", NewNotFoundError("X", "missing"), http.StatusNotFound},
		{"file unavailable", NewFileUnavailableError("X", "unreadable", nil), http.StatusNotFound},
		{"resolution", NewResolutionError("X", "registry unreadable", nil), http.StatusNotFound},
		{"validation", NewValidationError("X", "bad id"), http.StatusBadRequest},
		{"io", NewIOError("X", "disk", nil), http.StatusInternalServerError},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, HTTPStatus(tc.err))
		})
	}
}

func TestReason(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewNotFoundError("X", "component 'abc' not found after 3 attempts"))
	assert.Equal(t, "component 'abc' not found after 3 attempts", Reason(wrapped))
	assert.Equal(t, "plain", Reason(fmt.Errorf("plain")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "X", "msg"))

	base := fmt.Errorf("permission denied")
	wrapped := Wrap(base, ErrorTypeResolution, "REGISTRY_READ", "registry unreadable")
	require.NotNil(t, wrapped)
	assert.True(t, wrapped.Retryable)
	assert.ErrorIs(t, wrapped, base)

	rewrapped := WrapIO(NewFileUnavailableError("A", "b", nil).WithComponent("Card"), "C", "d")
	assert.Equal(t, "Card", rewrapped.Component)
	assert.True(t, rewrapped.Retryable)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewResolutionError("X", "y", nil)))
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", NewFileUnavailableError("X", "y", nil))))
	assert.False(t, IsRetryable(NewNotFoundError("X", "y")))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}

type recordingLogger struct {
	warns  []string
	errors []string
}

func (r *recordingLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	r.errors = append(r.errors, msg)
}

func (r *recordingLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	r.warns = append(r.warns, msg)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	handler := NewErrorHandler(logger)
	ctx := context.Background()

	handler.Handle(ctx, nil)
	handler.Handle(ctx, NewNotFoundError("X", "not there"))
	handler.Handle(ctx, NewInternalError("X", "exploded", nil))
	handler.Handle(ctx, fmt.Errorf("raw"))

	assert.Equal(t, []string{"not there"}, logger.warns)
	assert.Equal(t, []string{"exploded", "Unexpected error"}, logger.errors)
}

func TestEnhancedError(t *testing.T) {
	cause := fmt.Errorf("listen tcp :3000: bind: address already in use")
	err := NewEnhancedError("Failed to start server on port 3000", cause, ServerStartError(cause, 3000))

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Port 3000 is taken")
	assert.Contains(t, err.Error(), "$ mimicry health --url http://localhost:3000")
	assert.Contains(t, err.Error(), "$ mimicry serve --port 3001")
	assert.Contains(t, err.Error(), "Cause: listen tcp")
	assert.Equal(t, "title", FormatSuggestions("title", nil))
}

func TestEnhancedErrorWithoutSuggestions(t *testing.T) {
	err := NewEnhancedError("Failed to open json registry in ./c", fmt.Errorf("boom"), nil)
	assert.Equal(t, "Failed to open json registry in ./c: boom", err.Error())
}

func TestConfigurationErrorSuggestions(t *testing.T) {
	tests := []struct {
		name      string
		err       string
		wantTitle string
	}{
		{"backend", `invalid configuration: registry config: unsupported backend "mongo" (want "json" or "sqlite")`, "Pick a registry backend"},
		{"database path", "invalid configuration: registry config: database_path: path contains traversal: ../x.db", "Point registry.database_path at a local file"},
		{"components dir", "invalid configuration: registry config: dir: empty path", "Check the components directory"},
		{"images dir", "invalid configuration: gallery config: images_dir: empty path", "Check gallery.images_dir"},
		{"timings", "invalid configuration: preview config: render_timeout must be positive", "Use positive preview timings"},
		{"port", "invalid configuration: server config: port 70000 is not in valid range 0-65535", "Override the listen address on the command line"},
		{"yaml", "While parsing config: yaml: line 3: did not find expected key", "Fix the YAML syntax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfigurationError(tt.err, ".mimicry.yml")
			require.Len(t, got, 2)
			assert.Equal(t, "mimicry config validate --file .mimicry.yml", got[0].Run)
			assert.Equal(t, tt.wantTitle, got[1].Title)
		})
	}
}

func TestRegistryOpenErrorSuggestions(t *testing.T) {
	got := RegistryOpenError(fmt.Errorf("open ./c/registry.json: permission denied"), "json", "./c")
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Detail, "json registry writes into ./c")

	got = RegistryOpenError(fmt.Errorf("sqlite: database is locked"), "sqlite", "./c")
	require.Len(t, got, 1)
	assert.Equal(t, "Check the SQLite registry", got[0].Title)

	assert.Empty(t, RegistryOpenError(fmt.Errorf("boom"), "json", "./c"))
}
