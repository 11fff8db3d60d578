package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designforge/mimicry/internal/config"
	"github.com/designforge/mimicry/internal/registry"
	"github.com/designforge/mimicry/internal/resolver"
	"github.com/designforge/mimicry/internal/types"
)

const demoCode = `export default function Demo(){ return <div>Hi</div>; }`

type testEnv struct {
	server *Server
	store  *registry.JSONStore
	cfg    *config.Config
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Registry.Dir = filepath.Join(root, "components")
	cfg.Gallery.ImagesDir = filepath.Join(root, "outputs")
	cfg.Development.Watch = false

	store, err := registry.NewJSONStore(cfg.Registry.Dir, registry.WithRegistryFile(cfg.Registry.File))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	noSleep := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	s := New(cfg, store, nil, WithResolverOptions(resolver.WithSleeper(noSleep)))

	return &testEnv{server: s, store: store, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) create(t *testing.T, name, code string) ComponentResponse {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/generate", map[string]string{"name": name, "code": code})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp ComponentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func assertNoCache(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "no-cache, no-store, must-revalidate", h.Get("Cache-Control"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Equal(t, "0", h.Get("Expires"))
}

func TestCreateThenPreview(t *testing.T) {
	env := setupTestServer(t)

	created := env.create(t, "Demo", demoCode)
	assert.True(t, created.Success)
	require.NotNil(t, created.Component)
	assert.Equal(t, "/preview/"+created.Component.ID, created.PreviewURL)
	assert.Equal(t, filepath.Join(env.cfg.Registry.Dir, "Demo.tsx"), created.FilePath)

	w := env.do(t, http.MethodGet, created.PreviewURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assertNoCache(t, w.Header())

	body := w.Body.String()
	assert.Contains(t, body, "Demo")
	assert.Contains(t, body, "function Demo(")
	assert.NotContains(t, body, "export default")
	assert.NotContains(t, body, "data-mimicry-overlay-script")
}

func TestPreviewByName(t *testing.T) {
	env := setupTestServer(t)
	env.create(t, "Pricing Card", `export default function PricingCard(){ return <p>$9</p>; }`)

	w := env.do(t, http.MethodGet, "/preview/PricingCard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>Pricing Card - Preview</title>")
}

func TestPreviewNotFound(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/preview/comp_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "component 'comp_missing' not found after 3 attempts")
	assertNoCache(t, w.Header())
}

func TestPreviewFileUnavailable(t *testing.T) {
	env := setupTestServer(t)
	created := env.create(t, "Demo", demoCode)
	require.NoError(t, os.Remove(created.FilePath))

	w := env.do(t, http.MethodGet, created.PreviewURL, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "component file not readable")
}

func TestPreviewWithSelectionOverlay(t *testing.T) {
	env := setupTestServer(t)
	created := env.create(t, "Demo", demoCode)

	w := env.do(t, http.MethodGet, created.PreviewURL+"?select=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	idx := strings.Index(body, "data-mimicry-overlay-script")
	require.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, strings.LastIndex(body, "</body>"))
}

func TestPreviewWithDiagnostics(t *testing.T) {
	env := setupTestServer(t)
	env.cfg.Preview.Diagnostics = true
	created := env.create(t, "Demo", demoCode)

	w := env.do(t, http.MethodGet, created.PreviewURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegistryAPI(t *testing.T) {
	env := setupTestServer(t)
	created := env.create(t, "Demo", demoCode)
	id := created.Component.ID

	t.Run("list", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/generate", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assertNoCache(t, w.Header())

		var reg types.Registry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
		require.Len(t, reg.Components, 1)
		assert.Equal(t, id, reg.Active())
	})

	t.Run("alias", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/generate", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("get with code", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/generate?id="+id+"&withCode=true", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got types.ComponentWithCode
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, demoCode, got.Code)
		assert.Equal(t, len(demoCode), got.Length)
		assert.Equal(t, registry.Hash(demoCode), got.Hash)
	})

	t.Run("get without code", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/generate?id="+id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), `"code"`)
	})

	t.Run("update keeps id", func(t *testing.T) {
		code := `export default function Demo(){ return <div>Bye</div>; }`
		w := env.do(t, http.MethodPut, "/api/generate?id="+id, map[string]string{"code": code})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp ComponentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, id, resp.Component.ID)

		preview := env.do(t, http.MethodGet, "/preview/"+id, nil)
		assert.Contains(t, preview.Body.String(), "Bye")
	})

	t.Run("highlight", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/generate/"+id+"/highlight", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "<pre")
	})

	t.Run("delete", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/api/generate?id="+id, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, "/api/generate?id="+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.Error)
	})
}

func TestRegistryAPIValidation(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   interface{}
	}{
		{"missing code", http.MethodPost, "/api/generate", map[string]string{"name": "Demo"}},
		{"missing name", http.MethodPost, "/api/generate", map[string]string{"code": demoCode}},
		{"update without id", http.MethodPut, "/api/generate", map[string]string{"code": demoCode}},
		{"delete without id", http.MethodDelete, "/api/generate", nil},
		{"delete with path id", http.MethodDelete, "/api/generate?id=..%2Fetc", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"success":false`)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader("{"))
		w := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSelectionContext(t *testing.T) {
	env := setupTestServer(t)
	created := env.create(t, "Demo", demoCode)

	w := env.do(t, http.MethodPost, "/api/selection", map[string]interface{}{
		"componentId": created.Component.ID,
		"element": map[string]string{
			"description": "<div> Hi",
			"path":        "div#root > div",
			"tagName":     "div",
			"textContent": "Hi",
			"outerHTML":   "<div>Hi</div>",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp selectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Context, "`Demo`")
	assert.Contains(t, resp.Context, "div#root > div")

	w = env.do(t, http.MethodPost, "/api/selection", map[string]interface{}{
		"element": map[string]string{"tagName": "div"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGalleryEndpoints(t *testing.T) {
	env := setupTestServer(t)
	env.create(t, "Demo", demoCode)

	require.NoError(t, os.MkdirAll(env.cfg.Gallery.ImagesDir, 0o755))
	imagePath := filepath.Join(env.cfg.Gallery.ImagesDir, "design_test.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("\x89PNG\r\n\x1a\n"), 0o644))

	w := env.do(t, http.MethodGet, "/api/gallery", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list galleryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 2)
	kinds := map[types.GalleryItemType]bool{}
	for _, item := range list.Items {
		kinds[item.Type] = true
	}
	assert.True(t, kinds[types.GalleryItemImage])
	assert.True(t, kinds[types.GalleryItemComponent])

	w = env.do(t, http.MethodGet, "/images/design_test.png", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/images/missing.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/gallery?id=design_test&type=image", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, err := os.Stat(imagePath)
	assert.True(t, os.IsNotExist(err))

	w = env.do(t, http.MethodDelete, "/api/gallery?id=design_test&type=video", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	page := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "Gallery")
	assert.Contains(t, page.Body.String(), "/studio/")
}

func TestGalleryUpload(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/gallery", strings.NewReader("\x89PNG\r\n\x1a\n"))
	req.Header.Set("Content-Type", "image/png")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var item types.GalleryItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.True(t, strings.HasPrefix(item.ID, "design_"))
	assert.FileExists(t, filepath.Join(env.cfg.Gallery.ImagesDir, item.Name))

	req = httptest.NewRequest(http.MethodPost, "/api/gallery", strings.NewReader("text"))
	req.Header.Set("Content-Type", "text/plain")
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGalleryPageEscapesNames(t *testing.T) {
	env := setupTestServer(t)
	_, err := env.store.Create(context.Background(), types.NewComponent{
		Name:   "Card",
		Code:   demoCode,
		Prompt: `<img src=x onerror=alert(1)> a card`,
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "onerror")
	assert.Contains(t, w.Body.String(), "a card")
}

func TestStudioPage(t *testing.T) {
	env := setupTestServer(t)
	created := env.create(t, "Demo", demoCode)

	w := env.do(t, http.MethodGet, "/studio/"+created.Component.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assertNoCache(t, w.Header())

	body := w.Body.String()
	assert.Contains(t, body, `src="/preview/`+created.Component.ID+`"`)
	assert.Contains(t, body, "window.__MIMICRY_STUDIO__ = {")
	assert.Contains(t, body, `"pollInterval":1500`)
	assert.Contains(t, body, `"overlayPath":"/static/overlay.js"`)
	assert.Contains(t, body, `<script src="/static/studio.js"></script>`)

	for _, path := range []string{"/static/studio.js", "/static/overlay.js"} {
		w := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Type"), "javascript", path)
	}
}

func TestCORS(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	env.cfg.Server.Environment = "production"
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)
	env.create(t, "Demo", demoCode)

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Components)
	assert.NotEmpty(t, health.Version)
}

func TestWebSocketBroadcast(t *testing.T) {
	env := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	env.server.Run(ctx)
	defer func() { _ = env.server.Shutdown(context.Background()) }()

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return env.server.Hub().Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	created := env.create(t, "Demo", demoCode)
	require.NoError(t, env.server.handleFileChange(nil))

	// The store event and the file change may arrive in either order.
	var sawFileChange bool
	for i := 0; i < 2 && !sawFileChange; i++ {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)

		var msg UpdateMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, MessageRegistryUpdate, msg.Type)
		assert.Equal(t, created.Component.ID, msg.Target)
		sawFileChange = msg.Event == "file_change"
	}
	assert.True(t, sawFileChange)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	env := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env.server.Run(ctx)
	defer func() { _ = env.server.Shutdown(context.Background()) }()

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example"}},
	})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
