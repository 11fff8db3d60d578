package overlay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collectorPage = `<!DOCTYPE html>
<html><head>
<script>
window.__msgs = [];
window.addEventListener('message', function (e) { window.__msgs.push(e.data); });
</script>
</head>
<body style="margin:0">
<main class="page">
  <button id="buy" class="btn primary" style="margin:40px;padding:20px">Buy now</button>
</main>
</body></html>`

// TestOverlayInBrowser drives a headless Chrome. It needs a local browser
// and is skipped unless MIMICRY_BROWSER_TESTS=1.
func TestOverlayInBrowser(t *testing.T) {
	if os.Getenv("MIMICRY_BROWSER_TESTS") != "1" {
		t.Skip("set MIMICRY_BROWSER_TESTS=1 to run browser tests")
	}

	doc, err := InjectString(collectorPage)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	l := launcher.New().Headless(true)
	u, err := l.Launch()
	require.NoError(t, err)
	defer l.Cleanup()

	browser := rod.New().ControlURL(u)
	require.NoError(t, browser.Connect())
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: srv.URL + "/?select=1"})
	require.NoError(t, err)
	require.NoError(t, page.WaitLoad())

	el, err := page.Element("#buy")
	require.NoError(t, err)
	require.NoError(t, el.Click(proto.InputMouseButtonLeft, 1))

	var msgs []Message
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		res, err := page.Eval(`() => JSON.stringify(window.__msgs)`)
		require.NoError(t, err)
		msgs = nil
		require.NoError(t, json.Unmarshal([]byte(res.Value.Str()), &msgs))
		if countType(msgs, MessageElementSelect) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	assert.Equal(t, 1, countType(msgs, MessageSelectorReady))
	require.Equal(t, 1, countType(msgs, MessageElementSelect))

	hoverAt, selectAt := -1, -1
	for i, m := range msgs {
		switch {
		case m.Type == MessageElementHover && m.TagName == "button" && hoverAt < 0:
			hoverAt = i
		case m.Type == MessageElementSelect:
			selectAt = i
			assert.Equal(t, "button", m.TagName)
			assert.NotEmpty(t, m.Path)
			assert.Contains(t, m.Path, "button#buy")
			assert.Contains(t, m.Description, "Buy now")
		}
	}
	require.GreaterOrEqual(t, hoverAt, 0, "expected a hover before the click")
	assert.Less(t, hoverAt, selectAt)

	_, err = page.Eval(`() => window.postMessage({type: 'clear-selection'}, '*')`)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	res, err := page.Eval(`() => JSON.stringify(window.__msgs)`)
	require.NoError(t, err)
	msgs = nil
	require.NoError(t, json.Unmarshal([]byte(res.Value.Str()), &msgs))
	assert.Equal(t, 1, countType(msgs, MessageElementDeselect))
}

func countType(msgs []Message, t MessageType) int {
	n := 0
	for _, m := range msgs {
		if m.Type == t {
			n++
		}
	}
	return n
}
