package highlight

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `export default function Card({ title }: { title: string }) {
  return <div className="card">{title}</div>;
}
`

func TestHTML(t *testing.T) {
	out, err := HTML(sample, "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<pre"))
	assert.Contains(t, out, "style=")
	assert.Contains(t, out, "Card")
	assert.Contains(t, out, "&lt;")
	assert.NotContains(t, out, "<div className")
}

func TestHTMLUnknownLanguage(t *testing.T) {
	out, err := HTML("<b>hi</b>", "no-such-language")
	require.NoError(t, err)
	assert.Contains(t, out, "&lt;b&gt;")
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Terminal(&buf, sample, ""))
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "Card")
}
