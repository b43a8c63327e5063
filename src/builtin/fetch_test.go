package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchServerTools(t *testing.T) {
	s, err := NewFetchServer(nil)
	require.NoError(t, err)

	assert.Equal(t, "fetch", s.Name())
	tools := s.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "fetch", tools[0].Name)
	assert.Contains(t, string(tools[0].InputSchema), "url")
}

func TestFetchServerHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Title</h1><p>Hello world</p><script>evil()</script></body></html>"))
	}))
	defer srv.Close()

	s, err := NewFetchServer(nil)
	require.NoError(t, err)

	out, err := s.CallTool(context.Background(), "fetch", map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "Hello world")
	assert.NotContains(t, out, "evil()")
}

func TestFetchServerJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s, err := NewFetchServer(nil)
	require.NoError(t, err)

	out, err := s.CallTool(context.Background(), "fetch", map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.Contains(t, out, "```json")
	assert.Contains(t, out, `{"ok":true}`)
}

func TestFetchServerBadInput(t *testing.T) {
	s, err := NewFetchServer(nil)
	require.NoError(t, err)

	_, err = s.CallTool(context.Background(), "fetch", map[string]any{})
	assert.Error(t, err)

	_, err = s.CallTool(context.Background(), "fetch", map[string]any{"url": "ftp://nope"})
	assert.Error(t, err)

	_, err = s.CallTool(context.Background(), "other", map[string]any{"url": "https://x"})
	assert.Error(t, err)
}
