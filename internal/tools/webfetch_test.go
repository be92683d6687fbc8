package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<html><head><title>Docs</title><style>body{}</style></head>
<body><nav>menu</nav><h1>Install</h1><p>Run the <b>installer</b>.</p>
<script>alert("x")</script><ul><li>one</li><li>two</li></ul><img alt="logo"></body></html>`

func newFetchServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fetchUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("just text"))
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWebFetchTool(t *testing.T) {
	srv := newFetchServer(t)
	tool := NewWebFetchToolWithClient(srv.Client())

	prompt := "Summarize " + srv.URL + "/page and " + srv.URL + "/plain, also " + srv.URL + "/page again"
	out, err := tool.Execute(context.Background(), map[string]any{"prompt": prompt})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Successfully fetched content from 2 of 2 URL(s):"))
	assert.Contains(t, out, "Original Request: "+prompt)
	assert.Contains(t, out, "--- Content from "+srv.URL+"/page ---")
	assert.Contains(t, out, "# Install")
	assert.Contains(t, out, "installer")
	assert.Contains(t, out, "- one")
	assert.Contains(t, out, "[Image: logo]")
	assert.NotContains(t, out, "alert(")
	assert.NotContains(t, out, "body{}")
	assert.Contains(t, out, "just text")
	assert.True(t, strings.HasSuffix(out, "--- End of fetched content ---"))
}

func TestWebFetchToolPartialFailure(t *testing.T) {
	srv := newFetchServer(t)
	tool := NewWebFetchToolWithClient(srv.Client())

	out, err := tool.Execute(context.Background(), map[string]any{
		"prompt": srv.URL + "/plain " + srv.URL + "/missing " + srv.URL + "/image",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully fetched content from 1 of 3 URL(s)")
	assert.Contains(t, out, "--- Fetch Warnings ---")
	assert.Contains(t, out, "Could not fetch "+srv.URL+"/missing: Failed to fetch: HTTP 404")
	assert.Contains(t, out, "Unsupported content type: image/png")
}

func TestWebFetchToolErrors(t *testing.T) {
	srv := newFetchServer(t)
	tool := NewWebFetchToolWithClient(srv.Client())
	ctx := context.Background()

	_, err := tool.Execute(ctx, map[string]any{"prompt": "no links here"})
	assert.ErrorContains(t, err, "no URLs found")

	_, err = tool.Execute(ctx, map[string]any{"prompt": srv.URL + "/missing"})
	assert.ErrorContains(t, err, "failed to fetch content from any of the 1 URL(s)")

	var many []string
	for i := 0; i <= maxFetchURLs; i++ {
		many = append(many, srv.URL+"/plain?n="+strings.Repeat("x", i+1))
	}
	_, err = tool.Execute(ctx, map[string]any{"prompt": strings.Join(many, " ")})
	assert.ErrorContains(t, err, "too many URLs")

	assert.Equal(t, PermissionNetwork, tool.Permission())
}

func TestUniqueURLs(t *testing.T) {
	got := uniqueURLs([]string{"https://a.dev/x.", "https://a.dev/x", "https://b.dev)"})
	assert.Equal(t, []string{"https://a.dev/x", "https://b.dev"}, got)
}
