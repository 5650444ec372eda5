package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaedge/internal/config"
	"github.com/vyrodovalexey/avaedge/internal/dispatch"
	"github.com/vyrodovalexey/avaedge/internal/vhost"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func newTestServer(t *testing.T, vhosts ...config.VirtualHost) *Server {
	t.Helper()
	tree, err := vhost.Build(&config.Config{VHosts: vhosts}, nil)
	require.NoError(t, err)
	d := dispatch.NewDispatcher(tree, nil)
	return NewServer(&config.Config{}, d, nil)
}

func doRequest(s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if header != nil {
		req.Header = header
	}
	rec := httptest.NewRecorder()
	s.handle(rec, req)
	return rec
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestServer_NoMatchingHost(t *testing.T) {
	t.Parallel()

	s := newTestServer(t,
		config.VirtualHost{Hosts: []string{"a.example"}},
		config.VirtualHost{Hosts: []string{"b.example"}},
	)

	rec := doRequest(s, http.MethodGet, "http://missing.example/x", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "404 Not Found")
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
}

func TestServer_Redirects(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, config.VirtualHost{
		Hosts: []string{"example.com"},
		PathConfig: config.PathConfig{
			RewriteRules: []config.RewriteRule{
				{From: "/moved/*", To: "https://new.example${tail}", Type: "redirect"},
				{From: "/gone", To: "https://new.example/", Type: "permanent"},
			},
		},
	})

	rec := doRequest(s, http.MethodGet, "http://example.com/moved/page", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://new.example/page", rec.Header().Get("Location"))
	assert.Contains(t, rec.Body.String(), "307 Temporary Redirect")

	rec = doRequest(s, http.MethodGet, "http://example.com/gone", nil)
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "https://new.example/", rec.Header().Get("Location"))
}

func TestServer_HeadOmitsBody(t *testing.T) {
	t.Parallel()

	s := newTestServer(t,
		config.VirtualHost{Hosts: []string{"a.example"}},
		config.VirtualHost{Hosts: []string{"b.example"}},
	)

	rec := doRequest(s, http.MethodHead, "http://missing.example/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Length"))
}

func TestServer_StaticResponse(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, config.VirtualHost{
		Hosts: []string{"example.com"},
		Subpaths: []config.Subpath{
			{
				Path: "/healthz",
				PathConfig: config.PathConfig{
					StaticResponse: &config.StaticResponse{
						Body:    `{"status":"ok"}`,
						Headers: map[string]string{"Content-Type": "application/json"},
					},
				},
			},
		},
	})

	rec := doRequest(s, http.MethodGet, "http://example.com/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestServer_ServesFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "index.html", "<p>home</p>")
	writeFile(t, root, "docs/guide.html", "<p>guide</p>")

	s := newTestServer(t, config.VirtualHost{
		Hosts: []string{"example.com"},
		PathConfig: config.PathConfig{
			RootDir:    strPtr(root),
			IndexFiles: []string{"index.html"},
		},
	})

	rec := doRequest(s, http.MethodGet, "http://example.com/docs/guide.html", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>guide</p>", rec.Body.String())

	rec = doRequest(s, http.MethodGet, "http://example.com/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>home</p>", rec.Body.String())

	rec = doRequest(s, http.MethodGet, "http://example.com/missing.html", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(s, http.MethodPost, "http://example.com/docs/guide.html", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestServer_NoRootDirIs404(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, config.VirtualHost{
		Hosts: []string{"example.com"},
	})

	rec := doRequest(s, http.MethodGet, "http://example.com/anything", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CanonicalizeURI(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "docs/index.html", "<p>docs</p>")

	s := newTestServer(t, config.VirtualHost{
		Hosts: []string{"example.com"},
		PathConfig: config.PathConfig{
			RootDir:         strPtr(root),
			IndexFiles:      []string{"index.html"},
			CanonicalizeURI: boolPtr(true),
		},
	})

	rec := doRequest(s, http.MethodGet, "http://example.com/docs//./index.html", nil)
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/docs/index.html", rec.Header().Get("Location"))

	rec = doRequest(s, http.MethodGet, "http://example.com/docs", nil)
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/docs/", rec.Header().Get("Location"))

	rec = doRequest(s, http.MethodGet, "http://example.com/docs/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>docs</p>", rec.Body.String())
}

func TestServer_TraversalCannotEscapeRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "safe.txt", "safe")

	s := newTestServer(t, config.VirtualHost{
		Hosts: []string{"example.com"},
		PathConfig: config.PathConfig{
			RootDir: strPtr(root),
		},
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.URL.Path = "/../../../etc/passwd"
	rec := httptest.NewRecorder()
	s.handle(rec, req)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestServer_PrecompressedSibling(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "site.css", "body{}")
	writeFile(t, root, "site.css.gz", "fake-gzip-bytes")

	s := newTestServer(t, config.VirtualHost{
		Hosts: []string{"example.com"},
		PathConfig: config.PathConfig{
			RootDir:       strPtr(root),
			Precompressed: []string{"gz"},
		},
	})

	header := http.Header{}
	header.Set("Accept-Encoding", "gzip, br")
	rec := doRequest(s, http.MethodGet, "http://example.com/site.css", header)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "fake-gzip-bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")

	// Without the codec in Accept-Encoding the original is served.
	rec = doRequest(s, http.MethodGet, "http://example.com/site.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "body{}", rec.Body.String())
}

func TestServer_DynamicGzip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "page.html", "<p>compress me</p>")

	s := newTestServer(t, config.VirtualHost{
		Hosts: []string{"example.com"},
		PathConfig: config.PathConfig{
			RootDir:           strPtr(root),
			CompressionLevels: map[string]int{"gzip": 6},
		},
	})

	header := http.Header{}
	header.Set("Accept-Encoding", "gzip")
	rec := doRequest(s, http.MethodGet, "http://example.com/page.html", header)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "<p>compress me</p>", string(body))
}

func TestServer_RateLimit(t *testing.T) {
	t.Parallel()

	handler := rateLimitMiddleware(
		&config.RateLimit{RPS: 1, Burst: 1},
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestResponseText(t *testing.T) {
	t.Parallel()

	text := responseText(http.StatusNotFound)
	assert.Contains(t, text, "<title>404 Not Found</title>")
	assert.Contains(t, text, "<h1>404 Not Found</h1>")
}
