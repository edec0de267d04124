package staticfileserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/devserve/v2/internal/assets"
	"example.com/devserve/v2/internal/config"
	"example.com/devserve/v2/internal/logger"
	"example.com/devserve/v2/internal/router"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0xff}

// newTestSite lays out a small site:
//
//	/index.html          (only when withIndex)
//	/style.css
//	/logo.png
//	/.env
//	/docs/guide.md
//	/docs/api/           (empty)
//	/blog/index.html
func newTestSite(t *testing.T, withIndex bool) string {
	t.Helper()
	root := t.TempDir()
	if withIndex {
		writeFile(t, filepath.Join(root, "index.html"), "<h1>home</h1>")
	}
	writeFile(t, filepath.Join(root, "style.css"), "body{}")
	require.NoError(t, os.WriteFile(filepath.Join(root, "logo.png"), pngHeader, 0644))
	writeFile(t, filepath.Join(root, ".env"), "SECRET=1")
	writeFile(t, filepath.Join(root, "docs", "guide.md"), "# Guide")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "api"), 0755))
	writeFile(t, filepath.Join(root, "blog", "index.html"), "<h1>blog</h1>")
	return root
}

func newTestRouter(t *testing.T, root string, spa bool, bundle fstest.MapFS) *router.Router {
	t.Helper()
	cfg := config.ServerConfig{Port: config.DefaultPort, RootDirectory: root, SPAMode: spa}

	var sfs *StaticFileServer
	var err error
	if bundle == nil {
		sfs, err = New(cfg, assets.FS(), logger.NewDiscardLogger())
	} else {
		sfs, err = New(cfg, bundle, logger.NewDiscardLogger())
	}
	require.NoError(t, err)

	r, err := router.NewRouter(sfs.Stages(), logger.NewDiscardLogger(), nil)
	require.NoError(t, err)
	return r
}

func do(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.ServerConfig{}, nil, nil)
	assert.Error(t, err)

	sfs, err := New(config.ServerConfig{RootDirectory: "."}, nil, nil)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(sfs.cfg.RootDirectory))
}

func TestStages_Order(t *testing.T) {
	r := newTestRouter(t, t.TempDir(), false, nil)
	assert.Equal(t, []string{
		StageServerAsset,
		StageDirectory,
		StageRoot,
		StageStaticFile,
		StageDirectoryRedirect,
		StageNotFound,
	}, r.Stages())
}

func TestServe_RootIndex(t *testing.T) {
	r := newTestRouter(t, newTestSite(t, true), false, nil)

	rec := do(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>home</h1>", rec.Body.String())
	assert.Equal(t, htmlType, rec.Header().Get("Content-Type"))
}

func TestServe_RootListing(t *testing.T) {
	root := newTestSite(t, false)
	r := newTestRouter(t, root, false, nil)

	rec := do(r, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "Directory listing for root")
	// blog, docs, logo.png, style.css
	assert.Equal(t, 4, strings.Count(body, `<tr class="entry">`))
	assert.NotContains(t, body, `<tr class="parent">`)
	assert.NotContains(t, body, ".env")
	assert.Contains(t, body, `href="/docs/"`)
}

func TestServe_NestedListing(t *testing.T) {
	r := newTestRouter(t, newTestSite(t, false), false, nil)

	rec := do(r, http.MethodGet, "/docs/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "Directory listing for /docs")
	assert.Equal(t, 2, strings.Count(body, `<tr class="entry">`))
	assert.Equal(t, 1, strings.Count(body, `<tr class="parent">`))
	assert.Contains(t, body, `<a href="/docs/">docs</a>`)

	rec = do(r, http.MethodGet, "/docs/api/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, strings.Count(rec.Body.String(), `<tr class="entry">`))
	assert.Contains(t, rec.Body.String(), `<a href="/docs/" class="directory">📁 ..</a>`)
}

func TestServe_DotSegmentDirectory(t *testing.T) {
	r := newTestRouter(t, newTestSite(t, false), false, nil)

	rec := do(r, http.MethodGet, "/docs/../")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Directory listing for root")
	assert.NotContains(t, body, "/docs/..")
	assert.NotContains(t, body, `<tr class="parent">`)
	assert.Equal(t, 4, strings.Count(body, `<tr class="entry">`))

	rec = do(r, http.MethodGet, "/docs/api/../")
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, "Directory listing for /docs")
	assert.NotContains(t, body, "/docs/api/..")
	assert.Equal(t, 1, strings.Count(body, `<tr class="parent">`))

	rec = do(r, http.MethodGet, "/blog/./")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>blog</h1>", rec.Body.String())
}

func TestServe_DirectoryIndex(t *testing.T) {
	r := newTestRouter(t, newTestSite(t, false), false, nil)

	rec := do(r, http.MethodGet, "/blog/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>blog</h1>", rec.Body.String())
}

func TestServe_DirectoryRedirect(t *testing.T) {
	r := newTestRouter(t, newTestSite(t, false), false, nil)

	testCases := []struct {
		target   string
		location string
	}{
		{"/docs", "/docs/"},
		{"/docs/api", "/docs/api/"},
		{"/blog", "/blog/"},
		{"/docs?x=1", "/docs/?x=1"},
	}
	for _, tc := range testCases {
		rec := do(r, http.MethodGet, tc.target)
		assert.Equal(t, http.StatusFound, rec.Code, "status for %s", tc.target)
		assert.Equal(t, tc.location, rec.Header().Get("Location"), "location for %s", tc.target)
	}
}

func TestServe_StaticFiles(t *testing.T) {
	r := newTestRouter(t, newTestSite(t, false), false, nil)

	rec := do(r, http.MethodGet, "/style.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "body{}", rec.Body.String())

	rec = do(r, http.MethodGet, "/logo.png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, rec.Body.Bytes())
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))

	rec = do(r, http.MethodGet, "/docs/guide.md")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))

	// Hidden files are only left out of listings.
	rec = do(r, http.MethodGet, "/.env")
	assert.Equal(t, http.StatusOK, rec.Code)

	// A trailing slash names a directory, so files behind it are not found.
	for _, target := range []string{"/style.css/", "/docs/guide.md/", "/logo.png/"} {
		rec = do(r, http.MethodGet, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, "status for %s", target)
		assert.NotEqual(t, "body{}", rec.Body.String(), "body for %s", target)
		assert.NotEqual(t, "# Guide", rec.Body.String(), "body for %s", target)
	}
}

func TestServe_CustomMimeTypes(t *testing.T) {
	root := newTestSite(t, false)
	cfg := config.ServerConfig{
		Port:          config.DefaultPort,
		RootDirectory: root,
		MimeTypes: map[string]string{
			".MD":  "text/plain; charset=utf-8",
			".png": "text/plain",
		},
	}
	sfs, err := New(cfg, assets.FS(), logger.NewDiscardLogger())
	require.NoError(t, err)
	r, err := router.NewRouter(sfs.Stages(), logger.NewDiscardLogger(), nil)
	require.NoError(t, err)

	rec := do(r, http.MethodGet, "/docs/guide.md")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	// Binary extensions keep their fixed type.
	rec = do(r, http.MethodGet, "/logo.png")
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = do(r, http.MethodGet, "/style.css")
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestServe_PathEscape(t *testing.T) {
	root := newTestSite(t, false)
	outside := filepath.Join(filepath.Dir(root), "outside-secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0644))
	t.Cleanup(func() { os.Remove(outside) })

	r := newTestRouter(t, root, false, nil)

	for _, target := range []string{
		"/../outside-secret.txt",
		"/docs/../../outside-secret.txt",
		"/../../etc/passwd",
	} {
		rec := do(r, http.MethodGet, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, "status for %s", target)
		assert.NotContains(t, rec.Body.String(), "secret")
	}
}

func TestServe_ServerAssets(t *testing.T) {
	root := newTestSite(t, false)
	// A user file under the reserved prefix never shadows the bundle.
	writeFile(t, filepath.Join(root, "__server_assets__", "common.css"), "user css")
	r := newTestRouter(t, root, false, nil)

	rec := do(r, http.MethodGet, "/__server_assets__/common.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEqual(t, "user css", rec.Body.String())

	rec = do(r, http.MethodGet, "/__server_assets__/directory-listing.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))

	for _, target := range []string{"/__server_assets__/missing.css", "/__server_assets__/", "/__server_assets__/../index.html"} {
		rec = do(r, http.MethodGet, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, "status for %s", target)
	}

	rec = do(r, http.MethodGet, "/__server_assets__")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestServe_NotFound(t *testing.T) {
	root := newTestSite(t, false)
	writeFile(t, filepath.Join(root, "404.html"), "custom missing page")

	r := newTestRouter(t, root, false, nil)
	rec := do(r, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "404 - Page Not Found")
	assert.NotContains(t, rec.Body.String(), "custom missing page")

	r = newTestRouter(t, root, false, fstest.MapFS{})
	rec = do(r, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "custom missing page", rec.Body.String())

	require.NoError(t, os.Remove(filepath.Join(root, "404.html")))
	rec = do(r, http.MethodGet, "/nope/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "404 - Page Not Found", rec.Body.String())
	assert.Equal(t, plainTextType, rec.Header().Get("Content-Type"))
}

func TestServe_SPAFallback(t *testing.T) {
	r := newTestRouter(t, newTestSite(t, true), true, nil)

	rec := do(r, http.MethodGet, "/app/settings/profile")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>home</h1>", rec.Body.String())

	// Real files still win.
	rec = do(r, http.MethodGet, "/style.css")
	assert.Equal(t, "body{}", rec.Body.String())

	// Without an index the SPA fallback yields a normal 404.
	r = newTestRouter(t, newTestSite(t, false), true, fstest.MapFS{})
	rec = do(r, http.MethodGet, "/app/settings")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_UnreadableRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "site")
	require.NoError(t, os.Mkdir(root, 0755))
	r := newTestRouter(t, root, false, nil)
	require.NoError(t, os.Remove(root))

	rec := do(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error reading directory", rec.Body.String())
}

func TestServe_Methods(t *testing.T) {
	r := newTestRouter(t, newTestSite(t, false), false, nil)

	rec := do(r, http.MethodHead, "/style.css")
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec = do(r, method, "/style.css")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "status for %s", method)
		assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
	}
}
