package staticfileserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/devserve/v2/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNotFound_Resolve(t *testing.T) {
	bundle := fstest.MapFS{
		"404.html": &fstest.MapFile{Data: []byte("bundle 404")},
	}

	testCases := []struct {
		name        string
		spa         bool
		rootIndex   bool
		root404     bool
		bundle      fstest.MapFS
		wantStatus  int
		wantBody    string
		wantContent string
	}{
		{"spa serves index", true, true, true, bundle, http.StatusOK, "root index", htmlType},
		{"spa without index falls back to bundle", true, false, true, bundle, http.StatusNotFound, "bundle 404", htmlType},
		{"bundle page wins over root page", false, true, true, bundle, http.StatusNotFound, "bundle 404", htmlType},
		{"root page when bundle has none", false, true, true, nil, http.StatusNotFound, "root 404", htmlType},
		{"plain text last", false, true, false, nil, http.StatusNotFound, notFoundPlain, plainTextType},
		{"empty bundle", false, false, false, fstest.MapFS{}, http.StatusNotFound, notFoundPlain, plainTextType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			if tc.rootIndex {
				writeFile(t, filepath.Join(root, "index.html"), "root index")
			}
			if tc.root404 {
				writeFile(t, filepath.Join(root, "404.html"), "root 404")
			}

			cfg := config.ServerConfig{Port: config.DefaultPort, RootDirectory: root, SPAMode: tc.spa}
			var nf *NotFound
			if tc.bundle == nil {
				nf = NewNotFound(cfg, nil, nil)
			} else {
				nf = NewNotFound(cfg, tc.bundle, nil)
			}

			doc := nf.Resolve()
			assert.Equal(t, tc.wantStatus, doc.Status)
			assert.Equal(t, tc.wantBody, string(doc.Body))
			assert.Equal(t, tc.wantContent, doc.ContentType)
		})
	}
}

func TestNotFound_Attempt(t *testing.T) {
	cfg := config.ServerConfig{Port: config.DefaultPort, RootDirectory: t.TempDir()}
	nf := NewNotFound(cfg, nil, nil)

	assert.Equal(t, StageNotFound, nf.Name())

	resp, err := nf.Attempt(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, notFoundPlain, string(resp.Body))
}
