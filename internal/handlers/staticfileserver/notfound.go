package staticfileserver

import (
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"example.com/devserve/v2/internal/assets"
	"example.com/devserve/v2/internal/config"
	"example.com/devserve/v2/internal/logger"
	"example.com/devserve/v2/internal/server"
)

const (
	indexDocument  = "index.html"
	notFoundPlain  = "404 - Page Not Found"
	htmlType       = "text/html; charset=utf-8"
	plainTextType  = "text/plain; charset=utf-8"
	stageNotFound  = "not-found"
	notFoundInRoot = "404.html"
)

// Document is the body chosen for an unmatched request.
type Document struct {
	Body        []byte
	Status      int
	ContentType string
}

// NotFound picks the fallback document for requests no other stage answered.
type NotFound struct {
	cfg    config.ServerConfig
	bundle fs.FS
	log    *logger.Logger
}

// NewNotFound creates the fallback stage. bundle is the server's own asset
// bundle; it may be nil.
func NewNotFound(cfg config.ServerConfig, bundle fs.FS, lg *logger.Logger) *NotFound {
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}
	return &NotFound{cfg: cfg, bundle: bundle, log: lg}
}

// Resolve selects, in order:
//  1. the root index.html with 200, in SPA mode;
//  2. the bundle's 404.html with 404;
//  3. the root's 404.html with 404;
//  4. a plain-text message with 404.
func (n *NotFound) Resolve() Document {
	if n.cfg.SPAMode {
		if body, err := os.ReadFile(filepath.Join(n.cfg.RootDirectory, indexDocument)); err == nil {
			return Document{Body: body, Status: http.StatusOK, ContentType: htmlType}
		}
	}

	if n.bundle != nil {
		if body, err := fs.ReadFile(n.bundle, assets.NotFoundDocument); err == nil {
			return Document{Body: body, Status: http.StatusNotFound, ContentType: htmlType}
		}
	}

	if body, err := os.ReadFile(filepath.Join(n.cfg.RootDirectory, notFoundInRoot)); err == nil {
		return Document{Body: body, Status: http.StatusNotFound, ContentType: htmlType}
	}

	return Document{Body: []byte(notFoundPlain), Status: http.StatusNotFound, ContentType: plainTextType}
}

// Name implements server.Stage.
func (n *NotFound) Name() string { return stageNotFound }

// Attempt implements server.Stage; it always answers.
func (n *NotFound) Attempt(req *http.Request) (*server.Response, error) {
	doc := n.Resolve()
	n.log.Debug("Serving fallback document", logger.LogFields{
		"path":   req.URL.Path,
		"status": doc.Status,
		"spa":    n.cfg.SPAMode,
	})
	return &server.Response{Status: doc.Status, ContentType: doc.ContentType, Body: doc.Body}, nil
}
