package staticfileserver

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"example.com/devserve/v2/internal/assets"
	"example.com/devserve/v2/internal/config"
	"example.com/devserve/v2/internal/logger"
	"example.com/devserve/v2/internal/server"
)

// Stage names, in chain order.
const (
	StageServerAsset       = "server-asset"
	StageDirectory         = "directory"
	StageRoot              = "root"
	StageStaticFile        = "static-file"
	StageDirectoryRedirect = "directory-redirect"
	StageNotFound          = stageNotFound
)

// reservedPrefix excludes the asset namespace, including the bare
// "/__server_assets__/" directory path, from directory handling.
const reservedPrefix = "/__server_assets__"

// StaticFileServer resolves requests against a root directory.
// It holds only immutable state and is safe for concurrent use.
type StaticFileServer struct {
	cfg          config.ServerConfig
	log          *logger.Logger
	mimeResolver *MimeTypeResolver
	bundle       fs.FS
	notFound     *NotFound
}

// New creates a StaticFileServer for cfg. bundle holds the server's own
// assets (see package assets); nil disables the asset stage's content, so
// every asset request is a 404.
func New(cfg config.ServerConfig, bundle fs.FS, lg *logger.Logger) (*StaticFileServer, error) {
	if cfg.RootDirectory == "" {
		return nil, fmt.Errorf("StaticFileServer: root directory cannot be empty")
	}
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}

	absRoot, err := filepath.Abs(cfg.RootDirectory)
	if err != nil {
		return nil, fmt.Errorf("StaticFileServer: failed to resolve root %s: %w", cfg.RootDirectory, err)
	}
	cfg.RootDirectory = absRoot

	return &StaticFileServer{
		cfg:          cfg,
		log:          lg,
		mimeResolver: NewMimeTypeResolver(cfg.MimeTypes),
		bundle:       bundle,
		notFound:     NewNotFound(cfg, bundle, lg),
	}, nil
}

// Stages returns the request chain in precedence order.
func (sfs *StaticFileServer) Stages() []server.Stage {
	return []server.Stage{
		server.StageFunc{StageName: StageServerAsset, Fn: sfs.serveAsset},
		server.StageFunc{StageName: StageDirectory, Fn: sfs.serveDirectory},
		server.StageFunc{StageName: StageRoot, Fn: sfs.serveRoot},
		server.StageFunc{StageName: StageStaticFile, Fn: sfs.serveStaticFile},
		server.StageFunc{StageName: StageDirectoryRedirect, Fn: sfs.redirectDirectory},
		sfs.notFound,
	}
}

func notHandled(reason string) error {
	return fmt.Errorf("%s: %w", reason, server.ErrNotHandled)
}

// serveAsset answers everything under assets.Prefix from the bundle.
// Unknown assets are a 404 right here; they never reach user content.
func (sfs *StaticFileServer) serveAsset(req *http.Request) (*server.Response, error) {
	if !strings.HasPrefix(req.URL.Path, assets.Prefix) {
		return nil, notHandled("not an asset path")
	}
	name := strings.TrimPrefix(req.URL.Path, assets.Prefix)

	if sfs.bundle == nil || !fs.ValidPath(name) || name == "." {
		return server.ErrorResponse(http.StatusNotFound, "Asset not found"), nil
	}
	body, err := fs.ReadFile(sfs.bundle, name)
	if err != nil {
		sfs.log.Debug("Server asset not found", logger.LogFields{"asset": name, "error": err.Error()})
		return server.ErrorResponse(http.StatusNotFound, "Asset not found"), nil
	}
	return &server.Response{Status: http.StatusOK, ContentType: AssetContentType(name), Body: body}, nil
}

// indexOrListing serves absDir's index.html if readable, else a generated
// listing. A listing error is returned as is; callers decide whether it is
// a fall-through or a 500.
func (sfs *StaticFileServer) indexOrListing(currentPath, absDir string) (*server.Response, error) {
	if body, err := os.ReadFile(filepath.Join(absDir, indexDocument)); err == nil {
		return server.HTMLResponse(http.StatusOK, body), nil
	}

	entries, err := ReadEntries(absDir)
	if err != nil {
		return nil, err
	}
	ctx := NewListingContext(currentPath, absDir, entries)
	sfs.log.Debug("Generated directory listing", logger.LogFields{
		"path":    ctx.CurrentPath,
		"dir":     absDir,
		"entries": len(ctx.Entries),
	})
	return server.HTMLResponse(http.StatusOK, []byte(RenderListing(ctx))), nil
}

// serveDirectory handles paths ending in "/" outside the reserved prefix.
func (sfs *StaticFileServer) serveDirectory(req *http.Request) (*server.Response, error) {
	requestPath := req.URL.Path
	if !strings.HasSuffix(requestPath, "/") || strings.HasPrefix(requestPath, reservedPrefix) {
		return nil, notHandled("not a directory path")
	}

	// Listings are titled by the cleaned path; the root lists as "".
	currentPath := path.Clean("/" + strings.TrimSuffix(requestPath, "/"))
	if currentPath == "/" {
		currentPath = ""
	}
	res, err := Resolve(currentPath, sfs.cfg.RootDirectory)
	if err != nil {
		sfs.log.Warn("Rejected path outside document root", logger.LogFields{"path": requestPath, "error": err.Error()})
		return nil, notHandled("path outside root")
	}

	if res.Kind != KindDirectory {
		return nil, notHandled("not a directory")
	}

	resp, err := sfs.indexOrListing(currentPath, res.AbsPath)
	if err != nil {
		sfs.log.Debug("Directory listing failed, falling through", logger.LogFields{"path": requestPath, "error": err.Error()})
		return nil, notHandled("listing failed")
	}
	return resp, nil
}

// serveRoot handles "/" against the root itself. A root that cannot be
// listed is the one case reported as a server error.
func (sfs *StaticFileServer) serveRoot(req *http.Request) (*server.Response, error) {
	if req.URL.Path != "/" {
		return nil, notHandled("not the root path")
	}

	resp, err := sfs.indexOrListing("", sfs.cfg.RootDirectory)
	if err != nil {
		sfs.log.Error("Failed to read root directory", logger.LogFields{
			"root":  sfs.cfg.RootDirectory,
			"error": err.Error(),
		})
		return server.ErrorResponse(http.StatusInternalServerError, "Error reading directory"), nil
	}
	return resp, nil
}

// serveStaticFile returns the file's bytes. Binary extensions get their
// fixed content type; everything else is typed by the MIME resolver.
// Any read failure falls through, as does a file path with a trailing slash.
func (sfs *StaticFileServer) serveStaticFile(req *http.Request) (*server.Response, error) {
	if strings.HasSuffix(req.URL.Path, "/") {
		return nil, notHandled("trailing slash on a file")
	}
	res, err := Resolve(req.URL.Path, sfs.cfg.RootDirectory)
	if err != nil {
		return nil, notHandled("path outside root")
	}
	if res.Kind != KindFile {
		return nil, notHandled("not a file")
	}

	body, err := os.ReadFile(res.AbsPath)
	if err != nil {
		sfs.log.Debug("Failed to read file, falling through", logger.LogFields{"path": res.AbsPath, "error": err.Error()})
		return nil, notHandled("read failed")
	}

	contentType, binary := BinaryContentType(res.AbsPath)
	if !binary {
		contentType = sfs.mimeResolver.GetMimeType(res.AbsPath)
	}
	return &server.Response{Status: http.StatusOK, ContentType: contentType, Body: body}, nil
}

// redirectDirectory sends "/dir" to "/dir/" so relative links inside the
// listing or index page resolve against the directory.
func (sfs *StaticFileServer) redirectDirectory(req *http.Request) (*server.Response, error) {
	if strings.HasSuffix(req.URL.Path, "/") {
		return nil, notHandled("already has trailing slash")
	}
	res, err := Resolve(req.URL.Path, sfs.cfg.RootDirectory)
	if err != nil || res.Kind != KindDirectory {
		return nil, notHandled("not a directory")
	}

	location := req.URL.EscapedPath() + "/"
	if req.URL.RawQuery != "" {
		location += "?" + req.URL.RawQuery
	}
	return server.RedirectResponse(location), nil
}
