package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"

	"github.com/fatih/color"

	"example.com/devserve/v2/internal/assets"
	"example.com/devserve/v2/internal/config"
	"example.com/devserve/v2/internal/handlers/staticfileserver"
	"example.com/devserve/v2/internal/logger"
	"example.com/devserve/v2/internal/metrics"
	"example.com/devserve/v2/internal/router"
	"example.com/devserve/v2/internal/server"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to determine working directory: %v", err)
	}

	cfg := config.ParseArgs(os.Args[1:], cwd)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Usage: %s [port] [root-directory] [spa]: %v", os.Args[0], err)
	}
	if cfg.MimeTypes, err = config.ParseMimeTypes(os.Getenv(config.MimeTypesEnvKey)); err != nil {
		log.Fatalf("Invalid %s: %v", config.MimeTypesEnvKey, err)
	}

	lg, err := logger.NewLogger(config.DefaultLoggingConfig())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Close()

	ctx, stop := server.SignalContext(context.Background())
	defer stop()

	if err := run(ctx, cfg, lg, os.Stdout); err != nil {
		lg.Error("Server stopped with error", logger.LogFields{"error": err.Error()})
		lg.Close()
		os.Exit(1)
	}
	lg.Info("Server shut down gracefully", nil)
}

// run wires the request chain and serves until ctx is cancelled.
func run(ctx context.Context, cfg config.ServerConfig, lg *logger.Logger, out io.Writer) error {
	handler, err := buildHandler(cfg, assets.FS(), lg, metrics.New())
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, handler, lg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	printBanner(out, cfg)
	lg.Info("Starting server", logger.LogFields{
		"address": cfg.Address(),
		"root":    cfg.RootDirectory,
		"spa":     cfg.SPAMode,
	})
	return srv.Start(ctx)
}

// buildHandler assembles the full handler: the metrics endpoint, the stage
// chain for everything else, and access logging around both. m may be nil.
func buildHandler(cfg config.ServerConfig, bundle fs.FS, lg *logger.Logger, m *metrics.Metrics) (http.Handler, error) {
	sfs, err := staticfileserver.New(cfg, bundle, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to create static file server: %w", err)
	}

	rtr, err := router.NewRouter(sfs.Stages(), lg, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	// No ServeMux here: it would clean and redirect paths before the chain
	// sees them.
	var handler http.Handler = rtr
	if m != nil {
		metricsHandler := m.Handler()
		handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Path == metrics.Path {
				metricsHandler.ServeHTTP(w, req)
				return
			}
			rtr.ServeHTTP(w, req)
		})
	}

	return server.AccessLog(lg, handler), nil
}

// printBanner writes the human-facing start-up lines. Colors follow
// color.NoColor, which is set when stdout is not a terminal.
func printBanner(out io.Writer, cfg config.ServerConfig) {
	label := color.New(color.FgCyan, color.Bold)
	link := color.New(color.FgGreen, color.Underline)

	label.Fprint(out, "📡 Serving static files from: ")
	fmt.Fprintln(out, cfg.RootDirectory)
	label.Fprint(out, "🌐 Server is running... ")
	link.Fprintln(out, cfg.URL())
	if cfg.SPAMode {
		color.New(color.FgYellow).Fprintln(out, "🔄 SPA mode enabled - serving index.html for all routes")
	}
}
