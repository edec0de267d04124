package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sys/unix"

	"example.com/devserve/v2/internal/config"
	"example.com/devserve/v2/internal/logger"
	"example.com/devserve/v2/internal/util"
)

// DefaultShutdownTimeout bounds how long Serve waits for in-flight requests
// once its context is cancelled.
const DefaultShutdownTimeout = 5 * time.Second

// Server manages the listener and the HTTP server lifecycle. Requests are
// accepted over HTTP/1.1 and HTTP/2 cleartext (h2c).
type Server struct {
	cfg             config.ServerConfig
	log             *logger.Logger
	httpServer      *http.Server
	ShutdownTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new Server instance serving handler.
func NewServer(cfg config.ServerConfig, handler http.Handler, lg *logger.Logger) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if lg == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	s := &Server{
		cfg:             cfg,
		log:             lg,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
	s.httpServer = &http.Server{
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Listen binds the configured address, or adopts the first socket passed
// through LISTEN_FDS. It is called by Start, and may be called earlier to
// learn the bound address.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	inherited, err := util.GetInheritedListeners()
	if err != nil {
		s.log.Warn("Ignoring inherited listeners", logger.LogFields{"error": err.Error()})
	}
	if len(inherited) > 0 {
		for _, extra := range inherited[1:] {
			extra.Close()
		}
		s.listener = inherited[0]
		s.log.Info("Using inherited listener", logger.LogFields{"address": s.listener.Addr().String()})
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}
	s.listener = ln
	s.log.Info("Listener created", logger.LogFields{"address": ln.Addr().String()})
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves until ctx is cancelled, then shuts down gracefully.
// A nil return means the shutdown completed cleanly.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped unexpectedly: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutdown requested, draining connections", logger.LogFields{"timeout": s.ShutdownTimeout.String()})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	<-serveErr
	return nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, unix.SIGTERM)
}

// statusRecorder captures the status code and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

// Flush passes through to the wrapped writer when supported.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// AccessLog wraps next and writes one access-log entry per request.
func AccessLog(lg *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, req)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		lg.Access(req, status, rec.bytes, time.Since(start))
	})
}
