package logger

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"example.com/devserve/v2/internal/config"
)

// LogFields carries structured key/value pairs attached to a log entry.
type LogFields map[string]interface{}

// AccessLogger writes one JSON line per served request.
type AccessLogger struct {
	zl zerolog.Logger
}

// ErrorLogger writes leveled JSON lines for server events.
type ErrorLogger struct {
	zl zerolog.Logger
}

// Logger is a general logger that contains specific loggers for access and errors.
type Logger struct {
	accessLog *AccessLogger
	errorLog  *ErrorLogger

	mu      sync.Mutex
	closers []io.Closer
}

// NewLogger creates and configures a new Logger instance from cfg, opening
// file targets as needed. Close releases them.
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging configuration cannot be nil")
	}

	l := &Logger{}

	errorTarget := "stderr"
	if cfg.ErrorLog != nil && cfg.ErrorLog.Target != "" {
		errorTarget = cfg.ErrorLog.Target
	}
	errorOutput, err := l.openTarget(errorTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}
	l.errorLog = newErrorLogger(errorOutput, cfg.LogLevel)

	if cfg.AccessLog != nil && (cfg.AccessLog.Enabled == nil || *cfg.AccessLog.Enabled) {
		accessTarget := cfg.AccessLog.Target
		if accessTarget == "" {
			accessTarget = "stdout"
		}
		accessOutput, err := l.openTarget(accessTarget)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open access log: %w", err)
		}
		l.accessLog = newAccessLogger(accessOutput)
	}

	return l, nil
}

// New builds a Logger over explicit writers. A nil accessOut disables access logging.
func New(level config.LogLevel, accessOut, errorOut io.Writer) *Logger {
	l := &Logger{}
	if errorOut == nil {
		errorOut = io.Discard
	}
	l.errorLog = newErrorLogger(errorOut, level)
	if accessOut != nil {
		l.accessLog = newAccessLogger(accessOut)
	}
	return l
}

// NewDiscardLogger returns a Logger that drops everything.
func NewDiscardLogger() *Logger {
	return &Logger{
		errorLog: &ErrorLogger{zl: zerolog.Nop()},
	}
}

func newErrorLogger(w io.Writer, level config.LogLevel) *ErrorLogger {
	return &ErrorLogger{
		zl: zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger(),
	}
}

func newAccessLogger(w io.Writer) *AccessLogger {
	return &AccessLogger{
		zl: zerolog.New(w).With().Timestamp().Logger(),
	}
}

func (l *Logger) openTarget(target string) (io.Writer, error) {
	switch target {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if !config.IsFilePath(target) {
		return nil, fmt.Errorf("invalid log target: %q", target)
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", target, err)
	}
	l.mu.Lock()
	l.closers = append(l.closers, f)
	l.mu.Unlock()
	return f, nil
}

// zerologLevel maps the configured severity onto zerolog's levels; unknown
// values default to INFO.
func zerologLevel(level config.LogLevel) zerolog.Level {
	switch level {
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	case config.LogLevelWarning:
		return zerolog.WarnLevel
	case config.LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogError writes msg at the given level if it passes the configured threshold.
func (el *ErrorLogger) LogError(level config.LogLevel, msg string, fields LogFields) {
	if el == nil {
		return
	}
	ev := el.zl.WithLevel(zerologLevel(level))
	if len(fields) > 0 {
		ev = ev.Fields(map[string]interface{}(fields))
	}
	ev.Msg(msg)
}

// LogAccess writes a single access entry.
func (al *AccessLogger) LogAccess(req *http.Request, status int, responseBytes int64, duration time.Duration) {
	if al == nil {
		return
	}

	remoteAddr, remotePort, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		remoteAddr = req.RemoteAddr
		remotePort = "0"
	}

	ev := al.zl.Log().
		Str("remote_addr", remoteAddr).
		Str("remote_port", remotePort).
		Str("protocol", req.Proto).
		Str("method", req.Method).
		Str("uri", req.RequestURI).
		Int("status", status).
		Int64("resp_bytes", responseBytes).
		Int64("duration_ms", duration.Milliseconds())
	if ua := req.UserAgent(); ua != "" {
		ev = ev.Str("user_agent", ua)
	}
	if ref := req.Referer(); ref != "" {
		ev = ev.Str("referer", ref)
	}
	ev.Send()
}

// Convenience methods on the main Logger

func (l *Logger) Debug(msg string, fields LogFields) {
	l.errorLog.LogError(config.LogLevelDebug, msg, fields)
}

func (l *Logger) Info(msg string, fields LogFields) {
	l.errorLog.LogError(config.LogLevelInfo, msg, fields)
}

func (l *Logger) Warn(msg string, fields LogFields) {
	l.errorLog.LogError(config.LogLevelWarning, msg, fields)
}

func (l *Logger) Error(msg string, fields LogFields) {
	l.errorLog.LogError(config.LogLevelError, msg, fields)
}

func (l *Logger) Access(req *http.Request, status int, responseBytes int64, duration time.Duration) {
	l.accessLog.LogAccess(req, status, responseBytes, duration)
}

// Close closes any log files opened by NewLogger.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.closers = nil
	return firstErr
}
