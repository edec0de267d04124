package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultPort is used when the port argument is missing or not a number.
const DefaultPort = 3000

// LogLevelEnvKey optionally overrides the error log level at start-up.
const LogLevelEnvKey = "DEVSERVE_LOG_LEVEL"

// MimeTypesEnvKey optionally adds content type overrides, written as
// comma-separated ".ext=type" pairs.
const MimeTypesEnvKey = "DEVSERVE_MIME_TYPES"

// LogLevel defines the minimum severity for error logs.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// ServerConfig holds the start-up parameters of the server.
// It is built once at start-up and never mutated afterwards; stages receive
// it by value.
type ServerConfig struct {
	Port          int
	RootDirectory string
	SPAMode       bool
	// MimeTypes maps extensions (".ext") to content types and takes
	// precedence over the built-in tables for non-binary files.
	MimeTypes map[string]string
}

// LoggingConfig holds logging configurations.
type LoggingConfig struct {
	LogLevel  LogLevel         `json:"log_level,omitempty"`
	AccessLog *AccessLogConfig `json:"access_log,omitempty"`
	ErrorLog  *ErrorLogConfig  `json:"error_log,omitempty"`
}

// AccessLogConfig configures access logging.
type AccessLogConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Target  string `json:"target,omitempty"` // "stdout", "stderr" or an absolute file path
}

// ErrorLogConfig configures error logging.
type ErrorLogConfig struct {
	Target string `json:"target,omitempty"` // "stdout", "stderr" or an absolute file path
}

// ConfigError reports an invalid start-up parameter.
type ConfigError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ParseArgs builds a ServerConfig from positional arguments (program name
// already stripped):
//
//	args[0]  port; its leading decimal digits are used ("8080abc" is 8080),
//	         and anything without a positive numeric prefix yields DefaultPort
//	args[1]  root directory; empty or missing yields cwd
//	args[2]  the literal "true" enables SPA mode
//
// Relative roots are resolved against cwd. ParseArgs never fails; use
// Validate to check the result against the file system.
func ParseArgs(args []string, cwd string) ServerConfig {
	cfg := ServerConfig{
		Port:          DefaultPort,
		RootDirectory: cwd,
	}

	if len(args) > 0 {
		if port := leadingInt(args[0]); port > 0 {
			cfg.Port = port
		}
	}

	if len(args) > 1 && args[1] != "" {
		root := args[1]
		if !filepath.IsAbs(root) {
			root = filepath.Join(cwd, root)
		}
		cfg.RootDirectory = filepath.Clean(root)
	}

	if len(args) > 2 {
		cfg.SPAMode = args[2] == "true"
	}

	return cfg
}

// leadingInt parses the decimal digits at the start of s, after leading
// whitespace and an optional "+". It returns 0 when there are none or the
// value overflows.
func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\n\r")
	s = strings.TrimPrefix(s, "+")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// ParseMimeTypes reads content type overrides in the MimeTypesEnvKey format,
// e.g. ".md=text/plain; charset=utf-8,.wasm=application/wasm". Pairs are
// separated by commas; a leading dot on the extension is optional. An empty
// string yields a nil map.
func ParseMimeTypes(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	types := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		ext, mimeType, ok := strings.Cut(pair, "=")
		ext = strings.ToLower(strings.TrimSpace(ext))
		mimeType = strings.TrimSpace(mimeType)
		if !ok || ext == "" || ext == "." || mimeType == "" {
			return nil, &ConfigError{Field: "MIME type mapping", Value: pair, Message: "must be of the form .ext=type"}
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		types[ext] = mimeType
	}
	return types, nil
}

// Validate checks that the port is usable and that the root directory exists.
func (c ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ConfigError{Field: "port", Value: strconv.Itoa(c.Port), Message: "must be between 1 and 65535"}
	}
	if c.RootDirectory == "" {
		return &ConfigError{Field: "root directory", Message: "cannot be empty"}
	}

	fi, err := os.Stat(c.RootDirectory)
	if err != nil {
		return &ConfigError{Field: "root directory", Value: c.RootDirectory, Message: "cannot be accessed", Err: err}
	}
	if !fi.IsDir() {
		return &ConfigError{Field: "root directory", Value: c.RootDirectory, Message: "is not a directory"}
	}
	return nil
}

// Address returns the listen address for net.Listen.
func (c ServerConfig) Address() string {
	return ":" + strconv.Itoa(c.Port)
}

// URL returns the local URL printed in the start-up banner.
func (c ServerConfig) URL() string {
	return fmt.Sprintf("http://localhost:%d/", c.Port)
}

// DefaultLoggingConfig returns the logging setup used by the CLI: JSON access
// log on stdout, error log on stderr at INFO. The level can be overridden
// through LogLevelEnvKey.
func DefaultLoggingConfig() *LoggingConfig {
	enabled := true
	cfg := &LoggingConfig{
		LogLevel: LogLevelInfo,
		AccessLog: &AccessLogConfig{
			Enabled: &enabled,
			Target:  "stdout",
		},
		ErrorLog: &ErrorLogConfig{
			Target: "stderr",
		},
	}
	if lvl, ok := ParseLogLevel(os.Getenv(LogLevelEnvKey)); ok {
		cfg.LogLevel = lvl
	}
	return cfg
}

// ParseLogLevel maps a case-insensitive level name to a LogLevel.
// "WARN" is accepted as an alias for WARNING.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug, true
	case "INFO":
		return LogLevelInfo, true
	case "WARN", "WARNING":
		return LogLevelWarning, true
	case "ERROR":
		return LogLevelError, true
	}
	return "", false
}

// IsFilePath reports whether a log target names a file rather than a standard stream.
func IsFilePath(target string) bool {
	return target != "" && target != "stdout" && target != "stderr"
}
