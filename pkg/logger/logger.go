// Package logger provides the structured slog logger used across
// shortlinkd and the request-ID logging middleware the admin API is
// wrapped in. The redirect and health routes are not wrapped in it.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ContextKey is the type for context keys.
type ContextKey string

// RequestIDKey is the context key the request ID is stored under.
const RequestIDKey ContextKey = "request_id"

// Rotation defaults applied by SetupWriter when a Config leaves the
// corresponding field at its zero value. A redirect service logs one line
// per request at whatever QPS the service sees, so file output rotates
// more eagerly than a low-volume background job would need.
const (
	DefaultMaxSizeMB    = 50
	DefaultMaxBackups   = 5
	DefaultMaxAgeDays   = 14
	requestIDByteLength = 6
)

// Config holds logger configuration.
type Config struct {
	Level      string
	Format     string
	Output     string
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// NewLogger builds a slog.Logger from cfg. AddSource is only enabled at
// debug level, since it adds a file/line lookup on every log call.
func NewLogger(cfg Config) *slog.Logger {
	level := ParseLevel(cfg.Level)
	writer := SetupWriter(cfg)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a config string to a slog.Level, defaulting to info for
// anything unrecognized (including an empty string).
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupWriter resolves cfg.Output to a destination writer. File output is
// rotated through lumberjack, falling back to stdout if no filename is
// configured; unset rotation fields fall back to the package defaults
// rather than lumberjack's own (which would let a file grow unbounded
// until its own zero-value default of 100MB, with no age or backup cap).
func SetupWriter(cfg Config) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "file":
		if cfg.Filename == "" {
			return os.Stdout
		}
		maxSize := cfg.MaxSize
		if maxSize <= 0 {
			maxSize = DefaultMaxSizeMB
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = DefaultMaxBackups
		}
		maxAge := cfg.MaxAge
		if maxAge <= 0 {
			maxAge = DefaultMaxAgeDays
		}
		return &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   cfg.Compress,
		}
	case "stderr":
		return os.Stderr
	case "stdout", "":
		return os.Stdout
	default:
		return os.Stdout
	}
}

// NewRequestID generates a short random request identifier. Its length is
// deliberately small relative to a UUID: LoggingMiddleware echoes it on
// every response it wraps and logs it once per request, so a compact ID
// keeps header and log overhead down.
func NewRequestID() string {
	b := make([]byte, requestIDByteLength)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("rl_%d", time.Now().UnixNano())
	}
	return "rl_" + hex.EncodeToString(b)
}

// WithRequestID stores requestID in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID reads the request ID stored by WithRequestID, or "" if none.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// LoggingMiddleware returns HTTP middleware that assigns (or propagates) a
// request ID, echoes it on X-Request-ID, and logs one line per request
// against logger once the handler chain completes.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = NewRequestID()
			}

			r = r.WithContext(WithRequestID(r.Context(), requestID))
			w.Header().Set("X-Request-ID", requestID)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start),
				"request_id", requestID,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
// written by the handler, since net/http never exposes it directly.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
