package log

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/motemen/go-loghttp"
)

// Logger is the global logger instance
var Logger *slog.Logger

type contextKey struct{}

// InitLogger initializes the global logger
// It sets the log level to Debug if RENDINI_DEBUG is set
func InitLogger() {
	SetOutput(os.Stderr, os.Getenv("RENDINI_DEBUG") != "")
}

// SetOutput replaces the global logger with a text handler writing to w
func SetOutput(w io.Writer, debug bool) {
	opts := &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelInfo,
	}
	if debug {
		opts.Level = slog.LevelDebug
	}

	Logger = slog.New(slog.NewTextHandler(w, opts))
	slog.SetDefault(Logger)
}

// init initializes the logger when the package is imported
func init() {
	InitLogger()
}

// Transport wraps base so that every backend request and response is
// logged at debug level. A nil base uses http.DefaultTransport.
func Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loghttp.Transport{
		Transport: base,
		LogRequest: func(req *http.Request) {
			FromContext(req.Context()).Debug("HTTP request",
				"method", req.Method,
				"url", req.URL.String(),
			)
		},
		LogResponse: func(resp *http.Response) {
			FromContext(resp.Request.Context()).Debug("HTTP response",
				"method", resp.Request.Method,
				"url", resp.Request.URL.String(),
				"status", resp.Status,
				"status_code", resp.StatusCode,
				"content_type", resp.Header.Get("Content-Type"),
			)
		},
	}
}

// WithContext returns a copy of ctx carrying logger
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger carried by ctx, or the global logger
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return Logger
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}
