// Package logger builds the process-wide slog logger and carries
// request-scoped loggers through context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	// FormatAuto uses text on a terminal and JSON otherwise.
	FormatAuto Format = "auto"
)

// ParseLevel parses a level name. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures the logger.
type Options struct {
	Level     slog.Level
	Format    Format
	Output    io.Writer
	AddSource bool
}

// DefaultOptions returns info-level auto-format logging to stdout.
func DefaultOptions() Options {
	return Options{
		Level:  slog.LevelInfo,
		Format: FormatAuto,
		Output: os.Stdout,
	}
}

// New builds a logger from opts.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.AddSource}

	if resolveFormat(opts.Format, opts.Output) == FormatText {
		return slog.New(slog.NewTextHandler(opts.Output, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(opts.Output, handlerOpts))
}

func resolveFormat(f Format, w io.Writer) Format {
	switch f {
	case FormatJSON, FormatText:
		return f
	}
	if file, ok := w.(*os.File); ok {
		fd := file.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return FormatText
		}
	}
	return FormatJSON
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTRIBUTES
// ══════════════════════════════════════════════════════════════════════════════

// RequestIDKey is the attribute key for request tracing.
const RequestIDKey = "request_id"

// Rut logs a student RUT with all but the last four characters masked.
func Rut(rut string) slog.Attr { return slog.String("rut", MaskRut(rut)) }

// MaskRut masks all but the last four characters of rut.
func MaskRut(rut string) string {
	r := []rune(rut)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

func Program(code string) slog.Attr     { return slog.String("program", code) }
func Component(name string) slog.Attr   { return slog.String("component", name) }
func Operation(name string) slog.Attr   { return slog.String("operation", name) }
func Latency(d time.Duration) slog.Attr { return slog.Duration("latency", d) }
func RequestID(id string) slog.Attr     { return slog.String(RequestIDKey, id) }

// Err logs an error under the "error" key.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
