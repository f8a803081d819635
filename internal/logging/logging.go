// File: internal/logging/logging.go (complete file)

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup creates a logger and sets it as the process-wide default.
// Subsystem loggers obtained from Logger follow whatever default is current.
func Setup(level, format string) {
	slog.SetDefault(New(os.Stderr, level, format))
}

func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns a logger tagged with subsystem=<name>. It is safe to call
// from package-level var declarations, before Setup has run.
func Logger(subsystem string) *slog.Logger {
	return slog.New(&deferred{attrs: []slog.Attr{slog.String("subsystem", subsystem)}})
}

// deferred resolves slog.Default() on every record.
type deferred struct {
	attrs  []slog.Attr
	groups []string
}

func (d *deferred) target() slog.Handler {
	h := slog.Default().Handler()
	if len(d.attrs) > 0 {
		h = h.WithAttrs(d.attrs)
	}
	for _, g := range d.groups {
		h = h.WithGroup(g)
	}
	return h
}

func (d *deferred) Enabled(ctx context.Context, l slog.Level) bool {
	return slog.Default().Handler().Enabled(ctx, l)
}

func (d *deferred) Handle(ctx context.Context, r slog.Record) error {
	return d.target().Handle(ctx, r)
}

func (d *deferred) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(d.groups) > 0 {
		return &wrapped{inner: d.target().WithAttrs(attrs)}
	}
	next := &deferred{groups: d.groups}
	next.attrs = append(append([]slog.Attr(nil), d.attrs...), attrs...)
	return next
}

func (d *deferred) WithGroup(name string) slog.Handler {
	if name == "" {
		return d
	}
	next := &deferred{attrs: d.attrs}
	next.groups = append(append([]string(nil), d.groups...), name)
	return next
}

// wrapped pins a concrete handler once attributes land inside a group.
type wrapped struct {
	inner slog.Handler
}

func (w *wrapped) Enabled(ctx context.Context, l slog.Level) bool { return w.inner.Enabled(ctx, l) }
func (w *wrapped) Handle(ctx context.Context, r slog.Record) error { return w.inner.Handle(ctx, r) }
func (w *wrapped) WithAttrs(a []slog.Attr) slog.Handler { return &wrapped{w.inner.WithAttrs(a)} }
func (w *wrapped) WithGroup(n string) slog.Handler { return &wrapped{w.inner.WithGroup(n)} }
