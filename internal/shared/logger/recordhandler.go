package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
)

const redactedValue = "[redacted]"

// DefaultRedactedKeys are attribute keys whose values never reach the log
// output. Config dumps and classifier errors are the usual offenders.
var DefaultRedactedKeys = []string{"password", "anthropic_api_key", "api_key", "dsn", "token"}

// RecordOptions configures NewRecordHandler.
type RecordOptions struct {
	// SourceLevels lists the levels that carry a source attribute.
	SourceLevels []slog.Level
	// RedactKeys lists attribute keys (case-insensitive) to mask.
	RedactKeys []string
}

type recordHandler struct {
	handler      slog.Handler
	sourceLevels map[slog.Level]bool
	redact       map[string]bool
}

// NewRecordHandler wraps handler so every record is stamped in UTC, carries a
// module-relative source location for the configured levels and has
// sensitive attribute values masked. The wrapped handler should have
// AddSource disabled.
func NewRecordHandler(handler slog.Handler, opts RecordOptions) slog.Handler {
	levels := make(map[slog.Level]bool, len(opts.SourceLevels))
	for _, l := range opts.SourceLevels {
		levels[l] = true
	}
	redact := make(map[string]bool, len(opts.RedactKeys))
	for _, k := range opts.RedactKeys {
		redact[strings.ToLower(k)] = true
	}
	return &recordHandler{
		handler:      handler,
		sourceLevels: levels,
		redact:       redact,
	}
}

func (h *recordHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time.UTC(), r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.mask(a))
		return true
	})

	if h.sourceLevels[r.Level] {
		out.AddAttrs(slog.Any(slog.SourceKey, callerSource()))
	}

	return h.handler.Handle(ctx, out)
}

func (h *recordHandler) mask(a slog.Attr) slog.Attr {
	if h.redact[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redactedValue)
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		masked := make([]any, len(group))
		for i, g := range group {
			masked[i] = h.mask(g)
		}
		return slog.Group(a.Key, masked...)
	}
	return a
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &recordHandler{
		handler:      h.handler.WithAttrs(masked),
		sourceLevels: h.sourceLevels,
		redact:       h.redact,
	}
}

func (h *recordHandler) WithGroup(name string) slog.Handler {
	return &recordHandler{
		handler:      h.handler.WithGroup(name),
		sourceLevels: h.sourceLevels,
		redact:       h.redact,
	}
}

func (h *recordHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// callerSource finds the first frame outside slog and this package's
// wrappers.
func callerSource() *slog.Source {
	var pcs [16]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		wrapper := strings.HasPrefix(f.Function, "log/slog.") ||
			(strings.Contains(f.File, "/internal/shared/logger/") && !strings.HasSuffix(f.File, "_test.go"))
		if !wrapper || !more {
			return &slog.Source{
				Function: f.Function,
				File:     trimModulePath(f.File),
				Line:     f.Line,
			}
		}
	}
}

// trimModulePath cuts a build path down to the part inside the module, so
// "/home/ci/src/civictrack/internal/x/y.go" logs as "internal/x/y.go".
func trimModulePath(file string) string {
	for _, root := range []string{"/internal/", "/cmd/"} {
		if i := strings.LastIndex(file, root); i >= 0 {
			return file[i+1:]
		}
	}
	return file
}
