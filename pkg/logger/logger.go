package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/storefront-payments/pkg/env"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to warnings as well as errors.
	WarnStack bool
	Output    io.Writer
}

// Logger writes JSON lines through zerolog. Request-scoped fields travel on
// the context, so every call takes the ctx that carries them.
type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type fieldsKey struct{}

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if strings.EqualFold(env.Get("LOG_FORMAT", "json"), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return &Logger{
		root: zerolog.New(out).Level(level).With().
			Timestamp().
			Str("service", opts.ServiceName).
			Logger(),
		warnStack: opts.WarnStack,
	}
}

// Nop discards everything.
func Nop() *Logger {
	return New(Options{ServiceName: "nop", Output: io.Discard, Level: zerolog.Disabled})
}

// ParseLevel maps a config string to a level, falling back to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(fieldsKey{}).(*zerolog.Logger); ok {
			return scoped
		}
	}
	return &l.root
}

func (l *Logger) with(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	scoped := build(l.from(ctx).With()).Logger()
	return context.WithValue(ctx, fieldsKey{}, &scoped)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, value)
	})
}

// WithFields adds fields in key order so output is stable.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		for _, k := range keys {
			c = c.Interface(k, fields[k])
		}
		return c
	})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.from(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.from(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	ev := l.from(ctx).Warn()
	if l.warnStack && ev.Enabled() {
		ev = ev.Str("stack", stack())
	}
	ev.Msg(msg)
}

// Error always carries a stack trace.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	ev := l.from(ctx).Error()
	if !ev.Enabled() {
		return
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Str("stack", stack()).Msg(msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
