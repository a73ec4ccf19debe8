package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Format is json (default) or text.
	Format string
	// Output defaults to os.Stderr.
	Output    io.Writer
	AddSource bool
	// Node, when set, is attached to every record as "node".
	Node string
}

// level is shared by every logger built with NewSlog so a config reload
// adjusts all of them at once.
var level = new(slog.LevelVar)

// NewSlog builds a logger that redacts sensitive attributes and adds the
// request ID carried by the context of *Context calls.
func NewSlog(cfg Config) (*slog.Logger, error) {
	format := strings.ToLower(cfg.Format)
	if format != "" && format != "json" && format != "text" {
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	level.Set(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}
	l := slog.New(requestIDHandler{h})
	if cfg.Node != "" {
		l = l.With("node", cfg.Node)
	}
	return l, nil
}

// SetLevel changes the level of every logger built by NewSlog. Unknown
// names select info.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

// CurrentLevel reports the active level in the form accepted by SetLevel.
func CurrentLevel() string {
	return strings.ToLower(level.Level().String())
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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
