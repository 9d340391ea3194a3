package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"goalbot/core/buildinfo"
)

var (
	initOnce sync.Once

	levelVar slog.LevelVar

	// L is the base application logger.
	L *slog.Logger

	// TG logs Telegram transport events.
	TG *slog.Logger
	// DB logs database events.
	DB *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// BOT logs conversation engine events.
	BOT *slog.Logger
)

// Options selects the output level and format of the global logger.
type Options struct {
	Level  string
	Format string
	// Profile indicates environment profile such as "debug" or "prod";
	// debug/dev profiles default to the text format.
	Profile string
}

// Init configures the global structured logger. It may be called only once;
// repeated calls are no-ops.
func Init(opts Options) {
	initOnce.Do(func() {
		levelVar.Set(selectLevel(opts.Level))

		handlerOpts := &slog.HandlerOptions{Level: &levelVar}
		var handler slog.Handler
		if selectFormat(opts) == formatText {
			handler = slog.NewTextHandler(os.Stdout, handlerOpts)
		} else {
			handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
		}

		L = slog.New(handler)
		slog.SetDefault(L)
		wireComponents()
		logStartup(opts)
	})
}

func wireComponents() {
	TG = L.With("component", "tg")
	DB = L.With("component", "db")
	MIG = L.With("component", "db.migrate")
	BOT = L.With("component", "bot")
}

func logStartup(opts Options) {
	profile := strings.ToLower(strings.TrimSpace(opts.Profile))
	if profile == "" {
		profile = "prod"
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("cfg_profile", profile),
	)
}

type logFormat int

const (
	formatJSON logFormat = iota
	formatText
)

func selectFormat(opts Options) logFormat {
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "text", "kv", "pretty":
		return formatText
	case "json":
		return formatJSON
	}
	if strings.EqualFold(opts.Profile, "debug") || strings.EqualFold(opts.Profile, "dev") {
		return formatText
	}
	return formatJSON
}

func selectLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

// Component constructs a logger scoped to the provided component attribute.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return L
	}
	return L.With("component", trimmed)
}
