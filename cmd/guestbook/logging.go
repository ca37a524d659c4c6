package main

import (
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// serviceName tags every production log line.
const serviceName = "guestbook"

// setupLogging installs the default slog logger: JSON in production, tinted
// text otherwise. An empty level means info in production and debug elsewhere.
func setupLogging(env, levelStr string) {
	isProd := env == "prod" || env == "production"

	if levelStr == "" {
		if isProd {
			levelStr = "info"
		} else {
			levelStr = "debug"
		}
	}
	level := parseLevel(levelStr)

	var h slog.Handler
	if isProd {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: replaceAttr(true),
		}).WithAttrs([]slog.Attr{slog.String("service", serviceName)})
	} else {
		h = tint.NewHandler(os.Stdout, &tint.Options{
			Level:       level,
			AddSource:   true,
			TimeFormat:  "15:04:05.000",
			ReplaceAttr: replaceAttr(false),
		})
	}

	slog.SetDefault(slog.New(h))

	log.SetFlags(0)
	log.SetOutput(
		slog.NewLogLogger(
			slog.Default().Handler(),
			slog.LevelInfo,
		).Writer(),
	)
}

// replaceAttr renames the time key to ts in production and drops an empty
// request_id, which requests served outside the router and CLI commands log.
func replaceAttr(prod bool) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		switch {
		case prod && len(groups) == 0 && a.Key == slog.TimeKey:
			return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
		case a.Key == "request_id" && a.Value.String() == "":
			return slog.Attr{}
		}
		return a
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
