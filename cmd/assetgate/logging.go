package main

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sagarc03/assetgate/config"
)

// logLevel resolves the configured level. Production defaults to info,
// everything else to debug.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Log.Level != "" {
		return parseLevel(cfg.Log.Level)
	}
	if cfg.IsProd() {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// newLogHandler returns JSON records tagged with the service and version in
// production and colored tint output otherwise.
func newLogHandler(w io.Writer, cfg *config.Config) slog.Handler {
	level := logLevel(cfg)

	if !cfg.IsProd() {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: "15:04:05.000",
		})
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})
	return h.WithAttrs([]slog.Attr{
		slog.String("service", "assetgate"),
		slog.String("version", version),
	})
}

func setupLogging(cfg *config.Config) {
	slog.SetDefault(slog.New(newLogHandler(os.Stdout, cfg)))

	// route stdlib log output (net/http server errors) through slog
	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo).Writer())
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
