package cli

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vietddude/blockledger/internal/core/config"
	"github.com/vietddude/stylelog"
)

// setupLogger installs the default logger. The json format writes one
// structured line per event for log shippers; anything else gets the
// colored console handler.
func setupLogger(cfg config.LoggingConfig, debug bool) {
	level := parseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}

	if strings.EqualFold(cfg.Format, "json") {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
		return
	}

	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
