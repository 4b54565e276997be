package logger

import (
	"io"
	log "log/slog"
	"os"
	"strings"

	"github.com/pelusa-v/chatroom.git/internal/config"
)

func parseLevel(s string) log.Level {
	switch strings.ToLower(s) {
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

// New 按配置创建 logger，w 为 nil 时写 stdout
func New(cfg config.LogConfig, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &log.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h log.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = log.NewJSONHandler(w, opts)
	} else {
		h = log.NewTextHandler(w, opts)
	}
	return log.New(h)
}

// InitLogger 设置全局默认 logger
func InitLogger(cfg config.LogConfig) *log.Logger {
	l := New(cfg, os.Stdout)
	log.SetDefault(l)
	return l
}
