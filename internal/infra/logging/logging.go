package logging

import (
	"io"
	"log/slog"
	"path/filepath"

	"sensor-bridge/internal/infra/node"
)

var logLevelMapping = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Setup installs a text handler on w as the default logger. Unknown levels
// fall back to info.
func Setup(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource:   true,
		Level:       logLevelMapping[level],
		ReplaceAttr: slogReplaceAttr,
	}).WithAttrs([]slog.Attr{slog.String("version", node.Version)})

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		if source, ok := a.Value.Any().(*slog.Source); ok {
			source.File = filepath.Base(source.File)
			return slog.Any(a.Key, source)
		}
	}
	return a
}
