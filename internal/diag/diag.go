// Package diag holds the build-time diagnostic switch.
//
// Build with -tags tickdebug to turn on verbose per-listener and per-task
// diagnostics. The flag never changes dispatch behavior, only what is logged.
package diag

import (
	"context"
	"log/slog"
)

// Debug logs msg at debug level when the binary was built with diagnostics.
// It is a no-op otherwise, so hot dispatch paths pay only a constant check.
func Debug(logger *slog.Logger, msg string, args ...any) {
	if !Enabled {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), slog.LevelDebug, msg, args...)
}
