// Package applog builds the process-wide zap logger: timestamped,
// stderr-directed, with the structured fields the rest of this codebase
// logs with.
package applog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger writing human-readable, timestamped lines to
// stderr at info level (debug when AUTORUN_DEBUG=1 is set, matching
// internal/debugmon.Enabled's env var convention), since the core runs
// injected into a host process whose own stdout/stderr is the only
// capture surface available.
func New() *zap.Logger {
	level := zapcore.InfoLevel
	if os.Getenv("AUTORUN_DEBUG") == "1" {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		level,
	)

	return zap.New(core)
}
