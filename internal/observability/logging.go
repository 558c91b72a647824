// Package observability holds process-wide logging. Loggers default to
// no-ops so packages can log before initialization without nil checks.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger for command output paths. It is replaced by
// InitCLILogger at startup.
var CLILogger = zap.NewNop()

// ServerLogger is the logger for the HTTP server. It is replaced by
// InitServerLogger at startup.
var ServerLogger = zap.NewNop()

// InitCLILogger configures CLILogger from the logging config. Profile
// STRUCTURED emits JSON; CONSOLE emits human-readable development output.
func InitCLILogger(level, profile string) error {
	logger, err := buildLogger(level, profile)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// InitServerLogger configures ServerLogger from the logging config.
func InitServerLogger(level, profile string) error {
	logger, err := buildLogger(level, profile)
	if err != nil {
		return err
	}
	ServerLogger = logger
	return nil
}

// Sync flushes buffered log entries. Errors from syncing stderr are
// expected on some platforms and ignored by callers.
func Sync() {
	_ = CLILogger.Sync()
	_ = ServerLogger.Sync()
}

func buildLogger(level, profile string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToUpper(profile) {
	case "", "STRUCTURED":
		cfg = zap.NewProductionConfig()
	case "CONSOLE":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown logging profile %q", profile)
	}

	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}
