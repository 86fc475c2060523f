package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func level(debugMode bool) zap.AtomicLevel {
	if debugMode {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zap.NewAtomicLevelAt(zapcore.InfoLevel)
}

// NewProductionLogger returns the JSON logger used by the server and worker.
// Every entry carries a "service" field naming the binary.
func NewProductionLogger(service string, debugMode bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level(debugMode)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cfg.EncoderConfig.FunctionKey = zapcore.OmitKey
	cfg.Sampling = nil
	cfg.InitialFields = map[string]any{"service": service}
	return cfg.Build()
}

// New returns the colored console logger in dev mode and the JSON logger
// otherwise. The configure CLI uses the console form.
func New(service string, devMode, debugMode bool) (*zap.Logger, error) {
	if !devMode {
		return NewProductionLogger(service, debugMode)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = level(debugMode)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = !debugMode
	return cfg.Build(zap.Fields(zap.String("service", service)))
}

// Sync flushes buffered entries. Errors from syncing a terminal are expected
// and callers usually discard them.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
