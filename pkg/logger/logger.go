package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/pdfvision/internal/config"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// New builds a zap logger from the log section of the config.
// Development selects the console encoder, production emits JSON.
// Debug forces the debug level and turns off sampling so every page attempt is logged.
func New(cfg config.LogConfig, debug bool) (*zap.Logger, error) {
	level := cfg.Level
	if debug {
		level = "debug"
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(zapLevel)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		zc.Sampling = nil
	}

	return zc.Build(zap.Fields(zap.String("service", "pdfvision")))
}

// Init initializes the global logger
func Init(cfg config.LogConfig, debug bool) error {
	var err error
	once.Do(func() {
		globalLogger, err = New(cfg, debug)
	})
	return err
}

// Get returns the global logger, a no-op logger before Init
func Get() *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// Sync flushes any buffered log entries
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
