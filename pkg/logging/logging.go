// Package logging builds the process-wide ectologger backed by zap.
package logging

import (
	"strings"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapEctoLogger builds an ectologger that forwards every log message to a
// zap core. The returned flush function should be deferred in main.
func NewZapEctoLogger(level string, pretty bool) (ectologger.Logger, func(), error) {
	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.DisableStacktrace = true

	zlog, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, nil, err
	}

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		fields := make([]zap.Field, 0, len(msg.Fields)+1)
		for key, value := range msg.Fields {
			fields = append(fields, zap.Any(key, value))
		}
		if msg.Err != nil {
			fields = append(fields, zap.Any("error", msg.Err))
		}

		switch parseLevel(string(msg.Level)) {
		case zapcore.DebugLevel:
			zlog.Debug(msg.Message, fields...)
		case zapcore.WarnLevel:
			zlog.Warn(msg.Message, fields...)
		case zapcore.ErrorLevel, zapcore.FatalLevel:
			zlog.Error(msg.Message, fields...)
		default:
			zlog.Info(msg.Message, fields...)
		}
	})

	flush := func() { _ = zlog.Sync() }
	return logger, flush, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
