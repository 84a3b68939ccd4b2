package bootstrap

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes the zap logger with colored console output. Logs go
// to w (stderr in production) so rendered command output on stdout stays
// machine-readable. The returned atomic level is raised or lowered once the
// configuration file has been parsed.
func InitLogger(w io.Writer) (*zap.Logger, zap.AtomicLevel) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core := zapcore.NewCore(
		consoleEncoder,
		zapcore.AddSync(w),
		level,
	)

	logger := zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, level
}

// parseLevel maps a configured log level name to a zap level, defaulting to
// info for anything unrecognized.
func parseLevel(name string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
