// Package log builds the zap logger of the sicollect command, optionally
// writing to a size-rotated file.
package log

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/arloliu/dvbsi/internal/config"
)

// New creates a logger writing JSON lines to the configured file and
// human-readable lines to console. A nil console disables console output.
//
// Parameters:
//   - cfg: Level and file rotation settings
//   - console: Console writer, usually os.Stderr
//
// Returns:
//   - *zap.Logger: The logger
//   - func() error: Flushes the logger and closes the log file
func New(cfg config.LogConfig, console io.Writer) (*zap.Logger, func() error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	var cores []zapcore.Core
	if console != nil {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig),
			zapcore.AddSync(console),
			level,
		))
	}

	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(file),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	return logger, func() error {
		// syncing a terminal fails with EINVAL on some platforms
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}

		return nil
	}
}
