package logging

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MightyToolkit/vigil-reporter/internal/config"
)

// Setup configures the standard logrus logger from cfg. Output always goes
// to stdout; with cfg.File set it is also written to a rotated log file.
// The returned closer releases the file and is never nil.
func Setup(cfg config.Log) io.Closer {
	return SetupLogger(log.StandardLogger(), os.Stdout, cfg)
}

func SetupLogger(logger *log.Logger, stdout io.Writer, cfg config.Log) io.Closer {
	logger.SetOutput(stdout)
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", cfg.Level)
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File == "" {
		return io.NopCloser(nil)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		logger.Warnf("Failed to create log directory for %s, logging to stdout only: %v", cfg.File, err)
		return io.NopCloser(nil)
	}

	fileLogger := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, config.DefaultMaxSizeMB),
		MaxBackups: orDefault(cfg.MaxBackups, config.DefaultMaxBackups),
		MaxAge:     orDefault(cfg.MaxAgeDays, config.DefaultMaxAgeDays),
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(stdout, fileLogger))
	return fileLogger
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
