// Package logs is the process-wide logger: colored console output plus a
// plain-text copy in a size-rotated file.
package logs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"auto_zonky_go/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampLayout = "2006-01-02 15:04:05"

// rotatingFile copies every entry into a lumberjack-rotated file.
type rotatingFile struct {
	out       *lumberjack.Logger
	formatter logrus.Formatter
}

func (h *rotatingFile) Levels() []logrus.Level { return logrus.AllLevels }

func (h *rotatingFile) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.out.Write(line)
	return err
}

// Fields is an alias so callers don't need to import logrus for structured fields.
type Fields = logrus.Fields

// Logger is what WithFields hands out.
type Logger = logrus.FieldLogger

var (
	log  = fallbackLogger()
	file *rotatingFile
)

// fallbackLogger serves callers that run before Init, such as tests.
func fallbackLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return l
}

// Init switches to the configured level and starts writing to logFilePath.
// An unknown level falls back to info.
func Init(cfg *config.LogConfig, logFilePath string) error {
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	level, levelErr := logrus.ParseLevel(cfg.LogLevel)
	if levelErr != nil {
		level = logrus.InfoLevel
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:            true,
		FullTimestamp:          true,
		TimestampFormat:        timestampLayout,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})

	hook := &rotatingFile{
		out: &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
		formatter: &logrus.TextFormatter{DisableColors: true, FullTimestamp: true, TimestampFormat: timestampLayout},
	}
	l.AddHook(hook)

	// dependencies that log through the logrus package logger stay quiet
	logrus.SetOutput(io.Discard)
	logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))

	log, file = l, hook
	if levelErr != nil {
		Warnf("Unknown log level %q, using info.", cfg.LogLevel)
	}
	Infof("Logging to %s", logFilePath)
	return nil
}

// Close flushes the log file. Later entries only reach the console.
func Close() {
	Info("Logging system closed.")
	if file == nil {
		return
	}
	_ = file.out.Close()
	log.ReplaceHooks(make(logrus.LevelHooks))
	file = nil
}

// WithFields returns an entry carrying structured fields, e.g. the cycle ID.
func WithFields(fields Fields) Logger { return log.WithFields(fields) }

func Debugf(format string, args ...any) { log.Debugf(format, args...) }
func Info(args ...any)                  { log.Info(args...) }
func Infof(format string, args ...any)  { log.Infof(format, args...) }
func Warnf(format string, args ...any)  { log.Warnf(format, args...) }
func Errorf(format string, args ...any) { log.Errorf(format, args...) }
func Fatalf(format string, args ...any) { log.Fatalf(format, args...) }
