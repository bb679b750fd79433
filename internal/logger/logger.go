package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// rotating holds the file writer opened by NewFromEnv so Sync can close it.
var (
	rotating   io.Closer
	rotatingMu sync.Mutex
)

// Logger wraps logrus.Entry to provide structured logging with context support.
type Logger struct {
	*logrus.Entry
}

// Config holds logger configuration.
type Config struct {
	Level       string    // debug, info, warn, error
	Format      string    // json, text
	Output      io.Writer // output destination; stdout when nil
	ServiceName string    // value of the "service" field
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stdout,
		ServiceName: "vibesearch",
	}
}

// New creates a Logger writing to cfg.Output.
// Parameters:
//   - cfg: logger configuration; nil uses DefaultConfig.
//
// Returns:
//   - *Logger: initialized logger instance.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return build(cfg.Level, cfg.Format, cfg.ServiceName, out)
}

// NewFromEnv creates a Logger from environment configuration. Outside the
// local environment it also writes to a size-rotated log file.
func NewFromEnv(envCfg *EnvConfig) *Logger {
	if envCfg == nil {
		envCfg = LoadFromEnv()
	}

	if envCfg.Output != nil {
		return build(envCfg.Level, envCfg.Format, envCfg.ServiceName, envCfg.Output)
	}

	var writers []io.Writer
	if envCfg.Environment == "local" || !envCfg.LogFileOnly {
		writers = append(writers, os.Stdout)
	}
	if envCfg.Environment != "local" && envCfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   envCfg.LogFile,
			MaxSize:    envCfg.MaxSize,
			MaxBackups: envCfg.MaxBackups,
			MaxAge:     envCfg.MaxAge,
			Compress:   envCfg.Compress,
		}
		writers = append(writers, file)

		rotatingMu.Lock()
		rotating = file
		rotatingMu.Unlock()
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	return build(envCfg.Level, envCfg.Format, envCfg.ServiceName, io.MultiWriter(writers...))
}

func build(levelName, format, service string, out io.Writer) *Logger {
	log := logrus.New()
	log.SetOutput(out)

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetReportCaller(true)

	if strings.EqualFold(format, "text") {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  timestampFormat,
			CallerPrettyfier: shortCaller,
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: shortCaller,
		})
	}

	return &Logger{Entry: log.WithField("service", service)}
}

// Sync closes the rotating log file, if any. Call it before exit.
func Sync() error {
	rotatingMu.Lock()
	defer rotatingMu.Unlock()

	if rotating != nil {
		return rotating.Close()
	}
	return nil
}

// WithFields returns a new Logger with additional fields.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}

// WithField returns a new Logger with a single additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// WithError returns a new Logger with an error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Entry: l.Entry.WithError(err)}
}

// shortCaller trims caller info down to package.Func and file:line.
func shortCaller(frame *runtime.Frame) (function string, file string) {
	function = frame.Function
	if idx := strings.LastIndex(function, "/"); idx != -1 {
		function = function[idx+1:]
	}
	return function, filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
}

// Info logs a message at Info level on the default logger.
func Info(format string, args ...interface{}) {
	GetDefault().Infof(format, args...)
}

// Warn logs a message at Warn level on the default logger.
func Warn(format string, args ...interface{}) {
	GetDefault().Warnf(format, args...)
}

// Error logs a message at Error level on the default logger.
func Error(format string, args ...interface{}) {
	GetDefault().Errorf(format, args...)
}

// CtxDebug logs a message at Debug level with context fields.
func CtxDebug(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Debugf(format, args...)
}

// CtxInfo logs a message at Info level with context fields.
func CtxInfo(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Infof(format, args...)
}

// CtxWarn logs a message at Warn level with context fields.
func CtxWarn(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Warnf(format, args...)
}

// CtxError logs a message at Error level with context fields.
func CtxError(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Errorf(format, args...)
}
