package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// A Level is a logging priority. Higher levels are more important.
type Level int8

// Logging levels (matching zap core internals).
const (
	// DebugLevel logs are typically voluminous, and are usually disabled in
	// production.
	DebugLevel Level = -1
	// InfoLevel is the default logging priority.
	InfoLevel Level = 0
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel Level = 1
	// ErrorLevel logs are high-priority. If a run is healthy it
	// shouldn't generate any error-level logs.
	ErrorLevel Level = 2
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel Level = 5
)

// ParseLevel maps a level name to a Level
func ParseLevel(s string) (Level, error) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(s)); err != nil {
		return InfoLevel, err
	}
	return Level(zl), nil
}

func (l Level) String() string {
	return zapcore.Level(l).String()
}

func (l *Level) ZapLevel() zapcore.Level {
	return zapcore.Level(*l)
}

type Logger struct {
	*zap.Logger
	config *zap.Config
	name   string
}

func (log *Logger) GetLevel() Level {
	return (Level)(log.config.Level.Level())
}

func (log *Logger) GetName() string {
	return log.name
}

func (log *Logger) Named(name string) *Logger {
	newName := name
	if log.name != "" {
		newName = fmt.Sprintf("%s.%s", log.name, name)
	}
	return &Logger{
		Logger: log.Logger.Named(name),
		config: log.config,
		name:   newName,
	}
}

func New(core zapcore.Core, cfg *zap.Config) *Logger {
	return &Logger{
		Logger: zap.New(core),
		config: cfg,
	}
}

func (log *Logger) SetLevel(level Level) {
	lvl := (zapcore.Level)(level)
	if log.config.Level.Level() == lvl {
		return
	}
	log.config.Level.SetLevel(lvl)
}

func (log *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		Logger: log.Logger.With(fields...),
		config: log.config,
		name:   log.name,
	}
}

// AtExit flushes the logs before exiting the process. This is meant to be
// used with defer when initializing your logger
func (log *Logger) AtExit() {
	if log.Logger != nil {
		_ = log.Logger.Sync()
	}
}

// NewLoggerFromEnv returns a console logger at debug level for "dev" and a
// JSON logger at info level otherwise. Both write to stderr so stdout stays
// free for command output.
func NewLoggerFromEnv(env string) *Logger {
	var encoderConfig zapcore.EncoderConfig
	var encoder zapcore.Encoder
	var config zap.Config
	switch env {
	case "dev":
		encoderConfig = zapcore.EncoderConfig{
			CallerKey:      "C",
			EncodeCaller:   zapcore.ShortCallerEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			LevelKey:       "L",
			LineEnding:     "\n",
			MessageKey:     "M",
			NameKey:        "N",
			TimeKey:        "T",
		}
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		config = zap.Config{
			Level:            zap.NewAtomicLevelAt(zapcore.Level(DebugLevel)),
			Development:      true,
			Encoding:         "console",
			EncoderConfig:    encoderConfig,
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		}
	default:
		encoderConfig = zapcore.EncoderConfig{
			CallerKey:      "caller",
			EncodeCaller:   zapcore.ShortCallerEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeName:     zapcore.FullNameEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			LevelKey:       "level",
			LineEnding:     "\n",
			MessageKey:     "message",
			NameKey:        "logger",
			StacktraceKey:  "stacktrace",
			TimeKey:        "@timestamp",
		}
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		config = zap.Config{
			Level:            zap.NewAtomicLevelAt(zapcore.Level(InfoLevel)),
			Development:      false,
			Encoding:         "json",
			EncoderConfig:    encoderConfig,
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		}
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), config.Level)
	return New(core, &config)
}

// NewTestLogger returns a logger that records entries in memory, for
// assertions on what was logged
func NewTestLogger() (*Logger, *observer.ObservedLogs) {
	config := zap.Config{Level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
	core, logs := observer.New(config.Level)
	return New(core, &config), logs
}

// NewNopLogger discards everything
func NewNopLogger() *Logger {
	config := zap.Config{Level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
	return New(zapcore.NewNopCore(), &config)
}
