package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	QUIET
)

var (
	mu           sync.RWMutex
	currentLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	quiet        bool
	base         = newZap(currentLevel)
)

func newZap(level zap.AtomicLevel) *zap.SugaredLogger {
	encodeLevel := zapcore.CapitalColorLevelEncoder
	if !isatty.IsTerminal(os.Stdout.Fd()) || !isatty.IsTerminal(os.Stderr.Fd()) {
		encodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg := zap.Config{
		Level:            level,
		Encoding:         "console",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "msg",
			LevelKey:       "level",
			TimeKey:        "ts",
			NameKey:        "component",
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeName:     zapcore.FullNameEncoder,
		},
	}
	l, err := cfg.Build()
	if err != nil {
		// zap only fails here on bad sinks; stdout is always there
		panic(fmt.Sprintf("logger: %v", err))
	}
	return l.Sugar()
}

// SetLogLevel sets the current logging level
func SetLogLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	quiet = level == QUIET
	switch level {
	case DEBUG:
		currentLevel.SetLevel(zapcore.DebugLevel)
	case WARN:
		currentLevel.SetLevel(zapcore.WarnLevel)
	case ERROR:
		currentLevel.SetLevel(zapcore.ErrorLevel)
	default:
		currentLevel.SetLevel(zapcore.InfoLevel)
	}
}

// SetLogLevelFromString sets the log level from a string
func SetLogLevelFromString(level string) {
	switch strings.ToLower(level) {
	case "debug":
		SetLogLevel(DEBUG)
	case "warn", "warning":
		SetLogLevel(WARN)
	case "error":
		SetLogLevel(ERROR)
	case "quiet":
		SetLogLevel(QUIET)
	default:
		SetLogLevel(INFO)
	}
}

func named(component string) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if quiet {
		return nil
	}
	return base.Named(component)
}

// LogDebug logs a debug message
func LogDebug(component, message string, args ...interface{}) {
	if l := named(component); l != nil {
		l.Debugf(message, args...)
	}
}

// LogInfo logs an info message
func LogInfo(component, message string, args ...interface{}) {
	if l := named(component); l != nil {
		l.Infof(message, args...)
	}
}

// LogWarn logs a warning message
func LogWarn(component, message string, args ...interface{}) {
	if l := named(component); l != nil {
		l.Warnf(message, args...)
	}
}

// LogError logs an error message
func LogError(component, message string, args ...interface{}) {
	if l := named(component); l != nil {
		l.Errorf(message, args...)
	}
}

// Sync flushes buffered log entries.
func Sync() {
	_ = base.Sync()
}
