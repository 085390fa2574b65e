package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	SILENT // No logging
)

var levelNames = map[LogLevel]string{
	DEBUG:  "DEBUG",
	INFO:   "INFO",
	WARN:   "WARN",
	ERROR:  "ERROR",
	SILENT: "SILENT",
}

// Format selects the zap encoder.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Options configures a Logger.
type Options struct {
	Level   LogLevel
	Output  io.Writer // Defaults to os.Stderr
	Color   bool      // Console format only
	Format  Format
	Service string // Added as service_name on every entry when set
}

// Logger provides leveled logging with module support on top of zap.
type Logger struct {
	mu    sync.Mutex
	level LogLevel
	zl    *zap.Logger
}

var defaultLogger *Logger
var once sync.Once

// Init initializes the global logger (call once at startup)
func Init(level LogLevel, output io.Writer, useColor bool) {
	InitWithOptions(Options{Level: level, Output: output, Color: useColor, Format: FormatConsole})
}

// InitWithOptions initializes the global logger from opts (call once at startup)
func InitWithOptions(opts Options) {
	once.Do(func() {
		defaultLogger = NewWithOptions(opts)
	})
}

// New creates a new console Logger instance
func New(level LogLevel, output io.Writer, useColor bool) *Logger {
	return NewWithOptions(Options{Level: level, Output: output, Color: useColor, Format: FormatConsole})
}

// NewWithOptions creates a Logger writing through a zap core built from opts.
func NewWithOptions(opts Options) *Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	var encoder zapcore.Encoder
	if opts.Format == FormatJSON {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "timestamp"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if opts.Color {
			cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	// Level gating happens in log so SILENT and SetLevel work without rebuilding the core.
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(output)), zapcore.DebugLevel)
	zl := zap.New(core)
	if opts.Service != "" {
		zl = zl.With(zap.String("service_name", opts.Service))
	}
	return &Logger{level: opts.Level, zl: zl}
}

// NewFromZap wraps an existing zap logger, e.g. an observer core in tests.
func NewFromZap(zl *zap.Logger, level LogLevel) *Logger {
	return &Logger{level: level, zl: zl}
}

// Zap returns the underlying zap logger for libraries that take one.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Logger) log(level LogLevel, module string, format string, args ...interface{}) {
	l.mu.Lock()
	currentLevel := l.level
	l.mu.Unlock()

	if level < currentLevel || level >= SILENT {
		return
	}

	message := fmt.Sprintf(format, args...)

	var fields []zap.Field
	if module != "" {
		fields = []zap.Field{zap.String("module", module)}
	}

	switch level {
	case DEBUG:
		l.zl.Debug(message, fields...)
	case INFO:
		l.zl.Info(message, fields...)
	case WARN:
		l.zl.Warn(message, fields...)
	case ERROR:
		l.zl.Error(message, fields...)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(module string, format string, args ...interface{}) {
	l.log(DEBUG, module, format, args...)
}

// Info logs an info message
func (l *Logger) Info(module string, format string, args ...interface{}) {
	l.log(INFO, module, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(module string, format string, args ...interface{}) {
	l.log(WARN, module, format, args...)
}

// Error logs an error message
func (l *Logger) Error(module string, format string, args ...interface{}) {
	l.log(ERROR, module, format, args...)
}

// Global logger functions (use default logger)

// Default returns the global logger, or nil before Init.
func Default() *Logger {
	return defaultLogger
}

// Zap returns the global zap logger, or a no-op logger before Init.
func Zap() *zap.Logger {
	if defaultLogger != nil {
		return defaultLogger.Zap()
	}
	return zap.NewNop()
}

// Sync flushes the global logger.
func Sync() {
	if defaultLogger != nil {
		_ = defaultLogger.Sync()
	}
}

// SetLevel sets the global log level
func SetLevel(level LogLevel) {
	if defaultLogger != nil {
		defaultLogger.SetLevel(level)
	}
}

// GetLevel returns the global log level
func GetLevel() LogLevel {
	if defaultLogger != nil {
		return defaultLogger.GetLevel()
	}
	return INFO
}

// Debug logs a debug message using the global logger
func Debug(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debug(module, format, args...)
	}
}

// Info logs an info message using the global logger
func Info(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Info(module, format, args...)
	}
}

// Warn logs a warning message using the global logger
func Warn(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warn(module, format, args...)
	}
}

// Error logs an error message using the global logger
func Error(module string, format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Error(module, format, args...)
	}
}

// ParseLevel parses a log level string
func ParseLevel(s string) (LogLevel, error) {
	switch s {
	case "debug", "DEBUG":
		return DEBUG, nil
	case "info", "INFO":
		return INFO, nil
	case "warn", "WARN", "warning", "WARNING":
		return WARN, nil
	case "error", "ERROR":
		return ERROR, nil
	case "silent", "SILENT", "none", "NONE":
		return SILENT, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s", s)
	}
}

// ParseFormat parses a log format string
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "console", "text":
		return FormatConsole, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatConsole, fmt.Errorf("invalid log format: %s", s)
	}
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}
