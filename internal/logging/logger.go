package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const logDirEnvVar = "WACONSOLE_LOG_DIR"

const serviceLogFileName = "waconsole-service.log"

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger defines a minimal, printf-style logging contract.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var (
	fileLoggerOnce sync.Once
	fileLogger     *fileSink
)

// fileSink writes formatted log lines to the shared service log file.
type fileSink struct {
	mu     sync.Mutex
	logger *log.Logger
	file   *os.File
	level  LogLevel
}

// componentLogger tags every line with a component name and delegates to the
// shared file sink.
type componentLogger struct {
	sink      *fileSink
	component string
}

// NewComponentLogger creates a logger for a specific component.
func NewComponentLogger(component string) Logger {
	return &componentLogger{sink: getFileSink(), component: component}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

// ParseLevel maps a level name to its LogLevel. Unknown names fall back to
// INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(name) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetLevel sets the minimum level written by all component loggers.
func SetLevel(level LogLevel) {
	sink := getFileSink()
	sink.mu.Lock()
	sink.level = level
	sink.mu.Unlock()
}

func getFileSink() *fileSink {
	fileLoggerOnce.Do(func() {
		fileLogger = newFileSink()
	})
	return fileLogger
}

func newFileSink() *fileSink {
	sink := &fileSink{level: INFO}

	logDir, err := resolveLogDirectory()
	if err != nil {
		log.Printf("Failed to resolve log directory: %v", err)
		return sink
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Printf("Failed to create log directory %s: %v", logDir, err)
		return sink
	}

	logPath := filepath.Join(logDir, serviceLogFileName)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("Failed to open log file: %v", err)
		return sink
	}

	sink.file = file
	sink.logger = log.New(file, "", 0) // formatted below
	return sink
}

func resolveLogDirectory() (string, error) {
	if override := strings.TrimSpace(os.Getenv(logDirEnvVar)); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home, nil
}

func (s *fileSink) write(level LogLevel, component, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	// Format: 2025-09-30 12:34:56 [INFO] [ComponentName] file.go:123 - Message
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	logLine := fmt.Sprintf("%s [%s] [%s] %s:%d - %s",
		timestamp, levelToString(level), component, file, line, message)

	if s.logger != nil {
		s.logger.Print(logLine)
	}
	if os.Getenv("WACONSOLE_SERVER_MODE") == "deploy" {
		fmt.Println(logLine)
	}
}

func (l *componentLogger) Debug(format string, args ...any) {
	l.sink.write(DEBUG, l.component, format, args...)
}

func (l *componentLogger) Info(format string, args ...any) {
	l.sink.write(INFO, l.component, format, args...)
}

func (l *componentLogger) Warn(format string, args ...any) {
	l.sink.write(WARN, l.component, format, args...)
}

func (l *componentLogger) Error(format string, args ...any) {
	l.sink.write(ERROR, l.component, format, args...)
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
