package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
)

// Logger provides leveled, printf-style logging throughout the application.
type Logger struct {
	log *logrus.Logger
}

type lineFormatter struct{}

// Format renders "[2006-01-02 15:04:05] LEVEL message".
func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(entry.Level.String())
	if entry.Level == logrus.WarnLevel {
		level = "WARN"
	}
	if len(level) > 5 {
		level = level[:5]
	}
	msg := fmt.Sprintf("[%s] %-5s %s\n", entry.Time.Format("2006-01-02 15:04:05"), level, entry.Message)
	return []byte(msg), nil
}

// NewLogger creates an info-level Logger writing to stdout.
func NewLogger() *Logger {
	l, _ := NewLoggerWithOptions("info", "")
	return l
}

// NewLoggerWithOptions creates a Logger at the given level. Errors go to
// stderr and everything else to stdout; when filePath is set, every line is
// also appended to the file.
func NewLoggerWithOptions(levelStr, filePath string) (*Logger, error) {
	var file io.Writer
	if filePath != "" {
		if dir := filepath.Dir(filePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return newLogger(levelStr, os.Stdout, os.Stderr), fmt.Errorf("logger: create log dir: %w", err)
			}
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return newLogger(levelStr, os.Stdout, os.Stderr), fmt.Errorf("logger: open %q: %w", filePath, err)
		}
		file = f
	}

	if file == nil {
		return newLogger(levelStr, os.Stdout, os.Stderr), nil
	}
	return newLogger(levelStr, io.MultiWriter(os.Stdout, file), io.MultiWriter(os.Stderr, file)), nil
}

func newLogger(levelStr string, stdout, stderr io.Writer) *Logger {
	log := logrus.New()
	log.SetFormatter(&lineFormatter{})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetOutput(io.Discard)
	log.AddHook(&writer.Hook{
		Writer:    stdout,
		LogLevels: []logrus.Level{logrus.WarnLevel, logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel},
	})
	log.AddHook(&writer.Hook{
		Writer:    stderr,
		LogLevels: []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel},
	})

	return &Logger{log: log}
}

// NewDiscardLogger returns a Logger that drops everything. Used by tests.
func NewDiscardLogger() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Logger{log: log}
}

func (l *Logger) Info(format string, args ...any) {
	l.log.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log.Debugf(format, args...)
}
