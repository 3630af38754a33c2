// Package logging configures the process-wide logrus logger used by every component.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	logFile *os.File
	logger  = newLogger(os.Stdout)
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init directs log output to stdout and, when logPath is non-empty, appends to that file too.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	logger.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Close releases the log file opened by Init, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	logger.SetOutput(os.Stdout)
	err := logFile.Close()
	logFile = nil
	return err
}

// SetDebug toggles debug-level output.
func SetDebug(enabled bool) {
	if enabled {
		logger.SetLevel(logrus.DebugLevel)
		return
	}
	logger.SetLevel(logrus.InfoLevel)
}

// SetOutput replaces the writer without touching the log file. Tests use it to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Logger exposes the shared logger.
func Logger() *logrus.Logger {
	return logger
}

// WithComponent returns an entry tagged with the emitting component.
func WithComponent(name string) *logrus.Entry {
	return logger.WithField("component", name)
}

// WithFields returns an entry carrying the given fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// LogEvent writes a formatted lifecycle message at info level.
func LogEvent(format string, args ...any) {
	logger.Info(fmt.Sprintf(format, args...))
}

// LogRequest records an outbound or inbound call at debug level.
func LogRequest(direction, source, query string, payload any) {
	logger.Debug(buildRequestMessage(direction, source, query, payload))
}

func buildRequestMessage(direction, source, query string, payload any) string {
	dir := strings.TrimSpace(direction)
	if dir != "" {
		dir = strings.ToUpper(dir)
	}
	sourceValue := strings.TrimSpace(source)
	if sourceValue == "" {
		sourceValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", dir)}
	parts = append(parts, fmt.Sprintf("source=%s", sourceValue))
	if query = strings.TrimSpace(query); query != "" {
		parts = append(parts, fmt.Sprintf("query=%s", query))
	}
	parts = append(parts, fmt.Sprintf("payload=%s", formatPayload(payload)))
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
