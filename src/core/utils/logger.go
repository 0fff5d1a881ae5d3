package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lungscan-server-go/src/configs"
)

// LogLevel of a log entry.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Logger writes JSON-line entries to a file and mirrors them to the console.
type Logger struct {
	config  *configs.Config
	logFile *os.File
}

// LogEntry is the serialized form of one log line.
type LogEntry struct {
	Time    string      `json:"time"`
	Level   LogLevel    `json:"level"`
	Tag     string      `json:"tag,omitempty"`
	Message string      `json:"message"`
	Fields  interface{} `json:"fields,omitempty"`
}

// NewLogger creates the logger, creating the log directory if needed.
func NewLogger(config *configs.Config) (*Logger, error) {
	if err := os.MkdirAll(config.Log.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %v", err)
	}

	logPath := filepath.Join(config.Log.LogDir, config.Log.LogFile)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %v", err)
	}

	return &Logger{
		config:  config,
		logFile: file,
	}, nil
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

func (l *Logger) log(level LogLevel, tag string, msg string, fields ...interface{}) {
	nowString := time.Now().Format("2006-01-02 15:04:05.000")
	entry := LogEntry{
		Time:    nowString,
		Level:   level,
		Tag:     tag,
		Message: msg,
	}

	if len(fields) > 0 {
		entry.Fields = fields[0]
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal log entry: %v\n", err)
		return
	}

	if _, err := l.logFile.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "write log entry: %s %v\n", msg, err)
	}

	fmt.Printf("[%s] [%s] %s\n", nowString, level, msg)
}

// Debug logs at debug level when enabled by config.
func (l *Logger) Debug(msg string, fields ...interface{}) {
	if strings.EqualFold(l.config.Log.LogLevel, "debug") {
		l.log(DebugLevel, "", msg, fields...)
	}
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...interface{}) {
	l.log(InfoLevel, "", msg, fields...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.log(WarnLevel, "", msg, fields...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...interface{}) {
	l.log(ErrorLevel, "", msg, fields...)
}

// TaggedLogger prefixes every entry with a fixed tag.
type TaggedLogger struct {
	*Logger
	tag string
}

// WithTag returns a logger that tags every entry.
func (l *Logger) WithTag(tag string) *TaggedLogger {
	return &TaggedLogger{
		Logger: l,
		tag:    tag,
	}
}

func (l *TaggedLogger) Debug(msg string, fields ...interface{}) {
	if strings.EqualFold(l.config.Log.LogLevel, "debug") {
		l.log(DebugLevel, l.tag, msg, fields...)
	}
}

func (l *TaggedLogger) Info(msg string, fields ...interface{}) {
	l.log(InfoLevel, l.tag, msg, fields...)
}

func (l *TaggedLogger) Warn(msg string, fields ...interface{}) {
	l.log(WarnLevel, l.tag, msg, fields...)
}

func (l *TaggedLogger) Error(msg string, fields ...interface{}) {
	l.log(ErrorLevel, l.tag, msg, fields...)
}
