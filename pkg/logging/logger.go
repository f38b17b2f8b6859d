package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is a log severity. Messages below a logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	levelOff
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "OFF"
	}
}

// ParseLevel converts a config string (debug, info, warn, error) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger provides leveled logging for htmlshot components.
// Every line carries a timestamp, the component name and the level.
// Child loggers created with Named share the parent's output and level.
type Logger struct {
	component string
	out       *output
}

// output is the shared sink behind a family of loggers.
type output struct {
	mu        sync.Mutex
	logger    *log.Logger
	file      *os.File
	logPath   string
	level     Level
	closeOnce sync.Once
}

var (
	// runID identifies one process run; all log files of a run share it
	runID     string
	runIDOnce sync.Once
)

func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// RunID returns the identifier of the current process run.
func RunID() string {
	return getRunID()
}

// New creates a logger for component writing to w at the given level.
func New(component string, w io.Writer, level Level) *Logger {
	return &Logger{
		component: component,
		out: &output{
			logger: log.New(w, "", 0),
			level:  level,
		},
	}
}

// NewFile creates a logger writing to <dir>/<run-id>-htmlshot.log.
//
// If the directory cannot be created or the file cannot be opened, it returns
// a stderr logger along with the error so callers can report fallback mode.
func NewFile(component, dir string, level Level) (*Logger, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		err = fmt.Errorf("failed to create log directory: %w", err)
		return newFallbackLogger(component, level, err), err
	}

	logPath := filepath.Join(dir, fmt.Sprintf("%s-htmlshot.log", getRunID()))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallbackLogger(component, level, err), err
	}

	return &Logger{
		component: component,
		out: &output{
			logger:  log.New(file, "", 0),
			file:    file,
			logPath: logPath,
			level:   level,
		},
	}, nil
}

func newFallbackLogger(component string, level Level, err error) *Logger {
	l := New(component, os.Stderr, level)
	l.Warnf("file logging unavailable, falling back to stderr: %v", err)
	return l
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New("", io.Discard, levelOff)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *Logger) *Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Named returns a child logger for another component sharing this sink.
func (l *Logger) Named(component string) *Logger {
	return &Logger{component: component, out: l.out}
}

// SetLevel changes the minimum level for this logger and all its children.
func (l *Logger) SetLevel(level Level) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.level = level
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	return level >= l.out.level
}

func (l *Logger) write(level Level, format string, v ...interface{}) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if level < l.out.level {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	message := fmt.Sprintf(format, v...)
	l.out.logger.Printf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write(LevelDebug, format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write(LevelInfo, format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write(LevelWarn, format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write(LevelError, format, v...)
}

// LogPath returns the path of the log file, or "" for non-file loggers.
func (l *Logger) LogPath() string {
	return l.out.logPath
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.out.closeOnce.Do(func() {
		if l.out.file != nil {
			err = l.out.file.Close()
		}
	})
	return err
}
