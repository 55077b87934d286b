// Package logger is the levelled logger used across the pipeline. Writes
// are fire-and-forget: output errors are ignored.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

var (
	mu     sync.RWMutex
	level            = LevelInfo
	output io.Writer = os.Stderr
)

// ParseLevel maps a config string to a Level. Unknown names yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "off", "none", "silent":
		return LevelOff
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetVerbose switches between debug and info level.
func SetVerbose(v bool) {
	if v {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelInfo)
	}
}

func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return level == LevelDebug
}

// SetOutput sets the writer for log lines. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func logf(l Level, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if l < level || output == nil {
		return
	}
	_, _ = fmt.Fprintf(output, prefix+format+"\n", args...)
}

func Debug(format string, args ...any) { logf(LevelDebug, "[DEBUG] ", format, args...) }
func Info(format string, args ...any)  { logf(LevelInfo, "[INFO] ", format, args...) }
func Warn(format string, args ...any)  { logf(LevelWarn, "[WARN] ", format, args...) }
func Error(format string, args ...any) { logf(LevelError, "[ERROR] ", format, args...) }

// Section prints a stage header at debug level.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if LevelDebug < level || output == nil {
		return
	}
	_, _ = fmt.Fprintf(output, "\n=== %s ===\n", name)
}
