// Package logger is a small leveled wrapper over the standard log package.
// Components take a Logger so tests can capture or silence output.
package logger

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// DebugEnv enables debug output when set to any non-empty value.
const DebugEnv = "HOSTWATCH_DEBUG"

// Logger is the leveled logging interface used across hostwatch.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type stdLogger struct {
	prefix string
}

// New returns a logger writing through log.Printf with the given prefix
// (e.g. "[telemetry]").
func New(prefix string) Logger {
	return &stdLogger{prefix: prefix}
}

func (l *stdLogger) Debug(format string, args ...any) {
	if os.Getenv(DebugEnv) != "" {
		l.print("DEBUG: ", format, args)
	}
}

func (l *stdLogger) Info(format string, args ...any)  { l.print("", format, args) }
func (l *stdLogger) Warn(format string, args ...any)  { l.print("WARN: ", format, args) }
func (l *stdLogger) Error(format string, args ...any) { l.print("ERROR: ", format, args) }

func (l *stdLogger) print(level, format string, args []any) {
	msg := level + fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = l.prefix + " " + msg
	}
	log.Print(msg)
}

type noopLogger struct{}

// Noop discards everything.
func Noop() Logger { return noopLogger{} }

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Message is one captured log line.
type Message struct {
	Level   string
	Message string
}

// BufferLogger captures messages for test assertions. Safe for concurrent use.
type BufferLogger struct {
	mu       sync.Mutex
	messages []Message
}

func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (l *BufferLogger) Debug(format string, args ...any) { l.add("debug", format, args) }
func (l *BufferLogger) Info(format string, args ...any)  { l.add("info", format, args) }
func (l *BufferLogger) Warn(format string, args ...any)  { l.add("warn", format, args) }
func (l *BufferLogger) Error(format string, args ...any) { l.add("error", format, args) }

func (l *BufferLogger) add(level, format string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, Message{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Messages returns a copy of everything captured so far.
func (l *BufferLogger) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// HasLevel reports whether any message was logged at level.
func (l *BufferLogger) HasLevel(level string) bool {
	for _, m := range l.Messages() {
		if m.Level == level {
			return true
		}
	}
	return false
}
