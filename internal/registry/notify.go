package registry

import (
	"sync"

	"hostwatch/internal/logger"
)

// Notifier surfaces transient user-visible messages for registry changes.
type Notifier interface {
	Success(msg string)
	Warning(msg string)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Log logger.Logger
}

func (n LogNotifier) Success(msg string) { n.Log.Info("%s", msg) }
func (n LogNotifier) Warning(msg string) { n.Log.Warn("%s", msg) }

// Notification is one recorded message.
type Notification struct {
	Level   string // "success" or "warning"
	Message string
}

// RecordingNotifier keeps every notification in memory.
type RecordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (n *RecordingNotifier) Success(msg string) { n.add("success", msg) }
func (n *RecordingNotifier) Warning(msg string) { n.add("warning", msg) }

func (n *RecordingNotifier) add(level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notification{Level: level, Message: msg})
}

// Notifications returns a copy of the recorded messages.
func (n *RecordingNotifier) Notifications() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.items...)
}
