// Package notify abstracts user-visible notifications raised by the
// background context for push-delivered alerts.
package notify

import (
	"context"
	"sync"

	"github.com/rescuemate/alertsync/internal/pkg/logger"
)

// Notification is a user-visible notice. Tag is a stable identity: showing
// a second notification with the same tag replaces the first instead of
// stacking.
type Notification struct {
	Tag   string
	Title string
	Body  string
}

// Notifier displays notifications to the user
type Notifier interface {
	Show(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log and tracks the
// active set by tag with replace semantics. It is the default sink on
// headless hosts.
type LogNotifier struct {
	logger *logger.Logger

	mu     sync.Mutex
	active map[string]Notification
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{
		logger: log,
		active: make(map[string]Notification),
	}
}

// Show displays (or replaces) the notification for its tag
func (n *LogNotifier) Show(_ context.Context, notice Notification) error {
	n.mu.Lock()
	_, replaced := n.active[notice.Tag]
	n.active[notice.Tag] = notice
	n.mu.Unlock()

	n.logger.WithFields(map[string]interface{}{
		"tag":      notice.Tag,
		"title":    notice.Title,
		"body":     notice.Body,
		"replaced": replaced,
	}).Info("notification shown")
	return nil
}

// Active returns the currently displayed notifications, one per tag.
func (n *LogNotifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, 0, len(n.active))
	for _, notice := range n.active {
		out = append(out, notice)
	}
	return out
}
