// Package notify shows desktop toasts for recording and transcription
// events.
package notify

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"
)

const title = "Murmur"

// Notifier shows desktop notifications. A disabled Notifier silently
// drops everything, so callers never branch on the setting. The func
// fields default to beeep; tests swap them out.
type Notifier struct {
	mu      sync.Mutex
	enabled bool

	notifyFn func(title, message, icon string) error
	alertFn  func(title, message, icon string) error
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{
		enabled:  enabled,
		notifyFn: beeep.Notify,
		alertFn:  beeep.Alert,
	}
}

// SetEnabled toggles delivery. Config reloads call this so components
// holding the Notifier pick up the new setting without a restart.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Info shows an informational toast.
func (n *Notifier) Info(message string) {
	if !n.deliverable() {
		return
	}
	if err := n.notifyFn(title, message, ""); err != nil {
		slog.Debug("show notification", "error", err)
	}
}

// Error shows an error toast.
func (n *Notifier) Error(message string) {
	if !n.deliverable() {
		return
	}
	if err := n.alertFn(title, message, ""); err != nil {
		slog.Debug("show error notification", "error", err)
	}
}

func (n *Notifier) deliverable() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}
