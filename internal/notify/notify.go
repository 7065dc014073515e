// Package notify delivers desktop notifications.
package notify

import (
	"github.com/gen2brain/beeep"
)

// Desktop sends notifications through the platform notification service.
type Desktop struct {
	title   string
	enabled bool
	send    func(title, message string) error
}

// NewDesktop returns a notifier titling every notification with title. A
// disabled notifier accepts and drops every message.
func NewDesktop(title string, enabled bool) *Desktop {
	return &Desktop{title: title, enabled: enabled, send: sendDesktop}
}

// Notify shows message to the logged-in user.
func (d *Desktop) Notify(message string) error {
	if !d.enabled {
		return nil
	}
	return d.send(d.title, message)
}

func sendDesktop(title, message string) error {
	return beeep.Notify(title, message, "")
}
