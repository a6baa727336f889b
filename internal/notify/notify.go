// Package notify implements chime's built-in action handlers: log message,
// audible alert, desktop notification, popup dialog, and the (unimplemented)
// email back-end.
package notify

import (
	"context"
	"time"

	"github.com/telesto-labs/chime/internal/dispatch"
	"github.com/telesto-labs/chime/internal/logging"
	"github.com/telesto-labs/chime/internal/model"
)

// Callback is the slice of the dispatcher that interactive handlers use to
// apply the user's choice.
type Callback interface {
	OnUserAction(ctx context.Context, id, key string) error
	OnClose(id, reason string)
}

// Message returns the "message" handler: a log line with the task heading
// and timestamp. The simplest back-end and the default policy's action.
func Message(logger *logging.Logger) dispatch.Handler {
	return dispatch.HandlerFunc(func(ctx context.Context, id string, ac dispatch.Context) error {
		logger.Infof("REMINDER %q due %s (%s)",
			ac.Task.Heading,
			ac.Task.Deadline.Format(time.RFC3339),
			describeRemaining(ac.Remaining))
		return nil
	})
}

func describeRemaining(remaining time.Duration) string {
	if remaining < 0 {
		return "overdue " + (-remaining).Round(time.Second).String()
	}
	return "in " + remaining.Round(time.Second).String()
}

// RegisterBuiltins installs the built-in handlers on d under their action
// identifiers.
func RegisterBuiltins(d *dispatch.Dispatcher, cb Callback, cfg model.HandlersConfig, logger *logging.Logger) {
	d.Register("message", Message(logger))
	d.Register("audible-alert", &Audible{
		Player:   cfg.Audible.Player,
		Sound:    cfg.Audible.Sound,
		Duration: time.Duration(cfg.Audible.DurationSec) * time.Second,
		Logger:   logger,
	})
	d.Register("system-notification", &SystemNotification{Logger: logger})
	d.Register("popup-window", &Popup{
		Timeout:  time.Duration(cfg.Popup.TimeoutSec) * time.Second,
		Callback: cb,
		Logger:   logger,
	})
	d.Register("email", &Email{})
}
