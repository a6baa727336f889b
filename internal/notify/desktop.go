package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/telesto-labs/chime/internal/dispatch"
	"github.com/telesto-labs/chime/internal/logging"
)

// ErrNotImplemented is returned by back-ends that are declared but not yet
// wired to a delivery mechanism.
var ErrNotImplemented = errors.New("notify: not implemented")

// SystemNotification is the "system-notification" handler: a desktop
// notification through the platform's notification service. Interactive:
// the dispatch record stays open so the user can answer later through the
// action surface (chime action <id> <key>).
type SystemNotification struct {
	Logger *logging.Logger
}

func (n *SystemNotification) Interactive() bool { return true }

func (n *SystemNotification) Invoke(ctx context.Context, id string, ac dispatch.Context) error {
	title := ac.Task.Heading
	body := fmt.Sprintf("due %s (%s)", ac.Task.Deadline.Format("Mon 15:04"), describeRemaining(ac.Remaining))

	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf(`display notification %q with title %q sound name "default"`,
			escapeAppleScript(body), escapeAppleScript(title))
		cmd = exec.CommandContext(ctx, "osascript", "-e", script)
	} else {
		cmd = exec.CommandContext(ctx, "notify-send", "--app-name=chime", title, body)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("send notification: %w: %s", err, strings.TrimSpace(string(out)))
	}
	n.Logger.Debugf("system notification shown id=%s task=%s", id, ac.Task.UID)
	return nil
}

// Popup is the "popup-window" handler: a dialog offering the follow-up
// actions (done / snooze an hour, a day, a week). It blocks until the user
// answers or the dialog gives up, then applies the choice through Callback.
type Popup struct {
	Timeout  time.Duration
	Callback Callback
	Logger   *logging.Logger
}

func (p *Popup) Interactive() bool { return true }

// Button labels and their action keys.
var popupButtons = []struct {
	label string
	key   string
}{
	{"Done", dispatch.ActionDone},
	{"+1h", dispatch.ActionHour},
	{"+1d", dispatch.ActionDay},
	{"+1w", dispatch.ActionWeek},
}

func (p *Popup) Invoke(ctx context.Context, id string, ac dispatch.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	choice, err := p.present(ctx, ac, timeout)
	if err != nil {
		return err
	}

	if choice == "" {
		// Expired or dismissed: release the record with no side effects.
		p.Callback.OnClose(id, "dismissed")
		return nil
	}

	p.Logger.Debugf("popup answered id=%s choice=%s", id, choice)
	return p.Callback.OnUserAction(ctx, id, choice)
}

// present shows the dialog and returns the chosen action key, or "" when
// the dialog was dismissed or timed out.
func (p *Popup) present(ctx context.Context, ac dispatch.Context, timeout time.Duration) (string, error) {
	title := ac.Task.Heading
	body := fmt.Sprintf("due %s (%s)", ac.Task.Deadline.Format("Mon 15:04"), describeRemaining(ac.Remaining))

	if runtime.GOOS == "darwin" {
		labels := make([]string, len(popupButtons))
		for i, b := range popupButtons {
			labels[i] = fmt.Sprintf("%q", b.label)
		}
		script := fmt.Sprintf(
			`display dialog %q with title %q buttons {%s} default button "Done" giving up after %d`,
			escapeAppleScript(body), escapeAppleScript(title),
			strings.Join(labels, ", "), int(timeout.Seconds()))

		out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
		if err != nil {
			return "", fmt.Errorf("popup dialog: %w", err)
		}
		return parseDialogButton(string(out)), nil
	}

	args := []string{
		"--app-name=chime",
		"--urgency=critical",
		"--expire-time=" + strconv.Itoa(int(timeout.Milliseconds())),
		"--wait",
	}
	for _, b := range popupButtons {
		args = append(args, "--action="+b.key+"="+b.label)
	}
	args = append(args, title, body)

	out, err := exec.CommandContext(ctx, "notify-send", args...).Output()
	if err != nil {
		return "", fmt.Errorf("popup notification: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// parseDialogButton extracts the pressed button from osascript output of
// the form "button returned:+1h, gave up:false".
func parseDialogButton(out string) string {
	out = strings.TrimSpace(out)
	const prefix = "button returned:"
	idx := strings.Index(out, prefix)
	if idx < 0 {
		return ""
	}
	label := out[idx+len(prefix):]
	if comma := strings.Index(label, ","); comma >= 0 {
		label = label[:comma]
	}
	if strings.Contains(out, "gave up:true") {
		return ""
	}
	for _, b := range popupButtons {
		if b.label == strings.TrimSpace(label) {
			return b.key
		}
	}
	return ""
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// Email is the "email" handler. Declared so policies can reference it, but
// delivery is not wired up yet; dispatches through it surface as handler
// errors.
// TODO: deliver via a local sendmail once an MTA config surface exists.
type Email struct{}

func (e *Email) Interactive() bool { return false }

func (e *Email) Invoke(ctx context.Context, id string, ac dispatch.Context) error {
	return fmt.Errorf("%w: email", ErrNotImplemented)
}
