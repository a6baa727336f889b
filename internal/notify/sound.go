package notify

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/telesto-labs/chime/internal/dispatch"
	"github.com/telesto-labs/chime/internal/logging"
)

// Audible is the "audible-alert" handler: it shells out to a sound player
// for a bounded span. The tier's "duration" param (seconds) overrides the
// configured default.
type Audible struct {
	Player   string
	Sound    string
	Duration time.Duration
	Logger   *logging.Logger
}

func (a *Audible) Interactive() bool { return false }

func (a *Audible) Invoke(ctx context.Context, id string, ac dispatch.Context) error {
	duration := a.Duration
	if duration <= 0 {
		duration = 3 * time.Second
	}
	if s, ok := ac.Fields["duration"]; ok {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			duration = time.Duration(secs) * time.Second
		}
	}

	player, args := a.playerCommand()

	// The player is cut off once the alert span elapses.
	pctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	a.Logger.Debugf("audible alert player=%s duration=%s task=%s", player, duration, ac.Task.UID)
	cmd := exec.CommandContext(pctx, player, args...)
	if err := cmd.Run(); err != nil && pctx.Err() == nil {
		return err
	}
	return nil
}

func (a *Audible) playerCommand() (string, []string) {
	if a.Player != "" {
		if a.Sound != "" {
			return a.Player, []string{a.Sound}
		}
		return a.Player, nil
	}
	if runtime.GOOS == "darwin" {
		sound := a.Sound
		if sound == "" {
			sound = "/System/Library/Sounds/Ping.aiff"
		}
		return "afplay", []string{sound}
	}
	if a.Sound != "" {
		return "paplay", []string{a.Sound}
	}
	// speaker-test generates a tone without needing a sound file; it runs
	// until the timeout stops it.
	return "speaker-test", []string{"-t", "sine", "-f", "880", "-l", "0"}
}
