package driver

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// SystemIdle probes the user's idle time via xprintidle (X11). Hosts without
// it get an error from every probe, which the idle loop logs and ignores, so
// idle-triggered ticking degrades to never firing rather than crashing.
func SystemIdle() (time.Duration, error) {
	out, err := exec.Command("xprintidle").Output()
	if err != nil {
		return 0, fmt.Errorf("xprintidle: %w", err)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse xprintidle output: %w", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
