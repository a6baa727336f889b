// Package duration parses chime's compact duration strings.
package duration

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	// ErrNoValue reports an empty input. Callers use it to tell "no period
	// configured" apart from a badly written one.
	ErrNoValue = errors.New("duration: no value")

	// ErrMalformed reports input that does not match the duration grammar.
	ErrMalformed = errors.New("duration: malformed value")
)

// Grammar: optional sign, digits, exactly one unit letter.
var durationRe = regexp.MustCompile(`^(-?)([0-9]+)([smhdwM])$`)

var unitSeconds = map[string]int64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
	"w": 604800,
	"M": 2592000, // 30-day month approximation
}

// Parse converts a compact duration string such as "15m", "-1s" or "3d" into
// a signed number of seconds.
func Parse(s string) (int64, error) {
	if s == "" {
		return 0, ErrNoValue
	}
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		// Magnitude overflows int64.
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	secs := n * unitSeconds[m[3]]
	if m[1] == "-" {
		secs = -secs
	}
	return secs, nil
}
