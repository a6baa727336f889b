// Package model defines the data structures shared by chime's agenda,
// policy, engine, and dispatch layers.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SourceRef points back to where a task was read from, so reports and
// deadline edits can name the origin.
type SourceRef struct {
	File  string
	Index int
}

// Task is one deadline item pulled from the agenda provider. Tasks are
// rebuilt from the provider on every tick and never mutated in place;
// identity across ticks is UID.
type Task struct {
	Heading     string
	Deadline    time.Time
	RawDeadline string
	Policy      string
	UID         string
	Source      SourceRef
	Fields      map[string]string
}

// TaskUID derives the stable identity of a task from its heading and raw
// deadline string. Editing the deadline deliberately produces a new UID, so
// fire bookkeeping for the old deadline is abandoned rather than reused.
func TaskUID(heading, rawDeadline string) string {
	h := sha256.New()
	h.Write([]byte(heading))
	h.Write([]byte{0})
	h.Write([]byte(rawDeadline))
	return hex.EncodeToString(h.Sum(nil)[:8])
}
