package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskUID_Stable(t *testing.T) {
	a := TaskUID("pay rent", "2026-09-01 09:00")
	b := TaskUID("pay rent", "2026-09-01 09:00")
	assert.Equal(t, a, b, "same heading and deadline must give the same UID")
	assert.Len(t, a, 16)
}

func TestTaskUID_ChangesWithDeadline(t *testing.T) {
	a := TaskUID("pay rent", "2026-09-01 09:00")
	b := TaskUID("pay rent", "2026-09-02 09:00")
	assert.NotEqual(t, a, b, "editing the deadline must change task identity")
}

func TestTaskUID_NoFieldConcatCollision(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must hash differently.
	a := TaskUID("ab", "c")
	b := TaskUID("a", "bc")
	assert.NotEqual(t, a, b)
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 50, cfg.Scheduler.IntervalSec)
	assert.Equal(t, 4, cfg.Dispatch.MaxConcurrent)
	assert.Equal(t, 3, cfg.Handlers.Audible.DurationSec)
	assert.Equal(t, 10, cfg.Handlers.Popup.TimeoutSec)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestApplyDefaults_KeepsIdleInterval(t *testing.T) {
	cfg := Config{Scheduler: SchedulerConfig{IntervalSec: -300}}
	cfg.ApplyDefaults()

	assert.Equal(t, -300, cfg.Scheduler.IntervalSec,
		"negative intervals select idle ticking and must survive defaulting")
}
