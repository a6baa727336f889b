package driver

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telesto-labs/chime/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "driver", logging.LevelError)
}

func TestDriver_FixedIntervalTicks(t *testing.T) {
	var ticks atomic.Int64
	d := New(func(ctx context.Context) { ticks.Add(1) }, testLogger())

	require.NoError(t, d.Start(20*time.Millisecond))
	defer d.Stop()

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 },
		2*time.Second, 10*time.Millisecond)
}

func TestDriver_StopIsIdempotent(t *testing.T) {
	d := New(func(ctx context.Context) {}, testLogger())

	require.NoError(t, d.Start(10*time.Millisecond))
	d.Stop()
	d.Stop()
	assert.False(t, d.Running())
}

func TestDriver_NoTickAfterStop(t *testing.T) {
	var ticks atomic.Int64
	d := New(func(ctx context.Context) { ticks.Add(1) }, testLogger())

	require.NoError(t, d.Start(10*time.Millisecond))
	time.Sleep(35 * time.Millisecond)
	d.Stop()

	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no tick may run after Stop returns")
}

func TestDriver_StartWhileRunningRestarts(t *testing.T) {
	var mu sync.Mutex
	var runs []string
	tag := "a"

	d := New(func(ctx context.Context) {
		mu.Lock()
		runs = append(runs, tag)
		mu.Unlock()
	}, testLogger())

	require.NoError(t, d.Start(15*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	tag = "b"
	mu.Unlock()
	require.NoError(t, d.Start(15*time.Millisecond), "second Start must restart, not fail")
	defer d.Stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(runs) > 0 && runs[len(runs)-1] == "b"
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, d.Running())
}

func TestDriver_TicksAreSerialized(t *testing.T) {
	var inFlight atomic.Int64
	var overlapped atomic.Bool

	d := New(func(ctx context.Context) {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(25 * time.Millisecond) // slower than the interval
		inFlight.Add(-1)
	}, testLogger())

	require.NoError(t, d.Start(5*time.Millisecond))
	time.Sleep(150 * time.Millisecond)
	d.Stop()

	assert.False(t, overlapped.Load(), "ticks must never overlap")
}

func TestDriver_Kick(t *testing.T) {
	var ticks atomic.Int64
	d := New(func(ctx context.Context) { ticks.Add(1) }, testLogger())

	// Interval far beyond the test horizon: only kicks can tick.
	require.NoError(t, d.Start(time.Hour))
	defer d.Stop()

	d.Kick()
	assert.Eventually(t, func() bool { return ticks.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestDriver_KickWhenStoppedIsNoop(t *testing.T) {
	d := New(func(ctx context.Context) { t.Error("tick while stopped") }, testLogger())
	d.Kick()
	time.Sleep(20 * time.Millisecond)
}

func TestDriver_IdleModeRequiresSource(t *testing.T) {
	d := New(func(ctx context.Context) {}, testLogger())
	assert.ErrorIs(t, d.Start(-time.Minute), ErrNoIdleSource)
	assert.False(t, d.Running())
}

func TestDriver_IdleModeFiresOncePerIdleSpan(t *testing.T) {
	var idleFor atomic.Int64 // milliseconds
	var ticks atomic.Int64

	d := New(
		func(ctx context.Context) { ticks.Add(1) },
		testLogger(),
		WithIdleSource(func() (time.Duration, error) {
			return time.Duration(idleFor.Load()) * time.Millisecond, nil
		}),
	)

	// Negative interval selects idle mode; threshold 50ms.
	require.NoError(t, d.Start(-50*time.Millisecond))
	defer d.Stop()

	// Active user: no ticks.
	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, int64(0), ticks.Load())

	// Goes idle past the threshold: exactly one tick for the span.
	idleFor.Store(60_000)
	assert.Eventually(t, func() bool { return ticks.Load() == 1 },
		3*time.Second, 50*time.Millisecond)
	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, int64(1), ticks.Load(), "one tick per idle span")

	// Activity re-arms, next idle span fires again.
	idleFor.Store(0)
	time.Sleep(1100 * time.Millisecond)
	idleFor.Store(60_000)
	assert.Eventually(t, func() bool { return ticks.Load() == 2 },
		3*time.Second, 50*time.Millisecond)
}

func TestDriver_DefaultInterval(t *testing.T) {
	assert.Equal(t, 50*time.Second, DefaultInterval)
}
