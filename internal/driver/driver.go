// Package driver owns the timer that triggers scheduler ticks.
package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/telesto-labs/chime/internal/logging"
)

// DefaultInterval applies when Start is given a zero interval.
const DefaultInterval = 50 * time.Second

// idlePollInterval is how often the idle source is sampled in idle-triggered
// mode.
const idlePollInterval = time.Second

// ErrNoIdleSource is returned by Start when a negative interval requests
// idle-triggered ticking but no idle source is available.
var ErrNoIdleSource = errors.New("driver: no idle source for idle-triggered ticking")

// TickFunc runs one scheduler pass. Invocations never overlap: each tick
// runs to completion on the driver's loop goroutine before the next fires.
type TickFunc func(ctx context.Context)

// IdleFunc reports how long the user has been idle.
type IdleFunc func() (time.Duration, error)

// Driver runs ticks either on a fixed period (positive interval) or after
// the user has been idle for a given span (negative interval). Start while
// running restarts; Stop is idempotent and guarantees no tick runs after it
// returns.
type Driver struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	tick   TickFunc
	idle   IdleFunc
	logger *logging.Logger

	kick chan struct{}
}

// Option configures a Driver.
type Option func(*Driver)

// WithIdleSource supplies the idle-time probe used for negative intervals.
func WithIdleSource(f IdleFunc) Option {
	return func(d *Driver) { d.idle = f }
}

func New(tick TickFunc, logger *logging.Logger, opts ...Option) *Driver {
	d := &Driver{tick: tick, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start begins ticking. interval > 0 runs a fixed-period timer; interval < 0
// ticks each time the user becomes idle for -interval; interval == 0 uses
// DefaultInterval. Calling Start while running performs an implicit Stop
// first.
func (d *Driver) Start(interval time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		d.stopLocked()
	}

	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < 0 && d.idle == nil {
		return ErrNoIdleSource
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.kick = make(chan struct{}, 1)
	d.running = true

	if interval > 0 {
		d.logger.Infof("driver started interval=%s", interval)
		go d.fixedLoop(ctx, interval, d.kick, d.done)
	} else {
		d.logger.Infof("driver started idle-triggered threshold=%s", -interval)
		go d.idleLoop(ctx, -interval, d.kick, d.done)
	}
	return nil
}

// Stop cancels the timer. Safe to call when already stopped. When Stop
// returns the loop goroutine has exited, so no tick is in flight or coming.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Driver) stopLocked() {
	if !d.running {
		return
	}
	d.cancel()
	<-d.done
	d.running = false
	d.logger.Infof("driver stopped")
}

// Running reports whether the driver currently owns an active timer.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Kick requests one immediate tick, used when the agenda changes on disk.
// No-op when stopped; collapses with an already-pending kick.
func (d *Driver) Kick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *Driver) fixedLoop(ctx context.Context, interval time.Duration, kick chan struct{}, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		case <-kick:
			d.tick(ctx)
		}
	}
}

func (d *Driver) idleLoop(ctx context.Context, threshold time.Duration, kick chan struct{}, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	// armed is cleared after firing for an idle span and re-set once
	// activity is seen, so each span triggers at most one tick.
	armed := true

	for {
		select {
		case <-ctx.Done():
			return
		case <-kick:
			d.tick(ctx)
		case <-ticker.C:
			idleFor, err := d.idle()
			if err != nil {
				d.logger.Debugf("idle probe failed: %v", err)
				continue
			}
			if idleFor < threshold {
				armed = true
				continue
			}
			if armed {
				armed = false
				d.tick(ctx)
			}
		}
	}
}
