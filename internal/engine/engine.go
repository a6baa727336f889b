// Package engine implements the per-tick escalation pass: for each agenda
// task it derives the active tier from absolute time, decides whether that
// tier (re)fires, and hands fired tiers to the dispatcher.
//
// The engine keeps no "current tier" between ticks. The active tier is
// recomputed from the clock on every pass, so deadline or policy edits take
// effect on the next tick; only last-fired timestamps are remembered.
package engine

import (
	"context"
	"time"

	"github.com/telesto-labs/chime/internal/dispatch"
	"github.com/telesto-labs/chime/internal/events"
	"github.com/telesto-labs/chime/internal/logging"
	"github.com/telesto-labs/chime/internal/model"
	"github.com/telesto-labs/chime/internal/policy"
)

// driftRatio is the diff/period ratio beyond which a repeat counts as having
// fallen behind schedule.
const driftRatio = 1.5

// Provider supplies the current task list, once per tick.
type Provider interface {
	List(ctx context.Context) ([]model.Task, error)
}

// ActionDispatcher receives fired tiers. Satisfied by *dispatch.Dispatcher.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, actions []string, ac dispatch.Context)
}

type fireKey struct {
	uid  string
	tier int
}

// Engine evaluates escalation tiers. Ticks must not overlap; the driver
// serializes them, so fire-state needs no lock.
type Engine struct {
	provider   Provider
	registry   *policy.Registry
	dispatcher ActionDispatcher
	bus        *events.Bus
	logger     *logging.Logger

	// now is overridable for deterministic tests.
	now func() time.Time

	fireState map[fireKey]time.Time
}

// New creates an Engine. bus may be nil.
func New(p Provider, r *policy.Registry, d ActionDispatcher, bus *events.Bus, logger *logging.Logger) *Engine {
	return &Engine{
		provider:   p,
		registry:   r,
		dispatcher: d,
		bus:        bus,
		logger:     logger,
		now:        time.Now,
		fireState:  make(map[fireKey]time.Time),
	}
}

// Tick runs one escalation pass over the provider's current tasks. Per-task
// problems are reported and skipped; only a total provider failure ends the
// pass early, and even then any tasks returned alongside the error are still
// processed.
func (e *Engine) Tick(ctx context.Context) {
	tasks, err := e.provider.List(ctx)
	if err != nil {
		e.logger.Errorf("agenda list failed: %v", err)
	}

	now := e.now()
	for _, task := range tasks {
		e.evaluate(ctx, task, now)
	}
}

func (e *Engine) evaluate(ctx context.Context, task model.Task, now time.Time) {
	if task.Deadline.IsZero() {
		e.skip(task, "no usable deadline")
		return
	}

	tiers, err := e.registry.Lookup(task.Policy)
	if err != nil {
		e.skip(task, err.Error())
		return
	}

	remaining := task.Deadline.Sub(now)

	// First tier whose offset the remaining time has dropped below wins;
	// later tiers are not considered this tick. Strict comparison: a tier
	// whose offset equals the remaining time does not match yet.
	for i, tier := range tiers {
		if remaining.Seconds() < float64(tier.Offset) {
			e.decide(ctx, task, i, tier, remaining, now)
			return
		}
	}
}

// decide applies the fire-state rules for the single active tier.
func (e *Engine) decide(ctx context.Context, task model.Task, tierIdx int, tier model.Tier, remaining time.Duration, now time.Time) {
	key := fireKey{uid: task.UID, tier: tierIdx}

	if last, seen := e.fireState[key]; seen {
		if tier.Period <= 0 {
			// One-shot tier already consumed.
			return
		}
		period := time.Duration(tier.Period) * time.Second
		diff := now.Sub(last)
		if diff <= period {
			return
		}
		if ratio := diff.Seconds() / period.Seconds(); ratio > driftRatio {
			e.logger.Warnf("schedule drift task=%s tier=%d period=%ds elapsed=%.0fs ratio=%.2f",
				task.UID, tierIdx, tier.Period, diff.Seconds(), ratio)
			e.publish(events.Event{
				Type:    events.TypeDriftWarning,
				TaskUID: task.UID,
				Policy:  task.Policy,
				Tier:    tierIdx,
				Details: map[string]any{
					"period_sec":  tier.Period,
					"elapsed_sec": int64(diff.Seconds()),
				},
			})
		}
	}

	e.fireState[key] = now

	e.logger.Infof("tier fired task=%s heading=%q tier=%d remaining=%s actions=%v",
		task.UID, task.Heading, tierIdx, remaining.Round(time.Second), tier.Actions)
	e.publish(events.Event{
		Type:    events.TypeTierFired,
		TaskUID: task.UID,
		Policy:  task.Policy,
		Tier:    tierIdx,
		Details: map[string]any{"actions": tier.Actions},
	})

	e.dispatcher.Dispatch(ctx, tier.Actions, dispatch.Context{
		Task:      task,
		Tier:      tier,
		TierIndex: tierIdx,
		Remaining: remaining,
		Fields:    dispatch.MergeFields(task, tier),
	})
}

func (e *Engine) skip(task model.Task, reason string) {
	e.logger.Warnf("task skipped uid=%s heading=%q: %s", task.UID, task.Heading, reason)
	e.publish(events.Event{
		Type:    events.TypeTaskSkipped,
		TaskUID: task.UID,
		Policy:  task.Policy,
		Details: map[string]any{"reason": reason},
	})
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// FireStateSize reports how many (task, tier) pairs have fired at least
// once. Stale entries for vanished tasks linger until restart; they are
// unused memory, not incorrect behavior.
func (e *Engine) FireStateSize() int {
	return len(e.fireState)
}
