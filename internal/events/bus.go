// Package events carries chime's scheduler events to interested observers
// without blocking the tick path.
package events

import (
	"sync"
	"time"
)

// Type identifies the kind of event being published.
type Type string

const (
	// TypeTierFired is published when the engine fires a tier's actions.
	TypeTierFired Type = "tier_fired"
	// TypeDriftWarning is published when a repeat fires well past its
	// configured period.
	TypeDriftWarning Type = "drift_warning"
	// TypeHandlerFailed is published when an action handler returns an
	// error or times out.
	TypeHandlerFailed Type = "handler_failed"
	// TypeTaskSkipped is published when a task cannot be evaluated this
	// tick (unknown policy, unusable deadline).
	TypeTaskSkipped Type = "task_skipped"
	// TypeSourceError is published when one agenda source cannot be read.
	TypeSourceError Type = "source_error"
)

// Event is one scheduler occurrence. TaskUID, Policy, and Tier are filled
// when the event concerns a specific task; Details carries everything else.
type Event struct {
	Type      Type
	Timestamp time.Time
	TaskUID   string
	Policy    string
	Tier      int
	Details   map[string]any
}

// Subscriber receives events asynchronously.
type Subscriber func(Event)

// Bus is a non-blocking publish/subscribe fan-out. Delivery is asynchronous
// through a buffered channel per subscriber; when a subscriber's buffer is
// full the event is dropped for that subscriber rather than stalling the
// publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]chan Event
	bufferSize  int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[Type][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers fn for events of the given type and returns an
// unsubscribe function. fn runs on its own goroutine; a panic in fn is
// swallowed so one observer cannot take the bus down.
func (b *Bus) Subscribe(t Type, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[t] = append(b.subscribers[t], ch)

	go func() {
		for ev := range ch {
			func() {
				defer func() { _ = recover() }()
				fn(ev)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[t]
		for i, sub := range subs {
			if sub == ch {
				b.subscribers[t] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish delivers ev to every subscriber of ev.Type. Never blocks.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers[ev.Type] {
		select {
		case ch <- ev:
		default:
			// Subscriber is behind; drop rather than block the tick.
		}
	}
}

// Close tears down all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, t)
	}
}
