// Package dispatch resolves action identifiers to registered handlers and
// invokes them with the merged task/tier context. It also tracks the
// per-notification state interactive handlers need for user follow-up.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/telesto-labs/chime/internal/events"
	"github.com/telesto-labs/chime/internal/logging"
	"github.com/telesto-labs/chime/internal/model"
)

// Context is what a handler receives when a tier fires: the task, the tier
// that matched, and the merged open fields (task fields with tier params
// layered on top).
type Context struct {
	Task      model.Task
	Tier      model.Tier
	TierIndex int
	Remaining time.Duration
	Fields    map[string]string
}

// MergeFields builds the open field map for a dispatch: task fields first,
// tier params second so tier values win on key collision.
func MergeFields(task model.Task, tier model.Tier) map[string]string {
	merged := make(map[string]string, len(task.Fields)+len(tier.Params))
	for k, v := range task.Fields {
		merged[k] = v
	}
	for k, v := range tier.Params {
		merged[k] = v
	}
	return merged
}

// Handler is an action back-end. id is the dispatch ID assigned for this
// invocation; non-interactive handlers may ignore it.
type Handler interface {
	Invoke(ctx context.Context, id string, ac Context) error
	// Interactive reports whether the handler presents follow-up choices
	// to the user, requiring its dispatch context to be retained until the
	// notification is closed.
	Interactive() bool
}

// HandlerFunc adapts a plain function to a non-interactive Handler.
type HandlerFunc func(ctx context.Context, id string, ac Context) error

func (f HandlerFunc) Invoke(ctx context.Context, id string, ac Context) error {
	return f(ctx, id, ac)
}

func (f HandlerFunc) Interactive() bool { return false }

// Dispatcher fans a fired tier out to its action handlers. Handler failures
// are isolated: a failing handler is reported and the remaining handlers in
// the list still run. Whole dispatches run on a bounded pool so slow
// handlers cannot stall the scheduler's next tick.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	records  map[string]Context

	store          TaskStore
	bus            *events.Bus
	logger         *logging.Logger
	handlerTimeout time.Duration
	sem            *semaphore.Weighted
	wg             sync.WaitGroup

	// newID is overridable for deterministic tests.
	newID func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHandlerTimeout bounds each handler invocation. Default 30s.
func WithHandlerTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.handlerTimeout = d }
}

// WithMaxConcurrent bounds the number of in-flight dispatches. Default 4.
func WithMaxConcurrent(n int) Option {
	return func(dp *Dispatcher) {
		if n > 0 {
			dp.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// New creates a Dispatcher. store backs the user-action callbacks; bus
// receives handler_failed events and may be nil.
func New(store TaskStore, bus *events.Bus, logger *logging.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers:       make(map[string]Handler),
		records:        make(map[string]Context),
		store:          store,
		bus:            bus,
		logger:         logger,
		handlerTimeout: 30 * time.Second,
		sem:            semaphore.NewWeighted(4),
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register installs h under name, replacing any previous handler.
func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	d.handlers[name] = h
	d.mu.Unlock()
}

// Handlers returns the registered action identifiers.
func (d *Dispatcher) Handlers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	return names
}

// Dispatch runs the named actions in order with the given context. It
// returns immediately; the invocation sequence runs on the bounded pool.
// Within one dispatch, handlers execute synchronously in listed order.
func (d *Dispatcher) Dispatch(ctx context.Context, actions []string, ac Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.logger.Warnf("dispatch abandoned task=%s: %v", ac.Task.UID, err)
			return
		}
		defer d.sem.Release(1)
		d.dispatchSync(ctx, actions, ac)
	}()
}

// DispatchSync is Dispatch without the pool, used where the caller already
// owns a goroutine (and by tests that need deterministic completion).
func (d *Dispatcher) DispatchSync(ctx context.Context, actions []string, ac Context) {
	d.dispatchSync(ctx, actions, ac)
}

// Wait blocks until all in-flight dispatches complete.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatchSync(ctx context.Context, actions []string, ac Context) {
	for _, name := range actions {
		d.mu.RLock()
		h, ok := d.handlers[name]
		d.mu.RUnlock()
		if !ok {
			d.reportFailure(name, ac, fmt.Errorf("no handler registered for action %q", name))
			continue
		}

		var id string
		if h.Interactive() {
			id = d.newID()
			d.mu.Lock()
			d.records[id] = ac
			d.mu.Unlock()
		}

		if err := d.invoke(ctx, h, id, ac); err != nil {
			// An interactive handler that failed to present anything
			// leaves no notification for the user to answer.
			if id != "" {
				d.mu.Lock()
				delete(d.records, id)
				d.mu.Unlock()
			}
			d.reportFailure(name, ac, err)
			continue
		}

		d.logger.Debugf("action fired handler=%s task=%s tier=%d id=%s",
			name, ac.Task.UID, ac.TierIndex, id)
	}
}

// invoke runs one handler under the per-handler timeout, converting panics
// into errors so one broken back-end cannot take the dispatch down.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, id string, ac Context) (err error) {
	hctx, cancel := context.WithTimeout(ctx, d.handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Invoke(hctx, id, ac)
}

func (d *Dispatcher) reportFailure(name string, ac Context, err error) {
	d.logger.Errorf("handler failed action=%s task=%s heading=%q: %v",
		name, ac.Task.UID, ac.Task.Heading, err)
	if d.bus != nil {
		d.bus.Publish(events.Event{
			Type:    events.TypeHandlerFailed,
			TaskUID: ac.Task.UID,
			Policy:  ac.Task.Policy,
			Tier:    ac.TierIndex,
			Details: map[string]any{"action": name, "error": err.Error()},
		})
	}
}
