package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// User action keys offered by interactive notifications.
const (
	ActionDone = "done"
	ActionHour = "hour"
	ActionDay  = "day"
	ActionWeek = "week"
)

// ErrUnknownDispatch is returned when a user action names a dispatch ID that
// was never recorded or has already been closed.
var ErrUnknownDispatch = errors.New("dispatch: unknown dispatch id")

// TaskStore applies the semantic effect of user actions to the external
// task source.
type TaskStore interface {
	MarkDone(ctx context.Context, uid string) error
	ShiftDeadline(ctx context.Context, uid string, by time.Duration) error
}

var actionShifts = map[string]time.Duration{
	ActionHour: time.Hour,
	ActionDay:  24 * time.Hour,
	ActionWeek: 7 * 24 * time.Hour,
}

// OnUserAction applies the follow-up action the user chose on an interactive
// notification: mark the task done or push its deadline out. The record is
// closed afterwards.
func (d *Dispatcher) OnUserAction(ctx context.Context, id, key string) error {
	d.mu.RLock()
	ac, ok := d.records[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDispatch, id)
	}

	var err error
	switch key {
	case ActionDone:
		err = d.store.MarkDone(ctx, ac.Task.UID)
	case ActionHour, ActionDay, ActionWeek:
		err = d.store.ShiftDeadline(ctx, ac.Task.UID, actionShifts[key])
	default:
		return fmt.Errorf("dispatch: unknown action key %q", key)
	}
	if err != nil {
		return fmt.Errorf("apply %s to task %s: %w", key, ac.Task.UID, err)
	}

	d.logger.Infof("user action id=%s key=%s task=%s", id, key, ac.Task.UID)
	d.OnClose(id, "user-action")
	return nil
}

// OnClose removes the interactive record for id. Closing an unknown or
// already-closed id is a no-op, so a timeout close after a user action is
// harmless.
func (d *Dispatcher) OnClose(id, reason string) {
	d.mu.Lock()
	_, ok := d.records[id]
	delete(d.records, id)
	d.mu.Unlock()

	if ok {
		d.logger.Debugf("notification closed id=%s reason=%s", id, reason)
	}
}

// OpenRecords returns the number of interactive notifications awaiting a
// user action or close.
func (d *Dispatcher) OpenRecords() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// RecordSummary describes one open interactive dispatch.
type RecordSummary struct {
	ID      string `json:"id"`
	Heading string `json:"heading"`
	Policy  string `json:"policy"`
	Tier    int    `json:"tier"`
}

// Records lists the open interactive dispatches, sorted by ID.
func (d *Dispatcher) Records() []RecordSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]RecordSummary, 0, len(d.records))
	for id, ac := range d.records {
		out = append(out, RecordSummary{
			ID:      id,
			Heading: ac.Task.Heading,
			Policy:  ac.Task.Policy,
			Tier:    ac.TierIndex,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Record returns the dispatch context recorded under id, if still open.
func (d *Dispatcher) Record(id string) (Context, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ac, ok := d.records[id]
	return ac, ok
}
