// Package policy holds the named escalation policies consulted by the
// engine. Each scheduler instance owns its own Registry; there is no
// process-wide state.
package policy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/telesto-labs/chime/internal/duration"
	"github.com/telesto-labs/chime/internal/model"
)

var (
	// ErrUnknownPolicy is returned when a task names a policy that was
	// never registered. The engine skips the task for that tick; it is not
	// fatal.
	ErrUnknownPolicy = errors.New("policy: unknown policy")

	// ErrInvalidPolicy is returned when tier offsets are not strictly
	// ascending. The engine's first-match scan relies on that ordering.
	ErrInvalidPolicy = errors.New("policy: tier offsets not strictly ascending")
)

// Registry maps policy names to their tier lists.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]model.Policy
}

// NewRegistry creates a Registry pre-populated with the built-in default
// policy: a single tier one hour before the deadline, repeating every two
// minutes with a message action.
func NewRegistry() *Registry {
	r := &Registry{policies: make(map[string]model.Policy)}
	// A single sorted tier cannot fail validation.
	_ = r.Register(model.DefaultPolicyName, []model.Tier{
		{Offset: 3600, Period: 120, Actions: []string{"message"}},
	})
	return r
}

// Register installs tiers under name, replacing any existing policy
// wholesale. Tiers must be supplied in strictly ascending Offset order.
func (r *Registry) Register(name string, tiers []model.Tier) error {
	for i := 1; i < len(tiers); i++ {
		if tiers[i].Offset <= tiers[i-1].Offset {
			return fmt.Errorf("%w: %s tier %d offset %d follows %d",
				ErrInvalidPolicy, name, i, tiers[i].Offset, tiers[i-1].Offset)
		}
	}
	cp := make([]model.Tier, len(tiers))
	copy(cp, tiers)

	r.mu.Lock()
	r.policies[name] = model.Policy{Name: name, Tiers: cp}
	r.mu.Unlock()
	return nil
}

// Lookup resolves name to its tier list. The empty name falls back to the
// default policy.
func (r *Registry) Lookup(name string) ([]model.Tier, error) {
	if name == "" {
		name = model.DefaultPolicyName
	}
	r.mu.RLock()
	p, ok := r.policies[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return p.Tiers, nil
}

// Names returns the registered policy names in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	return names
}

// RegisterFromConfig parses policy declarations (offsets and periods as
// compact duration strings) and registers them on r. A tier without a
// period is one-shot.
func RegisterFromConfig(r *Registry, cfgs []model.PolicyConfig) error {
	for _, pc := range cfgs {
		tiers := make([]model.Tier, 0, len(pc.Tiers))
		for i, tc := range pc.Tiers {
			offset, err := duration.Parse(tc.Offset)
			if err != nil {
				return fmt.Errorf("policy %s tier %d offset: %w", pc.Name, i, err)
			}
			var period int64
			if tc.Period != "" {
				period, err = duration.Parse(tc.Period)
				if err != nil {
					return fmt.Errorf("policy %s tier %d period: %w", pc.Name, i, err)
				}
			}
			tiers = append(tiers, model.Tier{
				Offset:  offset,
				Period:  period,
				Actions: tc.Actions,
				Params:  tc.Params,
			})
		}
		if err := r.Register(pc.Name, tiers); err != nil {
			return err
		}
	}
	return nil
}
