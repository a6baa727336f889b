package model

// DefaultPolicyName is applied to tasks that name no policy of their own.
const DefaultPolicyName = "default"

// Tier is one escalation step of a policy. Offset is seconds relative to the
// task deadline: a tier activates once the remaining time drops strictly
// below Offset. Positive offsets are lead time before the deadline, negative
// offsets match only once the task is that far overdue.
type Tier struct {
	Offset  int64
	Period  int64 // repeat period in seconds, 0 = one-shot
	Actions []string
	Params  map[string]string
}

// Policy is a named list of tiers in strictly ascending Offset order. The
// engine scans tiers front to back and stops at the first match, so the
// ordering invariant is enforced at registration.
type Policy struct {
	Name  string
	Tiers []Tier
}
