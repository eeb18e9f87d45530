package ddns

import "errors"

// ErrEmptyDesired is returned by Reconcile when the desired set is empty.
// A resolver hiccup that yields zero addresses must never be read as
// "delete every record", so the engine refuses to produce a plan at all.
var ErrEmptyDesired = errors.New("ddns: refusing to reconcile an empty desired set")

// Plan is the set of store mutations produced by one Reconcile call.
// Removals are executed before additions so that provider record-count
// limits are relieved before new records are requested.
type Plan struct {
	Remove []Record
	Add    []Record
}

// Empty reports whether the plan requires no mutations.
func (p Plan) Empty() bool {
	return len(p.Remove) == 0 && len(p.Add) == 0
}

// Reconcile computes the mutations needed to converge the remote record
// set with the desired one.
//
// The diff is a bag difference, not a set difference: each remote record
// consumes at most one matching desired record, so duplicate addresses
// are paired one-to-one and an unmatched duplicate becomes an addition.
// Matching is by Record.Same; remote handles are carried through to the
// removal list untouched. Neither input slice is modified.
func Reconcile(desired, remote []Record) (Plan, error) {
	if len(desired) == 0 {
		return Plan{}, ErrEmptyDesired
	}

	pending := make([]Record, len(desired))
	copy(pending, desired)

	var plan Plan
	for _, rr := range remote {
		matched := false
		for i, d := range pending {
			if d.Same(rr) {
				pending = append(pending[:i], pending[i+1:]...)
				matched = true
				break
			}
		}
		if !matched {
			plan.Remove = append(plan.Remove, rr)
		}
	}
	if len(pending) > 0 {
		plan.Add = pending
	}
	return plan, nil
}
