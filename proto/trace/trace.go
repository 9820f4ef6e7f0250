// Package trace defines the branch trace consumed by the predictors and the replay harness.
//
// A trace is an ordered sequence of (address, outcome) pairs. Order is significant: history
// based predictors depend on the exact replay order.
package trace

import "fmt"

// Outcome is the resolved direction of a conditional branch.
type Outcome bool

const (
	Taken    Outcome = true
	NotTaken Outcome = false
)

// String returns "taken" or "not_taken", the spelling used by trace files.
func (o Outcome) String() string {
	if o {
		return "taken"
	}
	return "not_taken"
}

// ParseOutcome accepts "taken" and "not_taken".
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "taken":
		return Taken, nil
	case "not_taken":
		return NotTaken, nil
	default:
		return NotTaken, fmt.Errorf("invalid outcome %q", s)
	}
}

// Entry is one executed branch.
type Entry struct {
	Address uint64
	Outcome Outcome
}

func (e Entry) String() string {
	return fmt.Sprintf("%#x:%s", e.Address, e.Outcome)
}

// Trace is an ordered, read-only sequence of entries. Predictors and the harness never
// mutate it, so one Trace may be shared across concurrent replays.
type Trace []Entry

// TakenCount returns the number of taken entries.
func (t Trace) TakenCount() int {
	n := 0
	for _, e := range t {
		if e.Outcome == Taken {
			n++
		}
	}
	return n
}

// Reversed returns a copy of the trace in reverse order.
func (t Trace) Reversed() Trace {
	out := make(Trace, len(t))
	for i, e := range t {
		out[len(t)-1-i] = e
	}
	return out
}
