package filescan

import "fmt"

// Decision is the outcome of scanning a chunk or a file.
type Decision int

// Possible decisions, the zero value is Accept.
const (
	Accept Decision = iota
	Reject
)

func (d Decision) String() string {
	if d == Reject {
		return "reject"
	}
	return "accept"
}

// MarshalText renders the decision as "accept" or "reject".
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// State of a ScanSession.
type State int

// A ScanSession starts in Receiving and ends in either Completed or Aborted.
const (
	Receiving State = iota
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "receiving"
	}
}

// FailurePolicy decides what happens to an upload when a scan engine fails.
type FailurePolicy int

const (
	// FailClosed rejects uploads the engine failed to scan, this is the
	// default.
	FailClosed FailurePolicy = iota
	// FailOpen accepts uploads the engine failed to scan.
	FailOpen
)

// ParseFailurePolicy parses "fail-open" or "fail-closed", the empty string
// is FailClosed.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "fail-closed":
		return FailClosed, nil
	case "fail-open":
		return FailOpen, nil
	default:
		return FailClosed, fmt.Errorf("unknown failure policy: '%s'", s)
	}
}

func (p FailurePolicy) String() string {
	if p == FailOpen {
		return "fail-open"
	}
	return "fail-closed"
}

// Decide returns the decision for an upload the engine failed to scan.
func (p FailurePolicy) Decide() Decision {
	if p == FailOpen {
		return Accept
	}
	return Reject
}
