package ledgergate

import "time"

// Meter observes executed transitions for monitoring/logging. It is called
// after the outcome is decided and must not influence it.
type Meter interface {
	OnTransition(event TransitionEvent)
}

// TransitionEvent describes one executed transition attempt.
type TransitionEvent struct {
	ID       string // receipt id
	Op       string
	Charge   uint64 // collected charge; nonzero only for successful consume
	Success  bool
	Duration time.Duration
	Err      error
}
