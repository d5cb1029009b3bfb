package tracker

import (
	"fmt"
	"time"
)

// Outcome classifies a single request against the tracking API.
type Outcome int

const (
	// Success means the API answered 200.
	Success Outcome = iota
	// TransportFailure covers DNS, connect, timeout and other errors where no
	// response was read.
	TransportFailure
	// RejectedStatus means a response arrived with a status other than 200.
	RejectedStatus
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TransportFailure:
		return "transport_failure"
	case RejectedStatus:
		return "rejected_status"
	default:
		return "unknown"
	}
}

// Result is what one Send or Reset produced.
type Result struct {
	Outcome    Outcome
	StatusCode int // 0 on TransportFailure
	Err        error
	Latency    time.Duration
}

func (r Result) OK() bool { return r.Outcome == Success }

func (r Result) String() string {
	switch r.Outcome {
	case Success:
		return fmt.Sprintf("%s (%d in %v)", r.Outcome, r.StatusCode, r.Latency)
	case RejectedStatus:
		return fmt.Sprintf("%s (status %d)", r.Outcome, r.StatusCode)
	default:
		return fmt.Sprintf("%s (%v)", r.Outcome, r.Err)
	}
}
