package models

import "time"

// Dispatch methods recorded in attempt history.
const (
	MethodLocal = "local"
	MethodRelay = "relay"
)

// LocalResult holds the outcome of one local delivery pass.
type LocalResult struct {
	SuccessCount  int
	TotalAttempts int
	Errors        []error
}

// Success reports at-least-one-delivery semantics: UDP broadcast cannot be
// confirmed end-to-end, so a single accepted send counts.
func (r *LocalResult) Success() bool {
	return r.SuccessCount > 0
}

// RelayResult holds the outcome of a relay dispatch, including any local
// fallback pass the relay client performed.
type RelayResult struct {
	Sent         bool // the relay accepted the wake request
	StatusCode   int  // last HTTP status observed, 0 if none
	Attempts     int  // wake POSTs issued
	FallbackUsed bool
	Fallback     *LocalResult // set when FallbackUsed
	Error        error
}

// Success reports whether the wake went out, either via the relay or via
// the local fallback pass.
func (r *RelayResult) Success() bool {
	if r.Sent {
		return true
	}
	return r.FallbackUsed && r.Fallback != nil && r.Fallback.Success()
}

// DispatchAttempt is one entry in the bounded dispatch history.
type DispatchAttempt struct {
	Timestamp  time.Time
	Method     string // MethodLocal or MethodRelay
	Success    bool
	Message    string
	StatusCode int // HTTP status for relay attempts, 0 otherwise
}

// DispatchResult summarizes one SendWake invocation.
type DispatchResult struct {
	Success bool
	Method  string
	Message string
}

// ProbeResult holds the outcome of waiting for a woken device.
type ProbeResult struct {
	TargetReady  bool
	WaitDuration time.Duration
	Error        error
}
