package models

import "time"

// Wait event types.
const (
	EventWaitStart     = "WAIT_START"
	EventTargetReached = "TARGET_REACHED"
	EventStabilityLost = "STABILITY_LOST"
	EventWaitReached   = "WAIT_REACHED"
	EventWaitAborted   = "WAIT_ABORTED"
	EventWaitFailed    = "WAIT_FAILED"
	EventCancelWait    = "CANCEL_WAIT"
	EventAbortAll      = "ABORT_ALL"
	EventHostEvent     = "HOST_EVENT"
)

// WaitEvent is a single audit log entry.
type WaitEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // WAIT_START | TARGET_REACHED | ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
