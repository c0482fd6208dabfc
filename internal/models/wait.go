package models

import (
	"fmt"
	"time"
)

// ComparisonMode selects how "target reached" is evaluated.
type ComparisonMode int

const (
	// ModeAtLeast ("S") is reached once actual has risen to within the window of target.
	ModeAtLeast ComparisonMode = iota
	// ModeWithinAbsolute ("R") is reached once actual is within the window in either direction.
	ModeWithinAbsolute
)

func (m ComparisonMode) String() string {
	switch m {
	case ModeAtLeast:
		return "S"
	case ModeWithinAbsolute:
		return "R"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m ComparisonMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// WaitPhase is the state of a wait session.
type WaitPhase int

const (
	PhaseIdle WaitPhase = iota
	PhaseReaching
	PhaseStabilizing
	PhaseReached
	PhaseAborted
)

func (p WaitPhase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseReaching:
		return "REACHING"
	case PhaseStabilizing:
		return "STABILIZING"
	case PhaseReached:
		return "REACHED"
	case PhaseAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p WaitPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// WaitOutcome is the terminal result of a wait.
type WaitOutcome int

const (
	OutcomeReached WaitOutcome = iota
	OutcomeAborted
)

func (o WaitOutcome) String() string {
	if o == OutcomeReached {
		return "REACHED"
	}
	return "ABORTED"
}

func (o WaitOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// SessionSnapshot is a point-in-time copy of a wait session.
type SessionSnapshot struct {
	Identifier       string         `json:"identifier"` // blocking command word, e.g. M109
	Class            HeaterClass    `json:"class"`
	Channel          *int           `json:"channel,omitempty"`
	Mode             ComparisonMode `json:"mode"`
	TargetC          float64        `json:"target_c"`
	Phase            WaitPhase      `json:"phase"`
	Active           bool           `json:"active"`
	LastActualC      float64        `json:"last_actual_c"`
	Restarts         int            `json:"restarts"`
	StartedAt        time.Time      `json:"started_at"`
	StabilizingSince time.Time      `json:"stabilizing_since,omitempty"`
	AbortedBy        Actor          `json:"aborted_by,omitempty"`
}
