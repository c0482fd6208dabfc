package service

import (
	"time"

	"set_and_wait/internal/models"
)

// WaitRequest describes one blocking temperature wait.
type WaitRequest struct {
	Identifier string // blocking command word, used as session key
	Class      models.HeaterClass
	Channel    *int // only meaningful for multi-channel classes
	Mode       models.ComparisonMode
	TargetC    float64
}

// SendResult tells the caller what the pipeline did with a line.
type SendResult struct {
	Forwarded string             // line written to the printer, empty if dropped
	Waited    bool               // a temperature wait ran
	Outcome   models.WaitOutcome // valid when Waited
}

// Status is the monitoring snapshot served over HTTP and WebSocket.
type Status struct {
	Heaters   []models.HeaterReading   `json:"heaters"`
	Waits     []models.SessionSnapshot `json:"waits"`
	Waiting   bool                     `json:"waiting"`
	Holding   bool                     `json:"holding"`
	Transport models.TransportStatus   `json:"transport"`
	Job       JobStatus                `json:"job"`
	At        time.Time                `json:"at"`
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "WAIT_START", "WAIT_REACHED", "WAIT_ABORTED", ...
}
