package models

// TransportStatus is the read-only view of the printer link used to decide whether
// an out-of-band temperature probe may be injected.
type TransportStatus struct {
	Operational     bool `json:"operational"`
	AutoReporting   bool `json:"auto_reporting"`
	Closing         bool `json:"closing"`
	Streaming       bool `json:"streaming"`
	LongRunning     bool `json:"long_running"`
	HeatingBlocked  bool `json:"heating_blocked"`
	Dwelling        bool `json:"dwelling"`
	ManualStreaming bool `json:"manual_streaming"`
}
