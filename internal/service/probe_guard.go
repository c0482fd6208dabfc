package service

import "set_and_wait/internal/models"

// CanProbe reports whether an out-of-band probe can be sent without disturbing the link.
func CanProbe(st models.TransportStatus) bool {
	return st.Operational &&
		!st.AutoReporting &&
		!st.Closing &&
		!st.Streaming &&
		!st.LongRunning &&
		!st.HeatingBlocked &&
		!st.Dwelling &&
		!st.ManualStreaming
}
