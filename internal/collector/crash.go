package collector

// Alert is the crash detector's verdict for one liveness sample
type Alert int

const (
	AlertNone Alert = iota
	AlertOffline
	AlertRecovery
)

// CrashDetector turns a stream of per-game liveness samples into at most one
// offline alert per outage and one recovery alert per return to health. Once
// the offline alert fires the detector latches: further failures keep
// counting but never re-alert until a success unlatches it.
//
// Not safe for concurrent use; the monitor feeds it under the game's lock.
type CrashDetector struct {
	threshold int
	streak    int
	latched   bool
}

// NewCrashDetector creates a detector that alerts after threshold
// consecutive failed samples
func NewCrashDetector(threshold int) *CrashDetector {
	return &CrashDetector{threshold: threshold}
}

// Sample records one liveness observation and returns the alert to emit, if any
func (d *CrashDetector) Sample(ok bool) Alert {
	if ok {
		wasLatched := d.latched
		d.streak = 0
		d.latched = false
		if wasLatched {
			return AlertRecovery
		}
		return AlertNone
	}

	d.streak++
	if !d.latched && d.streak == d.threshold {
		d.latched = true
		return AlertOffline
	}
	return AlertNone
}

// Streak returns the current count of consecutive failed samples
func (d *CrashDetector) Streak() int { return d.streak }

// Latched reports whether the offline alert has fired for the current outage
func (d *CrashDetector) Latched() bool { return d.latched }
