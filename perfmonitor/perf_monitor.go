// Package perfmonitor measures wall-clock durations of units of work. The
// matchmaker uses it to report how long each batch controller ran.
package perfmonitor

import "time"

// PerformanceMonitor records a start and an end instant. It is not safe for
// concurrent use; each unit of work owns its own monitor.
type PerformanceMonitor struct {
	startTime time.Time
	endTime   time.Time
	now       func() time.Time
}

// NewPerformanceMonitor returns a monitor with no recorded instants.
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{now: time.Now}
}

// Start records the start instant and clears any previous end instant.
func (pm *PerformanceMonitor) Start() {
	pm.startTime = pm.now()
	pm.endTime = time.Time{}
}

// Stop records the end instant. It does nothing if Start was not called.
func (pm *PerformanceMonitor) Stop() {
	if pm.startTime.IsZero() {
		return
	}

	pm.endTime = pm.now()
}

// Elapsed returns the measured duration, or zero unless both Start and Stop
// have been recorded.
func (pm *PerformanceMonitor) Elapsed() time.Duration {
	if pm.startTime.IsZero() || pm.endTime.IsZero() {
		return 0
	}

	return pm.endTime.Sub(pm.startTime)
}

// ElapsedMilliseconds returns Elapsed as fractional milliseconds.
func (pm *PerformanceMonitor) ElapsedMilliseconds() float64 {
	return float64(pm.Elapsed()) / float64(time.Millisecond)
}
