package core

import "sync/atomic"

// isShutdown latches once TryShutdown has fired; totalStepCount accumulates
// one count per ramp-generator step tick (pulses on other axes in the same
// tick are not counted separately), for the post-mortem timing dump.
var (
	isShutdown     uint32
	totalStepCount uint64
)

// TryShutdown latches the firmware into a shutdown state and logs the
// reason. Safety mechanisms (the ramp generator's ISR anomalies are never
// raised per spec; this exists for the scheduler's own "timer in the past"
// guard) call this instead of panicking.
func TryShutdown(reason string) {
	atomic.StoreUint32(&isShutdown, 1)
	DebugPrintln("[SHUTDOWN] " + reason)
}

// IsShutdown reports whether TryShutdown has fired.
func IsShutdown() bool {
	return atomic.LoadUint32(&isShutdown) != 0
}

// ResetShutdown clears the shutdown latch, used when re-arming after a stop.
func ResetShutdown() {
	atomic.StoreUint32(&isShutdown, 0)
}

// AddStepCount adds n to the step total for DumpTimingRing's post-mortem
// summary. The ramp generator adds 1 per tick on which it steps.
func AddStepCount(n uint32) {
	atomic.AddUint64(&totalStepCount, uint64(n))
}

// GetTotalStepCount returns the running step total.
func GetTotalStepCount() uint64 {
	return atomic.LoadUint64(&totalStepCount)
}
