package ramp

import "multistepper/core"

// MotorEnabler drives the shared motor-enable output and disables it after
// an idle timeout once no move has requested motors on. Grounded on
// MotorEnabler.h/.cpp. The idle-off timeout is scheduled through
// core.ScheduleTimer/TimerDispatch rather than polled directly: the
// cooperative task loop only needs to keep calling core.ProcessTimers
// (from MotionController.Service), the same single-linked sorted-timer
// mechanism the teacher's scheduler already provides for deferred,
// reschedulable work on one cooperative thread.
type MotorEnabler struct {
	pin        GPIOPin
	activeHigh bool

	idleTimeoutTicks uint32
	enabled          bool
	lastEnableAt     uint32

	idleTimer        core.Timer
	idleTimerPending bool
}

// NewMotorEnabler builds a MotorEnabler driving pin active at activeHigh,
// disabling idleSeconds after the last EnableMotors(true, ...). idleSeconds <= 0
// disables the idle timeout entirely (motors only turn off explicitly).
func NewMotorEnabler(pin GPIOPin, activeHigh bool, idleSeconds float32) *MotorEnabler {
	var idleTicks uint32
	if idleSeconds > 0 {
		idleTicks = core.TimerFromUS(uint32(idleSeconds * 1_000_000))
	}
	m := &MotorEnabler{
		pin:              pin,
		activeHigh:       activeHigh,
		idleTimeoutTicks: idleTicks,
	}
	m.idleTimer.Handler = m.checkIdle
	return m
}

// checkIdle is the core.Timer callback backing the idle-off timeout. It
// disables the motors once idleTimeoutTicks have elapsed since the last
// EnableMotors(true), or reschedules itself to check again at the
// updated deadline otherwise — the timer is only ever handed to
// core.ScheduleTimer once per idle cycle; every subsequent check happens
// through this SF_RESCHEDULE return, which TimerDispatch re-inserts
// itself, so the node is never queued twice.
func (m *MotorEnabler) checkIdle(t *core.Timer) uint8 {
	if !m.enabled {
		m.idleTimerPending = false
		return core.SF_DONE
	}
	if uint32(core.GetTime()-m.lastEnableAt) >= m.idleTimeoutTicks {
		m.idleTimerPending = false
		m.setPin(false)
		return core.SF_DONE
	}
	t.WakeTime = m.lastEnableAt + m.idleTimeoutTicks
	return core.SF_RESCHEDULE
}

// EnableMotors asserts (enable=true) or deasserts (enable=false) the
// motor-enable output at the configured active level. force re-writes the
// pin even when the requested state already matches the cached one.
// Enabling always refreshes the idle timer and, if no idle check is
// already pending, schedules one.
func (m *MotorEnabler) EnableMotors(enable, force bool) {
	if enable {
		m.lastEnableAt = core.GetTime()
		if m.idleTimeoutTicks != 0 && !m.idleTimerPending {
			m.idleTimer.WakeTime = m.lastEnableAt + m.idleTimeoutTicks
			m.idleTimerPending = true
			core.ScheduleTimer(&m.idleTimer)
		}
	}
	if !force && m.enabled == enable {
		return
	}
	m.setPin(enable)
}

func (m *MotorEnabler) setPin(enable bool) {
	m.enabled = enable
	if m.pin != nil {
		m.pin.Set(enable == m.activeHigh)
	}
}

// IsEnabled reports the cached motor-enable state.
func (m *MotorEnabler) IsEnabled() bool {
	return m.enabled
}
