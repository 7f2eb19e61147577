// Package args defines MotionArgs, the input contract every move request
// arrives as, and its binary wire encoding for cross-process transport.
package args

import "multistepper/motion/axes"

// MotionArgs is the command input to MotionController.MoveTo. Field names
// and ranges are part of the contract: a collaborator outside this module
// parses JSON or a binary frame into one of these.
type MotionArgs struct {
	// per-axis target and validity; unset axes copy the last commanded
	// position (MoveToRamped) or are skipped (MoveToLinear).
	AxisPos   axes.PosValues
	AxisValid [axes.MaxAxes]bool

	Relative         bool
	LinearNoRamp     bool
	UnitsAreSteps    bool
	DontSplitMove    bool
	AllowOutOfBounds bool
	MoreMovesComing  bool
	EnableMotors     bool
	PreClearQueue    bool
	IsHoming         bool
	MoveClockwise    bool
	MoveRapid        bool

	TargetSpeedValid bool
	TargetSpeed      float32

	Feedrate              float32
	FeedrateUnitsPerMin   bool

	ExtrudeValid    bool
	ExtrudeDistance float32

	MotionTrackingIdxValid bool
	MotionTrackingIdx      uint32

	Endstops axes.EndstopChecks
}

// NewMotionArgs returns a MotionArgs with the defaults the original
// firmware applies: motors enabled, 100% feedrate, extrude distance 1.
func NewMotionArgs() MotionArgs {
	return MotionArgs{
		EnableMotors:    true,
		Feedrate:        100.0,
		ExtrudeDistance: 1.0,
	}
}

// SetAxisPosition sets axisIdx's target and marks it valid.
func (a *MotionArgs) SetAxisPosition(axisIdx int, val float32) {
	if axisIdx < 0 || axisIdx >= axes.MaxAxes {
		return
	}
	a.AxisPos.Set(axisIdx, val)
	a.AxisValid[axisIdx] = true
}

// IsAxisPosValid reports whether axisIdx carries a target.
func (a MotionArgs) IsAxisPosValid(axisIdx int) bool {
	if axisIdx < 0 || axisIdx >= axes.MaxAxes {
		return false
	}
	return a.AxisValid[axisIdx]
}

// ResolvedVelocity returns the requested speed in units/s. By default
// Feedrate is a percentage and the result is masterMaxSpeed*Feedrate/100;
// when FeedrateUnitsPerMin is set, Feedrate is an absolute units/min value,
// the result is Feedrate/60 and masterMaxSpeed is not used.
func (a MotionArgs) ResolvedVelocity(masterMaxSpeed float32) float32 {
	if a.FeedrateUnitsPerMin {
		return a.Feedrate / 60.0
	}
	return masterMaxSpeed * (a.Feedrate / 100.0)
}
