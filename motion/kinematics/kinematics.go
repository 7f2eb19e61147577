// Package kinematics implements the Cartesian-to-actuator conversion hook
// the block manager calls on every ramped admission. The ramp generator
// never touches kinematics; it only ever sees steps.
package kinematics

import (
	"multistepper/motion/axes"
)

// Kinematics converts between Cartesian target points and actuator step
// targets. Implementations are small and stateless enough to be modeled as
// a tagged type rather than a virtual dispatch table.
type Kinematics interface {
	// PtToActuator converts targetPt (Cartesian units) to actuator step
	// counts, honoring axesParams' configured bounds unless
	// allowOutOfBounds is set. Returns whether targetPt was in bounds
	// before any correction was applied.
	PtToActuator(targetPt axes.PosValues, curPos axes.Position, axesParams *axes.AxesParams, allowOutOfBounds bool) (axes.ParamVals[int32], bool)

	// ActuatorToPt is the inverse conversion, used for status reporting.
	ActuatorToPt(targetActuator axes.ParamVals[int32], curPos axes.Position, axesParams *axes.AxesParams) axes.PosValues

	// PreProcessCoords adjusts positions before they are used, for
	// position-dependent geometries. The default no-op is correct for
	// XYZ.
	PreProcessCoords(positions *axes.PosValues, axesParams *axes.AxesParams)

	// CorrectStepOverflow corrects continuous-rotation wraparound in the
	// tracked position. Left as a hook with a no-op default; no-goal per
	// spec.
	CorrectStepOverflow(cur *axes.Position, axesParams *axes.AxesParams)
}

// noOpHooks provides the no-op PreProcessCoords/CorrectStepOverflow default
// so concrete geometries only need to implement the two conversions.
type noOpHooks struct{}

func (noOpHooks) PreProcessCoords(positions *axes.PosValues, axesParams *axes.AxesParams) {}

func (noOpHooks) CorrectStepOverflow(cur *axes.Position, axesParams *axes.AxesParams) {}
