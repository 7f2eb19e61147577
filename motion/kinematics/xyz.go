package kinematics

import (
	"math"

	"multistepper/motion/axes"
)

// XYZ is a direct (1:1) Cartesian-to-actuator geometry: each axis's step
// target is its home offset in steps plus its distance from home (in
// units) scaled by steps-per-unit. Grounded on AxisGeomXYZ's ptToActuator
// and actuatorToPt.
type XYZ struct {
	noOpHooks
}

// NewXYZ returns an XYZ geometry instance. XYZ carries no state of its own.
func NewXYZ() *XYZ {
	return &XYZ{}
}

// PtToActuator implements Kinematics.
func (g *XYZ) PtToActuator(targetPt axes.PosValues, curPos axes.Position, axesParams *axes.AxesParams, allowOutOfBounds bool) (axes.ParamVals[int32], bool) {
	ptWasValid := axesParams.PtInBounds(&targetPt, !allowOutOfBounds)

	var outActuator axes.ParamVals[int32]
	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		ap := axesParams.GetAxis(axisIdx)
		axisValFromHome := targetPt.Get(axisIdx) - ap.HomeOffsetVal
		steps := int32(math.Round(float64(axisValFromHome*ap.StepsPerUnit) + float64(ap.HomeOffSteps)))
		outActuator.Set(axisIdx, steps)
	}
	return outActuator, ptWasValid
}

// ActuatorToPt implements Kinematics.
func (g *XYZ) ActuatorToPt(targetActuator axes.ParamVals[int32], curPos axes.Position, axesParams *axes.AxesParams) axes.PosValues {
	var outPt axes.PosValues
	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		ap := axesParams.GetAxis(axisIdx)
		ptVal := float64(targetActuator.Get(axisIdx)-ap.HomeOffSteps)
		if ap.StepsPerUnit != 0 {
			ptVal = ptVal/float64(ap.StepsPerUnit) + float64(ap.HomeOffsetVal)
		}
		outPt.Set(axisIdx, float32(ptVal))
	}
	return outPt
}
