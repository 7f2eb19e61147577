// Package planner implements admission of MotionArgs into MotionBlocks and
// the junction-deviation look-ahead that recomputes the unconsumed tail of
// the pipeline so consecutive blocks meet at a shared, achievable speed.
package planner

import (
	"math"

	"github.com/pkg/errors"

	"multistepper/motion/args"
	"multistepper/motion/axes"
	"multistepper/motion/block"
	"multistepper/motion/pipeline"
)

// MinimumMoveDistMM is the shortest Euclidean distance (mm) over the
// primary axes that constitutes a real move; anything shorter is rejected
// silently (no block, no error surfaced beyond ErrNoMove).
const MinimumMoveDistMM = 0.0001

// ErrNoMove is returned when an admission request carries no actual
// displacement.
var ErrNoMove = errors.New("zero-distance move rejected")

// ErrPipelineFull is returned when the pipeline has no free slot for the
// new block.
var ErrPipelineFull = errors.New("pipeline full")

// prevBlockInfo is the junction-deviation context carried from one ramped
// admission to the next.
type prevBlockInfo struct {
	valid         bool
	unitVectors   axes.PosValues
	maxParamSpeed float32
}

// Planner admits MotionArgs into MotionBlocks and recomputes the
// unconsumed tail of the pipeline so entry/exit speeds are both
// physically achievable (limited by the master axis's acceleration) and
// respect junction deviation.
type Planner struct {
	axesParams        *axes.AxesParams
	pipeline          *pipeline.Pipeline
	stepGenPeriodNs   float64
	junctionDeviation float32
	minPlannerSpeed   float32
	prev              prevBlockInfo
}

// New builds a Planner bound to ap/pl. stepGenPeriodNs is the ramp
// generator's ISR tick period in nanoseconds; junctionDeviation is the
// configured max chord error at a corner (spec default 0.05).
func New(ap *axes.AxesParams, pl *pipeline.Pipeline, stepGenPeriodNs float64, junctionDeviation float32) *Planner {
	return &Planner{
		axesParams:        ap,
		pipeline:          pl,
		stepGenPeriodNs:   stepGenPeriodNs,
		junctionDeviation: junctionDeviation,
	}
}

func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func minF32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func dotProduct(a, b axes.PosValues) float32 {
	var sum float32
	for i := 0; i < axes.MaxAxes; i++ {
		sum += a.Get(i) * b.Get(i)
	}
	return sum
}

// feedrateRatio resolves args' feedrate (percent of master max speed, or
// units-per-minute when FeedrateUnitsPerMin is set) to a plain multiplier
// applied to the requested velocity.
func (p *Planner) feedrateRatio(a args.MotionArgs) float32 {
	ratio := a.Feedrate / 100.0
	if a.FeedrateUnitsPerMin {
		ratio = 1.0
		if master := p.axesParams.MasterMaxVelUnitsPerS(); master != 0 {
			ratio = a.Feedrate / 60.0 / master
		}
	}
	return ratio
}

// MoveToLinear admits a stepwise (no-ramp) move: args carries step counts
// directly rather than Cartesian units. Used for homing and other
// low-level moves. Returns the updated steps-from-home on success.
func (p *Planner) MoveToLinear(a args.MotionArgs, curStepsFromHome axes.ParamVals[int32]) (axes.ParamVals[int32], error) {
	var b block.MotionBlock
	b.EntrySpeedMMPS = 0
	b.ExitSpeedMMPS = 0

	hasSteps := false
	lowestMaxStepRate := float32(1e8)
	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		var steps int32
		if a.IsAxisPosValid(axisIdx) {
			if a.Relative {
				steps = int32(a.AxisPos.Get(axisIdx))
			} else {
				steps = int32(a.AxisPos.Get(axisIdx)) - curStepsFromHome.Get(axisIdx)
			}
		}
		if steps != 0 {
			hasSteps = true
			if maxRate := p.axesParams.GetAxis(axisIdx).MaxStepRatePerS; lowestMaxStepRate > maxRate {
				lowestMaxStepRate = maxRate
			}
		}
		b.SetStepsToTarget(axisIdx, steps)
	}
	if !hasSteps {
		return curStepsFromHome, ErrNoMove
	}

	b.UnitVecAxisWithMaxDist = 1.0
	b.EndstopsToCheck = a.Endstops
	b.MotionTrackingIdx = a.MotionTrackingIdx

	requestedVelocity := lowestMaxStepRate
	if a.TargetSpeedValid && requestedVelocity > a.TargetSpeed {
		requestedVelocity = a.TargetSpeed
	}
	requestedVelocity *= p.feedrateRatio(a)
	b.RequestedVelocity = requestedVelocity

	if b.PrepareForStepping(p.axesParams, true, p.stepGenPeriodNs) {
		b.Arm()
	}

	if !p.pipeline.Add(b) {
		return curStepsFromHome, ErrPipelineFull
	}

	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		curStepsFromHome.Set(axisIdx, curStepsFromHome.Get(axisIdx)+b.StepsTotal.Get(axisIdx))
	}
	return curStepsFromHome, nil
}

// MoveToRamped admits a Cartesian ramped move. destActuatorCoords are the
// kinematics-converted actuator step targets for the requested target;
// cur tracks the current commanded position in both units and steps and
// is advanced in place on success.
func (p *Planner) MoveToRamped(a args.MotionArgs, destActuatorCoords axes.ParamVals[int32], cur *axes.Position) error {
	firstPrimaryAxis := -1
	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		if p.axesParams.GetAxis(axisIdx).IsPrimary {
			firstPrimaryAxis = axisIdx
			break
		}
	}
	if firstPrimaryAxis == -1 {
		firstPrimaryAxis = 0
	}

	var deltas [axes.MaxAxes]float32
	isAMove := false
	isAPrimaryMove := false
	axisWithMaxMoveDist := 0
	var squareSum float32
	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		deltas[axisIdx] = a.AxisPos.Get(axisIdx) - cur.UnitsFromHome.Get(axisIdx)
		if deltas[axisIdx] != 0 {
			isAMove = true
			if p.axesParams.GetAxis(axisIdx).IsPrimary {
				squareSum += deltas[axisIdx] * deltas[axisIdx]
				isAPrimaryMove = true
			}
		}
		if absF32(deltas[axisIdx]) > absF32(deltas[axisWithMaxMoveDist]) {
			axisWithMaxMoveDist = axisIdx
		}
	}
	moveDist := float32(math.Sqrt(float64(squareSum)))
	if !isAMove || moveDist < MinimumMoveDistMM {
		return ErrNoMove
	}

	var b block.MotionBlock
	b.BlockIsFollowed = a.MoreMovesComing
	b.EndstopsToCheck = a.Endstops
	b.MotionTrackingIdx = a.MotionTrackingIdx

	requestedVelocity := p.axesParams.GetAxis(firstPrimaryAxis).MaxVelUnitsPerS
	if a.TargetSpeedValid && requestedVelocity > a.TargetSpeed {
		requestedVelocity = a.TargetSpeed
	}
	requestedVelocity *= p.feedrateRatio(a)

	var unitVectors axes.PosValues
	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		if p.axesParams.GetAxis(axisIdx).IsPrimary {
			unitVectors.Set(axisIdx, deltas[axisIdx]/moveDist)
		}
	}

	b.RequestedVelocity = requestedVelocity
	b.MoveDistPrimaryMM = moveDist

	hasSteps := false
	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		stepsFloat := float32(destActuatorCoords.Get(axisIdx)) - float32(cur.StepsFromHome.Get(axisIdx))
		steps := int32(math.Ceil(float64(stepsFloat)))
		if steps != 0 {
			hasSteps = true
		}
		b.SetStepsToTarget(axisIdx, steps)
	}
	if !hasSteps {
		return ErrNoMove
	}

	b.UnitVecAxisWithMaxDist = unitVectors.Get(axisWithMaxMoveDist)

	vMaxJunction := p.minPlannerSpeed
	if !p.pipeline.CanGet() {
		p.prev.valid = false
	}
	if isAPrimaryMove && p.prev.valid {
		prevParamSpeed := p.prev.maxParamSpeed
		if p.junctionDeviation > 0 && prevParamSpeed > 0 {
			cosTheta := -dotProduct(unitVectors, p.prev.unitVectors)
			if cosTheta < 0.95 {
				vMaxJunction = minF32(prevParamSpeed, b.RequestedVelocity)
				if cosTheta > -0.95 {
					sinThetaD2 := float32(math.Sqrt(0.5 * (1 - float64(cosTheta))))
					underRoot := float64(p.axesParams.MasterMaxAccelUnitsPerS2()) * float64(p.junctionDeviation) * float64(sinThetaD2) / float64(1-sinThetaD2)
					vMaxJunction = minF32(vMaxJunction, float32(math.Sqrt(underRoot)))
				}
			}
		}
	}
	b.MaxEntrySpeedMMPS = vMaxJunction

	if !p.pipeline.Add(b) {
		return ErrPipelineFull
	}
	p.prev = prevBlockInfo{valid: true, unitVectors: unitVectors, maxParamSpeed: b.RequestedVelocity}

	p.RecalculatePipeline()

	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		cur.StepsFromHome.Set(axisIdx, cur.StepsFromHome.Get(axisIdx)+b.StepsTotal.Get(axisIdx))
	}
	cur.UnitsFromHome = a.AxisPos
	return nil
}

// RecalculatePipeline performs the two-pass junction-deviation look-ahead
// over the unconsumed tail of the pipeline. The reverse pass (newest to
// oldest) establishes each block's exit speed from its successor's entry
// speed, stopping at a block already executing or already optimal; the
// forward pass re-derives entry speeds and caps exit speeds by the
// physically achievable acceleration; the final pass prepares each
// touched block for stepping and releases it to the ISR.
func (p *Planner) RecalculatePipeline() {
	reverseBlockIdx := 0
	earliestBlockToReprocess := -1
	previousBlockExitSpeed := float32(0)
	followingBlockEntrySpeed := float32(0)
	var followingBlock *block.MotionBlock

	for {
		b := p.pipeline.PeekNthFromPut(uint32(reverseBlockIdx))
		if b == nil {
			break
		}
		if b.IsExecuting {
			previousBlockExitSpeed = b.ExitSpeedMMPS
			break
		}
		if b.EntrySpeedMMPS == b.MaxEntrySpeedMMPS && reverseBlockIdx > 1 {
			previousBlockExitSpeed = b.ExitSpeedMMPS
			break
		}
		if followingBlock != nil {
			maxAchievable := block.MaxAchievableSpeed(p.axesParams.MasterMaxAccelUnitsPerS2(), followingBlock.ExitSpeedMMPS, followingBlock.MoveDistPrimaryMM)
			followingBlock.EntrySpeedMMPS = minF32(maxAchievable, followingBlock.MaxEntrySpeedMMPS)
			followingBlockEntrySpeed = followingBlock.EntrySpeedMMPS
		}
		followingBlock = b
		b.ExitSpeedMMPS = followingBlockEntrySpeed
		earliestBlockToReprocess = reverseBlockIdx
		reverseBlockIdx++
	}

	for i := earliestBlockToReprocess; i >= 0; i-- {
		b := p.pipeline.PeekNthFromPut(uint32(i))
		if b == nil {
			break
		}
		b.EntrySpeedMMPS = previousBlockExitSpeed
		maxExit := block.MaxAchievableSpeed(p.axesParams.MasterMaxAccelUnitsPerS2(), b.EntrySpeedMMPS, b.MoveDistPrimaryMM)
		b.ExitSpeedMMPS = minF32(maxExit, b.ExitSpeedMMPS)
		previousBlockExitSpeed = b.ExitSpeedMMPS
	}

	for i := earliestBlockToReprocess; i >= 0; i-- {
		b := p.pipeline.PeekNthFromPut(uint32(i))
		if b == nil {
			break
		}
		if b.PrepareForStepping(p.axesParams, false, p.stepGenPeriodNs) {
			if !b.BlockIsFollowed || p.pipeline.Count() > 1 {
				b.Arm()
			}
		}
	}
}
