// Package block defines MotionBlock, the planner-owned unit of execution,
// and the fixed-point step-rate conversion the ramp generator's ISR tick
// consumes.
package block

import (
	"math"

	"multistepper/core"
	"multistepper/motion/axes"
)

// TTicks is the fixed-point scale used to represent step rates and
// accelerations per timer tick as integers.
const TTicks = 1_000_000_000

// MinStepRatePerS is the floor every per-tick rate saturates to so the ISR
// never stalls on a live block.
const MinStepRatePerS = 10

// MotionBlock is one planned move segment: step counts, the acceleration
// profile once PrepareForStepping has run, and the flags that hand the
// block off between the planner (task side) and the ramp generator (ISR).
type MotionBlock struct {
	StepsTotal             axes.ParamVals[int32]
	AxisIdxMaxSteps        int
	UnitVecAxisWithMaxDist float32
	MoveDistPrimaryMM      float32
	RequestedVelocity      float32

	EntrySpeedMMPS    float32
	ExitSpeedMMPS     float32
	MaxEntrySpeedMMPS float32

	InitialStepRatePerTTicks uint64
	MaxStepRatePerTTicks     uint64
	FinalStepRatePerTTicks   uint64
	AccStepsPerTTicksPerMS   uint64
	StepsBeforeDecel         uint32

	EndstopsToCheck   axes.EndstopChecks
	MotionTrackingIdx uint32

	// IsExecuting and CanExecute are the hand-off flags of spec §5: the task
	// side owns a block until it calls Arm, the ISR side owns it from
	// BeginExecuting onward. Mutate them through those methods, not
	// directly, so the transition is fenced against interrupts on tinygo.
	IsExecuting     bool
	CanExecute      bool
	BlockIsFollowed bool
}

// Arm flags the block ready for the ramp generator's ISR to pick up —
// the task side of spec §5's can_execute/is_executing handoff. Fenced
// with core.DisableInterrupts so a tinygo build's ISR can never observe
// CanExecute set before the profile PrepareForStepping just populated is
// fully written.
func (b *MotionBlock) Arm() {
	state := core.DisableInterrupts()
	b.CanExecute = true
	core.RestoreInterrupts(state)
}

// BeginExecuting marks the block as owned by the ISR for the remainder
// of its run and reports whether this tick is the first to observe it
// (i.e. setupNewBlock still needs to run). ISR-side only; fenced for
// parity with Arm's write to the same flag pair.
func (b *MotionBlock) BeginExecuting() bool {
	state := core.DisableInterrupts()
	wasExecuting := b.IsExecuting
	b.IsExecuting = true
	core.RestoreInterrupts(state)
	return !wasExecuting
}

// SetStepsToTarget sets axisIdx's step count and updates AxisIdxMaxSteps to
// track whichever axis carries the largest magnitude, mirroring the
// original firmware's incremental bookkeeping in setStepsToTarget.
func (b *MotionBlock) SetStepsToTarget(axisIdx int, steps int32) {
	b.StepsTotal.Set(axisIdx, steps)
	if absInt32(steps) > absInt32(b.StepsTotal.Get(b.AxisIdxMaxSteps)) {
		b.AxisIdxMaxSteps = axisIdx
	}
}

func absInt32(v int32) uint32 {
	if v < 0 {
		return uint32(-v)
	}
	return uint32(v)
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func saturateTTicks(v uint64) uint64 {
	if v > TTicks {
		return TTicks
	}
	return v
}

// rateToTTicks converts a rate in steps/second to the fixed-point
// steps-per-TTICKS representation, floored at MinStepRatePerS and
// saturated at TTICKS.
func rateToTTicks(rateSps, ticksPerSecond float64) uint64 {
	if rateSps < MinStepRatePerS {
		rateSps = MinStepRatePerS
	}
	v := rateSps * float64(TTicks) / ticksPerSecond
	if v < 0 {
		v = 0
	}
	return saturateTTicks(uint64(v))
}

// accToTTicksPerMs converts an acceleration in steps/second^2 to the
// fixed-point steps-per-TTICKS-per-millisecond representation.
func accToTTicksPerMs(accSps2, ticksPerSecond float64) uint64 {
	v := accSps2 * float64(TTicks) / ticksPerSecond / 1000
	if v < 0 {
		v = 0
	}
	return saturateTTicks(uint64(v))
}

// MinStepRatePerTTicks converts MinStepRatePerS to the fixed-point
// per-TTICKS representation for the given ISR tick period, mirroring
// MotionBlock::calcMinStepRatePerTTicks. The ramp generator floors its
// accumulator rate at this value every tick so it never stalls.
func MinStepRatePerTTicks(stepGenPeriodNs float64) uint64 {
	ticksPerSecond := float64(TTicks) / stepGenPeriodNs
	return rateToTTicks(MinStepRatePerS, ticksPerSecond)
}

// MaxAchievableSpeed returns the speed reachable after accelerating at a
// from vTarget over distance, per v^2 = v0^2 + 2*a*d.
func MaxAchievableSpeed(a, vTarget, distance float32) float32 {
	v2 := float64(vTarget)*float64(vTarget) + 2*float64(a)*float64(distance)
	if v2 < 0 {
		v2 = 0
	}
	return float32(math.Sqrt(v2))
}

// PrepareForStepping converts the block's mm/s entry/exit/requested speeds
// (ramped mode) or its steps/s requested velocity (linear mode) into the
// fixed-point per-TTICKS step-rate profile the ramp generator's ISR tick
// consumes. stepGenPeriodNs is the ISR tick period in nanoseconds. Returns
// false if the block is already executing (owned by the ISR) or if the
// move has no master-axis steps to stage.
func (b *MotionBlock) PrepareForStepping(ap *axes.AxesParams, isLinear bool, stepGenPeriodNs float64) bool {
	if b.IsExecuting {
		return false
	}

	n := absInt32(b.StepsTotal.Get(b.AxisIdxMaxSteps))
	if n == 0 {
		return false
	}
	ticksPerSecond := float64(TTicks) / stepGenPeriodNs
	masterMaxStepRate := ap.MasterMaxStepRatePerS()

	if isLinear {
		rate := clampF32(b.RequestedVelocity, 0, masterMaxStepRate)
		r := rateToTTicks(float64(rate), ticksPerSecond)
		b.InitialStepRatePerTTicks = r
		b.MaxStepRatePerTTicks = r
		b.FinalStepRatePerTTicks = r
		b.AccStepsPerTTicksPerMS = 0
		b.StepsBeforeDecel = n
		return true
	}

	stepDistMM := b.MoveDistPrimaryMM / float32(n)
	if stepDistMM <= 0 {
		return false
	}

	vEntry := clampF32(b.EntrySpeedMMPS/stepDistMM, 0, masterMaxStepRate)
	vExit := clampF32(b.ExitSpeedMMPS/stepDistMM, 0, masterMaxStepRate)
	aSps2 := ap.MasterMaxAccelUnitsPerS2() / stepDistMM

	stepsAccelerating := int32(math.Ceil(float64(vExit*vExit-vEntry*vEntry)/(4*float64(aSps2)) + float64(n)/2))
	if stepsAccelerating < 0 {
		stepsAccelerating = 0
	}
	if stepsAccelerating > int32(n) {
		stepsAccelerating = int32(n)
	}

	vPeak := clampF32(b.RequestedVelocity/stepDistMM, 0, masterMaxStepRate)
	stepsToPeak := (vPeak*vPeak - vEntry*vEntry) / (2 * aSps2)

	var stepsDecel float32
	if stepsToPeak < float32(stepsAccelerating) {
		stepsAccelerating = int32(math.Ceil(float64(stepsToPeak)))
		if stepsAccelerating < 0 {
			stepsAccelerating = 0
		}
		stepsDecel = (vPeak*vPeak - vExit*vExit) / (2 * aSps2)
	} else {
		vPeak = MaxAchievableSpeed(aSps2, vEntry, float32(stepsAccelerating))
		stepsDecel = float32(int32(n) - stepsAccelerating)
	}
	if stepsDecel < 0 {
		stepsDecel = 0
	}

	b.StepsBeforeDecel = n - uint32(stepsDecel)
	b.InitialStepRatePerTTicks = rateToTTicks(float64(vEntry), ticksPerSecond)
	b.MaxStepRatePerTTicks = rateToTTicks(float64(vPeak), ticksPerSecond)
	b.FinalStepRatePerTTicks = rateToTTicks(float64(vExit), ticksPerSecond)
	b.AccStepsPerTTicksPerMS = accToTTicksPerMs(float64(aSps2), ticksPerSecond)
	return true
}
