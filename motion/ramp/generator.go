package ramp

import (
	"multistepper/core"
	"multistepper/motion/axes"
	"multistepper/motion/block"
	"multistepper/motion/pipeline"
)

const nsInAMS = 1_000_000

// RampGenerator turns the head of the pipeline into step pulses, one tick
// at a time, with Bresenham interleaving across axes. Tick is meant to be
// called from a periodic hardware timer (or, absent one, pumped directly
// from the task loop); it never allocates and never blocks. Grounded on
// RampGenerator::generateMotionPulses and its helpers.
type RampGenerator struct {
	pipeline *pipeline.Pipeline
	drivers  [axes.MaxAxes]StepperDriver
	endstops [axes.MaxAxes]Endstop

	stepGenPeriodNs      uint64
	minStepRatePerTTicks uint64

	paused         bool
	endstopReached bool

	axisTotalSteps [axes.MaxAxes]int32
	totalStepsInc  [axes.MaxAxes]int32

	stepsTotalAbs     [axes.MaxAxes]uint32
	curStepCount      [axes.MaxAxes]uint32
	curAccumulatorRel [axes.MaxAxes]uint32

	curStepRatePerTTicks uint64
	curAccumulatorStep   uint64
	curAccumulatorNs     uint64

	endstopChecks   [axes.MaxAxes * axes.MaxEndstopsPerAxis]endstopCheck
	endstopCheckNum int

	isrCount uint32
	stats    RampGenStats
}

// New builds a RampGenerator bound to pl, with drivers/endstops indexed by
// axis (nil entries are skipped, matching the original's nil-driver
// guards). stepGenPeriodNs is the ISR tick period.
func New(pl *pipeline.Pipeline, drivers [axes.MaxAxes]StepperDriver, endstops [axes.MaxAxes]Endstop, stepGenPeriodNs uint64) *RampGenerator {
	return &RampGenerator{
		pipeline:             pl,
		drivers:              drivers,
		endstops:             endstops,
		stepGenPeriodNs:      stepGenPeriodNs,
		minStepRatePerTTicks: block.MinStepRatePerTTicks(float64(stepGenPeriodNs)),
		paused:               true,
	}
}

// Pause pauses or resumes tick processing. Resuming clears a previously
// latched endstop-reached flag.
func (g *RampGenerator) Pause(pauseIt bool) {
	g.paused = pauseIt
	if !g.paused {
		g.endstopReached = false
	}
}

// Stop pauses immediately and clears the endstop-reached flag.
func (g *RampGenerator) Stop() {
	g.paused = true
	g.endstopReached = false
}

// IsPaused reports whether the generator is currently paused.
func (g *RampGenerator) IsPaused() bool {
	return g.paused
}

// EndstopReached reports whether the most recent block was aborted by an
// endstop hit.
func (g *RampGenerator) EndstopReached() bool {
	return g.endstopReached
}

// ClearEndstopReached clears the latched endstop-reached flag.
func (g *RampGenerator) ClearEndstopReached() {
	g.endstopReached = false
}

// TotalStepPosition returns the running actuator position in steps, as
// tracked by step-end completions (not step-start — matches the original
// so a step only counts once fully pulsed).
func (g *RampGenerator) TotalStepPosition() axes.ParamVals[int32] {
	var out axes.ParamVals[int32]
	for i := 0; i < axes.MaxAxes; i++ {
		out.Set(i, g.axisTotalSteps[i])
	}
	return out
}

// SetTotalStepPosition overrides axisIdx's tracked actuator position,
// used when re-homing.
func (g *RampGenerator) SetTotalStepPosition(axisIdx int, stepPos int32) {
	if axisIdx < 0 || axisIdx >= axes.MaxAxes {
		return
	}
	g.axisTotalSteps[axisIdx] = stepPos
}

// Stats returns a copy of the running ISR statistics.
func (g *RampGenerator) Stats() RampGenStats {
	return g.stats
}

func absI32(v int32) uint32 {
	if v < 0 {
		return uint32(-v)
	}
	return uint32(v)
}

// handleStepEnd de-asserts any pulse left asserted from the previous tick.
// Returns true if any pin was reset, in which case the caller returns
// immediately to keep the pulse width at least one tick wide.
func (g *RampGenerator) handleStepEnd() bool {
	anyPinReset := false
	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		d := g.drivers[axisIdx]
		if d == nil {
			continue
		}
		if d.StepEnd() {
			anyPinReset = true
			g.axisTotalSteps[axisIdx] += g.totalStepsInc[axisIdx]
		}
	}
	return anyPinReset
}

// setupNewBlock caches a freshly-dequeued block's per-axis step counts,
// directions and endstop checks, and resets the tick accumulators.
func (g *RampGenerator) setupNewBlock(b *block.MotionBlock) {
	g.endstopCheckNum = 0
	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		d := g.drivers[axisIdx]
		if d == nil {
			continue
		}

		stepsTotal := b.StepsTotal.Get(axisIdx)
		g.stepsTotalAbs[axisIdx] = absI32(stepsTotal)
		g.curStepCount[axisIdx] = 0
		g.curAccumulatorRel[axisIdx] = 0
		d.SetDirection(stepsTotal >= 0, false)
		if stepsTotal >= 0 {
			g.totalStepsInc[axisIdx] = 1
		} else {
			g.totalStepsInc[axisIdx] = -1
		}

		if !b.EndstopsToCheck.Any() {
			continue
		}
		for minMaxIdx := 0; minMaxIdx < axes.MaxEndstopsPerAxis; minMaxIdx++ {
			minMax := axes.EndstopMinMax(minMaxIdx)
			checkType := b.EndstopsToCheck.Get(axisIdx, minMax)
			if checkType == axes.CheckNone {
				continue
			}
			if checkType == axes.CheckTowards {
				headingMax := minMax == axes.EndstopMax && stepsTotal > 0
				headingMin := minMax == axes.EndstopMin && stepsTotal < 0
				if !headingMax && !headingMin {
					continue
				}
			}
			if ep := g.endstops[axisIdx]; ep != nil {
				isMax := minMax == axes.EndstopMax
				if ep.IsValid(isMax) && g.endstopCheckNum < len(g.endstopChecks) {
					g.endstopChecks[g.endstopCheckNum] = endstopCheck{
						axisIdx:  axisIdx,
						isMax:    isMax,
						checkHit: checkType != axes.CheckNotHit,
					}
					g.endstopCheckNum++
				}
			}
		}
	}

	g.curAccumulatorStep = 0
	g.curAccumulatorNs = 0
	g.curStepRatePerTTicks = b.InitialStepRatePerTTicks
}

// updateMSAccumulator advances the millisecond accumulator and, once it
// rolls over, nudges the current step rate one acceleration increment
// towards the block's peak or final rate.
func (g *RampGenerator) updateMSAccumulator(b *block.MotionBlock) {
	g.curAccumulatorNs += g.stepGenPeriodNs
	if g.curAccumulatorNs < nsInAMS {
		return
	}
	g.curAccumulatorNs -= nsInAMS

	if g.curStepCount[b.AxisIdxMaxSteps] > uint32(b.StepsBeforeDecel) {
		floor := maxU64(g.minStepRatePerTTicks+b.AccStepsPerTTicksPerMS, b.FinalStepRatePerTTicks+b.AccStepsPerTTicksPerMS)
		if g.curStepRatePerTTicks > floor {
			g.curStepRatePerTTicks -= b.AccStepsPerTTicksPerMS
		}
	} else if g.curStepRatePerTTicks < g.minStepRatePerTTicks || g.curStepRatePerTTicks < b.MaxStepRatePerTTicks {
		if g.curStepRatePerTTicks+b.AccStepsPerTTicksPerMS < block.TTicks {
			g.curStepRatePerTTicks += b.AccStepsPerTTicksPerMS
		}
	}
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// handleStepMotion emits one master-axis step and, via Bresenham
// accumulation, any other axis whose proportional share is now due.
// Returns whether any axis still has steps remaining after this tick.
func (g *RampGenerator) handleStepMotion(b *block.MotionBlock) bool {
	anyAxisMoving := false
	masterIdx := b.AxisIdxMaxSteps

	g.curAccumulatorStep -= block.TTicks

	if g.curStepCount[masterIdx] < g.stepsTotalAbs[masterIdx] {
		if d := g.drivers[masterIdx]; d != nil {
			d.StepStart()
		}
		g.curStepCount[masterIdx]++
		if g.curStepCount[masterIdx] < g.stepsTotalAbs[masterIdx] {
			anyAxisMoving = true
		}
		core.RecordTiming(core.EvtStepStart, uint8(masterIdx), core.GetTime(), g.curStepCount[masterIdx], 0)
	}

	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		if axisIdx == masterIdx || g.curStepCount[axisIdx] == g.stepsTotalAbs[axisIdx] {
			continue
		}
		g.curAccumulatorRel[axisIdx] += g.stepsTotalAbs[axisIdx]
		if g.curAccumulatorRel[axisIdx] < g.stepsTotalAbs[masterIdx] {
			continue
		}
		g.curAccumulatorRel[axisIdx] -= g.stepsTotalAbs[masterIdx]
		if d := g.drivers[axisIdx]; d != nil {
			d.StepStart()
		}
		g.curStepCount[axisIdx]++
		if g.curStepCount[axisIdx] < g.stepsTotalAbs[axisIdx] {
			anyAxisMoving = true
		}
		core.RecordTiming(core.EvtStepStart, uint8(axisIdx), core.GetTime(), g.curStepCount[axisIdx], 0)
	}

	return anyAxisMoving
}

// endMotion removes the completed or aborted block from the pipeline.
func (g *RampGenerator) endMotion() {
	g.pipeline.Remove()
	core.RecordTiming(core.EvtEndMotion, 0, core.GetTime(), 0, 0)
}

// Tick runs one ISR cycle: step-end, pause/availability checks, new-block
// setup, endstop sampling, acceleration update and step emission, in that
// order, returning as early as possible at each gate. Grounded on
// RampGenerator::generateMotionPulses.
func (g *RampGenerator) Tick() {
	startTicks := core.GetTime()
	defer func() {
		elapsedTicks := core.GetTime() - startTicks
		g.stats.recordISRDuration(core.TimerToUS(elapsedTicks))
	}()

	g.isrCount++

	if g.handleStepEnd() {
		return
	}

	if g.paused {
		return
	}

	b := g.pipeline.PeekGet()
	if b == nil {
		return
	}
	if !b.CanExecute {
		return
	}

	newBlock := b.BeginExecuting()
	if newBlock {
		g.setupNewBlock(b)
		return
	}

	endStopHit := false
	for i := 0; i < g.endstopCheckNum; i++ {
		check := g.endstopChecks[i]
		ep := g.endstops[check.axisIdx]
		if ep == nil {
			continue
		}
		if ep.IsAtEndstop(check.isMax) == check.checkHit {
			endStopHit = true
		}
	}
	if endStopHit {
		g.endstopReached = true
		g.endMotion()
		return
	}

	g.updateMSAccumulator(b)
	g.curAccumulatorStep += maxU64(g.curStepRatePerTTicks, g.minStepRatePerTTicks)

	g.stats.update(g.curAccumulatorStep, g.curStepRatePerTTicks, g.curAccumulatorNs,
		b.AxisIdxMaxSteps, b.AccStepsPerTTicksPerMS, g.curStepCount[b.AxisIdxMaxSteps],
		b.StepsBeforeDecel, b.MaxStepRatePerTTicks)

	if g.curAccumulatorStep < block.TTicks {
		return
	}

	anyAxisMoving := g.handleStepMotion(b)
	core.AddStepCount(1)
	if !anyAxisMoving {
		g.endMotion()
	}
}
