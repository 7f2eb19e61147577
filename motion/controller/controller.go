// Package controller implements MotionController, the top-level
// orchestrator that accepts MotionArgs, drives the planner and block
// splitter, and services the motor-enabler idle timer. Grounded on
// standalone/manager.go's Initialize/Start/Stop lifecycle, restructured
// per spec §4.6 around MotionArgs/MotionBlock instead of G-code lines.
package controller

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"multistepper/core"
	"multistepper/motion/args"
	"multistepper/motion/axes"
	"multistepper/motion/blockmanager"
	"multistepper/motion/config"
	"multistepper/motion/pipeline"
	"multistepper/motion/planner"
	"multistepper/motion/ramp"
)

// ErrBusy is returned by MoveTo when a ramped admission arrives while the
// block splitter is still feeding sub-moves from a previous move.
var ErrBusy = errors.New("block manager busy splitting a previous move")

// ErrHomingRequired is returned by MoveTo when the configuration requires
// homing before any move and the last commanded position is not fully
// homed.
var ErrHomingRequired = errors.New("homing required before this move")

// ErrQueueNotDrained is returned by ClearQueue when the ramp generator is
// neither paused nor has fully drained the pipeline.
var ErrQueueNotDrained = errors.New("cannot clear queue while executing and not paused")

// Controller is the orchestrator spec §4.6 describes: it owns the
// AxesParams, MotionPipeline, RampGenerator, BlockManager and MotorEnabler
// and is the single entry point a command-parsing collaborator calls with
// a decoded MotionArgs.
type Controller struct {
	axesParams   *axes.AxesParams
	pipeline     *pipeline.Pipeline
	planner      *planner.Planner
	blockManager *blockmanager.BlockManager
	rampGen      *ramp.RampGenerator
	motorEnabler *ramp.MotorEnabler

	blockDistanceMM  float32
	homingInProgress bool
}

// New builds a fully-wired Controller from cfg: the AxesParams, geometry,
// pipeline, planner, block manager, ramp generator and motor enabler are
// all constructed here, mirroring standalone.Manager's Initialize flow.
// drivers/endstops are indexed by axis; a nil entry is skipped exactly as
// the ramp generator's ISR tick already tolerates. motorPin may be nil in
// tests that never expect a real GPIO write.
func New(cfg *config.MachineConfig, drivers [axes.MaxAxes]ramp.StepperDriver, endstops [axes.MaxAxes]ramp.Endstop, motorPin ramp.GPIOPin) (*Controller, error) {
	ap, err := config.BuildAxesParams(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "controller.New")
	}
	geom, err := config.BuildGeometry(cfg.Geometry)
	if err != nil {
		return nil, errors.Wrap(err, "controller.New")
	}

	pl := pipeline.New(cfg.Ramp.PipelineLen)
	stepGenPeriodNs := cfg.StepGenPeriodNs()
	pln := planner.New(ap, pl, float64(stepGenPeriodNs), cfg.JunctionDeviation)
	motorEn := ramp.NewMotorEnabler(motorPin, cfg.MotorEnable.StepEnableLevel, cfg.MotorEnable.StepDisableSecs)
	bm := blockmanager.New(pln, pl, motorEn, ap, geom, cfg.AllowOutOfBounds, cfg.HomeBeforeMove)
	gen := ramp.New(pl, drivers, endstops, stepGenPeriodNs)
	gen.Pause(!cfg.Ramp.TimerEnabled)

	return &Controller{
		axesParams:      ap,
		pipeline:        pl,
		planner:         pln,
		blockManager:    bm,
		rampGen:         gen,
		motorEnabler:    motorEn,
		blockDistanceMM: cfg.BlockDistMM,
	}, nil
}

// AxesParams returns the configured per-axis parameters.
func (c *Controller) AxesParams() *axes.AxesParams { return c.axesParams }

// Pipeline returns the shared block pipeline.
func (c *Controller) Pipeline() *pipeline.Pipeline { return c.pipeline }

// RampGenerator returns the ramp generator, for wiring Tick to a hardware
// timer ISR or pumping it directly from a test/host loop.
func (c *Controller) RampGenerator() *ramp.RampGenerator { return c.rampGen }

// BlockManager returns the block manager, mainly for tests that need to
// inspect the tracked last-commanded position directly.
func (c *Controller) BlockManager() *blockmanager.BlockManager { return c.blockManager }

// SetCurPositionAsHome marks axisIdx (or every axis, if allAxes) homed at
// its configured home offset. The homing sequence itself (approach,
// back-off, endstop polling) is an out-of-scope collaborator; this is the
// primitive it calls once homing completes.
func (c *Controller) SetCurPositionAsHome(allAxes bool, axisIdx int) {
	c.blockManager.SetCurPositionAsHome(allAxes, axisIdx)
}

// MoveTo admits a single MotionArgs request: PreClearQueue and
// EnableMotors are handled first, then the request is dispatched to the
// linear (stepwise) or ramped admission path. Grounded on
// MotionController::move_to.
func (c *Controller) MoveTo(a args.MotionArgs) error {
	if a.PreClearQueue {
		if err := c.ClearQueue(); err != nil {
			return errors.Wrap(err, "moveTo")
		}
	}
	if !a.EnableMotors {
		c.motorEnabler.EnableMotors(false, false)
	}
	if a.IsHoming {
		c.homingInProgress = true
	}

	if a.LinearNoRamp {
		if err := c.blockManager.AddLinearBlock(a); err != nil {
			return errors.Wrap(err, "moveTo")
		}
		return nil
	}
	return c.moveToRamped(a)
}

// moveToRamped resolves a's target (copying unset axes and adding
// relative ones to the last-commanded position), decides how many
// sub-moves the splitter should emit, and kicks off the first pump.
// Grounded on MotionController::move_to_ramped.
func (c *Controller) moveToRamped(a args.MotionArgs) error {
	if c.blockManager.IsBusy() {
		return ErrBusy
	}
	last := c.blockManager.LastCommandedPosition()
	if c.blockManager.HomingNeeded(last.IsHomed(c.axesParams.NumAxes())) {
		return ErrHomingRequired
	}

	target := last.UnitsFromHome
	for axisIdx := 0; axisIdx < axes.MaxAxes; axisIdx++ {
		if !a.IsAxisPosValid(axisIdx) {
			continue
		}
		if a.Relative {
			target.Set(axisIdx, last.UnitsFromHome.Get(axisIdx)+a.AxisPos.Get(axisIdx))
		} else {
			target.Set(axisIdx, a.AxisPos.Get(axisIdx))
		}
	}

	lineLen := target.Distance(last.UnitsFromHome, c.axesParams.PrimaryMask())

	numBlocks := uint32(1)
	if !a.DontSplitMove && c.blockDistanceMM > 0.01 {
		if n := int(math.Ceil(float64(lineLen / c.blockDistanceMM))); n > 1 {
			numBlocks = uint32(n)
		}
	}

	c.blockManager.AddRampedBlock(a, target, numBlocks)
	c.blockManager.PumpBlockSplitter()
	return nil
}

// Service should be called at least every millisecond: it drains the
// block splitter into the pipeline, dispatches any due scheduled timers
// (the motor-enabler's idle-off check among them), and forces motors
// enabled while the pipeline is non-empty or a homing move is in
// progress. Grounded on MotionController::service.
func (c *Controller) Service() {
	c.blockManager.PumpBlockSplitter()
	core.ProcessTimers()
	if c.pipeline.Count() > 0 || c.homingInProgress {
		c.motorEnabler.EnableMotors(true, false)
	}
	if c.homingInProgress && c.pipeline.Count() == 0 && !c.blockManager.IsBusy() {
		c.homingInProgress = false
	}
}

// Stop pauses the ramp generator, clears any latched endstop-reached
// flag, and drains the pipeline. Grounded on spec §5's stop() semantics.
func (c *Controller) Stop() {
	c.rampGen.Stop()
	c.pipeline.Clear()
	c.homingInProgress = false
}

// ClearQueue drains the pipeline, but only when the ramp generator is
// paused or the pipeline is already empty; callers must serialize this
// with in-flight execution per spec §5.
func (c *Controller) ClearQueue() error {
	if !c.rampGen.IsPaused() && c.pipeline.Count() > 0 {
		return ErrQueueNotDrained
	}
	c.pipeline.Clear()
	return nil
}

// GetLastPos returns the last-commanded position in axis units.
func (c *Controller) GetLastPos() axes.PosValues {
	return c.blockManager.LastCommandedPosition().UnitsFromHome
}

// LastPosValid reports whether every configured axis has been homed.
func (c *Controller) LastPosValid() bool {
	return c.blockManager.LastCommandedPosition().IsHomed(c.axesParams.NumAxes())
}

// StreamGetQueueSlots returns the pipeline's remaining free capacity.
func (c *Controller) StreamGetQueueSlots() uint32 {
	return uint32(c.pipeline.Remaining())
}

// GetStats returns the ramp generator's running ISR statistics.
func (c *Controller) GetStats() ramp.RampGenStats {
	return c.rampGen.Stats()
}

// EndstopReached reports whether the most recent block was aborted by an
// endstop hit.
func (c *Controller) EndstopReached() bool {
	return c.rampGen.EndstopReached()
}

// ClearEndstopReached clears the latched endstop-reached flag, typically
// called once a caller has observed and handled EndstopReached.
func (c *Controller) ClearEndstopReached() {
	c.rampGen.ClearEndstopReached()
}

// InitMotors drives every configured stepper's pins to their idle state,
// aggregating GPIO configuration errors via multierr so a caller sees
// every failing pin rather than just the first. Grounded on
// viam-modules-uln2003/uln28byj48's multierr.Combine over its pin setup.
func (c *Controller) InitMotors(steppers [axes.MaxAxes]*ramp.Stepper) error {
	var combined error
	for _, s := range steppers {
		if s == nil {
			continue
		}
		combined = multierr.Append(combined, s.InitPins())
	}
	return combined
}

// RegisterCommands wires the controller's command-side operations into
// reg: a binary MotionArgs ingress command and a stop-motion command,
// mirroring the original firmware's command dictionary for the motion
// subsystem (minus the chip-register and endstop commands that belong to
// the out-of-scope stepper-driver and endstop-hardware collaborators).
// Grounded on core/command.go's CommandRegistry.
func (c *Controller) RegisterCommands(reg *core.CommandRegistry) {
	reg.Register("queue_move", "payload=%*s", func(data *[]byte) error {
		a, err := args.Decode(*data)
		if err != nil {
			return err
		}
		return c.MoveTo(a)
	})
	reg.Register("stop_motion", "", func(data *[]byte) error {
		c.Stop()
		return nil
	})
	reg.Register("motion_status", "slots=%u last_pos=%*s", nil)
}
