// Package blockmanager sits between MotionController and the planner: it
// owns the configured geometry, splits a single commanded move into a
// sequence of smaller blocks when asked to, and tracks the last commanded
// position in both units and steps. Grounded on MotionBlockManager.cpp.
package blockmanager

import (
	"github.com/pkg/errors"

	"multistepper/motion/args"
	"multistepper/motion/axes"
	"multistepper/motion/kinematics"
	"multistepper/motion/pipeline"
	"multistepper/motion/planner"
)

// ErrNoGeometry is returned when AddToPlanner runs before a geometry has
// been configured.
var ErrNoGeometry = errors.New("no geometry configured")

// MotorEnabler is the hook used to keep motors powered while blocks are
// actively being queued; satisfied by motion/ramp.MotorEnabler.
type MotorEnabler interface {
	EnableMotors(enable, force bool)
}

// BlockManager converts Cartesian moves to actuator steps via Geometry,
// feeds them to the Planner, and splits a single move into numBlocks
// sub-moves fed in over successive PumpBlockSplitter calls.
type BlockManager struct {
	planner    *planner.Planner
	pipeline   *pipeline.Pipeline
	motorEn    MotorEnabler
	axesParams *axes.AxesParams
	geometry   kinematics.Kinematics

	allowAllOutOfBounds       bool
	homingNeededBeforeAnyMove bool

	lastCommanded axes.Position

	blockMotionArgs args.MotionArgs
	targetPosition  axes.PosValues
	blockDelta      axes.PosValues
	numBlocks       uint32
	nextBlockIdx    uint32
}

// New builds a BlockManager. geometry may be nil; AddToPlanner then fails
// with ErrNoGeometry until one is configured with SetGeometry.
func New(p *planner.Planner, pl *pipeline.Pipeline, motorEn MotorEnabler, ap *axes.AxesParams, geometry kinematics.Kinematics, allowAllOutOfBounds, homingNeededBeforeAnyMove bool) *BlockManager {
	return &BlockManager{
		planner:                   p,
		pipeline:                  pl,
		motorEn:                   motorEn,
		axesParams:                ap,
		geometry:                  geometry,
		allowAllOutOfBounds:       allowAllOutOfBounds,
		homingNeededBeforeAnyMove: homingNeededBeforeAnyMove,
	}
}

// SetGeometry replaces the configured geometry hook.
func (bm *BlockManager) SetGeometry(geometry kinematics.Kinematics) {
	bm.geometry = geometry
}

// HomingNeeded reports whether every axis must be homed before the next
// move is accepted.
func (bm *BlockManager) HomingNeeded(isHomed bool) bool {
	return bm.homingNeededBeforeAnyMove && !isHomed
}

// LastCommandedPosition returns the tracked last-commanded position.
func (bm *BlockManager) LastCommandedPosition() axes.Position {
	return bm.lastCommanded
}

// SetCurPositionAsHome zeroes the tracked position's origin to each
// affected axis's configured home offset. Pass axisIdx < 0 with allAxes
// true to home every axis.
func (bm *BlockManager) SetCurPositionAsHome(allAxes bool, axisIdx int) {
	start, end := axisIdx, axisIdx+1
	if allAxes {
		start, end = 0, axes.MaxAxes
	}
	if start < 0 || start >= axes.MaxAxes {
		return
	}
	for i := start; i < end && i < axes.MaxAxes; i++ {
		ap := bm.axesParams.GetAxis(i)
		bm.lastCommanded.SetHomed(i, ap.HomeOffsetVal, ap.HomeOffSteps)
	}
}

// AddLinearBlock admits a stepwise (no-ramp) move directly, bypassing
// geometry and the block splitter. Used for homing and other low-level
// moves where args carries step counts.
func (bm *BlockManager) AddLinearBlock(a args.MotionArgs) error {
	stepsFromHome, err := bm.planner.MoveToLinear(a, bm.lastCommanded.StepsFromHome)
	if err != nil {
		return errors.Wrap(err, "addLinearBlock")
	}
	bm.lastCommanded.StepsFromHome = stepsFromHome
	// A linear move bypasses geometry, so units-from-home tracking for the
	// axes it touched is no longer trustworthy until the next ramped move.
	bm.lastCommanded.UnitsFromHome = axes.PosValues{}
	return nil
}

// AddRampedBlock records a Cartesian move to targetPosition, to be split
// into numBlocks sub-moves (1 for an unsplit move) and fed to the planner
// by successive PumpBlockSplitter calls.
func (bm *BlockManager) AddRampedBlock(a args.MotionArgs, targetPosition axes.PosValues, numBlocks uint32) {
	if numBlocks == 0 {
		numBlocks = 1
	}
	bm.blockMotionArgs = a
	bm.targetPosition = targetPosition
	bm.numBlocks = numBlocks
	bm.nextBlockIdx = 0
	var delta axes.PosValues
	for i := 0; i < axes.MaxAxes; i++ {
		if targetPosition.IsValid(i) {
			delta.Set(i, (targetPosition.Get(i)-bm.lastCommanded.UnitsFromHome.Get(i))/float32(numBlocks))
		}
	}
	bm.blockDelta = delta
}

// IsBusy reports whether a split move is still feeding sub-moves to the
// planner. MotionController rejects new ramped admissions while busy.
func (bm *BlockManager) IsBusy() bool {
	return bm.numBlocks != 0
}

// PumpBlockSplitter feeds queued sub-moves to the planner while the
// pipeline has room. Intended to be called regularly from the
// controller's service loop.
func (bm *BlockManager) PumpBlockSplitter() {
	for bm.pipeline.CanAccept() {
		if bm.numBlocks == 0 {
			return
		}

		var nextDest axes.PosValues
		for i := 0; i < axes.MaxAxes; i++ {
			if bm.blockDelta.IsValid(i) {
				nextDest.Set(i, bm.lastCommanded.UnitsFromHome.Get(i)+bm.blockDelta.Get(i))
			}
		}
		bm.nextBlockIdx++
		if bm.nextBlockIdx >= bm.numBlocks {
			bm.numBlocks = 0
			nextDest = bm.targetPosition
		}

		bm.blockMotionArgs.AxisPos = nextDest
		bm.blockMotionArgs.MoreMovesComing = bm.numBlocks != 0

		if err := bm.AddToPlanner(bm.blockMotionArgs); err != nil {
			return
		}
		bm.motorEn.EnableMotors(true, false)
	}
}

// AddToPlanner converts a's target through the configured geometry and
// admits the resulting actuator move to the planner.
func (bm *BlockManager) AddToPlanner(a args.MotionArgs) error {
	if bm.geometry == nil {
		return ErrNoGeometry
	}

	actuatorCoords, _ := bm.geometry.PtToActuator(a.AxisPos, bm.lastCommanded, bm.axesParams, a.AllowOutOfBounds || bm.allowAllOutOfBounds)

	if err := bm.planner.MoveToRamped(a, actuatorCoords, &bm.lastCommanded); err != nil {
		return errors.Wrap(err, "addToPlanner")
	}
	return nil
}

// PreProcessCoords runs the configured geometry's position-dependent
// coordinate adjustment (a no-op for XYZ).
func (bm *BlockManager) PreProcessCoords(positions *axes.PosValues) {
	if bm.geometry == nil {
		return
	}
	bm.geometry.PreProcessCoords(positions, bm.axesParams)
}
