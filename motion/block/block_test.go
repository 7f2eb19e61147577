package block

import (
	"testing"

	"multistepper/motion/axes"
)

func newTestAxesParams() *axes.AxesParams {
	return axes.NewAxesParams([]axes.AxisParams{
		{Name: "x", StepsPerRot: 200, UnitsPerRot: 40, MaxRPM: 3000, MaxVelUnitsPerS: 100, MaxAccelUnitsPerS2: 1000, IsPrimary: true},
	})
}

const testStepGenPeriodNs = 20_000 // 20us, spec's typical timer period

// TestPrepareForSteppingStraightMove exercises spec §8 scenario 1: a
// straight X move with full symmetric accel/decel.
func TestPrepareForSteppingStraightMove(t *testing.T) {
	ap := newTestAxesParams()

	var b MotionBlock
	b.StepsTotal.Set(0, 5000)
	b.AxisIdxMaxSteps = 0
	b.MoveDistPrimaryMM = 50 // 50 units moved, 5000 steps -> stepDistMM = 0.01
	b.RequestedVelocity = 100
	b.EntrySpeedMMPS = 0
	b.ExitSpeedMMPS = 0

	if !b.PrepareForStepping(ap, false, testStepGenPeriodNs) {
		t.Fatal("expected PrepareForStepping to succeed")
	}

	if b.InitialStepRatePerTTicks == 0 {
		t.Error("initial rate should reflect the MinStepRatePerS floor, not zero")
	}
	if b.StepsBeforeDecel == 0 || b.StepsBeforeDecel >= 5000 {
		t.Errorf("expected a nontrivial accel/decel split, got stepsBeforeDecel=%d", b.StepsBeforeDecel)
	}
	// Symmetric profile: entry=exit=0 means steps_accelerating == steps_decel.
	// The peak rate of 10000 steps/s at 1e5 steps/s^2 is reached after 500
	// steps and shed over the last 500, so deceleration starts near 4500.
	if diff := int32(b.StepsBeforeDecel) - 4500; diff < -5 || diff > 5 {
		t.Errorf("expected symmetric accel/decel split with decel starting near 4500, got %d", b.StepsBeforeDecel)
	}
	if b.MaxStepRatePerTTicks == 0 {
		t.Error("expected a nonzero peak step rate")
	}
}

func TestPrepareForSteppingLinearMode(t *testing.T) {
	ap := newTestAxesParams()

	var b MotionBlock
	b.StepsTotal.Set(0, 1000)
	b.AxisIdxMaxSteps = 0
	b.RequestedVelocity = 500 // steps/s in linear mode

	if !b.PrepareForStepping(ap, true, testStepGenPeriodNs) {
		t.Fatal("expected PrepareForStepping to succeed")
	}
	if b.InitialStepRatePerTTicks != b.MaxStepRatePerTTicks || b.MaxStepRatePerTTicks != b.FinalStepRatePerTTicks {
		t.Error("linear mode should hold a single constant rate throughout")
	}
	if b.AccStepsPerTTicksPerMS != 0 {
		t.Error("linear mode has no acceleration term")
	}
	if b.StepsBeforeDecel != 1000 {
		t.Errorf("linear mode never decelerates: expected stepsBeforeDecel=1000, got %d", b.StepsBeforeDecel)
	}
}

func TestPrepareForSteppingRejectsWhileExecuting(t *testing.T) {
	ap := newTestAxesParams()
	var b MotionBlock
	b.IsExecuting = true
	b.StepsTotal.Set(0, 100)
	b.AxisIdxMaxSteps = 0
	if b.PrepareForStepping(ap, true, testStepGenPeriodNs) {
		t.Error("must not mutate a block already owned by the ISR")
	}
}

func TestPrepareForSteppingRejectsZeroSteps(t *testing.T) {
	ap := newTestAxesParams()
	var b MotionBlock
	if b.PrepareForStepping(ap, true, testStepGenPeriodNs) {
		t.Error("a block with no master-axis steps has nothing to stage")
	}
}

func TestSetStepsToTargetTracksLargestMagnitude(t *testing.T) {
	var b MotionBlock
	b.SetStepsToTarget(0, 10)
	b.SetStepsToTarget(1, -50)
	b.SetStepsToTarget(2, 20)
	if b.AxisIdxMaxSteps != 1 {
		t.Errorf("expected axis 1 (magnitude 50) to be the max-steps axis, got %d", b.AxisIdxMaxSteps)
	}
}

func TestMaxAchievableSpeed(t *testing.T) {
	// v^2 = v0^2 + 2ad: from rest, a=2, d=4 -> v = sqrt(16) = 4.
	got := MaxAchievableSpeed(2, 0, 4)
	if got < 3.99 || got > 4.01 {
		t.Errorf("MaxAchievableSpeed(2,0,4) = %v, want ~4", got)
	}
}

func TestMinStepRatePerTTicks(t *testing.T) {
	v := MinStepRatePerTTicks(testStepGenPeriodNs)
	if v == 0 || v > TTicks {
		t.Errorf("MinStepRatePerTTicks = %v, want in (0, TTicks]", v)
	}
}
