package planner

import (
	"testing"

	"multistepper/motion/args"
	"multistepper/motion/axes"
	"multistepper/motion/pipeline"
)

func newTestAxesParams() *axes.AxesParams {
	return axes.NewAxesParams([]axes.AxisParams{
		{Name: "x", StepsPerRot: 200, UnitsPerRot: 40, MaxRPM: 3000, MaxVelUnitsPerS: 100, MaxAccelUnitsPerS2: 1000, IsPrimary: true},
		{Name: "y", StepsPerRot: 200, UnitsPerRot: 40, MaxRPM: 3000, MaxVelUnitsPerS: 100, MaxAccelUnitsPerS2: 1000, IsPrimary: true},
	})
}

const testStepGenPeriodNs = 1_000_000

func TestMoveToRampedStraightMove(t *testing.T) {
	ap := newTestAxesParams()
	pl := pipeline.New(8)
	p := New(ap, pl, testStepGenPeriodNs, 0.05)

	cur := axes.NewPosition()
	a := args.NewMotionArgs()
	a.SetAxisPosition(0, 10)

	dest := axes.ParamVals[int32]{}
	dest.Set(0, 50) // 10 units * stepsPerUnit(5)

	if err := p.MoveToRamped(a, dest, &cur); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.Count() != 1 {
		t.Fatalf("expected 1 queued block, got %d", pl.Count())
	}
	if cur.StepsFromHome.Get(0) != 50 {
		t.Errorf("expected steps-from-home 50, got %d", cur.StepsFromHome.Get(0))
	}
	b := pl.PeekGet()
	if b == nil {
		t.Fatal("expected a block to peek")
	}
	if !b.CanExecute {
		t.Error("expected first unfollowed block to be executable")
	}
}

func TestMoveToRampedRejectsZeroMove(t *testing.T) {
	ap := newTestAxesParams()
	pl := pipeline.New(8)
	p := New(ap, pl, testStepGenPeriodNs, 0.05)

	cur := axes.NewPosition()
	a := args.NewMotionArgs()
	var dest axes.ParamVals[int32]

	if err := p.MoveToRamped(a, dest, &cur); err != ErrNoMove {
		t.Fatalf("expected ErrNoMove, got %v", err)
	}
	if pl.Count() != 0 {
		t.Errorf("expected no block queued, got %d", pl.Count())
	}
}

func TestMoveToRampedCornerReducesJunctionSpeed(t *testing.T) {
	ap := newTestAxesParams()
	pl := pipeline.New(8)
	p := New(ap, pl, testStepGenPeriodNs, 0.05)

	cur := axes.NewPosition()

	a1 := args.NewMotionArgs()
	a1.SetAxisPosition(0, 10)
	a1.SetAxisPosition(1, 0)
	dest1 := axes.ParamVals[int32]{}
	dest1.Set(0, 50)
	if err := p.MoveToRamped(a1, dest1, &cur); err != nil {
		t.Fatalf("first move: unexpected error: %v", err)
	}

	a2 := args.NewMotionArgs()
	a2.SetAxisPosition(0, 10)
	a2.SetAxisPosition(1, 10)
	dest2 := axes.ParamVals[int32]{}
	dest2.Set(0, 50)
	dest2.Set(1, 50)
	if err := p.MoveToRamped(a2, dest2, &cur); err != nil {
		t.Fatalf("second move: unexpected error: %v", err)
	}

	second := pl.PeekNthFromPut(0)
	if second == nil {
		t.Fatal("expected the newest block to be peekable")
	}
	if second.MaxEntrySpeedMMPS <= 0 || second.MaxEntrySpeedMMPS >= 100 {
		t.Errorf("expected a 90-degree corner to clamp entry speed below the unclamped max, got %f", second.MaxEntrySpeedMMPS)
	}
}

func TestMoveToLinearBasic(t *testing.T) {
	ap := newTestAxesParams()
	pl := pipeline.New(8)
	p := New(ap, pl, testStepGenPeriodNs, 0.05)

	var cur axes.ParamVals[int32]
	a := args.NewMotionArgs()
	a.SetAxisPosition(0, 100)

	next, err := p.MoveToLinear(a, cur)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Get(0) != 100 {
		t.Errorf("expected steps-from-home 100, got %d", next.Get(0))
	}
	if pl.Count() != 1 {
		t.Errorf("expected 1 queued block, got %d", pl.Count())
	}
}

func TestMoveToLinearRejectsZeroMove(t *testing.T) {
	ap := newTestAxesParams()
	pl := pipeline.New(8)
	p := New(ap, pl, testStepGenPeriodNs, 0.05)

	var cur axes.ParamVals[int32]
	a := args.NewMotionArgs()

	if _, err := p.MoveToLinear(a, cur); err != ErrNoMove {
		t.Fatalf("expected ErrNoMove, got %v", err)
	}
}

func TestMoveToLinearBackpressure(t *testing.T) {
	ap := newTestAxesParams()
	pl := pipeline.New(2) // one usable slot
	p := New(ap, pl, testStepGenPeriodNs, 0.05)

	var cur axes.ParamVals[int32]
	a1 := args.NewMotionArgs()
	a1.SetAxisPosition(0, 10)
	cur, err := p.MoveToLinear(a1, cur)
	if err != nil {
		t.Fatalf("first add: unexpected error: %v", err)
	}

	a2 := args.NewMotionArgs()
	a2.SetAxisPosition(0, 20)
	if _, err := p.MoveToLinear(a2, cur); err != ErrPipelineFull {
		t.Fatalf("expected ErrPipelineFull, got %v", err)
	}
}
