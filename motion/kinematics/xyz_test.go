package kinematics

import (
	"testing"

	"multistepper/motion/axes"
)

func newTestAxesParams() *axes.AxesParams {
	return axes.NewAxesParams([]axes.AxisParams{
		{Name: "x", StepsPerRot: 200, UnitsPerRot: 40, MaxRPM: 3000, MaxVelUnitsPerS: 100, MaxAccelUnitsPerS2: 1000, IsPrimary: true},
		{Name: "y", StepsPerRot: 200, UnitsPerRot: 40, MaxRPM: 3000, MaxVelUnitsPerS: 100, MaxAccelUnitsPerS2: 1000, IsPrimary: true},
		{Name: "z", StepsPerRot: 200, UnitsPerRot: 8, MaxRPM: 600, MaxVelUnitsPerS: 10, MaxAccelUnitsPerS2: 100, IsPrimary: true},
	})
}

func TestXYZPtToActuator(t *testing.T) {
	ap := newTestAxesParams()
	g := NewXYZ()

	pt := axes.NewPosValues(10, 20, 1)
	steps, valid := g.PtToActuator(pt, axes.NewPosition(), ap, false)
	if !valid {
		t.Fatal("expected in-bounds point to report valid")
	}
	// x: stepsPerUnit = 200/40 = 5 -> 10*5 = 50
	if got := steps.Get(0); got != 50 {
		t.Errorf("expected x steps 50, got %d", got)
	}
	// y: 20*5 = 100
	if got := steps.Get(1); got != 100 {
		t.Errorf("expected y steps 100, got %d", got)
	}
	// z: stepsPerUnit = 200/8 = 25 -> 1*25 = 25
	if got := steps.Get(2); got != 25 {
		t.Errorf("expected z steps 25, got %d", got)
	}
}

func TestXYZRoundTrip(t *testing.T) {
	ap := newTestAxesParams()
	g := NewXYZ()

	pt := axes.NewPosValues(12.4, -3.2, 0.8)
	steps, _ := g.PtToActuator(pt, axes.NewPosition(), ap, true)
	back := g.ActuatorToPt(steps, axes.NewPosition(), ap)

	for i := 0; i < axes.MaxAxes; i++ {
		want := pt.Get(i)
		got := back.Get(i)
		diff := want - got
		if diff < 0 {
			diff = -diff
		}
		ap := ap.GetAxis(i)
		// within one step
		tolerance := float32(1)
		if ap.StepsPerUnit != 0 {
			tolerance = 1 / ap.StepsPerUnit
		}
		if diff > tolerance {
			t.Errorf("axis %d: round trip diff %f exceeds one-step tolerance %f (want %f got %f)", i, diff, tolerance, want, got)
		}
	}
}

func TestXYZOutOfBoundsClampedWhenDisallowed(t *testing.T) {
	ap := axes.NewAxesParams([]axes.AxisParams{
		{Name: "x", StepsPerRot: 200, UnitsPerRot: 40, MaxRPM: 3000, MaxVelUnitsPerS: 100, MaxAccelUnitsPerS2: 1000, HasMaxVal: true, MaxVal: 50, IsPrimary: true},
	})
	g := NewXYZ()
	pt := axes.NewPosValues(999)
	_, valid := g.PtToActuator(pt, axes.NewPosition(), ap, false)
	if valid {
		t.Error("expected out-of-bounds point to report invalid when clamping is applied")
	}
}
