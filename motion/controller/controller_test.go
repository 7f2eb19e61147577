package controller

import (
	"testing"

	"multistepper/core"
	"multistepper/motion/args"
	"multistepper/motion/axes"
	"multistepper/motion/config"
	"multistepper/motion/ramp"
)

type fakeGPIOPin struct{ level bool }

func (p *fakeGPIOPin) Set(active bool) error {
	p.level = active
	return nil
}

func testConfig() *config.MachineConfig {
	return &config.MachineConfig{
		Geometry:          "XYZ",
		JunctionDeviation: 0.05,
		Ramp:              config.RampConfig{TimerEnabled: true, TimerUs: 20, PipelineLen: 16},
		Axes: []config.AxisConfig{
			{Name: "x", Params: config.AxisParamsConfig{MaxVelUnitsPerS: 100, MaxAccelUnitsPerS2: 1000, StepsPerRot: 200, UnitsPerRot: 2, MaxRPM: 3000, IsPrimary: true, IsDominant: true}},
			{Name: "y", Params: config.AxisParamsConfig{MaxVelUnitsPerS: 100, MaxAccelUnitsPerS2: 1000, StepsPerRot: 200, UnitsPerRot: 2, MaxRPM: 3000, IsPrimary: true}},
		},
	}
}

func newController(t *testing.T, cfg *config.MachineConfig) (*Controller, *ramp.Stepper, *ramp.Stepper) {
	t.Helper()
	xStep, xDir := &fakeGPIOPin{}, &fakeGPIOPin{}
	yStep, yDir := &fakeGPIOPin{}, &fakeGPIOPin{}
	xDriver := ramp.NewStepper(xStep, xDir)
	yDriver := ramp.NewStepper(yStep, yDir)
	var drivers [axes.MaxAxes]ramp.StepperDriver
	drivers[0], drivers[1] = xDriver, yDriver
	var endstops [axes.MaxAxes]ramp.Endstop

	c, err := New(cfg, drivers, endstops, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, xDriver, yDriver
}

// runToCompletion ticks the ramp generator (servicing the splitter first,
// as the real task loop would) until the pipeline drains or maxTicks is
// exceeded. Once the pipeline drains it ticks once more so the final step
// pulse ends: the generator counts a step when its pulse ends.
func runToCompletion(c *Controller, maxTicks int) {
	gen := c.RampGenerator()
	for i := 0; i < maxTicks; i++ {
		c.Service()
		gen.Tick()
		if c.Pipeline().Count() == 0 {
			gen.Tick()
			return
		}
	}
}

func TestControllerStraightMoveStepsMasterAxisOnly(t *testing.T) {
	c, _, _ := newController(t, testConfig())
	c.SetCurPositionAsHome(true, 0)

	a := args.NewMotionArgs()
	a.SetAxisPosition(0, 50)
	if err := c.MoveTo(a); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}

	runToCompletion(c, 2_000_000)

	total := c.RampGenerator().TotalStepPosition()
	if total.Get(0) != 5000 {
		t.Fatalf("x steps = %d, want 5000", total.Get(0))
	}
	if total.Get(1) != 0 {
		t.Fatalf("y steps = %d, want 0", total.Get(1))
	}
	if c.Pipeline().Count() != 0 {
		t.Fatalf("expected pipeline drained, still has %d blocks", c.Pipeline().Count())
	}
}

func TestControllerLinearMoveConstantRate(t *testing.T) {
	c, _, _ := newController(t, testConfig())
	c.SetCurPositionAsHome(true, 0)

	a := args.NewMotionArgs()
	a.LinearNoRamp = true
	a.UnitsAreSteps = true
	a.SetAxisPosition(0, 1000)
	a.TargetSpeedValid = true
	a.TargetSpeed = 500

	if err := c.MoveTo(a); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}

	runToCompletion(c, 2_000_000)

	total := c.RampGenerator().TotalStepPosition()
	if total.Get(0) != 1000 {
		t.Fatalf("x steps = %d, want 1000", total.Get(0))
	}
}

func TestControllerMoveToRejectsWhileSplitterBusy(t *testing.T) {
	cfg := testConfig()
	cfg.BlockDistMM = 1
	cfg.Ramp.PipelineLen = 3
	c, _, _ := newController(t, cfg)
	c.SetCurPositionAsHome(true, 0)

	a := args.NewMotionArgs()
	a.SetAxisPosition(0, 10)
	if err := c.MoveTo(a); err != nil {
		t.Fatalf("first MoveTo: %v", err)
	}
	if !c.BlockManager().IsBusy() {
		t.Fatalf("expected splitter still busy after filling a small pipeline")
	}

	a2 := args.NewMotionArgs()
	a2.SetAxisPosition(0, 20)
	if err := c.MoveTo(a2); err != ErrBusy {
		t.Fatalf("MoveTo while busy = %v, want ErrBusy", err)
	}
}

func TestControllerClearQueueRequiresDrainOrPause(t *testing.T) {
	c, _, _ := newController(t, testConfig())
	c.SetCurPositionAsHome(true, 0)

	a := args.NewMotionArgs()
	a.SetAxisPosition(0, 50)
	if err := c.MoveTo(a); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	c.RampGenerator().Tick() // marks the block executing; pipeline still non-empty

	if err := c.ClearQueue(); err != ErrQueueNotDrained {
		t.Fatalf("ClearQueue while running = %v, want ErrQueueNotDrained", err)
	}

	c.Stop()
	if err := c.ClearQueue(); err != nil {
		t.Fatalf("ClearQueue after Stop: %v", err)
	}
	if c.Pipeline().Count() != 0 {
		t.Fatalf("expected pipeline empty after Stop")
	}
}

// TestControllerRegisterCommandsDispatchesThroughRegistry exercises
// RegisterCommands' queue_move and stop_motion handlers the way a
// command-parsing collaborator would: by decoding a binary frame and
// dispatching it through a core.CommandRegistry rather than calling
// MoveTo/Stop directly.
func TestControllerRegisterCommandsDispatchesThroughRegistry(t *testing.T) {
	c, _, _ := newController(t, testConfig())
	c.SetCurPositionAsHome(true, 0)

	reg := core.NewCommandRegistry()
	c.RegisterCommands(reg)

	a := args.NewMotionArgs()
	a.SetAxisPosition(0, 50)
	payload := args.Encode(a)

	// Register dedups by name and returns the existing ID, letting the
	// test recover the IDs RegisterCommands chose without it exposing them.
	queueMoveID := reg.Register("queue_move", "", nil)
	if err := reg.Dispatch(queueMoveID, &payload); err != nil {
		t.Fatalf("dispatch queue_move: %v", err)
	}
	if c.Pipeline().Count() == 0 {
		t.Fatalf("expected queue_move dispatch to admit a block")
	}

	runToCompletion(c, 2_000_000)
	if c.Pipeline().Count() != 0 {
		t.Fatalf("expected pipeline drained after the dispatched move, still has %d blocks", c.Pipeline().Count())
	}

	stopID := reg.Register("stop_motion", "", nil)
	var empty []byte
	if err := reg.Dispatch(stopID, &empty); err != nil {
		t.Fatalf("dispatch stop_motion: %v", err)
	}
	if !c.RampGenerator().IsPaused() {
		t.Fatalf("expected stop_motion dispatch to pause the ramp generator")
	}
}

func TestControllerStatusAccessors(t *testing.T) {
	c, _, _ := newController(t, testConfig())
	c.SetCurPositionAsHome(true, 0)

	if !c.LastPosValid() {
		t.Fatalf("expected last pos valid after homing all axes")
	}
	if got := c.StreamGetQueueSlots(); got == 0 {
		t.Fatalf("expected free pipeline slots on a fresh controller")
	}

	a := args.NewMotionArgs()
	a.SetAxisPosition(0, 50)
	if err := c.MoveTo(a); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	runToCompletion(c, 2_000_000)

	pos := c.GetLastPos()
	if pos.Get(0) != 50 {
		t.Fatalf("GetLastPos().Get(0) = %v, want 50", pos.Get(0))
	}
}
