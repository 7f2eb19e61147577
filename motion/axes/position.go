package axes

// Position is the full machine state tracked between moves: the current
// position in axis units, the equivalent step counts, the last set of
// endstop checks observed, and which axes have been homed. The
// homing-required rejection reads HomedAxes (via IsHomed), not
// LastEndstops.
type Position struct {
	UnitsFromHome PosValues
	StepsFromHome ParamVals[int32]
	LastEndstops  EndstopChecks
	HomedAxes     [MaxAxes]bool
}

// NewPosition returns a Position with every axis at zero and unhomed.
func NewPosition() Position {
	return Position{}
}

// IsHomed reports whether every configured axis (0..numAxes) has been
// homed at least once.
func (p Position) IsHomed(numAxes int) bool {
	for i := 0; i < numAxes && i < MaxAxes; i++ {
		if !p.HomedAxes[i] {
			return false
		}
	}
	return true
}

// SetHomed marks axisIdx homed and sets its position to homeUnits units and
// homeSteps steps from home.
func (p *Position) SetHomed(axisIdx int, homeUnits float32, homeSteps int32) {
	if axisIdx < 0 || axisIdx >= MaxAxes {
		return
	}
	p.HomedAxes[axisIdx] = true
	p.UnitsFromHome.Set(axisIdx, homeUnits)
	p.StepsFromHome.Set(axisIdx, homeSteps)
}

// Apply advances the tracked position by a completed block's per-axis step
// deltas, converting back to units via the supplied per-axis steps-per-unit.
func (p *Position) Apply(stepDeltas ParamVals[int32], stepsPerUnit ParamVals[float32]) {
	for i := 0; i < MaxAxes; i++ {
		d := stepDeltas.Get(i)
		if d == 0 {
			continue
		}
		newSteps := p.StepsFromHome.Get(i) + d
		p.StepsFromHome.Set(i, newSteps)
		spu := stepsPerUnit.Get(i)
		if spu != 0 {
			p.UnitsFromHome.Set(i, float32(newSteps)/spu)
		}
	}
}
