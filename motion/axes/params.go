package axes

// AxisParams holds the static and derived per-axis configuration used by
// the planner and the ramp generator. StepsPerUnit and MaxStepRatePerS are
// derived once at configuration time so the ISR tick never divides.
type AxisParams struct {
	Name string

	StepsPerRot float32
	UnitsPerRot float32
	MaxRPM      float32

	MaxVelUnitsPerS   float32
	MinVelUnitsPerS   float32
	MaxAccelUnitsPerS2 float32

	HasMinVal bool
	MinVal    float32
	HasMaxVal bool
	MaxVal    float32

	HomeOffsetVal float32
	HomeOffSteps  int32

	IsPrimary   bool
	IsDominant  bool
	IsServo     bool

	// derived, computed by Finalize()
	StepsPerUnit    float32
	MaxStepRatePerS float32
}

// Finalize computes the derived fields from the configured ones. Must be
// called once after all static fields are set and before the axis is used
// by the planner or ramp generator.
func (a *AxisParams) Finalize() {
	if a.UnitsPerRot != 0 {
		a.StepsPerUnit = a.StepsPerRot / a.UnitsPerRot
	}
	a.MaxStepRatePerS = a.MaxRPM * a.StepsPerRot / 60
}

// ClampVal clamps val to [MinVal, MaxVal] when those bounds are set, and
// reports whether clamping changed the value.
func (a AxisParams) ClampVal(val float32) (float32, bool) {
	out := val
	if a.HasMinVal && out < a.MinVal {
		out = a.MinVal
	}
	if a.HasMaxVal && out > a.MaxVal {
		out = a.MaxVal
	}
	return out, out != val
}

// InBounds reports whether val falls within [MinVal, MaxVal]; axes without
// bounds configured are always in bounds.
func (a AxisParams) InBounds(val float32) bool {
	if a.HasMinVal && val < a.MinVal {
		return false
	}
	if a.HasMaxVal && val > a.MaxVal {
		return false
	}
	return true
}

// AxesParams is an ordered collection of per-axis configuration, with a
// cached master-axis index and its max velocity/acceleration used by the
// planner's junction-deviation and feedrate-resolution math.
type AxesParams struct {
	axes       [MaxAxes]AxisParams
	numAxes    int
	masterAxis int
}

// NewAxesParams builds an AxesParams from an ordered list of axes (up to
// MaxAxes), finalizes each axis's derived fields, and elects the master
// axis.
func NewAxesParams(axes []AxisParams) *AxesParams {
	ap := &AxesParams{}
	for i := 0; i < len(axes) && i < MaxAxes; i++ {
		axes[i].Finalize()
		ap.axes[i] = axes[i]
		ap.numAxes++
	}
	ap.SetMasterAxis(0)
	return ap
}

// MasterMaxVelUnitsPerS returns the master axis's max velocity.
func (ap *AxesParams) MasterMaxVelUnitsPerS() float32 {
	return ap.GetAxis(ap.masterAxis).MaxVelUnitsPerS
}

// MasterMaxAccelUnitsPerS2 returns the master axis's max acceleration.
func (ap *AxesParams) MasterMaxAccelUnitsPerS2() float32 {
	return ap.GetAxis(ap.masterAxis).MaxAccelUnitsPerS2
}

// MasterMaxStepRatePerS returns the master axis's cached max step rate.
func (ap *AxesParams) MasterMaxStepRatePerS() float32 {
	return ap.GetAxis(ap.masterAxis).MaxStepRatePerS
}

// NumAxes returns the number of configured axes.
func (ap *AxesParams) NumAxes() int {
	return ap.numAxes
}

// GetAxis returns the configuration for axisIdx. An out-of-range index
// returns the zero-value AxisParams rather than panicking, matching the
// original firmware's getter behavior.
func (ap *AxesParams) GetAxis(axisIdx int) AxisParams {
	if axisIdx < 0 || axisIdx >= ap.numAxes {
		return AxisParams{}
	}
	return ap.axes[axisIdx]
}

// SetAxis updates the configuration for axisIdx in place; out-of-range
// indices are ignored.
func (ap *AxesParams) SetAxis(axisIdx int, params AxisParams) {
	if axisIdx < 0 || axisIdx >= ap.numAxes {
		return
	}
	ap.axes[axisIdx] = params
}

// MasterAxisIdx returns the elected master axis index.
func (ap *AxesParams) MasterAxisIdx() int {
	return ap.masterAxis
}

// SetMasterAxis elects the master axis: the first axis marked Dominant,
// else the first marked Primary, else fallbackIdx if valid, else 0.
func (ap *AxesParams) SetMasterAxis(fallbackIdx int) {
	for i := 0; i < ap.numAxes; i++ {
		if ap.axes[i].IsDominant {
			ap.masterAxis = i
			return
		}
	}
	for i := 0; i < ap.numAxes; i++ {
		if ap.axes[i].IsPrimary {
			ap.masterAxis = i
			return
		}
	}
	if fallbackIdx >= 0 && fallbackIdx < ap.numAxes {
		ap.masterAxis = fallbackIdx
		return
	}
	ap.masterAxis = 0
}

// PrimaryMask returns a per-axis mask of which configured axes are marked
// IsPrimary, for use with PosValues.Distance's include mask.
func (ap *AxesParams) PrimaryMask() [MaxAxes]bool {
	var mask [MaxAxes]bool
	for i := 0; i < ap.numAxes; i++ {
		mask[i] = ap.axes[i].IsPrimary
	}
	return mask
}

// PtInBounds checks pt against every configured axis's [MinVal, MaxVal].
// When correctInPlace is true, out-of-bounds values are clamped in place.
// The return is true iff no axis needed clamping, in both modes.
func (ap *AxesParams) PtInBounds(pt *PosValues, correctInPlace bool) bool {
	anyOutOfBounds := false
	for i := 0; i < ap.numAxes; i++ {
		if !pt.IsValid(i) {
			continue
		}
		v := pt.Get(i)
		if ap.axes[i].InBounds(v) {
			continue
		}
		anyOutOfBounds = true
		if correctInPlace {
			clamped, _ := ap.axes[i].ClampVal(v)
			pt.Set(i, clamped)
		}
	}
	return !anyOutOfBounds
}
