// Package config loads the JSON configuration for a motion-control core
// instance: geometry selection, splitter/junction-deviation tuning, the
// ramp generator and motor-enabler timing, and the per-axis AxisParams
// list. Grounded on standalone/config/config.go's Load + applyDefaults
// pattern.
package config

import (
	"encoding/json"

	"github.com/pkg/errors"

	"multistepper/motion/axes"
	"multistepper/motion/kinematics"
)

// ErrUnknownGeometry is returned when Geometry names a kinematics this
// build does not register.
var ErrUnknownGeometry = errors.New("unknown geometry")

// ErrZeroAcceleration is returned when the elected master axis's
// configured acceleration resolves to zero. The planner's junction-
// deviation math and MotionBlock.PrepareForStepping both divide by it, so
// this is refused at load time rather than producing Inf/NaN at runtime.
var ErrZeroAcceleration = errors.New("master axis acceleration must be non-zero")

// ErrEmptyPipeline is returned when ramp.pipelineLen is negative. A zero
// pipelineLen cannot be told apart from an absent one after decoding, so it
// takes the default length of 100 and is not rejected.
var ErrEmptyPipeline = errors.New("pipeline length must be non-zero")

// AxisParamsConfig is the JSON shape of spec §3's AxisParams. MinVal and
// MaxVal are pointers so "not configured" (no bound) is distinguishable
// from a configured bound of zero.
type AxisParamsConfig struct {
	MaxVelUnitsPerS    float32  `json:"maxVelUnitsPerSec"`
	MinVelUnitsPerS    float32  `json:"minVelUnitsPerSec"`
	MaxAccelUnitsPerS2 float32  `json:"maxAccelUnitsPerSec2"`
	StepsPerRot        float32  `json:"stepsPerRot"`
	UnitsPerRot        float32  `json:"unitsPerRot"`
	MaxRPM             float32  `json:"maxRpm"`
	MinVal             *float32 `json:"minVal,omitempty"`
	MaxVal             *float32 `json:"maxVal,omitempty"`
	HomeOffsetVal      float32  `json:"homeOffsetVal"`
	HomeOffSteps       int32    `json:"homeOffSteps"`
	IsPrimary          bool     `json:"isPrimary"`
	IsDominant         bool     `json:"isDominant"`
	IsServo            bool     `json:"isServo"`
}

// AxisConfig is one entry of the top-level axes[] array.
type AxisConfig struct {
	Name   string           `json:"name"`
	Params AxisParamsConfig `json:"params"`
}

// RampConfig is the ramp.* section: timer enable/period and pipeline
// depth.
type RampConfig struct {
	TimerEnabled bool `json:"rampTimerEn"`
	TimerUs      int  `json:"rampTimerUs"`
	PipelineLen  int  `json:"pipelineLen"`
}

// MotorEnConfig is the motorEn.* section.
type MotorEnConfig struct {
	StepEnablePin   string  `json:"stepEnablePin"`
	StepEnableLevel bool    `json:"stepEnLev"`
	StepDisableSecs float32 `json:"stepDisableSecs"`
}

// MachineConfig is the full JSON configuration document for one motion
// core instance, enumerating every field of spec §6.
type MachineConfig struct {
	Geometry          string        `json:"geom"`
	BlockDistMM       float32       `json:"blockDist"`
	JunctionDeviation float32       `json:"junctionDeviation"`
	AllowOutOfBounds  bool          `json:"allowOutOfBounds"`
	HomeBeforeMove    bool          `json:"homeBeforeMove"`
	Ramp              RampConfig    `json:"ramp"`
	MotorEnable       MotorEnConfig `json:"motorEn"`
	Axes              []AxisConfig  `json:"axes"`
}

// Load parses data as JSON into a MachineConfig, applies documented
// defaults to unset fields, and rejects the configuration errors named in
// spec §7 (unknown geometry, negative pipeline length; a zero pipeline
// length is replaced by the default rather than rejected).
func Load(data []byte) (*MachineConfig, error) {
	var cfg MachineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode motion config")
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *MachineConfig) {
	if cfg.Geometry == "" {
		cfg.Geometry = "XYZ"
	}
	if cfg.JunctionDeviation == 0 {
		cfg.JunctionDeviation = 0.05
	}
	if cfg.Ramp.TimerUs == 0 {
		cfg.Ramp.TimerUs = 20
	}
	if cfg.Ramp.PipelineLen == 0 {
		cfg.Ramp.PipelineLen = 100
	}
}

func validate(cfg *MachineConfig) error {
	if _, err := BuildGeometry(cfg.Geometry); err != nil {
		return err
	}
	if cfg.Ramp.PipelineLen <= 0 {
		return ErrEmptyPipeline
	}
	return nil
}

// BuildGeometry returns the kinematics hook registered under name.
func BuildGeometry(name string) (kinematics.Kinematics, error) {
	switch name {
	case "XYZ", "":
		return kinematics.NewXYZ(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownGeometry, "geom=%q", name)
	}
}

// BuildAxesParams converts cfg's axes[] entries into an axes.AxesParams,
// electing the master axis and rejecting a zero master-axis acceleration
// per spec §4.4.3's documented load-time rejection.
func BuildAxesParams(cfg *MachineConfig) (*axes.AxesParams, error) {
	list := make([]axes.AxisParams, 0, len(cfg.Axes))
	for _, a := range cfg.Axes {
		p := axes.AxisParams{
			Name:               a.Name,
			StepsPerRot:        a.Params.StepsPerRot,
			UnitsPerRot:        a.Params.UnitsPerRot,
			MaxRPM:             a.Params.MaxRPM,
			MaxVelUnitsPerS:    a.Params.MaxVelUnitsPerS,
			MinVelUnitsPerS:    a.Params.MinVelUnitsPerS,
			MaxAccelUnitsPerS2: a.Params.MaxAccelUnitsPerS2,
			HomeOffsetVal:      a.Params.HomeOffsetVal,
			HomeOffSteps:       a.Params.HomeOffSteps,
			IsPrimary:          a.Params.IsPrimary,
			IsDominant:         a.Params.IsDominant,
			IsServo:            a.Params.IsServo,
		}
		if a.Params.MinVal != nil {
			p.HasMinVal = true
			p.MinVal = *a.Params.MinVal
		}
		if a.Params.MaxVal != nil {
			p.HasMaxVal = true
			p.MaxVal = *a.Params.MaxVal
		}
		list = append(list, p)
	}
	ap := axes.NewAxesParams(list)
	if ap.MasterMaxAccelUnitsPerS2() == 0 {
		return nil, ErrZeroAcceleration
	}
	return ap, nil
}

// StepGenPeriodNs returns the configured ramp-generator tick period in
// nanoseconds.
func (c *MachineConfig) StepGenPeriodNs() uint64 {
	return uint64(c.Ramp.TimerUs) * 1000
}
