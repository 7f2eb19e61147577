// Package ramp implements the step-timer ISR (RampGenerator) that turns a
// prepared MotionBlock into step pulses with Bresenham interleaving across
// axes, plus the MotorEnabler idle-disable timer. Grounded on
// RampGenerator.cpp / RampGenerator.h and MotorEnabler.h.
package ramp

import (
	"go.uber.org/multierr"
)

// StepperDriver is the per-axis stepper-driver hook the ramp generator's
// ISR tick consumes: set_direction/step_start/step_end per spec §6.
type StepperDriver interface {
	SetDirection(positive, force bool)
	StepStart()
	StepEnd() bool
}

// GPIOPin is a single digital output pin — the minimal surface a stepper
// driver or the motor enabler needs to drive real hardware.
type GPIOPin interface {
	Set(active bool) error
}

// Stepper is a StepperDriver backed by a step pin and a direction pin. It
// owns no timing of its own: the ISR decides when to call StepStart, and
// StepEnd is called exactly one tick later to de-assert the pulse.
type Stepper struct {
	stepPin GPIOPin
	dirPin  GPIOPin

	dirPositive  bool
	dirSet       bool
	stepAsserted bool
}

// NewStepper returns a Stepper bound to stepPin/dirPin.
func NewStepper(stepPin, dirPin GPIOPin) *Stepper {
	return &Stepper{stepPin: stepPin, dirPin: dirPin}
}

// InitPins drives both pins to their idle state, aggregating any GPIO
// configuration errors via multierr so a caller sees every failing pin
// rather than just the first.
func (s *Stepper) InitPins() error {
	return multierr.Combine(
		s.stepPin.Set(false),
		s.dirPin.Set(false),
	)
}

// SetDirection implements StepperDriver. The direction pin is only
// re-written when the direction actually changes, unless force is set.
func (s *Stepper) SetDirection(positive, force bool) {
	if !force && s.dirSet && positive == s.dirPositive {
		return
	}
	s.dirPositive = positive
	s.dirSet = true
	s.dirPin.Set(positive)
}

// StepStart implements StepperDriver.
func (s *Stepper) StepStart() {
	s.stepPin.Set(true)
	s.stepAsserted = true
}

// StepEnd implements StepperDriver, returning whether a pulse was
// actually de-asserted this call.
func (s *Stepper) StepEnd() bool {
	if !s.stepAsserted {
		return false
	}
	s.stepPin.Set(false)
	s.stepAsserted = false
	return true
}
