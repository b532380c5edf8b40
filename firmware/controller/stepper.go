package controller

import (
	"time"

	"github.com/chewxy/math32"
)

// Pin is an output line
type Pin interface {
	Set(bool)
}

// Stepper spins a step/dir stepper driver at a continuous speed. It does not block: Loop must be called
// as often as possible and emits the next edge on the step line when it is due
type Stepper struct {
	step Pin
	dir  Pin

	speed     float32
	halfStep  time.Duration
	last      time.Duration
	level     bool
	position  int64
	direction int64
}

// NewStepper creates a stopped Stepper
func NewStepper(step, dir Pin) *Stepper {
	s := &Stepper{step: step, dir: dir, direction: 1}
	s.step.Set(false)
	s.dir.Set(true)
	return s
}

// Spin sets the speed in steps per second. Negative speeds turn backwards and zero stops the motor
func (s *Stepper) Spin(stepsPerSecond float32) {
	s.speed = stepsPerSecond
	if stepsPerSecond == 0 || math32.IsNaN(stepsPerSecond) {
		s.halfStep = 0
		return
	}

	forward := stepsPerSecond > 0
	s.dir.Set(forward)
	s.direction = 1
	if !forward {
		s.direction = -1
	}

	s.halfStep = time.Duration(float64(time.Second) / float64(math32.Abs(stepsPerSecond)) / 2)
	if s.halfStep <= 0 {
		s.halfStep = 1
	}
}

// Speed returns the speed set by Spin
func (s *Stepper) Speed() float32 {
	return s.speed
}

// Loop toggles the step line if half a step period passed. now is the time since boot
func (s *Stepper) Loop(now time.Duration) {
	if s.halfStep == 0 {
		if s.level {
			s.level = false
			s.step.Set(false)
		}
		return
	}
	if now-s.last < s.halfStep {
		return
	}

	s.level = !s.level
	s.step.Set(s.level)
	if s.level {
		s.position += s.direction
	}
	s.last = now
}

// Position returns the number of steps taken, forward steps counting positive
func (s *Stepper) Position() int64 {
	return s.position
}
