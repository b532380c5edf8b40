package controller

import (
	"math"
	"sync/atomic"

	"github.com/calvinmclean/dispenser"
)

// WeighingState is the state of the weighing machine
type WeighingState int32

const (
	WeighingStateCalibrating WeighingState = iota
	WeighingStateTaring
	WeighingStateWeighing
)

func (s WeighingState) String() string {
	switch s {
	case WeighingStateCalibrating:
		return "Calibrating"
	case WeighingStateTaring:
		return "Taring"
	case WeighingStateWeighing:
		return "Weighing"
	default:
		return "Unknown"
	}
}

// DispensingState is the state of the dispensing machine
type DispensingState int32

const (
	DispensingStateIdle DispensingState = iota
	DispensingStateDispensing
	DispensingStateStopping
)

func (s DispensingState) String() string {
	switch s {
	case DispensingStateIdle:
		return "Idle"
	case DispensingStateDispensing:
		return "Dispensing"
	case DispensingStateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// State is shared by the weighing task, the dispensing task, the command loop and the flow interrupt.
// Every field is written with a single atomic store: concurrent writers still race and the last write
// wins, but no reader ever sees a torn value
type State struct {
	weighing   atomic.Int32
	dispensing atomic.Int32

	// requested is the float64 bit pattern of the requested volume in ml
	requested atomic.Uint64
	// flow is the float64 bit pattern of the volume dispensed so far in ml
	flow atomic.Uint64

	factor      atomic.Uint32
	weight      atomic.Uint32
	temperature atomic.Uint32

	pulses PulseCounter

	// guardCalibration drops dispense requests while calibrating
	guardCalibration bool

	logger Logger
}

// NewState creates a State in WEIGHING and IDLE with a scale factor of 1
func NewState(options ...func(*State)) *State {
	s := &State{logger: &NullLogger{}}
	s.weighing.Store(int32(WeighingStateWeighing))
	s.dispensing.Store(int32(DispensingStateIdle))
	s.factor.Store(math.Float32bits(1))

	for _, option := range options {
		option(s)
	}
	return s
}

// WithCalibrationGuard makes Dispense a no-op while the weighing machine is calibrating
func WithCalibrationGuard() func(*State) {
	return func(s *State) {
		s.guardCalibration = true
	}
}

// WithStateLogger sets the Logger used for commands
func WithStateLogger(l Logger) func(*State) {
	return func(s *State) {
		s.logger = l
	}
}

func (s *State) WeighingState() WeighingState {
	return WeighingState(s.weighing.Load())
}

func (s *State) SetWeighingState(ws WeighingState) {
	s.weighing.Store(int32(ws))
}

func (s *State) DispensingState() DispensingState {
	return DispensingState(s.dispensing.Load())
}

func (s *State) SetDispensingState(ds DispensingState) {
	s.dispensing.Store(int32(ds))
}

// RequestedVolume is the target of the current dispensing cycle in ml
func (s *State) RequestedVolume() float64 {
	return math.Float64frombits(s.requested.Load())
}

func (s *State) SetRequestedVolume(ml float64) {
	s.requested.Store(math.Float64bits(ml))
}

// Flow is the volume dispensed in the current cycle in ml
func (s *State) Flow() float64 {
	return math.Float64frombits(s.flow.Load())
}

func (s *State) SetFlow(ml float64) {
	s.flow.Store(math.Float64bits(ml))
}

// ScaleFactor is the calibration factor in use
func (s *State) ScaleFactor() float32 {
	return math.Float32frombits(s.factor.Load())
}

func (s *State) SetScaleFactor(f float32) {
	s.factor.Store(math.Float32bits(f))
}

// Weight is the weight measured in the last weighing iteration
func (s *State) Weight() float32 {
	return math.Float32frombits(s.weight.Load())
}

func (s *State) SetWeight(w float32) {
	s.weight.Store(math.Float32bits(w))
}

// Temperature is the temperature measured in the last weighing iteration
func (s *State) Temperature() float32 {
	return math.Float32frombits(s.temperature.Load())
}

func (s *State) SetTemperature(t float32) {
	s.temperature.Store(math.Float32bits(t))
}

// Reading returns the last weight and temperature
func (s *State) Reading() dispenser.Reading {
	return dispenser.Reading{Weight: s.Weight(), Temperature: s.Temperature()}
}

// Pulses is the flow sensor counter
func (s *State) Pulses() *PulseCounter {
	return &s.pulses
}

// Tare requests a tare from the weighing machine, whatever it is doing
func (s *State) Tare() {
	s.logger.Debug("command: tare")
	s.SetWeighingState(WeighingStateTaring)
}

// Calibrate requests a calibration from the weighing machine, whatever it is doing
func (s *State) Calibrate() {
	s.logger.Debug("command: calibrate")
	s.SetWeighingState(WeighingStateCalibrating)
}

// Dispense sets the requested volume and starts dispensing. A cycle in progress is not stopped, it
// simply continues towards the new target
func (s *State) Dispense(ml float64) {
	if s.guardCalibration && s.WeighingState() == WeighingStateCalibrating {
		s.logger.Warnf("dropping dispense of %v ml while calibrating", ml)
		return
	}
	s.logger.Debugf("command: dispense %v ml", ml)
	s.SetRequestedVolume(ml)
	s.SetDispensingState(DispensingStateDispensing)
}
