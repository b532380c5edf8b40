package controller

import "time"

// Delays of the display choreography. Nothing is sensed in between, the operator has these long to act
const (
	promptDelay   = 3000 * time.Millisecond
	waitDelay     = 1000 * time.Millisecond
	commitDelay   = 100 * time.Millisecond
	doneDelay     = 1000 * time.Millisecond
	tareSettle    = 2000 * time.Millisecond
	tareDoneDelay = 2000 * time.Millisecond
)

// DispenseMode selects what the DISPENSING state does
type DispenseMode int

const (
	// DispenseModeLiteral leaves DISPENSING immediately without driving the pump or checking the
	// delivered volume, so the machine stays in DISPENSING and nothing is dispensed
	DispenseModeLiteral DispenseMode = iota
	// DispenseModeMetered drives the pump and stops once the flow sensor reports the requested volume
	DispenseModeMetered
)

func (m DispenseMode) String() string {
	switch m {
	case DispenseModeLiteral:
		return "literal"
	case DispenseModeMetered:
		return "metered"
	default:
		return "unknown"
	}
}

// Config has the constants of the scale board
type Config struct {
	// ReferenceWeight is the known weight placed on the scale during calibration, in grams
	ReferenceWeight float32
	// Samples is the number of conversions averaged for every reading and tare
	Samples uint8
	// MlPerPulse is the volume of one flow sensor pulse
	MlPerPulse float64

	DispenseMode DispenseMode

	WeighingPeriod   time.Duration
	WeighingThrottle time.Duration
	DispensingPeriod time.Duration
	IdleDelay        time.Duration
}

// DefaultConfig returns the values the appliance ships with
func DefaultConfig() Config {
	return Config{
		ReferenceWeight:  50.99,
		Samples:          255,
		MlPerPulse:       0.022,
		DispenseMode:     DispenseModeLiteral,
		WeighingPeriod:   500 * time.Millisecond,
		WeighingThrottle: 200 * time.Millisecond,
		DispensingPeriod: 50 * time.Millisecond,
		IdleDelay:        250 * time.Millisecond,
	}
}
