package ui

import "fmt"

type action int

const (
	actionNone action = iota
	actionTare
	actionCalibrate
	actionDispense
)

func (a action) String() string {
	switch a {
	case actionTare:
		return "Tare"
	case actionCalibrate:
		return "Calibrate"
	case actionDispense:
		return "Dispense"
	default:
		return "None"
	}
}

// status is the text shown after an action was sent. Tare and calibrate take a few seconds on the
// board, during which readings stop
func (a action) status(ml int) string {
	switch a {
	case actionTare:
		return "Taring..."
	case actionCalibrate:
		return "Calibrating, follow the display"
	case actionDispense:
		return fmt.Sprintf("Dispensing %d ml", ml)
	default:
		return "Ready"
	}
}
