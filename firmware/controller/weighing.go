package controller

import (
	"io"

	"github.com/calvinmclean/dispenser"
)

// WeighingMachine runs the scale: it reports weight and temperature while WEIGHING and performs the timed
// TARING and CALIBRATING sequences on request
type WeighingMachine struct {
	state       *State
	scale       *LoadCell
	thermometer Thermometer
	display     Display
	transport   io.Writer
	calibration *CalibrationStore

	cfg    Config
	clock  Clock
	logger Logger

	// adcReading is the raw value measured against the reference weight in the last calibration
	adcReading float64
	buf        []byte
}

// NewWeighingMachine creates a WeighingMachine. Functional options can replace the Clock and Logger
func NewWeighingMachine(
	state *State,
	scale *LoadCell,
	thermometer Thermometer,
	display Display,
	transport io.Writer,
	calibration *CalibrationStore,
	cfg Config,
	options ...func(*WeighingMachine),
) *WeighingMachine {
	m := &WeighingMachine{
		state:       state,
		scale:       scale,
		thermometer: thermometer,
		display:     display,
		transport:   transport,
		calibration: calibration,
		cfg:         cfg,
		clock:       SystemClock{},
		logger:      &NullLogger{},
		buf:         make([]byte, 0, 32),
	}

	for _, option := range options {
		option(m)
	}
	return m
}

// WithWeighingClock sets the Clock used for delays
func WithWeighingClock(c Clock) func(*WeighingMachine) {
	return func(m *WeighingMachine) {
		m.clock = c
	}
}

// WithWeighingLogger sets the Logger
func WithWeighingLogger(l Logger) func(*WeighingMachine) {
	return func(m *WeighingMachine) {
		m.logger = l
	}
}

// Begin loads the persisted scale factor and tares. A missing or unusable factor falls back to 1
func (m *WeighingMachine) Begin() {
	factor, err := m.calibration.Load()
	if err != nil {
		m.logger.Errorf("error loading calibration: %v", err)
	}
	if !ValidFactor(factor) {
		m.logger.Warnf("stored scale factor %v is not usable, using 1", factor)
		factor = 1
	}

	m.applyFactor(factor)
	m.tareScale()
}

// Step runs the body of the current state once
func (m *WeighingMachine) Step() {
	switch m.state.WeighingState() {
	case WeighingStateCalibrating:
		m.calibrate()
	case WeighingStateWeighing:
		m.weigh()
	case WeighingStateTaring:
		m.tare()
	}
}

// LastCalibrationReading returns the raw value measured against the reference weight
func (m *WeighingMachine) LastCalibrationReading() float64 {
	return m.adcReading
}

func (m *WeighingMachine) calibrate() {
	m.logger.Info("calibrating")

	m.display.SetCursor(3, 0)
	m.display.Print("Calibrando")
	m.display.SetCursor(4, 1)
	m.display.Print("Balanza")
	m.clock.Sleep(promptDelay)

	_, err := m.scale.Read()
	if err != nil {
		m.logger.Debugf("error reading scale: %v", err)
	}
	_ = m.scale.SetScale(1)
	m.tareScale()

	m.display.Clear()
	m.display.SetCursor(1, 0)
	m.display.Print("Peso referencia:")
	m.display.SetCursor(1, 1)
	m.display.Print(dispenser.FormatFloat(m.cfg.ReferenceWeight))
	m.display.Print(" g")
	m.clock.Sleep(promptDelay)

	m.display.Clear()
	m.display.SetCursor(1, 0)
	m.display.Print("Ponga el peso")
	m.display.SetCursor(1, 1)
	m.display.Print("de referencia")
	m.clock.Sleep(promptDelay)

	m.display.Clear()
	m.display.SetCursor(1, 0)
	m.display.Print("Espere")
	m.clock.Sleep(waitDelay)

	m.adcReading, err = m.scale.Value(m.cfg.Samples)
	if err != nil {
		m.logger.Errorf("error reading reference weight: %v", err)
	}

	factor := float32(m.adcReading) / m.cfg.ReferenceWeight
	if ValidFactor(factor) {
		err = m.calibration.Save(factor)
		if err != nil {
			m.logger.Errorf("error saving calibration: %v", err)
		}
	} else {
		m.logger.Errorf("calibration produced unusable factor %v, keeping %v", factor, m.state.ScaleFactor())
		factor = m.state.ScaleFactor()
	}
	m.clock.Sleep(commitDelay)

	m.display.Clear()
	m.display.SetCursor(1, 0)
	m.display.Print("Retire el peso")
	m.display.SetCursor(1, 1)
	m.display.Print("de referencia")
	m.clock.Sleep(promptDelay)

	m.display.Clear()
	m.display.SetCursor(5, 0)
	m.display.Print("Listo!")
	m.clock.Sleep(doneDelay)
	m.display.Clear()

	m.applyFactor(factor)
	m.tareScale()

	m.logger.Infof("calibrated with factor %v", factor)
	m.state.SetWeighingState(WeighingStateWeighing)
}

func (m *WeighingMachine) weigh() {
	weight, err := m.scale.Units(m.cfg.Samples)
	if err != nil {
		m.logger.Debugf("error reading scale: %v", err)
	}
	m.state.SetWeight(weight)

	m.display.SetCursor(1, 0)
	m.display.Print("Peso: ")
	m.display.Print(dispenser.FormatFloat(weight))
	m.display.Print(" g")

	temperature := m.readTemperature()
	m.state.SetTemperature(temperature)

	m.display.SetCursor(0, 1)
	m.display.Print("Temp: ")
	m.display.Print(dispenser.FormatFloat(temperature))
	m.display.Print(" C")

	m.buf = dispenser.Reading{Weight: weight, Temperature: temperature}.AppendTo(m.buf[:0])
	_, err = m.transport.Write(m.buf)
	if err != nil {
		m.logger.Debugf("error sending reading: %v", err)
	}

	m.clock.Sleep(m.cfg.WeighingThrottle)
}

func (m *WeighingMachine) tare() {
	m.logger.Info("taring")

	m.display.Clear()
	m.display.SetCursor(3, 0)
	m.display.Print("Tarando...: ")
	m.clock.Sleep(tareSettle)

	m.tareScale()

	m.display.Clear()
	m.display.SetCursor(5, 0)
	m.display.Print("Listo!")
	m.clock.Sleep(tareDoneDelay)

	m.state.SetWeighingState(WeighingStateWeighing)
}

func (m *WeighingMachine) readTemperature() float32 {
	err := m.thermometer.RequestTemperatures()
	if err != nil {
		m.logger.Debugf("error requesting temperature: %v", err)
		return dispenser.DisconnectedC
	}

	t, err := m.thermometer.ReadTemperature()
	if err != nil {
		m.logger.Debugf("error reading temperature: %v", err)
		return dispenser.DisconnectedC
	}
	return t
}

func (m *WeighingMachine) applyFactor(factor float32) {
	err := m.scale.SetScale(factor)
	if err != nil {
		m.logger.Errorf("error setting scale factor %v: %v", factor, err)
		return
	}
	m.state.SetScaleFactor(factor)
}

func (m *WeighingMachine) tareScale() {
	err := m.scale.Tare(m.cfg.Samples)
	if err != nil {
		m.logger.Debugf("error taring: %v", err)
	}
}
