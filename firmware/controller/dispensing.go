package controller

// DispensingMachine drives the pump from the flow sensor pulses
type DispensingMachine struct {
	state *State
	pump  Pump

	cfg    Config
	clock  Clock
	logger Logger
}

// NewDispensingMachine creates a DispensingMachine. cfg.DispenseMode decides what DISPENSING does
func NewDispensingMachine(state *State, pump Pump, cfg Config, options ...func(*DispensingMachine)) *DispensingMachine {
	m := &DispensingMachine{
		state:  state,
		pump:   pump,
		cfg:    cfg,
		clock:  SystemClock{},
		logger: &NullLogger{},
	}

	for _, option := range options {
		option(m)
	}
	return m
}

// WithDispensingClock sets the Clock used for delays
func WithDispensingClock(c Clock) func(*DispensingMachine) {
	return func(m *DispensingMachine) {
		m.clock = c
	}
}

// WithDispensingLogger sets the Logger
func WithDispensingLogger(l Logger) func(*DispensingMachine) {
	return func(m *DispensingMachine) {
		m.logger = l
	}
}

// Step runs the body of the current state once
func (m *DispensingMachine) Step() {
	switch m.state.DispensingState() {
	case DispensingStateIdle:
		m.clock.Sleep(m.cfg.IdleDelay)

	case DispensingStateDispensing:
		if m.cfg.DispenseMode == DispenseModeLiteral {
			return
		}
		m.dispense()

	case DispensingStateStopping:
		m.pump.Stop()
		m.state.SetFlow(0)
		pulses := m.state.Pulses().Reset()
		m.logger.Infof("stopped after %d pulses", pulses)
		m.state.SetDispensingState(DispensingStateIdle)
	}
}

func (m *DispensingMachine) dispense() {
	m.pump.Forward()

	flow := float64(m.state.Pulses().Load()) * m.cfg.MlPerPulse
	m.state.SetFlow(flow)

	if flow >= m.state.RequestedVolume() {
		m.pump.Stop()
		m.logger.Infof("dispensed %v of %v ml", flow, m.state.RequestedVolume())
		m.state.SetDispensingState(DispensingStateStopping)
	}
}
