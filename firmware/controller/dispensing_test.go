package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newDispensingFixture(mode DispenseMode) (*DispensingMachine, *State, *fakePump, *fakeClock) {
	state := NewState()
	pump := &fakePump{}
	clock := &fakeClock{}

	cfg := DefaultConfig()
	cfg.DispenseMode = mode
	return NewDispensingMachine(state, pump, cfg, WithDispensingClock(clock)), state, pump, clock
}

func TestDispensingIdle(t *testing.T) {
	m, state, pump, clock := newDispensingFixture(DispenseModeMetered)

	m.Step()

	assert.Equal(t, DispensingStateIdle, state.DispensingState())
	assert.False(t, pump.toggled)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, clock.sleeps)
}

func TestDispensingLiteral(t *testing.T) {
	m, state, pump, clock := newDispensingFixture(DispenseModeLiteral)
	state.Dispense(10)
	for range 1000 {
		state.Pulses().Inc()
	}

	for range 5 {
		m.Step()
	}

	assert.Equal(t, DispensingStateDispensing, state.DispensingState())
	assert.False(t, pump.toggled)
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, uint32(1000), state.Pulses().Load())
	assert.Equal(t, float64(0), state.Flow())
}

func TestDispensingMetered(t *testing.T) {
	m, state, pump, _ := newDispensingFixture(DispenseModeMetered)
	state.Dispense(1)

	for range 45 {
		state.Pulses().Inc()
	}
	m.Step()
	assert.Equal(t, DispensingStateDispensing, state.DispensingState())
	assert.True(t, pump.running)
	assert.InDelta(t, 0.99, state.Flow(), 1e-9)

	state.Pulses().Inc()
	m.Step()
	assert.Equal(t, DispensingStateStopping, state.DispensingState())
	assert.False(t, pump.running)

	m.Step()
	assert.Equal(t, DispensingStateIdle, state.DispensingState())
	assert.Equal(t, uint32(0), state.Pulses().Load())
	assert.Equal(t, float64(0), state.Flow())
	assert.False(t, pump.running)
}

func TestDispensingMeteredStopsOnFirstIteration(t *testing.T) {
	tests := []struct {
		name      string
		requested float64
	}{
		{"Zero", 0},
		{"Small", 0.5},
		{"Large", 250},
		{"Negative", -7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, state, pump, _ := newDispensingFixture(DispenseModeMetered)
			state.Dispense(tt.requested)

			for state.DispensingState() == DispensingStateDispensing {
				m.Step()
				if state.DispensingState() != DispensingStateDispensing {
					break
				}
				state.Pulses().Inc()
			}

			pulses := float64(state.Pulses().Load())
			assert.Equal(t, DispensingStateStopping, state.DispensingState())
			assert.False(t, pump.running)
			assert.GreaterOrEqual(t, pulses*0.022, tt.requested)
			if pulses > 0 {
				assert.Less(t, (pulses-1)*0.022, tt.requested)
			}
		})
	}
}

func TestDispensingStopping(t *testing.T) {
	m, state, pump, clock := newDispensingFixture(DispenseModeLiteral)
	state.SetDispensingState(DispensingStateStopping)
	state.SetFlow(5)
	for range 10 {
		state.Pulses().Inc()
	}

	m.Step()

	assert.Equal(t, DispensingStateIdle, state.DispensingState())
	assert.Equal(t, uint32(0), state.Pulses().Load())
	assert.Equal(t, float64(0), state.Flow())
	assert.Equal(t, 1, pump.stop)
	assert.Empty(t, clock.sleeps)
}

func TestDispenseRetargetsCycleInProgress(t *testing.T) {
	m, state, _, _ := newDispensingFixture(DispenseModeMetered)
	state.Dispense(100)
	for range 10 {
		state.Pulses().Inc()
	}
	m.Step()
	assert.Equal(t, DispensingStateDispensing, state.DispensingState())

	state.Dispense(0.1)
	m.Step()
	assert.Equal(t, DispensingStateStopping, state.DispensingState())
	assert.Equal(t, 0.1, state.RequestedVolume())
}
