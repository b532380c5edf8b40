package controller

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weighingFixture struct {
	m       *WeighingMachine
	state   *State
	raw     *fakeRawScale
	cell    *LoadCell
	therm   *fakeThermometer
	display *fakeDisplay
	out     *lockedBuffer
	storage *MemoryStorage
	clock   *fakeClock
}

func newWeighingFixture(storage Storage) *weighingFixture {
	f := &weighingFixture{
		state:   NewState(),
		raw:     &fakeRawScale{},
		therm:   &fakeThermometer{temperature: 21.5},
		display: &fakeDisplay{},
		out:     &lockedBuffer{},
		clock:   &fakeClock{},
	}
	if storage == nil {
		f.storage = NewMemoryStorage(CalibrationSize)
		storage = f.storage
	}
	f.cell = NewLoadCell(f.raw)

	cfg := DefaultConfig()
	f.m = NewWeighingMachine(
		f.state, f.cell, f.therm, f.display, f.out, NewCalibrationStore(storage), cfg,
		WithWeighingClock(f.clock),
	)
	return f
}

func TestWeighingStartsWeighing(t *testing.T) {
	f := newWeighingFixture(nil)
	assert.Equal(t, WeighingStateWeighing, f.state.WeighingState())
}

func TestWeigh(t *testing.T) {
	f := newWeighingFixture(nil)
	require.NoError(t, f.cell.SetScale(2))
	f.raw.set(100)

	f.m.Step()

	assert.Equal(t, WeighingStateWeighing, f.state.WeighingState())
	assert.Equal(t, float32(50), f.state.Weight())
	assert.Equal(t, float32(21.5), f.state.Temperature())
	assert.Equal(t, "50.00|21.50", f.out.String())
	assert.Contains(t, f.display.text(), "Peso: 50.00 g")
	assert.Contains(t, f.display.text(), "Temp: 21.50 C")
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, f.clock.sleeps)
}

func TestWeighFramesAreConcatenated(t *testing.T) {
	f := newWeighingFixture(nil)
	f.raw.set(10)

	f.m.Step()
	f.therm.temperature = 22
	f.m.Step()

	assert.Equal(t, "10.00|21.5010.00|22.00", f.out.String())
}

func TestWeighDegradesOnSensorFailure(t *testing.T) {
	f := newWeighingFixture(nil)
	f.raw.err = ErrNotReady
	f.therm.err = errors.New("no presence pulse")

	f.m.Step()

	assert.Equal(t, "0.00|-127.00", f.out.String())
	assert.Contains(t, f.display.text(), "Temp: -127.00 C")
	assert.Equal(t, WeighingStateWeighing, f.state.WeighingState())
}

func TestTare(t *testing.T) {
	f := newWeighingFixture(nil)
	f.raw.set(500)
	f.state.Tare()
	assert.Equal(t, WeighingStateTaring, f.state.WeighingState())

	f.m.Step()

	assert.Equal(t, WeighingStateWeighing, f.state.WeighingState())
	assert.Equal(t, int32(500), f.cell.Offset())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, f.clock.sleeps)
	assert.Contains(t, f.display.text(), "Tarando...: ")
	assert.Contains(t, f.display.text(), "Listo!")
	assert.Empty(t, f.out.String())

	// next iteration reports the tared weight
	f.m.Step()
	assert.Equal(t, "0.00|21.50", f.out.String())
}

func TestCalibrate(t *testing.T) {
	tests := []struct {
		name  string
		empty int32
		delta int32
	}{
		{"Positive", 1000, 26000},
		{"NegativeGain", -3000, -104000},
		{"SmallReading", 0, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWeighingFixture(nil)
			f.raw.set(tt.empty)

			// the operator places the reference weight during the third prompt and removes it during
			// the sixth pause
			f.clock.onSleep = func(n int, d time.Duration) {
				switch n {
				case 3:
					f.raw.set(tt.empty + tt.delta)
				case 6:
					f.raw.set(tt.empty)
				}
			}

			f.state.Calibrate()
			f.m.Step()

			expected := float32(tt.delta) / DefaultConfig().ReferenceWeight
			assert.Equal(t, WeighingStateWeighing, f.state.WeighingState())
			assert.Equal(t, float64(tt.delta), f.m.LastCalibrationReading())
			assert.Equal(t, expected, f.state.ScaleFactor())
			assert.Equal(t, expected, f.cell.Scale())
			assert.Equal(t, tt.empty, f.cell.Offset())

			committed := f.storage.Committed()
			assert.Equal(t, math.Float32bits(expected), binary.LittleEndian.Uint32(committed))

			loaded, err := NewCalibrationStore(f.storage).Load()
			require.NoError(t, err)
			assert.Equal(t, math.Float32bits(expected), math.Float32bits(loaded))

			assert.Equal(t, 14100*time.Millisecond, f.clock.total())
			assert.Contains(t, f.display.text(), "Peso referencia:50.99 g")
			assert.Contains(t, f.display.text(), "Ponga el peso")
			assert.Contains(t, f.display.text(), "Retire el peso")
		})
	}
}

func TestCalibrateWithoutReferenceWeightKeepsFactor(t *testing.T) {
	f := newWeighingFixture(nil)
	require.NoError(t, f.cell.SetScale(3))
	f.state.SetScaleFactor(3)
	f.raw.set(1000)

	f.state.Calibrate()
	f.m.Step()

	assert.Equal(t, WeighingStateWeighing, f.state.WeighingState())
	assert.Equal(t, float32(3), f.state.ScaleFactor())
	assert.Equal(t, float32(3), f.cell.Scale())
	assert.Equal(t, []byte{0, 0, 0, 0}, f.storage.Committed())
}

func TestCalibrateOverwritesConcurrentCommand(t *testing.T) {
	f := newWeighingFixture(nil)
	f.clock.onSleep = func(n int, d time.Duration) {
		if n == 2 {
			f.state.Tare()
		}
	}

	f.state.Calibrate()
	f.m.Step()

	// the tare written mid-calibration is lost, last write wins
	assert.Equal(t, WeighingStateWeighing, f.state.WeighingState())
}

func TestBegin(t *testing.T) {
	tests := []struct {
		name     string
		stored   []byte
		expected float32
	}{
		{"StoredFactor", binary.LittleEndian.AppendUint32(nil, math.Float32bits(509.9)), 509.9},
		{"Erased", []byte{0, 0, 0, 0}, 1},
		{"NaN", []byte{0xff, 0xff, 0xff, 0xff}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := NewMemoryStorage(CalibrationSize)
			_, err := storage.WriteAt(tt.stored, 0)
			require.NoError(t, err)

			f := newWeighingFixture(storage)
			f.raw.set(42)
			f.m.Begin()

			assert.Equal(t, tt.expected, f.state.ScaleFactor())
			assert.Equal(t, tt.expected, f.cell.Scale())
			assert.Equal(t, int32(42), f.cell.Offset())
		})
	}
}

func TestBeginWithFailingStorage(t *testing.T) {
	f := newWeighingFixture(failingStorage{})
	f.m.Begin()
	assert.Equal(t, float32(1), f.state.ScaleFactor())
}
