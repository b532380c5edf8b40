package ui

import (
	"errors"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/config"
	"github.com/calvinmclean/dispenser/link"
)

type fakeDevice struct {
	sent []int
	err  error
}

func (d *fakeDevice) Tare() error           { return d.send(dispenser.CommandTare) }
func (d *fakeDevice) Calibrate() error      { return d.send(dispenser.CommandCalibrate) }
func (d *fakeDevice) Dispense(ml int) error { return d.send(ml) }
func (d *fakeDevice) Close() error          { return nil }

func (d *fakeDevice) Readings() <-chan dispenser.Reading {
	return nil
}

func (d *fakeDevice) send(v int) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, v)
	return nil
}

func TestControllerWrapper(t *testing.T) {
	d := &fakeDevice{}

	var sent []string
	c := &controllerWrapper{
		device: d,
		onSent: func(a action, ml int, _ time.Time) {
			sent = append(sent, a.status(ml))
		},
	}

	require.NoError(t, c.Tare())
	require.NoError(t, c.Calibrate())
	require.NoError(t, c.Dispense(" 120 "))
	assert.ErrorIs(t, c.Dispense("0"), errInvalidVolume)
	assert.ErrorIs(t, c.Dispense("lots"), errInvalidVolume)

	assert.Equal(t, []int{-1, -2, 120}, d.sent)
	assert.Equal(t, []string{"Taring...", "Calibrating, follow the display", "Dispensing 120 ml"}, sent)
}

func TestControllerWrapperDeviceError(t *testing.T) {
	c := &controllerWrapper{
		device: &fakeDevice{err: link.ErrNotConnected},
		onSent: func(action, int, time.Time) {
			t.Fatal("onSent called for a failed command")
		},
	}

	err := c.Tare()
	assert.ErrorIs(t, err, link.ErrNotConnected)
	assert.Contains(t, err.Error(), "Tare")
}

func TestFormatElapsed(t *testing.T) {
	d := 2*time.Minute + 5*time.Second + 42*time.Millisecond
	assert.Equal(t, "02:05", formatElapsed(d, false))
	assert.Equal(t, "02:05.042", formatElapsed(d, true))
	assert.Equal(t, "00:00", formatElapsed(0, false))
}

func TestFormatReading(t *testing.T) {
	assert.Equal(t, "12.50 g", formatWeight(dispenser.Reading{Weight: 12.5}))
	assert.Equal(t, "21.25 C", formatTemperature(dispenser.Reading{Temperature: 21.25}))
	assert.Equal(t, "-- C", formatTemperature(dispenser.Reading{Temperature: dispenser.DisconnectedC}))
}

func TestCommandLog(t *testing.T) {
	l := &commandLog{}
	assert.Equal(t, "a", l.add("a"))
	assert.Equal(t, "a\nb", l.add("b"))

	var text string
	for range maxLogLines + 5 {
		text = l.add("x")
	}
	assert.Len(t, l.lines, maxLogLines)
	assert.NotContains(t, text, "a")
}

func TestSettingsApply(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		err      bool
	}{
		{"Valid", Settings{SerialPort: "/dev/ttyUSB0", BaudRate: "9600", SessionName: "s"}, false},
		{"Simulator", Settings{SerialPort: SerialPortSimulator, BaudRate: "9600", SessionName: "s"}, false},
		{"BadBaudRate", Settings{SerialPort: "/dev/ttyUSB0", BaudRate: "fast"}, true},
		{"BadProbes", Settings{SerialPort: "/dev/ttyUSB0", BaudRate: "9600", TWChartAddr: "http://chart", ProbesInput: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			err := tt.settings.Apply(cfg)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 9600, cfg.Serial.BaudRate)
			if tt.settings.Simulated() {
				assert.Equal(t, config.Default().Serial.Port, cfg.Serial.Port)
			} else {
				assert.Equal(t, tt.settings.SerialPort, cfg.Serial.Port)
			}
		})
	}
}

func TestPreferences(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	cw := NewConfigWindow(a)
	defaults := config.Default()

	var s Settings
	cw.loadSettingsFromPreferences(&s, defaults)
	assert.Equal(t, "9600", s.BaudRate)
	assert.Equal(t, "1=Liquid", s.ProbesInput)
	assert.False(t, s.valid())

	s.SerialPort = "/dev/rfcomm0"
	s.SessionName = "morning"
	assert.True(t, s.valid())
	cw.saveSettingsToPreferences(&s)

	var loaded Settings
	cw.loadSettingsFromPreferences(&loaded, defaults)
	assert.Equal(t, s, loaded)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "Dispense", actionDispense.String())
	assert.Equal(t, "Ready", actionNone.status(0))
	assert.Equal(t, "None", action(99).String())
	assert.NotErrorIs(t, errInvalidVolume, errors.New("other"))
}
