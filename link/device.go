package link

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/firmware/controller"
)

var (
	// ErrNotConnected is returned when a command is sent to a closed link
	ErrNotConnected = errors.New("not connected")
	// ErrInvalidVolume is returned for dispense requests that would be read as another command
	ErrInvalidVolume = errors.New("invalid volume")
)

// Device defines the interface for dispensers (real or simulated).
type Device interface {
	Tare() error
	Calibrate() error
	Dispense(ml int) error
	Readings() <-chan dispenser.Reading
	Close() error
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Simulator implements Device.
var _ Device = (*Simulator)(nil)

// Command is a command sent to the dispenser
type Command struct {
	Name  string
	Value int
	Time  time.Time
}

// NewCommand names the command value the way the firmware interprets it
func NewCommand(v int, now time.Time) Command {
	name := "dispense"
	switch v {
	case dispenser.CommandTare:
		name = "tare"
	case dispenser.CommandCalibrate:
		name = "calibrate"
	}
	return Command{Name: name, Value: v, Time: now}
}

// Recorder keeps track of what happened to a dispenser
type Recorder interface {
	RecordCommand(ctx context.Context, c Command) error
	RecordReading(ctx context.Context, r dispenser.Reading, now time.Time) error
}

type noopRecorder struct{}

var _ Recorder = noopRecorder{}

// RecordCommand implements Recorder.
func (noopRecorder) RecordCommand(context.Context, Command) error {
	return nil
}

// RecordReading implements Recorder.
func (noopRecorder) RecordReading(context.Context, dispenser.Reading, time.Time) error {
	return nil
}

// Recorders records to every Recorder in order, stopping at the first error
type Recorders []Recorder

// RecordCommand implements Recorder.
func (rs Recorders) RecordCommand(ctx context.Context, c Command) error {
	for _, r := range rs {
		if err := r.RecordCommand(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// RecordReading implements Recorder.
func (rs Recorders) RecordReading(ctx context.Context, reading dispenser.Reading, now time.Time) error {
	for _, r := range rs {
		if err := r.RecordReading(ctx, reading, now); err != nil {
			return err
		}
	}
	return nil
}

type recordedDevice struct {
	Device
	ctx      context.Context
	recorder Recorder
	logger   controller.Logger
}

// Recorded wraps d so that every successful command is passed to the Recorder. Recording failures are logged
// and never fail the command
func Recorded(ctx context.Context, d Device, r Recorder, logger controller.Logger) Device {
	if logger == nil {
		logger = &controller.NullLogger{}
	}
	return &recordedDevice{Device: d, ctx: ctx, recorder: r, logger: logger}
}

func (d *recordedDevice) Tare() error {
	return d.send(dispenser.CommandTare, d.Device.Tare)
}

func (d *recordedDevice) Calibrate() error {
	return d.send(dispenser.CommandCalibrate, d.Device.Calibrate)
}

func (d *recordedDevice) Dispense(ml int) error {
	return d.send(ml, func() error { return d.Device.Dispense(ml) })
}

func (d *recordedDevice) send(v int, fn func() error) error {
	err := fn()
	if err != nil {
		return err
	}

	c := NewCommand(v, time.Now())
	if err := d.recorder.RecordCommand(d.ctx, c); err != nil {
		d.logger.Errorf("error recording %s command: %v", c.Name, err)
	}
	return nil
}

// validateVolume rejects volumes that the firmware would read as a different command
func validateVolume(ml int) error {
	if ml < 0 || ml > math.MaxInt32 {
		return ErrInvalidVolume
	}
	return nil
}
