package device

import (
	"context"
	"errors"
	"machine"
	"time"

	"github.com/calvinmclean/dispenser/firmware/controller"
)

// Device is the dispenser board. It owns the peripherals, the shared State and the two state machines, and
// implements commands.Controller for the dispatcher running in the main goroutine
type Device struct {
	cfg  controller.Config
	boot Config

	state      *controller.State
	weighing   *controller.WeighingMachine
	dispensing *controller.DispensingMachine
	scheduler  *controller.Scheduler

	transport *machine.UART
	logger    controller.Logger
}

// New initializes the peripherals in bring-up order: storage, scale, flow
// sensor, pump, display, thermometer and finally the Bluetooth UART
func New(boot Config, cfg controller.Config, options ...func(*controller.State)) (*Device, error) {
	logger := NewPrintLogger(boot.Verbose)
	if boot.StartDelay == 0 {
		boot.StartDelay = 500 * time.Millisecond
	}

	storage, err := NewFlashStorage(machine.Flash, controller.CalibrationSize)
	if err != nil {
		return nil, errors.New("error creating storage: " + err.Error())
	}

	scale := controller.NewLoadCell(NewHX711(boot.Scale))

	state := controller.NewState(append([]func(*controller.State){controller.WithStateLogger(logger)}, options...)...)

	boot.Flow.Pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	err = boot.Flow.Pin.SetInterrupt(machine.PinRising, func(machine.Pin) {
		state.Pulses().Inc()
	})
	if err != nil {
		return nil, errors.New("error setting flow interrupt: " + err.Error())
	}

	pump, err := NewPump(boot.Pump)
	if err != nil {
		return nil, errors.New("error creating pump: " + err.Error())
	}

	lcd, err := NewLCD(boot.Display)
	if err != nil {
		return nil, errors.New("error creating display: " + err.Error())
	}

	thermometer := NewThermometer(boot.Thermometer)

	transport, err := NewTransport(boot.Transport)
	if err != nil {
		return nil, errors.New("error creating transport: " + err.Error())
	}

	return &Device{
		cfg:   cfg,
		boot:  boot,
		state: state,
		weighing: controller.NewWeighingMachine(
			state, scale, thermometer, lcd, transport,
			controller.NewCalibrationStore(storage), cfg,
			controller.WithWeighingLogger(logger),
		),
		dispensing: controller.NewDispensingMachine(state, pump, cfg, controller.WithDispensingLogger(logger)),
		scheduler:  controller.NewScheduler(controller.WithSchedulerLogger(logger)),
		transport:  transport,
		logger:     logger,
	}, nil
}

// Start loads the calibration, tares and starts the dispensing task and then the weighing task
func (d *Device) Start(ctx context.Context) error {
	d.weighing.Begin()

	err := d.scheduler.Start(ctx, controller.Task{
		Name:   "dispensing",
		Period: d.cfg.DispensingPeriod,
		Step:   d.dispensing.Step,
	})
	if err != nil {
		return errors.New("error starting dispensing task: " + err.Error())
	}
	time.Sleep(d.boot.StartDelay)

	err = d.scheduler.Start(ctx, controller.Task{
		Name:   "weighing",
		Period: d.cfg.WeighingPeriod,
		Step:   d.weighing.Step,
	})
	if err != nil {
		return errors.New("error starting weighing task: " + err.Error())
	}
	time.Sleep(d.boot.StartDelay)

	d.logger.Info("started")
	return nil
}

func (d *Device) Tare() {
	d.logger.Debug("tare")
	d.state.Tare()
}

func (d *Device) Calibrate() {
	d.logger.Debug("calibrate")
	d.state.Calibrate()
}

func (d *Device) Dispense(ml float64) {
	d.logger.Debugf("dispense %v ml", ml)
	d.state.Dispense(ml)
}

// State returns the shared state of the machines
func (d *Device) State() *controller.State {
	return d.state
}

// Logger returns the console logger
func (d *Device) Logger() controller.Logger {
	return d.logger
}

func (d *Device) Buffered() int {
	return d.transport.Buffered()
}

func (d *Device) ReadByte() (byte, error) {
	return d.transport.ReadByte()
}
