package main

import (
	"machine"
	"time"

	"github.com/calvinmclean/dispenser/firmware/controller"
	"github.com/calvinmclean/dispenser/firmware/device"
)

const (
	pulsesPerRevolution = 25
	updateInterval      = 2500 * time.Millisecond
)

var (
	stepPin    = machine.GP2
	dirPin     = machine.GP3
	encoderPin = machine.GP6
)

func main() {
	boot := time.Now()
	since := func() time.Duration { return time.Since(boot) }

	counter := controller.NewDebouncedCounter(controller.DefaultDebounce)
	encoderPin.Configure(machine.PinConfig{Mode: machine.PinInput})
	err := encoderPin.SetInterrupt(machine.PinRising, func(p machine.Pin) {
		counter.Edge(p.Get(), since())
	})
	if err != nil {
		panic(err)
	}

	stepPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	dirPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	stepper := controller.NewStepper(stepPin, dirPin)
	stepper.Spin(0)

	lcd, err := device.NewLCD(device.DisplayConfig{
		I2C:     machine.I2C0,
		SDA:     machine.GP4,
		SCL:     machine.GP5,
		Address: 0x27,
	})
	if err != nil {
		panic(err)
	}

	transport, err := device.NewTransport(device.TransportConfig{
		UART:     machine.UART1,
		TX:       machine.GP8,
		RX:       machine.GP9,
		BaudRate: 9600,
	})
	if err != nil {
		panic(err)
	}

	meter := controller.NewRPMMeter(counter, pulsesPerRevolution, updateInterval, lcd, transport, since())

	for {
		now := since()
		stepper.Loop(now)
		meter.Update(now)

		if transport.Buffered() > 0 {
			d, err := transport.ReadByte()
			if err == nil {
				stepper.Spin(controller.SpeedFromByte(d))
			}
		}
	}
}
