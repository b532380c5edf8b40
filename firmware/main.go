package main

import (
	"context"
	"machine"
	"time"

	"github.com/calvinmclean/dispenser/firmware/commands"
	"github.com/calvinmclean/dispenser/firmware/controller"
	"github.com/calvinmclean/dispenser/firmware/device"
)

func main() {
	boot := device.Config{
		Scale: device.ScaleConfig{
			Data:  machine.GP14,
			Clock: machine.GP15,
		},
		Pump: device.PumpConfig{
			In1:    machine.GP18,
			In2:    machine.GP19,
			Enable: machine.GP20,
			PWM:    machine.PWM2,
		},
		Display: device.DisplayConfig{
			I2C:     machine.I2C0,
			SDA:     machine.GP4,
			SCL:     machine.GP5,
			Address: 0x27,
		},
		Thermometer: device.ThermometerConfig{
			Pin: machine.GP22,
		},
		Transport: device.TransportConfig{
			UART:     machine.UART1,
			TX:       machine.GP8,
			RX:       machine.GP9,
			BaudRate: 9600,
		},
		Flow: device.FlowConfig{
			Pin: machine.GP16,
		},
		StartDelay: 500 * time.Millisecond,
	}

	d, err := device.New(boot, controller.DefaultConfig())
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	err = d.Start(ctx)
	if err != nil {
		panic(err)
	}

	commands.Run(ctx, d, commands.WithLogger(d.Logger()))
}
