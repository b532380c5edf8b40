package device

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/l293x"
)

// ScaleConfig has the HX711 load cell amplifier pins
type ScaleConfig struct {
	Data  machine.Pin
	Clock machine.Pin
	// ReadyTimeout bounds the wait for a conversion. Zero uses the default
	ReadyTimeout time.Duration
}

// PumpConfig has the H-bridge pins. Enable is driven at full duty by PWM, which must be the PWM group of Enable
type PumpConfig struct {
	In1    machine.Pin
	In2    machine.Pin
	Enable machine.Pin
	PWM    l293x.PWM
}

// DisplayConfig has the I2C bus and address of the character LCD
type DisplayConfig struct {
	I2C     *machine.I2C
	SDA     machine.Pin
	SCL     machine.Pin
	Address uint8
}

// ThermometerConfig has the one-wire data pin of the DS18B20
type ThermometerConfig struct {
	Pin machine.Pin
	// ConversionTime is the wait between a conversion request and the read. Zero uses the 12 bit default
	ConversionTime time.Duration
}

// TransportConfig has the UART connected to the Bluetooth serial module
type TransportConfig struct {
	UART     *machine.UART
	TX       machine.Pin
	RX       machine.Pin
	BaudRate uint32
}

// FlowConfig has the flow sensor input
type FlowConfig struct {
	Pin machine.Pin
}

// Config collects everything needed to build the dispenser Device
type Config struct {
	Scale       ScaleConfig
	Pump        PumpConfig
	Display     DisplayConfig
	Thermometer ThermometerConfig
	Transport   TransportConfig
	Flow        FlowConfig

	// StartDelay is the pause after starting each task during boot
	StartDelay time.Duration
	Verbose    bool
}
