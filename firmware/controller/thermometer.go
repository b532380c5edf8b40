package controller

import "time"

// DefaultConversionTime is how long a DS18B20 needs for a 12 bit conversion
const DefaultConversionTime = 750 * time.Millisecond

// SensorBus is a one-wire bus with a single temperature sensor
type SensorBus interface {
	ReadAddress() ([]uint8, error)
	// Convert starts a conversion on the sensor with the given address. It fails if nothing answers
	Convert(rom []uint8) error
	ReadMilliCelsius(rom []uint8) (int32, error)
}

var _ Thermometer = (*OneWireThermometer)(nil)

// OneWireThermometer finds the sensor's address on first use. While no sensor answers, every request looks
// for it again, so the board keeps running without one and picks it up once it is plugged in
type OneWireThermometer struct {
	bus            SensorBus
	clock          Clock
	conversionTime time.Duration

	rom []uint8
}

// NewOneWireThermometer creates a Thermometer on bus. A zero conversionTime uses DefaultConversionTime
func NewOneWireThermometer(bus SensorBus, clock Clock, conversionTime time.Duration) *OneWireThermometer {
	if conversionTime == 0 {
		conversionTime = DefaultConversionTime
	}
	return &OneWireThermometer{bus: bus, clock: clock, conversionTime: conversionTime}
}

// RequestTemperatures starts a conversion and waits for it to finish
func (t *OneWireThermometer) RequestTemperatures() error {
	if t.rom == nil {
		rom, err := t.bus.ReadAddress()
		if err != nil {
			return ErrNoSensor
		}
		t.rom = rom
	}

	err := t.bus.Convert(t.rom)
	if err != nil {
		t.rom = nil
		return ErrNoSensor
	}

	t.clock.Sleep(t.conversionTime)
	return nil
}

// ReadTemperature returns the last conversion in degrees Celsius
func (t *OneWireThermometer) ReadTemperature() (float32, error) {
	if t.rom == nil {
		return 0, ErrNoSensor
	}

	milli, err := t.bus.ReadMilliCelsius(t.rom)
	if err != nil {
		return 0, err
	}
	return float32(milli) / 1000, nil
}
