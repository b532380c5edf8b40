package device

import (
	"errors"
	"machine"
	"time"

	"tinygo.org/x/drivers/ds18b20"
	"tinygo.org/x/drivers/hd44780i2c"
	"tinygo.org/x/drivers/l293x"
	"tinygo.org/x/drivers/onewire"

	"github.com/calvinmclean/dispenser/firmware/controller"
)

// LCD is a 16x2 character display behind a PCF8574 I2C backpack
type LCD struct {
	dev hd44780i2c.Device
}

// NewLCD configures the I2C bus and initializes the display
func NewLCD(cfg DisplayConfig) (*LCD, error) {
	err := cfg.I2C.Configure(machine.I2CConfig{
		SDA: cfg.SDA,
		SCL: cfg.SCL,
	})
	if err != nil {
		return nil, errors.New("error configuring i2c: " + err.Error())
	}

	dev := hd44780i2c.New(cfg.I2C, cfg.Address)
	err = dev.Configure(hd44780i2c.Config{
		Width:  16,
		Height: 2,
	})
	if err != nil {
		return nil, errors.New("error configuring lcd: " + err.Error())
	}

	return &LCD{dev: dev}, nil
}

func (l *LCD) Clear() {
	l.dev.ClearDisplay()
}

func (l *LCD) SetCursor(col, row uint8) {
	l.dev.SetCursor(col, row)
}

func (l *LCD) Print(s string) {
	l.dev.Print([]byte(s))
}

// oneWireBus is a DS18B20 on a one-wire data pin
type oneWireBus struct {
	wire   onewire.Device
	sensor ds18b20.Device
}

func (b oneWireBus) ReadAddress() ([]uint8, error) {
	return b.wire.ReadAddress()
}

// Convert checks for a presence pulse first since the driver does not report a missing sensor
func (b oneWireBus) Convert(rom []uint8) error {
	err := b.wire.Reset()
	if err != nil {
		return err
	}
	b.sensor.RequestTemperature(rom)
	return nil
}

func (b oneWireBus) ReadMilliCelsius(rom []uint8) (int32, error) {
	return b.sensor.ReadTemperature(rom)
}

// NewThermometer creates the DS18B20 thermometer. The sensor does not have to be connected yet
func NewThermometer(cfg ThermometerConfig) *controller.OneWireThermometer {
	wire := onewire.New(cfg.Pin)
	bus := oneWireBus{wire: wire, sensor: ds18b20.New(wire)}
	return controller.NewOneWireThermometer(bus, controller.SystemClock{}, cfg.ConversionTime)
}

// Pump drives the pump through an L293-style H-bridge. Only forward at full speed and off are used
type Pump struct {
	dev l293x.PWMDevice
}

// NewPump configures the enable PWM and the direction pins and leaves the pump stopped
func NewPump(cfg PumpConfig) (*Pump, error) {
	err := cfg.PWM.Configure(machine.PWMConfig{Period: uint64(time.Millisecond)})
	if err != nil {
		return nil, errors.New("error configuring pump pwm: " + err.Error())
	}
	ch, err := cfg.PWM.Channel(cfg.Enable)
	if err != nil {
		return nil, errors.New("error getting pump pwm channel: " + err.Error())
	}

	p := &Pump{dev: l293x.NewWithSpeed(cfg.In1, cfg.In2, ch, cfg.PWM)}
	err = p.dev.Configure()
	if err != nil {
		return nil, errors.New("error configuring pump: " + err.Error())
	}
	return p, nil
}

func (p *Pump) Forward() {
	p.dev.Forward(100)
}

func (p *Pump) Stop() {
	p.dev.Stop()
}

// Flash is the block device that backs the emulated EEPROM
type Flash interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	EraseBlocks(start, length int64) error
	WriteBlockSize() int64
}

// FlashStorage emulates a small EEPROM: reads and writes go to a RAM copy and Commit writes it to the first
// flash block
type FlashStorage struct {
	*controller.MemoryStorage
	flash Flash
}

// NewFlashStorage loads size bytes from flash
func NewFlashStorage(flash Flash, size int) (*FlashStorage, error) {
	buf := make([]byte, size)
	_, err := flash.ReadAt(buf, 0)
	if err != nil {
		return nil, errors.New("error reading flash: " + err.Error())
	}

	mem := controller.NewMemoryStorage(size)
	_, _ = mem.WriteAt(buf, 0)
	_ = mem.Commit()

	return &FlashStorage{MemoryStorage: mem, flash: flash}, nil
}

// Commit persists the RAM copy
func (s *FlashStorage) Commit() error {
	err := s.MemoryStorage.Commit()
	if err != nil {
		return err
	}
	data := s.MemoryStorage.Committed()

	blockSize := s.flash.WriteBlockSize()
	padded := make([]byte, (int64(len(data))+blockSize-1)/blockSize*blockSize)
	for i := range padded {
		padded[i] = 0xFF
	}
	copy(padded, data)

	err = s.flash.EraseBlocks(0, 1)
	if err != nil {
		return errors.New("error erasing flash: " + err.Error())
	}
	_, err = s.flash.WriteAt(padded, 0)
	if err != nil {
		return errors.New("error writing flash: " + err.Error())
	}
	return nil
}

// NewTransport configures the UART of the Bluetooth module
func NewTransport(cfg TransportConfig) (*machine.UART, error) {
	err := cfg.UART.Configure(machine.UARTConfig{
		BaudRate: cfg.BaudRate,
		TX:       cfg.TX,
		RX:       cfg.RX,
	})
	if err != nil {
		return nil, errors.New("error configuring uart: " + err.Error())
	}
	return cfg.UART, nil
}
