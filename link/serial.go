package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/stopwatch"
	"go.bug.st/serial"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/firmware/controller"
)

const (
	// DefaultBaudRate is the factory baud rate of HC-05 style Bluetooth serial modules
	DefaultBaudRate = 9600
	// DefaultBufferSize is the default size for the readings channel buffer
	DefaultBufferSize = 100
)

// ErrNoSerialPorts is returned by Ports when the system has no serial ports
var ErrNoSerialPorts = errors.New("no serial ports found")

// Ports returns the names of the available serial ports
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return nil, ErrNoSerialPorts
	}
	return ports, nil
}

// Serial is a connection to the scale board over a serial port, usually the Bluetooth SPP port
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	logger   controller.Logger

	conn      io.ReadWriteCloser
	readings  chan dispenser.Reading
	done      chan struct{}
	mu        sync.RWMutex
	connected bool

	dispenseTimer *stopwatch.Stopwatch
}

// New creates a Serial for the given port. Zero values select the defaults
func New(port string, baudRate int, bufSize int, options ...func(*Serial)) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	s := &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		logger:   &controller.NullLogger{},
		readings: make(chan dispenser.Reading, bufSize),
		done:     make(chan struct{}),
	}

	for _, option := range options {
		option(s)
	}
	return s
}

// WithLogger sets the Logger
func WithLogger(l controller.Logger) func(*Serial) {
	return func(s *Serial) {
		s.logger = l
	}
}

// Connect opens the serial port and starts decoding readings
func (s *Serial) Connect() error {
	port, err := serial.Open(s.port, &serial.Mode{
		BaudRate: s.baudRate,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	return s.attach(port)
}

// ConnectWith uses an already open connection instead of a serial port
func (s *Serial) ConnectWith(conn io.ReadWriteCloser) error {
	return s.attach(conn)
}

func (s *Serial) attach(conn io.ReadWriteCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	s.conn = conn
	s.connected = true

	go s.readReadings(conn)

	s.logger.Infof("connected to %s", s.port)
	return nil
}

// Close closes the connection. The readings channel is closed once the reader has stopped
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	close(s.done)
	s.connected = false

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("error closing serial port: %w", err)
	}
	return nil
}

// IsConnected returns whether the port is open
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Readings returns the channel of decoded readings
func (s *Serial) Readings() <-chan dispenser.Reading {
	return s.readings
}

// Tare asks the board to zero the scale
func (s *Serial) Tare() error {
	return s.send(dispenser.CommandTare)
}

// Calibrate asks the board to run the calibration sequence
func (s *Serial) Calibrate() error {
	return s.send(dispenser.CommandCalibrate)
}

// Dispense requests ml millilitres
func (s *Serial) Dispense(ml int) error {
	if err := validateVolume(ml); err != nil {
		return err
	}
	if err := s.send(ml); err != nil {
		return err
	}

	s.mu.Lock()
	if s.dispenseTimer == nil {
		s.dispenseTimer = stopwatch.Start(0)
	} else {
		s.dispenseTimer.Reset()
		s.dispenseTimer.Start(0)
	}
	s.mu.Unlock()

	return nil
}

// SinceDispense returns the time since the last dispense request, or zero if there was none
func (s *Serial) SinceDispense() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dispenseTimer == nil {
		return 0
	}
	return s.dispenseTimer.ElapsedTime()
}

func (s *Serial) send(v int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return ErrNotConnected
	}

	_, err := s.conn.Write(dispenser.EncodeCommand(v))
	if err != nil {
		return fmt.Errorf("failed to send command %d: %w", v, err)
	}

	s.logger.Debugf("sent command %d", v)
	return nil
}

// readReadings decodes the connection until it fails or is closed
func (s *Serial) readReadings(conn io.Reader) {
	defer close(s.readings)

	decoder := dispenser.NewReadingDecoder(conn)
	for {
		r, err := decoder.Decode()
		if err != nil {
			select {
			case <-s.done:
			default:
				if !errors.Is(err, io.EOF) {
					s.logger.Errorf("error reading from serial port: %v", err)
				}
			}
			return
		}

		// Send reading to channel (non-blocking)
		select {
		case s.readings <- r:
		case <-s.done:
			return
		default:
			s.logger.Warn("readings channel full, dropping reading")
		}
	}
}
