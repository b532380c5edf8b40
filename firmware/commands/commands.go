package commands

import (
	"context"
	"strconv"
	"time"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/firmware/controller"
)

const (
	// DefaultTimeout is how long ParseInt waits for the next byte
	DefaultTimeout = 1000 * time.Millisecond
	// DefaultPollInterval is the delay between checks of the transport when nothing is buffered
	DefaultPollInterval = 10 * time.Millisecond
)

type Command struct {
	Value       int32
	Run         func(Controller, int32) error
	Description string
}

// Controller is used to control a device
type Controller interface {
	Tare()
	Calibrate()
	Dispense(ml float64)

	// I/O
	Buffered() int
	ReadByte() (byte, error)
}

var (
	TareCommand = &Command{
		Value: dispenser.CommandTare,
		Run: func(c Controller, _ int32) error {
			c.Tare()
			return nil
		},
		Description: "Zero the scale with the container on it.",
	}
	CalibrateCommand = &Command{
		Value: dispenser.CommandCalibrate,
		Run: func(c Controller, _ int32) error {
			c.Calibrate()
			return nil
		},
		Description: "Calibrate the scale with the reference weight.",
	}
	// DispenseCommand handles every value without its own command
	DispenseCommand = &Command{
		Run: func(c Controller, v int32) error {
			c.Dispense(float64(v))
			return nil
		},
		Description: "Dispense the received number of millilitres.",
	}
)

var commands = []*Command{
	TareCommand,
	CalibrateCommand,
}

// Lookup returns the Command that handles v
func Lookup(v int32) *Command {
	for _, cmd := range commands {
		if cmd.Value == v {
			return cmd
		}
	}
	return DispenseCommand
}

// Help describes every command, one per line
func Help() string {
	out := ""
	for _, cmd := range commands {
		out += strconv.Itoa(int(cmd.Value)) + ": " + cmd.Description + "\n"
	}
	out += "other: " + DispenseCommand.Description + "\n"
	return out
}

// Dispatcher reads integers from the Controller and runs the matching command. A new command overwrites
// whatever the machines are doing
type Dispatcher struct {
	c      Controller
	parser *Parser
	clock  controller.Clock
	poll   time.Duration
	logger controller.Logger
}

// NewDispatcher creates a Dispatcher reading from c
func NewDispatcher(c Controller, options ...func(*Dispatcher)) *Dispatcher {
	d := &Dispatcher{
		c:      c,
		clock:  controller.SystemClock{},
		poll:   DefaultPollInterval,
		logger: &controller.NullLogger{},
	}
	d.parser = NewParser(c, d.clock, DefaultTimeout)

	for _, option := range options {
		option(d)
	}
	return d
}

// WithClock sets the Clock used for polling and the parse timeout
func WithClock(clock controller.Clock) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.clock = clock
		d.parser.clock = clock
	}
}

// WithTimeout sets how long ParseInt waits for the next byte
func WithTimeout(timeout time.Duration) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.parser.timeout = timeout
	}
}

// WithPollInterval sets the delay between transport checks
func WithPollInterval(poll time.Duration) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.poll = poll
	}
}

func WithLogger(l controller.Logger) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// Dispatch runs the command for v
func (d *Dispatcher) Dispatch(v int32) {
	cmd := Lookup(v)
	d.logger.Debugf("received %d", v)

	err := cmd.Run(d.c, v)
	if err != nil {
		d.logger.Errorf("error running command %d: %v", v, err)
	}
}

// Poll parses and dispatches one integer if any input is waiting. It returns false when nothing was buffered
func (d *Dispatcher) Poll() bool {
	if d.parser.Buffered() == 0 {
		return false
	}
	d.Dispatch(d.parser.ParseInt())
	return true
}

// Run polls the Controller until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !d.Poll() {
			d.clock.Sleep(d.poll)
		}
	}
}

// Run dispatches commands read from c until ctx is cancelled
func Run(ctx context.Context, c Controller, options ...func(*Dispatcher)) {
	NewDispatcher(c, options...).Run(ctx)
}
