package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/config"
	"github.com/calvinmclean/dispenser/firmware/commands"
	"github.com/calvinmclean/dispenser/firmware/controller"
)

// baseRaw is the load cell output of the empty platform
const baseRaw = 8_388_607 / 16

// Simulator runs the scale board firmware in-process against simulated peripherals. A simulated operator
// places and removes the reference weight when the display asks for it during calibration
type Simulator struct {
	cfg    *config.MockConfig
	logger controller.Logger

	state      *controller.State
	weighing   *controller.WeighingMachine
	dispensing *controller.DispensingMachine
	scheduler  *controller.Scheduler
	dispatcher *commands.Dispatcher
	clock      controller.Clock

	scale   *simScale
	pump    *simPump
	display *simDisplay
	inbox   *inbox

	out      *io.PipeReader
	in       *io.PipeWriter
	readings chan dispenser.Reading

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// NewSimulator creates a simulated dispenser. A nil config uses the defaults
func NewSimulator(cfg *config.MockConfig, options ...func(*Simulator)) (*Simulator, error) {
	if cfg == nil {
		cfg = &config.Default().Mock
	}

	mode, err := cfg.ParseDispenseMode()
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:      cfg,
		logger:   &controller.NullLogger{},
		clock:    scaledClock{scale: cfg.TimeScale, start: time.Now()},
		scale:    &simScale{rawPerGram: cfg.RawPerGram},
		pump:     &simPump{},
		display:  newSimDisplay(),
		inbox:    &inbox{},
		readings: make(chan dispenser.Reading, DefaultBufferSize),
	}

	for _, option := range options {
		option(s)
	}

	s.display.onPrint = s.operate

	firmwareCfg := controller.DefaultConfig()
	firmwareCfg.DispenseMode = mode
	firmwareCfg.ReferenceWeight = cfg.ReferenceWeight

	var stateOptions []func(*controller.State)
	stateOptions = append(stateOptions, controller.WithStateLogger(s.logger))
	if cfg.CalibrationGuard {
		stateOptions = append(stateOptions, controller.WithCalibrationGuard())
	}
	s.state = controller.NewState(stateOptions...)

	storage := controller.NewMemoryStorage(controller.CalibrationSize)
	calibration := controller.NewCalibrationStore(storage)
	if err := calibration.Save(cfg.RawPerGram); err != nil {
		return nil, fmt.Errorf("error storing initial calibration: %w", err)
	}

	s.out, s.in = io.Pipe()

	s.weighing = controller.NewWeighingMachine(
		s.state,
		controller.NewLoadCell(s.scale),
		simThermometer{temperature: cfg.Temperature},
		s.display,
		s.in,
		calibration,
		firmwareCfg,
		controller.WithWeighingClock(s.clock),
		controller.WithWeighingLogger(s.logger),
	)
	s.dispensing = controller.NewDispensingMachine(
		s.state,
		s.pump,
		firmwareCfg,
		controller.WithDispensingClock(s.clock),
		controller.WithDispensingLogger(s.logger),
	)
	s.scheduler = controller.NewScheduler(
		controller.WithSchedulerClock(s.clock),
		controller.WithSchedulerLogger(s.logger),
	)
	s.dispatcher = commands.NewDispatcher(
		&simBoard{state: s.state, inbox: s.inbox},
		commands.WithClock(s.clock),
		commands.WithLogger(s.logger),
	)

	return s, nil
}

// WithSimulatorLogger sets the Logger used by the simulated firmware
func WithSimulatorLogger(l controller.Logger) func(*Simulator) {
	return func(s *Simulator) {
		s.logger = l
	}
}

// Connect boots the simulated board
func (s *Simulator) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	go s.readReadings()

	s.weighing.Begin()

	err := s.scheduler.Start(s.ctx, controller.Task{
		Name:   "dispensing",
		Period: controller.DefaultConfig().DispensingPeriod,
		Step:   s.dispensing.Step,
	})
	if err != nil {
		return err
	}
	err = s.scheduler.Start(s.ctx, controller.Task{
		Name:   "weighing",
		Period: controller.DefaultConfig().WeighingPeriod,
		Step:   s.weighing.Step,
	})
	if err != nil {
		return err
	}
	err = s.scheduler.Start(s.ctx, controller.Task{
		Name:   "flow",
		Period: s.cfg.PumpStep,
		Step:   s.flow,
	})
	if err != nil {
		return err
	}

	go s.dispatcher.Run(s.ctx)

	s.connected = true
	return nil
}

// Close stops the simulated board. Tasks in the middle of a long delay finish it in the background
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	s.cancel()
	s.connected = false

	return s.out.Close()
}

// Readings returns the channel of readings sent by the simulated board
func (s *Simulator) Readings() <-chan dispenser.Reading {
	return s.readings
}

// Tare sends the tare command
func (s *Simulator) Tare() error {
	return s.send(dispenser.CommandTare)
}

// Calibrate sends the calibrate command
func (s *Simulator) Calibrate() error {
	return s.send(dispenser.CommandCalibrate)
}

// Dispense requests ml millilitres
func (s *Simulator) Dispense(ml int) error {
	if err := validateVolume(ml); err != nil {
		return err
	}
	return s.send(ml)
}

// SetLoad puts grams on the platform
func (s *Simulator) SetLoad(grams float32) {
	s.scale.set(grams)
}

// SetGain changes the raw load cell counts per gram, like a drifting load cell would
func (s *Simulator) SetGain(rawPerGram float32) {
	s.scale.setGain(rawPerGram)
}

// Load returns the grams on the platform
func (s *Simulator) Load() float32 {
	return s.scale.get()
}

// Display returns the two lines of the LCD
func (s *Simulator) Display() []string {
	return s.display.lines()
}

// PumpRunning reports whether the pump is on
func (s *Simulator) PumpRunning() bool {
	return s.pump.running.Load()
}

// State exposes the firmware state
func (s *Simulator) State() *controller.State {
	return s.state
}

func (s *Simulator) send(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}

	s.inbox.write(dispenser.EncodeCommand(v))
	return nil
}

// flow emits flow sensor pulses while the pump runs and pours the liquid on the platform
func (s *Simulator) flow() {
	if !s.pump.running.Load() {
		return
	}
	for range s.cfg.PulsesPerStep {
		s.state.Pulses().Inc()
	}
	s.scale.add(float32(float64(s.cfg.PulsesPerStep) * controller.DefaultConfig().MlPerPulse))
}

// operate is the simulated operator reacting to the calibration prompts
func (s *Simulator) operate(text string) {
	switch text {
	case "Ponga el peso":
		s.scale.add(s.cfg.ReferenceWeight)
	case "Retire el peso":
		s.scale.add(-s.cfg.ReferenceWeight)
	}
}

func (s *Simulator) readReadings() {
	defer close(s.readings)

	decoder := dispenser.NewReadingDecoder(s.out)
	for {
		r, err := decoder.Decode()
		if err != nil {
			if !errors.Is(err, io.ErrClosedPipe) {
				s.logger.Errorf("error decoding simulated reading: %v", err)
			}
			return
		}

		select {
		case s.readings <- r:
		default:
			s.logger.Warn("readings channel full, dropping reading")
		}
	}
}

// scaledClock runs time faster than real time, so that delays and the command parse timeout shrink together
type scaledClock struct {
	scale float64
	start time.Time
}

func (c scaledClock) Now() time.Time {
	if c.scale <= 0 {
		return time.Now()
	}
	return c.start.Add(time.Duration(float64(time.Since(c.start)) * c.scale))
}

func (c scaledClock) Sleep(d time.Duration) {
	if c.scale > 0 {
		d = time.Duration(float64(d) / c.scale)
	}
	time.Sleep(d)
}

type simScale struct {
	mu         sync.Mutex
	grams      float32
	rawPerGram float32
}

func (s *simScale) IsReady() bool {
	return true
}

func (s *simScale) ReadRaw() (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return baseRaw + int32(s.grams*s.rawPerGram), nil
}

func (s *simScale) set(grams float32) {
	s.mu.Lock()
	s.grams = grams
	s.mu.Unlock()
}

func (s *simScale) setGain(rawPerGram float32) {
	s.mu.Lock()
	s.rawPerGram = rawPerGram
	s.mu.Unlock()
}

func (s *simScale) add(grams float32) {
	s.mu.Lock()
	s.grams += grams
	s.mu.Unlock()
}

func (s *simScale) get() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grams
}

type simThermometer struct {
	temperature float32
}

func (t simThermometer) RequestTemperatures() error {
	return nil
}

func (t simThermometer) ReadTemperature() (float32, error) {
	return t.temperature, nil
}

type simPump struct {
	running atomic.Bool
}

func (p *simPump) Forward() {
	p.running.Store(true)
}

func (p *simPump) Stop() {
	p.running.Store(false)
}

const (
	displayWidth  = 16
	displayHeight = 2
)

// simDisplay is a 16x2 character LCD
type simDisplay struct {
	mu       sync.Mutex
	rows     [displayHeight][]byte
	col, row int
	onPrint  func(string)
}

func newSimDisplay() *simDisplay {
	d := &simDisplay{}
	d.Clear()
	return d
}

func (d *simDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.rows {
		d.rows[i] = []byte(strings.Repeat(" ", displayWidth))
	}
	d.col, d.row = 0, 0
}

func (d *simDisplay) SetCursor(col, row uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.col, d.row = int(col), int(row)
}

func (d *simDisplay) Print(s string) {
	d.mu.Lock()
	if d.row < displayHeight {
		for i := 0; i < len(s) && d.col < displayWidth; i++ {
			d.rows[d.row][d.col] = s[i]
			d.col++
		}
	}
	onPrint := d.onPrint
	d.mu.Unlock()

	if onPrint != nil {
		onPrint(s)
	}
}

func (d *simDisplay) lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return []string{string(d.rows[0]), string(d.rows[1])}
}

// inbox is the receive buffer of the simulated UART
type inbox struct {
	mu  sync.Mutex
	buf []byte
}

func (b *inbox) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
}

func (b *inbox) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

func (b *inbox) ReadByte() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return 0, io.EOF
	}
	c := b.buf[0]
	b.buf = b.buf[1:]
	return c, nil
}

// simBoard connects the dispatcher to the simulated state and UART
type simBoard struct {
	state *controller.State
	inbox *inbox
}

func (b *simBoard) Tare() {
	b.state.Tare()
}

func (b *simBoard) Calibrate() {
	b.state.Calibrate()
}

func (b *simBoard) Dispense(ml float64) {
	b.state.Dispense(ml)
}

func (b *simBoard) Buffered() int {
	return b.inbox.Buffered()
}

func (b *simBoard) ReadByte() (byte, error) {
	return b.inbox.ReadByte()
}
