package device

import (
	"machine"
	"runtime/interrupt"
	"time"

	"github.com/calvinmclean/dispenser/firmware/controller"
)

const defaultReadyTimeout = 500 * time.Millisecond

// HX711 bit-bangs the HX711 serial protocol. Every read selects channel A with gain 128 for the next
// conversion
type HX711 struct {
	data  machine.Pin
	clock machine.Pin

	readyTimeout time.Duration
}

// NewHX711 configures the pins and powers the amplifier up
func NewHX711(cfg ScaleConfig) *HX711 {
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}

	h := &HX711{
		data:         cfg.Data,
		clock:        cfg.Clock,
		readyTimeout: cfg.ReadyTimeout,
	}
	h.data.Configure(machine.PinConfig{Mode: machine.PinInput})
	h.clock.Configure(machine.PinConfig{Mode: machine.PinOutput})
	h.clock.Low()
	return h
}

// IsReady is true when a conversion is waiting to be read
func (h *HX711) IsReady() bool {
	return !h.data.Get()
}

// ReadRaw waits for the next conversion and returns it sign extended
func (h *HX711) ReadRaw() (int32, error) {
	deadline := time.Now().Add(h.readyTimeout)
	for !h.IsReady() {
		if time.Now().After(deadline) {
			return 0, controller.ErrNotReady
		}
		time.Sleep(time.Millisecond)
	}

	// holding the clock high for more than 60us powers the chip down, so the pulses must not be interrupted
	state := interrupt.Disable()
	var v uint32
	for range 24 {
		h.clock.High()
		pulseDelay()
		v <<= 1
		if h.data.Get() {
			v |= 1
		}
		h.clock.Low()
		pulseDelay()
	}

	// 25th pulse: channel A, gain 128
	h.clock.High()
	pulseDelay()
	h.clock.Low()
	pulseDelay()
	interrupt.Restore(state)

	if v&0x800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v), nil
}

// pulseDelay keeps each clock level for at least one microsecond
func pulseDelay() {
	start := time.Now()
	for time.Since(start) < time.Microsecond {
	}
}
