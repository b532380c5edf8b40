package controller

import (
	"io"
	"strconv"
	"sync/atomic"
	"time"
)

// DefaultDebounce is the minimum time between two counted encoder edges
const DefaultDebounce = 1000 * time.Microsecond

// DebouncedCounter counts encoder edges, ignoring edges closer than the debounce window to the last
// counted one. Edge is called from the pin interrupt
type DebouncedCounter struct {
	count    atomic.Uint32
	last     atomic.Int64
	debounce time.Duration
}

// NewDebouncedCounter creates a counter with the given debounce window
func NewDebouncedCounter(debounce time.Duration) *DebouncedCounter {
	return &DebouncedCounter{debounce: debounce}
}

// Edge handles an interrupt at time now since boot. The edge is counted when the pin still reads high
// and more than the debounce window passed since the last counted edge
func (c *DebouncedCounter) Edge(high bool, now time.Duration) {
	if !high {
		return
	}
	if now-time.Duration(c.last.Load()) <= c.debounce {
		return
	}
	c.count.Add(1)
	c.last.Store(int64(now))
}

// Load returns the edges counted since the last Reset
func (c *DebouncedCounter) Load() uint32 {
	return c.count.Load()
}

// Reset zeroes the count and returns the replaced value
func (c *DebouncedCounter) Reset() uint32 {
	return c.count.Swap(0)
}

// RPMMeter periodically converts encoder pulses to revolutions per minute, shows them on the display
// and sends them over the transport
type RPMMeter struct {
	counter             *DebouncedCounter
	pulsesPerRevolution int
	interval            time.Duration

	display   Display
	transport io.Writer

	last time.Duration
	rpm  float32
}

// NewRPMMeter creates an RPMMeter that updates every interval. start is the current time since boot
func NewRPMMeter(counter *DebouncedCounter, pulsesPerRevolution int, interval time.Duration, display Display, transport io.Writer, start time.Duration) *RPMMeter {
	return &RPMMeter{
		counter:             counter,
		pulsesPerRevolution: pulsesPerRevolution,
		interval:            interval,
		display:             display,
		transport:           transport,
		last:                start,
	}
}

// Update computes, shows and sends the speed if at least one interval passed since the last update.
// It returns true when an update happened
func (m *RPMMeter) Update(now time.Duration) bool {
	elapsed := now - m.last
	if elapsed < m.interval {
		return false
	}

	seconds := float32(elapsed.Milliseconds()) / 1000
	revolutions := float32(m.counter.Reset()) / float32(m.pulsesPerRevolution)
	m.rpm = (revolutions / seconds) * 60

	buf := FormatRPM(m.rpm)
	m.display.SetCursor(0, 0)
	m.display.Print("Vel Ang: " + buf + " RPM")
	_, _ = io.WriteString(m.transport, buf)

	m.last = now
	return true
}

// RPM returns the speed computed by the last update
func (m *RPMMeter) RPM() float32 {
	return m.rpm
}

// FormatRPM formats rpm right aligned in 5 characters with one decimal
func FormatRPM(rpm float32) string {
	s := strconv.FormatFloat(float64(rpm), 'f', 1, 32)
	for len(s) < 5 {
		s = " " + s
	}
	return s
}

// SpeedFromByte converts a received speed byte to stepper steps per second. The factor 800/60 is truncated
// to 13 steps per second per unit
func SpeedFromByte(d byte) float32 {
	return float32(int(d) * (800 / 60))
}
