package controller

import "sync/atomic"

// PulseCounter counts rising edges from the flow sensor. Inc is the whole interrupt handler, so it must
// stay non-blocking. There is no debounce or filtering
type PulseCounter struct {
	count atomic.Uint32
}

// Inc records one edge
func (c *PulseCounter) Inc() {
	c.count.Add(1)
}

// Load returns a consistent snapshot of the count
func (c *PulseCounter) Load() uint32 {
	return c.count.Load()
}

// Reset sets the count to zero and returns the count it replaced. Edges arriving concurrently are
// counted either in the returned value or after the reset, never both
func (c *PulseCounter) Reset() uint32 {
	return c.count.Swap(0)
}
