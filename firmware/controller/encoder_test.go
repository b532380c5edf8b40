package controller

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncedCounter(t *testing.T) {
	c := NewDebouncedCounter(DefaultDebounce)

	edges := []struct {
		high bool
		at   time.Duration
	}{
		{true, 500 * time.Microsecond},  // within the window of boot
		{true, 2 * time.Millisecond},    // counted
		{true, 2500 * time.Microsecond}, // bounce
		{true, 3 * time.Millisecond},    // exactly at the window, not counted
		{false, 5 * time.Millisecond},   // pin already low
		{true, 3100 * time.Microsecond}, // counted
		{true, 10 * time.Millisecond},   // counted
	}
	for _, e := range edges {
		c.Edge(e.high, e.at)
	}

	assert.Equal(t, uint32(3), c.Load())
	assert.Equal(t, uint32(3), c.Reset())
	assert.Equal(t, uint32(0), c.Load())
}

func TestRPMMeter(t *testing.T) {
	c := NewDebouncedCounter(DefaultDebounce)
	display := &fakeDisplay{}
	var out bytes.Buffer

	m := NewRPMMeter(c, 25, 2500*time.Millisecond, display, &out, 0)

	for i := range 25 {
		c.Edge(true, time.Duration(i+2)*10*time.Millisecond)
	}

	assert.False(t, m.Update(2499*time.Millisecond))
	assert.Empty(t, out.String())

	assert.True(t, m.Update(2500*time.Millisecond))
	assert.Equal(t, float32(24), m.RPM())
	assert.Equal(t, " 24.0", out.String())
	assert.Equal(t, "Vel Ang:  24.0 RPM", display.text())
	assert.Equal(t, uint32(0), c.Load())

	// nothing counted in the next window
	assert.True(t, m.Update(5000*time.Millisecond))
	assert.Equal(t, float32(0), m.RPM())
	assert.Equal(t, " 24.0  0.0", out.String())
}

func TestFormatRPM(t *testing.T) {
	tests := []struct {
		in       float32
		expected string
	}{
		{0, "  0.0"},
		{24, " 24.0"},
		{123.46, "123.5"},
		{1234.5, "1234.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatRPM(tt.in))
	}
}

func TestSpeedFromByte(t *testing.T) {
	assert.Equal(t, float32(0), SpeedFromByte(0))
	assert.Equal(t, float32(13), SpeedFromByte(1))
	assert.Equal(t, float32(780), SpeedFromByte(60))
	assert.Equal(t, float32(3315), SpeedFromByte(255))
}
