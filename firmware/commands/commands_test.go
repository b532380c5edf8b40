package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinmclean/dispenser/firmware/controller"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(time.Time{})
}

// fakeController records commands and serves input from a byte queue
type fakeController struct {
	mu    sync.Mutex
	input []byte
	calls []string
	ml    []float64
}

func (c *fakeController) push(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = append(c.input, s...)
}

func (c *fakeController) Tare() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "tare")
}

func (c *fakeController) Calibrate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "calibrate")
}

func (c *fakeController) Dispense(ml float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "dispense")
	c.ml = append(c.ml, ml)
}

func (c *fakeController) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.input)
}

func (c *fakeController) ReadByte() (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.input) == 0 {
		return 0, errors.New("empty")
	}
	b := c.input[0]
	c.input = c.input[1:]
	return b, nil
}

func (c *fakeController) history() ([]string, []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.calls...), append([]float64{}, c.ml...)
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []int32
	}{
		{"Positive", "250", []int32{250}},
		{"Negative", "-1", []int32{-1}},
		{"SkipsLeadingNoise", "ml=  42", []int32{42}},
		{"StopsAtNonDigit", "12a34", []int32{12, 34}},
		{"Newlines", "-2\n100", []int32{-2, 100}},
		{"DecimalIsTwoNumbers", "1.5", []int32{1, 5}},
		{"MinusAfterDigitsStartsNext", "5-3", []int32{5, -3}},
		{"LoneMinusIsZero", "-", []int32{0}},
		{"NoDigitsTimesOut", "abc", []int32{0}},
		{"Wraps", "4294967297", []int32{1}},
		{"WrapsNegative", "-2147483648", []int32{-2147483648}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeController{}
			c.push(tt.input)
			p := NewParser(c, &fakeClock{}, DefaultTimeout)

			for _, expected := range tt.expected {
				assert.Equal(t, expected, p.ParseInt())
			}
			assert.Equal(t, 0, p.Buffered())
		})
	}
}

func TestParseIntTimeout(t *testing.T) {
	c := &fakeController{}
	clock := &fakeClock{}
	p := NewParser(c, clock, DefaultTimeout)

	assert.Equal(t, int32(0), p.ParseInt())
	assert.Equal(t, DefaultTimeout, clock.elapsed())
}

func TestParseIntKeepsLookahead(t *testing.T) {
	c := &fakeController{}
	c.push("7 8")
	p := NewParser(c, &fakeClock{}, DefaultTimeout)

	assert.Equal(t, int32(7), p.ParseInt())
	// the space was peeked and is still pending
	assert.Equal(t, 2, p.Buffered())
	assert.Equal(t, int32(8), p.ParseInt())
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name          string
		values        []int32
		expectedCalls []string
		expectedMl    []float64
	}{
		{"Tare", []int32{-1}, []string{"tare"}, nil},
		{"Calibrate", []int32{-2}, []string{"calibrate"}, nil},
		{"Dispense", []int32{250}, []string{"dispense"}, []float64{250}},
		{"Zero", []int32{0}, []string{"dispense"}, []float64{0}},
		{"OtherNegative", []int32{-3}, []string{"dispense"}, []float64{-3}},
		{
			"Sequence",
			[]int32{-2, 30, -1, 40},
			[]string{"calibrate", "dispense", "tare", "dispense"},
			[]float64{30, 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeController{}
			d := NewDispatcher(c)
			for _, v := range tt.values {
				d.Dispatch(v)
			}

			calls, ml := c.history()
			assert.Equal(t, tt.expectedCalls, calls)
			if tt.expectedMl == nil {
				assert.Empty(t, ml)
			} else {
				assert.Equal(t, tt.expectedMl, ml)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	assert.Same(t, TareCommand, Lookup(-1))
	assert.Same(t, CalibrateCommand, Lookup(-2))
	assert.Same(t, DispenseCommand, Lookup(15))
}

func TestHelp(t *testing.T) {
	help := Help()
	assert.Contains(t, help, "-1: ")
	assert.Contains(t, help, "-2: ")
	assert.Contains(t, help, "other: ")
}

func TestPollOnlyWhenBuffered(t *testing.T) {
	c := &fakeController{}
	clock := &fakeClock{}
	d := NewDispatcher(c, WithClock(clock))

	assert.False(t, d.Poll())
	assert.Zero(t, clock.elapsed())

	c.push("-1\n")
	assert.True(t, d.Poll())
	calls, _ := c.history()
	assert.Equal(t, []string{"tare"}, calls)

	// the newline was left as lookahead and parses to nothing
	assert.True(t, d.Poll())
	calls, ml := c.history()
	assert.Equal(t, []string{"tare", "dispense"}, calls)
	assert.Equal(t, []float64{0}, ml)
}

func TestPollLeadingSeparators(t *testing.T) {
	c := &fakeController{}
	d := NewDispatcher(c, WithClock(&fakeClock{}))

	c.push(" -1 250")
	assert.True(t, d.Poll())
	assert.True(t, d.Poll())
	assert.False(t, d.Poll())

	calls, ml := c.history()
	assert.Equal(t, []string{"tare", "dispense"}, calls)
	assert.Equal(t, []float64{250}, ml)
}

func TestRun(t *testing.T) {
	c := &fakeController{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		Run(ctx, c, WithPollInterval(time.Millisecond), WithTimeout(10*time.Millisecond), WithLogger(&controller.NullLogger{}))
		close(done)
	}()

	c.push("-2")
	require.Eventually(t, func() bool {
		calls, _ := c.history()
		return len(calls) > 0
	}, time.Second, time.Millisecond)

	c.push("120")
	require.Eventually(t, func() bool {
		_, ml := c.history()
		return len(ml) == 1 && ml[0] == 120
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}

	calls, _ := c.history()
	assert.Equal(t, "calibrate", calls[0])
}
