package controller

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int, d time.Duration)
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	n := len(c.sleeps)
	onSleep := c.onSleep
	c.mu.Unlock()

	if onSleep != nil {
		onSleep(n, d)
	}
}

func (c *fakeClock) total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}
	return total
}

type fakeRawScale struct {
	mu    sync.Mutex
	value int32
	err   error
	reads int
}

func (s *fakeRawScale) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err == nil
}

func (s *fakeRawScale) ReadRaw() (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.value, s.err
}

func (s *fakeRawScale) set(v int32) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
}

type fakeThermometer struct {
	temperature float32
	err         error
}

func (t *fakeThermometer) RequestTemperatures() error {
	return nil
}

func (t *fakeThermometer) ReadTemperature() (float32, error) {
	return t.temperature, t.err
}

// fakeDisplay keeps a transcript of everything printed, one entry per Print
type fakeDisplay struct {
	printed []string
	clears  int
}

func (d *fakeDisplay) Clear() {
	d.clears++
}

func (d *fakeDisplay) SetCursor(col, row uint8) {}

func (d *fakeDisplay) Print(s string) {
	d.printed = append(d.printed, s)
}

func (d *fakeDisplay) text() string {
	return strings.Join(d.printed, "")
}

type fakePump struct {
	mu      sync.Mutex
	forward int
	stop    int
	running bool
	toggled bool
}

func (p *fakePump) Forward() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forward++
	p.running = true
	p.toggled = true
}

func (p *fakePump) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop++
	p.running = false
	p.toggled = true
}

type failingStorage struct{}

func (failingStorage) ReadAt(p []byte, off int64) (int, error) {
	return 0, errors.New("bus error")
}

func (failingStorage) WriteAt(p []byte, off int64) (int, error) {
	return 0, errors.New("bus error")
}

func (failingStorage) Commit() error {
	return errors.New("bus error")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type pinRecorder struct {
	values []bool
}

func (p *pinRecorder) Set(v bool) {
	p.values = append(p.values, v)
}

func (p *pinRecorder) last() bool {
	return p.values[len(p.values)-1]
}
