package link

import (
	"context"
	"sync"
	"time"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/firmware/controller"
)

// Hub distributes the readings of one Device to any number of subscribers. It keeps the latest reading and
// passes every reading to its Recorder
type Hub struct {
	src      <-chan dispenser.Reading
	recorder Recorder
	logger   controller.Logger

	mu          sync.RWMutex
	latest      dispenser.Reading
	latestAt    time.Time
	subscribers []chan dispenser.Reading
	stopped     bool
}

// NewHub creates a Hub reading from src
func NewHub(src <-chan dispenser.Reading, options ...func(*Hub)) *Hub {
	h := &Hub{
		src:      src,
		recorder: noopRecorder{},
		logger:   &controller.NullLogger{},
	}

	for _, option := range options {
		option(h)
	}
	return h
}

// WithRecorder sets the Recorder that receives every reading
func WithRecorder(r Recorder) func(*Hub) {
	return func(h *Hub) {
		h.recorder = r
	}
}

// WithHubLogger sets the Logger
func WithHubLogger(l controller.Logger) func(*Hub) {
	return func(h *Hub) {
		h.logger = l
	}
}

// Subscribe returns a channel that receives readings. Slow subscribers miss readings instead of blocking
// the others. The channel is closed when Run returns, or right away if it already has
func (h *Hub) Subscribe(bufSize int) <-chan dispenser.Reading {
	ch := make(chan dispenser.Reading, bufSize)

	h.mu.Lock()
	if h.stopped {
		close(ch)
	} else {
		h.subscribers = append(h.subscribers, ch)
	}
	h.mu.Unlock()

	return ch
}

// Latest returns the last reading and when it arrived. ok is false until the first reading
func (h *Hub) Latest() (r dispenser.Reading, at time.Time, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.latestAt, !h.latestAt.IsZero()
}

// Run distributes readings until the source is closed or ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for _, ch := range h.subscribers {
			close(ch)
		}
		h.subscribers = nil
		h.stopped = true
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-h.src:
			if !ok {
				return
			}
			h.publish(ctx, r)
		}
	}
}

func (h *Hub) publish(ctx context.Context, r dispenser.Reading) {
	now := time.Now()

	h.mu.Lock()
	h.latest = r
	h.latestAt = now
	subscribers := h.subscribers
	h.mu.Unlock()

	if err := h.recorder.RecordReading(ctx, r, now); err != nil {
		h.logger.Errorf("error recording reading: %v", err)
	}

	for _, ch := range subscribers {
		select {
		case ch <- r:
		default:
		}
	}
}
