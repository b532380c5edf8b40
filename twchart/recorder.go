package twchart

import (
	"context"
	"time"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/link"
)

type sessionClient interface {
	Start(ctx context.Context, at time.Time) error
	AddDispenseStage(ctx context.Context, ml int, at time.Time) error
	AddCommandEvent(ctx context.Context, command string, at time.Time) error
	Done(ctx context.Context, at time.Time) error
}

var _ sessionClient = (*Client)(nil)

// Recorder passes the commands sent to the dispenser to a chart session. The first command starts it
type Recorder struct {
	client sessionClient
}

var _ link.Recorder = (*Recorder)(nil)

// NewRecorder creates a Recorder for a session already created on c
func NewRecorder(c *Client) *Recorder {
	return &Recorder{client: c}
}

// RecordCommand implements link.Recorder
func (r *Recorder) RecordCommand(ctx context.Context, c link.Command) error {
	err := r.client.Start(ctx, c.Time)
	if err != nil {
		return err
	}

	if c.Name == "dispense" {
		return r.client.AddDispenseStage(ctx, c.Value, c.Time)
	}
	return r.client.AddCommandEvent(ctx, c.Name, c.Time)
}

// RecordReading implements link.Recorder. Readings are not uploaded
func (r *Recorder) RecordReading(context.Context, dispenser.Reading, time.Time) error {
	return nil
}

// Done ends the session
func (r *Recorder) Done(ctx context.Context) error {
	return r.client.Done(ctx, time.Now())
}
