package controller

import (
	"io"
	"time"
)

// RawScale is the load-cell amplifier. ReadRaw blocks until a conversion is available or returns ErrNotReady
type RawScale interface {
	IsReady() bool
	ReadRaw() (int32, error)
}

// Thermometer is the one-wire temperature bus with a single sensor
type Thermometer interface {
	RequestTemperatures() error
	ReadTemperature() (float32, error)
}

// Display is a cursor-addressed character display
type Display interface {
	Clear()
	SetCursor(col, row uint8)
	Print(s string)
}

// Pump is the H-bridge driven pump. Only the forward direction is used
type Pump interface {
	Forward()
	Stop()
}

// Storage is byte-addressed non-volatile memory. Writes are only durable after Commit
type Storage interface {
	io.ReaderAt
	io.WriterAt
	Commit() error
}

// Transport is the serial link to the phone or host. Buffered reports how many bytes can be read without waiting
type Transport interface {
	io.Writer
	Buffered() int
	ReadByte() (byte, error)
}

// Clock provides time to the state machines so that tests do not have to wait through real delays
type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

// SystemClock uses the runtime clock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
