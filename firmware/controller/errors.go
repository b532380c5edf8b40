package controller

// Error is a constant error used by the firmware core
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrNotReady      = Error("scale not ready")
	ErrInvalidFactor = Error("invalid scale factor")
	ErrShortRead     = Error("short storage read")
	ErrShortWrite    = Error("short storage write")
	ErrInvalidPeriod = Error("task period must be positive")
	ErrNoSensor      = Error("no temperature sensor")
)
