package dispenser

import (
	"math"
	"strconv"
)

// Command values understood by the scale board. Any other integer received is a dispense request in millilitres
const (
	CommandTare      = -1
	CommandCalibrate = -2
)

// Separator splits weight and temperature in a transmitted Reading
const Separator = '|'

// DisconnectedC is the temperature reported when the one-wire sensor does not answer
const DisconnectedC float32 = -127

// Reading is one weighing iteration as it is sent over the Bluetooth link
type Reading struct {
	Weight      float32
	Temperature float32
}

// String formats the Reading exactly as it goes on the wire, like "23.46|19.10"
func (r Reading) String() string {
	return string(r.AppendTo(nil))
}

// AppendTo appends the wire form of the Reading to b. No terminator is written
func (r Reading) AppendTo(b []byte) []byte {
	b = AppendFloat(b, r.Weight)
	b = append(b, Separator)
	return AppendFloat(b, r.Temperature)
}

// FormatFloat formats f with two decimals the way the display and serial drivers print floats
func FormatFloat(f float32) string {
	return string(AppendFloat(nil, f))
}

// AppendFloat appends f with two decimals. Rounding adds half of the last digit and truncates, and
// out of range values print as "nan", "inf" or "ovf" instead of digits
func AppendFloat(b []byte, f float32) []byte {
	const digits = 2

	n := float64(f)
	switch {
	case math.IsNaN(n):
		return append(b, "nan"...)
	case math.IsInf(n, 0):
		return append(b, "inf"...)
	case n > 4294967040.0, n < -4294967040.0:
		return append(b, "ovf"...)
	}

	if n < 0 {
		b = append(b, '-')
		n = -n
	}

	rounding := 0.5
	for range digits {
		rounding /= 10
	}
	n += rounding

	intPart := uint32(n)
	remainder := n - float64(intPart)
	b = strconv.AppendUint(b, uint64(intPart), 10)
	b = append(b, '.')
	for range digits {
		remainder *= 10
		d := uint8(remainder)
		b = append(b, '0'+d)
		remainder -= float64(d)
	}
	return b
}

// EncodeCommand returns the bytes sent to the scale board for the command value v. The leading space
// separates it from the previous command. Nothing may follow the digits: the board parses any byte left
// over as another command, and a lone separator parses as a request for 0 ml
func EncodeCommand(v int) []byte {
	return strconv.AppendInt([]byte{' '}, int64(v), 10)
}
