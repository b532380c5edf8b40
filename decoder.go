package dispenser

import (
	"bufio"
	"errors"
	"io"
	"math"
)

var errMalformed = errors.New("malformed reading")

// ReadingDecoder splits the unframed stream of Readings sent by the scale board. Frames are not
// terminated, so a number ends exactly two digits after its decimal point
type ReadingDecoder struct {
	r *bufio.Reader
}

// NewReadingDecoder creates a decoder reading from r
func NewReadingDecoder(r io.Reader) *ReadingDecoder {
	return &ReadingDecoder{r: bufio.NewReader(r)}
}

// Decode returns the next complete Reading. Bytes that cannot start or continue a Reading are skipped,
// so the decoder resynchronizes after noise or a partial frame. Only errors from the underlying reader
// are returned
func (d *ReadingDecoder) Decode() (Reading, error) {
	for {
		weight, err := d.number()
		if errors.Is(err, errMalformed) {
			continue
		}
		if err != nil {
			return Reading{}, err
		}

		sep, err := d.r.ReadByte()
		if err != nil {
			return Reading{}, err
		}
		if sep != Separator {
			_ = d.r.UnreadByte()
			continue
		}

		temperature, err := d.number()
		if errors.Is(err, errMalformed) {
			continue
		}
		if err != nil {
			return Reading{}, err
		}

		return Reading{Weight: weight, Temperature: temperature}, nil
	}
}

// number reads one float printed by AppendFloat. On errMalformed the offending byte is left unread
// unless it was the first byte of the token
func (d *ReadingDecoder) number() (float32, error) {
	c, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}

	negative := false
	if c == '-' {
		negative = true
		c, err = d.r.ReadByte()
		if err != nil {
			return 0, err
		}
	}

	sign := 1
	if negative {
		sign = -1
	}

	switch c {
	case 'n':
		return float32(math.NaN()), d.literal("an")
	case 'i':
		return float32(math.Inf(sign)), d.literal("nf")
	case 'o':
		return float32(math.Inf(sign)), d.literal("vf")
	}

	if !isDigit(c) {
		if negative {
			_ = d.r.UnreadByte()
		}
		return 0, errMalformed
	}

	var intPart uint64
	for isDigit(c) {
		intPart = intPart*10 + uint64(c-'0')
		c, err = d.r.ReadByte()
		if err != nil {
			return 0, err
		}
	}
	if c != '.' {
		_ = d.r.UnreadByte()
		return 0, errMalformed
	}

	var frac uint64
	for range 2 {
		c, err = d.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if !isDigit(c) {
			_ = d.r.UnreadByte()
			return 0, errMalformed
		}
		frac = frac*10 + uint64(c-'0')
	}

	v := float64(intPart) + float64(frac)/100
	if negative {
		v = -v
	}
	return float32(v), nil
}

func (d *ReadingDecoder) literal(rest string) error {
	for i := 0; i < len(rest); i++ {
		c, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		if c != rest[i] {
			_ = d.r.UnreadByte()
			return errMalformed
		}
	}
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
