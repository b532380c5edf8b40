package controller

import "github.com/chewxy/math32"

// LoadCell converts raw amplifier readings to weight. It keeps the tare offset and the scale factor
// the same way the HX711 Arduino library does
type LoadCell struct {
	raw    RawScale
	offset int32
	scale  float32
}

// NewLoadCell creates a LoadCell with zero offset and a scale factor of 1
func NewLoadCell(raw RawScale) *LoadCell {
	return &LoadCell{raw: raw, scale: 1}
}

// IsReady reports if the amplifier has a conversion ready
func (l *LoadCell) IsReady() bool {
	return l.raw.IsReady()
}

// Read returns a single raw conversion
func (l *LoadCell) Read() (int32, error) {
	return l.raw.ReadRaw()
}

// ReadAverage averages up to times raw conversions. Failed conversions are left out of the average and
// ErrNotReady is only returned if none succeeded
func (l *LoadCell) ReadAverage(times uint8) (int32, error) {
	if times == 0 {
		times = 1
	}

	var (
		sum int64
		n   int64
	)
	for range times {
		v, err := l.raw.ReadRaw()
		if err != nil {
			continue
		}
		sum += int64(v)
		n++
	}
	if n == 0 {
		return 0, ErrNotReady
	}
	return int32(sum / n), nil
}

// Value returns the averaged reading minus the tare offset
func (l *LoadCell) Value(times uint8) (float64, error) {
	avg, err := l.ReadAverage(times)
	if err != nil {
		return 0, err
	}
	return float64(avg) - float64(l.offset), nil
}

// Units returns the averaged reading in calibrated units
func (l *LoadCell) Units(times uint8) (float32, error) {
	v, err := l.Value(times)
	if err != nil {
		return 0, err
	}
	return float32(v) / l.scale, nil
}

// Tare takes the averaged reading as the new zero. The previous offset is kept if nothing could be read
func (l *LoadCell) Tare(times uint8) error {
	avg, err := l.ReadAverage(times)
	if err != nil {
		return err
	}
	l.offset = avg
	return nil
}

// SetScale sets the factor between raw units and weight. Zero and non-finite factors are rejected because
// Units divides by it
func (l *LoadCell) SetScale(scale float32) error {
	if !ValidFactor(scale) {
		return ErrInvalidFactor
	}
	l.scale = scale
	return nil
}

// Scale returns the current scale factor
func (l *LoadCell) Scale() float32 {
	return l.scale
}

// SetOffset sets the tare offset
func (l *LoadCell) SetOffset(offset int32) {
	l.offset = offset
}

// Offset returns the current tare offset
func (l *LoadCell) Offset() int32 {
	return l.offset
}

// ValidFactor reports if f can be used as a scale factor
func ValidFactor(f float32) bool {
	return f != 0 && !math32.IsNaN(f) && !math32.IsInf(f, 0)
}
