package halfp

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidValue indicates NaN or infinite input.
	ErrInvalidValue = errors.New("invalid value")
	// ErrOutOfRange indicates the value exceeds the configured limit
	// or doesn't fit the integer field.
	ErrOutOfRange = errors.New("value out of range")
	// ErrByteOrder indicates the byte order was never configured.
	ErrByteOrder = errors.New("byte order not set")
)

// EncodeError is returned when a value is rejected by the encoder.
type EncodeError struct {
	Value float64
	Err   error
}

// Error implements error.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %v: %v", e.Value, e.Err)
}

// Unwrap returns the underlying reason.
func (e *EncodeError) Unwrap() error {
	return e.Err
}

const (
	bias        = 15
	maxExpField = 30
	signBit     = 0x8000
	expMask     = 0x7c00
	fracMask    = 0x03ff
	fracBits    = 10

	mantBits = 52
	// MaxValue is the largest magnitude representable.
	MaxValue = 65504.0
	// maxBits is MaxValue encoded.
	maxBits = 0x7bff
)

// Fields exposes the intermediate values of an encoding.
type Fields struct {
	Negative bool
	// Exponent is the unbiased power of two, value = 1.f * 2^Exponent.
	Exponent int
	// ExponentField is the biased exponent already shifted into place.
	ExponentField uint16
	Fraction      uint16
	Value         uint16
	// Saturated is set when the magnitude was clamped to MaxValue.
	Saturated bool
	// Flushed is set when a non-zero magnitude became zero.
	Flushed bool
}

// String formats the fields for diagnostics.
func (f Fields) String() string {
	return fmt.Sprintf("neg=%v exp=%d expField=%#04x frac=%#03x value=%#04x",
		f.Negative, f.Exponent, f.ExponentField, f.Fraction, f.Value)
}

// Codec encodes and decodes values for one connection.
type Codec struct {
	Order    ByteOrder
	Rounding Rounding
	// Limit rejects magnitudes above it when positive.
	Limit float64
}

// Encode converts v into 2 bytes using order, truncating the fraction.
func Encode(v float64, order ByteOrder) ([2]byte, error) {
	return Codec{Order: order}.Encode(v)
}

// Decode converts 2 bytes back to a value.
func Decode(b [2]byte, order ByteOrder) (float64, error) {
	return Codec{Order: order}.Decode(b)
}

// Encode converts v into its 2-byte wire form.
func (c Codec) Encode(v float64) ([2]byte, error) {
	f, err := c.Fields(v)
	if err != nil {
		return [2]byte{}, err
	}
	return c.Order.Put(f.Value)
}

// Fields computes the 16-bit value of v with all intermediates.
func (c Codec) Fields(v float64) (f Fields, err error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return f, &EncodeError{Value: v, Err: ErrInvalidValue}
	}
	if c.Limit > 0 && math.Abs(v) > c.Limit {
		return f, &EncodeError{Value: v, Err: ErrOutOfRange}
	}
	if v == 0 {
		// covers -0 as well.
		return f, nil
	}

	bits := math.Float64bits(v)
	f.Negative = v < 0
	f.Exponent = int((bits>>mantBits)&0x7ff) - 1023
	mant := bits & (1<<mantBits - 1)

	var frac uint64
	switch c.Rounding {
	case Nearest:
		frac = (mant + 1<<(mantBits-fracBits-1)) >> (mantBits - fracBits)
		if frac > fracMask {
			frac = 0
			f.Exponent++
		}
	default:
		// top 3 hex digits, then drop 2 bits.
		frac = (mant >> (mantBits - 12)) >> 2
	}

	biased := f.Exponent + bias
	switch {
	case biased > maxExpField:
		f.Saturated = true
		f.Value = maxBits
		f.ExponentField = maxBits & expMask
		f.Fraction = maxBits & fracMask
	case biased < 1:
		f.Flushed = true
		return f, nil
	default:
		f.ExponentField = uint16(biased) << fracBits
		f.Fraction = uint16(frac)
		f.Value = f.ExponentField + f.Fraction
	}
	if f.Negative {
		f.Value |= signBit
	}
	return f, nil
}

// Decode converts the 2-byte wire form back to a value, the same way
// the receiver does: only zero is special, everything else is treated
// as a normal number.
func (c Codec) Decode(b [2]byte) (float64, error) {
	v, err := c.Order.Get(b)
	if err != nil {
		return 0, err
	}
	return FromBits(v), nil
}

// FromBits converts the 16-bit value into a float.
func FromBits(v uint16) float64 {
	if v == 0 {
		return 0
	}
	exp := int((v&expMask)>>fracBits) - bias
	val := math.Ldexp(1+float64(v&fracMask)/(1<<fracBits), exp)
	if v&signBit != 0 {
		val = -val
	}
	return val
}

// EncodeInt16 packs n as a two's complement 16-bit integer.
func (c Codec) EncodeInt16(n int64) ([2]byte, error) {
	if n < math.MinInt16 || n > math.MaxInt16 {
		return [2]byte{}, &EncodeError{Value: float64(n), Err: ErrOutOfRange}
	}
	return c.Order.Put(uint16(int16(n)))
}

// DecodeInt16 unpacks a two's complement 16-bit integer.
func (c Codec) DecodeInt16(b [2]byte) (int16, error) {
	v, err := c.Order.Get(b)
	return int16(v), err
}
