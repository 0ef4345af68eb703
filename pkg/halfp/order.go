package halfp

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ByteOrder selects how the two bytes of a value are placed on the wire.
// The zero value is not a valid order: every connection picks one.
type ByteOrder int

// Byte orders.
const (
	// BigEndian writes {high, low}.
	BigEndian ByteOrder = iota + 1
	// LittleEndian writes {low, high}.
	LittleEndian
)

// String implements fmt.Stringer and flag.Value.
func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "big"
	case LittleEndian:
		return "little"
	}
	return "unset"
}

// Valid tells whether o is one of the defined orders.
func (o ByteOrder) Valid() bool {
	return o == BigEndian || o == LittleEndian
}

// ParseByteOrder parses "big"/"be" or "little"/"le".
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "big", "be", "big-endian":
		return BigEndian, nil
	case "little", "le", "little-endian":
		return LittleEndian, nil
	}
	return 0, fmt.Errorf("invalid byte order %q", s)
}

// Set implements flag.Value.
func (o *ByteOrder) Set(s string) error {
	v, err := ParseByteOrder(s)
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *ByteOrder) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return o.Set(s)
}

// MarshalYAML implements yaml.Marshaler.
func (o ByteOrder) MarshalYAML() (interface{}, error) {
	return o.String(), nil
}

func (o ByteOrder) binary() (binary.ByteOrder, error) {
	switch o {
	case BigEndian:
		return binary.BigEndian, nil
	case LittleEndian:
		return binary.LittleEndian, nil
	}
	return nil, ErrByteOrder
}

// Put stores v into a 2-byte packet.
func (o ByteOrder) Put(v uint16) ([2]byte, error) {
	var b [2]byte
	bo, err := o.binary()
	if err != nil {
		return b, err
	}
	bo.PutUint16(b[:], v)
	return b, nil
}

// Get reads the 16-bit value from a 2-byte packet.
func (o ByteOrder) Get(b [2]byte) (uint16, error) {
	bo, err := o.binary()
	if err != nil {
		return 0, err
	}
	return bo.Uint16(b[:]), nil
}

// Rounding selects how the 10-bit fraction is derived from the mantissa.
type Rounding int

// Rounding modes.
const (
	// Truncate drops the mantissa bits below the fraction. This is what
	// the deployed receiver has always been fed.
	Truncate Rounding = iota
	// Nearest rounds half up on the first dropped bit.
	Nearest
)

// String implements flag.Value.
func (r Rounding) String() string {
	if r == Nearest {
		return "nearest"
	}
	return "truncate"
}

// Set implements flag.Value.
func (r *Rounding) Set(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "truncate", "trunc":
		*r = Truncate
	case "nearest", "round":
		*r = Nearest
	default:
		return fmt.Errorf("invalid rounding %q", s)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Rounding) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return r.Set(s)
}

// MarshalYAML implements yaml.Marshaler.
func (r Rounding) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}
