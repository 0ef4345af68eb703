// Package halfp encodes drive channel values into the 16-bit
// half-precision layout understood by the kayak receiver.
//
// Layout of the 16-bit value:
//
//	bit 15      sign
//	bits 14..10 exponent, biased by 15
//	bits 9..0   fraction, the top 10 bits of the double's mantissa
//
// Zero is always 0x0000. There are no subnormals, infinities or NaN:
// magnitudes too small for a normal exponent are flushed to zero and
// magnitudes too large saturate at 65504. The two bytes of a value are
// placed on the wire in an explicitly configured ByteOrder.
package halfp
