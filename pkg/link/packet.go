package link

import "io"

// PacketSize is the number of bytes sent per tick.
const PacketSize = 4

// Packet carries the two encoded channel values of one tick.
// A is always sent before B.
type Packet struct {
	A [2]byte
	B [2]byte
}

// Bytes returns encoded bytes for sending.
func (p Packet) Bytes() []byte {
	return []byte{p.A[0], p.A[1], p.B[0], p.B[1]}
}

// WriteTo writes the packet in a single Write.
func (p Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// ParsePacket splits 4 bytes into a Packet.
func ParsePacket(b []byte) (p Packet, ok bool) {
	if len(b) < PacketSize {
		return p, false
	}
	copy(p.A[:], b[0:2])
	copy(p.B[:], b[2:4])
	return p, true
}
