package drive

import "fmt"

// Channels are the two analog command axes sent per tick.
type Channels struct {
	// A is forward (+) / back (-).
	A float64
	// B is left (+) / right (-).
	B float64
}

// String implements fmt.Stringer.
func (c Channels) String() string {
	return fmt.Sprintf("A=%+g B=%+g", c.A, c.B)
}

// ComputeChannels maps held directions to channel values of magnitude
// step. Up wins over Down and Left wins over Right when both are held.
func ComputeChannels(s State, step float64) Channels {
	var c Channels
	if s.Held(Up) {
		c.A = step
	} else if s.Held(Down) {
		c.A = -step
	}
	if s.Held(Left) {
		c.B = step
	} else if s.Held(Right) {
		c.B = -step
	}
	return c
}
