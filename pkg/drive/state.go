package drive

import (
	"fmt"
	"strings"
)

// Direction is one of the four logical drive keys.
type Direction int

// Directions.
const (
	Up Direction = iota
	Down
	Left
	Right

	numDirections
)

// Directions lists all directions in a stable order.
var Directions = []Direction{Up, Down, Left, Right}

var directionNames = [numDirections]string{"up", "down", "left", "right"}

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d >= 0 && d < numDirections {
		return directionNames[d]
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection parses a direction name, case insensitive.
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d, name := range directionNames {
		if s == name {
			return Direction(d), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// State holds which directions are currently held. It's a value
// type: copying it takes a snapshot.
type State struct {
	held [numDirections]bool
}

// NewState creates a State with the given directions held.
func NewState(held ...Direction) State {
	var s State
	for _, d := range held {
		s.Set(d, true)
	}
	return s
}

// Set records a press or release. Unknown directions are ignored.
func (s *State) Set(d Direction, pressed bool) {
	if d >= 0 && d < numDirections {
		s.held[d] = pressed
	}
}

// Held tells whether d is held.
func (s State) Held(d Direction) bool {
	return d >= 0 && d < numDirections && s.held[d]
}

// Any tells whether any direction is held.
func (s State) Any() bool {
	for _, h := range s.held {
		if h {
			return true
		}
	}
	return false
}

// String lists the held directions, e.g. "up+left".
func (s State) String() string {
	var names []string
	for _, d := range Directions {
		if s.held[d] {
			names = append(names, d.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// KeyEvent is a press or release of a direction.
type KeyEvent struct {
	Direction Direction
	Pressed   bool
}

// Apply applies the event to s.
func (e KeyEvent) Apply(s *State) {
	s.Set(e.Direction, e.Pressed)
}
