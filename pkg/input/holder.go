// Package input turns keyboards and joysticks into drive.KeyEvent
// messages posted to the control loop.
package input

import (
	"time"

	"github.com/robotalks/kayak/pkg/drive"
)

// Holder tracks keys of an input which only reports presses, like a
// terminal with key repeat. A key is held from its first press until
// Timeout passes without another one.
type Holder struct {
	Timeout time.Duration

	held     drive.State
	lastSeen [4]time.Time
}

// Press records a press of d at now. It returns the press event when d
// wasn't held.
func (h *Holder) Press(d drive.Direction, now time.Time) []drive.KeyEvent {
	idx := int(d)
	if idx < 0 || idx >= len(h.lastSeen) {
		return nil
	}
	h.lastSeen[idx] = now
	if h.held.Held(d) {
		return nil
	}
	h.held.Set(d, true)
	return []drive.KeyEvent{{Direction: d, Pressed: true}}
}

// Expire releases keys not pressed within Timeout before now.
func (h *Holder) Expire(now time.Time) (events []drive.KeyEvent) {
	if h.Timeout <= 0 {
		return nil
	}
	for _, d := range drive.Directions {
		if h.held.Held(d) && now.Sub(h.lastSeen[d]) >= h.Timeout {
			h.held.Set(d, false)
			events = append(events, drive.KeyEvent{Direction: d})
		}
	}
	return
}

// ReleaseAll releases every held key.
func (h *Holder) ReleaseAll() (events []drive.KeyEvent) {
	for _, d := range drive.Directions {
		if h.held.Held(d) {
			h.held.Set(d, false)
			events = append(events, drive.KeyEvent{Direction: d})
		}
	}
	return
}

// Held returns the keys currently held.
func (h *Holder) Held() drive.State {
	return h.held
}
