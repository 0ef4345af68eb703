package input

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrNoJoystick is returned when no joystick device can be found.
var ErrNoJoystick = errors.New("no joystick")

// JoystickDevice is an opened joystick.
type JoystickDevice interface {
	io.Closer
	Index() int
	Name() string
	ReadEvent() (JoystickEvent, error)
}

// JoystickEvent is one record of the Linux joystick API.
type JoystickEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

const (
	jsEventButton uint8 = 0x01
	jsEventAxis   uint8 = 0x02
	jsEventInit   uint8 = 0x80

	jsEventSize = 8
)

// IsAxis tells whether the event reports an axis position.
func (e JoystickEvent) IsAxis() bool {
	return e.Type&^jsEventInit == jsEventAxis
}

// IsButton tells whether the event reports a button.
func (e JoystickEvent) IsButton() bool {
	return e.Type&^jsEventInit == jsEventButton
}

// IsInit tells whether the event reports the initial state.
func (e JoystickEvent) IsInit() bool {
	return e.Type&jsEventInit != 0
}

// ReadJoystickEvent reads one event record from r.
func ReadJoystickEvent(r io.Reader) (ev JoystickEvent, err error) {
	var buf [jsEventSize]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return
	}
	err = binary.Read(bytes.NewReader(buf[:]), binary.LittleEndian, &ev)
	return
}
