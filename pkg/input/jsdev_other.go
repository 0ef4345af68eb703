//go:build !linux
// +build !linux

package input

// OpenJoystick is only supported on Linux.
func OpenJoystick(index int) (JoystickDevice, error) {
	return nil, ErrNoJoystick
}

// DetectJoystick is only supported on Linux.
func DetectJoystick() (JoystickDevice, error) {
	return nil, ErrNoJoystick
}
