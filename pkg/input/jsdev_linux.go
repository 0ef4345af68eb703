//go:build linux
// +build linux

package input

import (
	"bytes"
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

const (
	jsIocGetName uint = 0x80ff6a13
)

type linuxJoystick struct {
	file  *os.File
	index int
	name  string
}

// OpenJoystick opens /dev/input/js<index>.
func OpenJoystick(index int) (JoystickDevice, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/input/js%d", index), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	js := &linuxJoystick{file: f, index: index}
	var buf [256]byte
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uintptr(jsIocGetName), uintptr(unsafe.Pointer(&buf)))
	if errno != 0 {
		f.Close()
		return nil, errno
	}
	if pos := bytes.IndexByte(buf[:], 0); pos >= 0 {
		js.name = string(buf[:pos])
	} else {
		js.name = string(buf[:])
	}
	return js, nil
}

// DetectJoystick opens the first joystick present.
func DetectJoystick() (JoystickDevice, error) {
	for index := 0; index < 32; index++ {
		js, err := OpenJoystick(index)
		if err == nil {
			return js, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, ErrNoJoystick
}

func (j *linuxJoystick) Close() error { return j.file.Close() }
func (j *linuxJoystick) Index() int   { return j.index }
func (j *linuxJoystick) Name() string { return j.name }

func (j *linuxJoystick) ReadEvent() (JoystickEvent, error) {
	return ReadJoystickEvent(j.file)
}
