package input

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/kayak/pkg/drive"
	fx "github.com/robotalks/kayak/pkg/framework"
)

// DefaultDeadzone is the axis magnitude below which a stick is centered.
const DefaultDeadzone = 8192

// AxisMapper turns stick positions into direction presses and releases.
// Axis 0 and the hat axis 6 steer, axis 1 and the hat axis 7 drive.
type AxisMapper struct {
	Deadzone int

	held drive.State
}

// Axis applies a new position of axis and returns the resulting events.
func (m *AxisMapper) Axis(axis int, value int) []drive.KeyEvent {
	var neg, pos drive.Direction
	switch axis {
	case 0, 6:
		neg, pos = drive.Left, drive.Right
	case 1, 7:
		// the Y axis is negative when pushed forward.
		neg, pos = drive.Up, drive.Down
	default:
		return nil
	}
	deadzone := m.Deadzone
	if deadzone <= 0 {
		deadzone = DefaultDeadzone
	}
	var events []drive.KeyEvent
	set := func(d drive.Direction, pressed bool) {
		if m.held.Held(d) != pressed {
			m.held.Set(d, pressed)
			events = append(events, drive.KeyEvent{Direction: d, Pressed: pressed})
		}
	}
	set(neg, value <= -deadzone)
	set(pos, value >= deadzone)
	return events
}

// ReleaseAll releases every direction held by the stick.
func (m *AxisMapper) ReleaseAll() (events []drive.KeyEvent) {
	for _, d := range drive.Directions {
		if m.held.Held(d) {
			m.held.Set(d, false)
			events = append(events, drive.KeyEvent{Direction: d})
		}
	}
	return
}

// Joystick posts key events from a Linux joystick. The device is
// reopened when it goes away.
type Joystick struct {
	// DeviceIndex selects /dev/input/js<N>, -1 for detection.
	DeviceIndex int
	Deadzone    int
	// Post overrides posting to the loop from the Run context.
	Post func(fx.Message)
	// Open overrides opening the device.
	Open func() (JoystickDevice, error)
	// RetryInterval is the wait between attempts to open the device.
	RetryInterval time.Duration
}

// AddToLoop implements framework.LoopAdder.
func (j *Joystick) AddToLoop(l *fx.Loop) {
	l.AddRunnable(j)
}

func (j *Joystick) open() (JoystickDevice, error) {
	if j.Open != nil {
		return j.Open()
	}
	if j.DeviceIndex >= 0 {
		return OpenJoystick(j.DeviceIndex)
	}
	return DetectJoystick()
}

// Run implements framework.Runnable.
func (j *Joystick) Run(ctx context.Context) error {
	post := poster(ctx, j.Post)
	retry := j.RetryInterval
	if retry <= 0 {
		retry = time.Second
	}
	for {
		dev, err := j.open()
		if err != nil {
			glog.V(1).Infof("open joystick: %v", err)
		} else {
			glog.Infof("joystick %d %q opened", dev.Index(), dev.Name())
			j.poll(ctx, dev, post)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

func (j *Joystick) poll(ctx context.Context, dev JoystickDevice, post func(fx.Message)) {
	mapper := &AxisMapper{Deadzone: j.Deadzone}
	eventCh := make(chan JoystickEvent)
	go func() {
		defer close(eventCh)
		for {
			ev, err := dev.ReadEvent()
			if err != nil {
				glog.Warningf("joystick read: %v", err)
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	defer func() {
		if events := mapper.ReleaseAll(); len(events) > 0 {
			post(events)
		}
	}()
	fx.RunWithContextCloser(ctx, dev, func() error {
		for ev := range eventCh {
			if !ev.IsAxis() {
				continue
			}
			if events := mapper.Axis(int(ev.Number), int(ev.Value)); len(events) > 0 {
				post(events)
			}
		}
		return nil
	})
}
