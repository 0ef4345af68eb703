package input

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/golang/glog"

	"github.com/robotalks/kayak/pkg/drive"
	fx "github.com/robotalks/kayak/pkg/framework"
	"github.com/robotalks/kayak/pkg/kayak"
)

// KeyMap maps terminal keys to directions.
type KeyMap map[tcell.Key]drive.Direction

// DefaultKeyMap uses the arrow keys.
var DefaultKeyMap = KeyMap{
	tcell.KeyUp:    drive.Up,
	tcell.KeyDown:  drive.Down,
	tcell.KeyLeft:  drive.Left,
	tcell.KeyRight: drive.Right,
}

// Terminal reads the keyboard through a tcell screen and posts key
// events to the loop. It also shows the last status on the screen.
type Terminal struct {
	Screen tcell.Screen
	Keys   KeyMap
	// HoldTimeout releases a key after no repeat within it.
	HoldTimeout time.Duration
	// Quit is called when the user asks to quit.
	Quit func()
	// Post overrides posting to the loop from the Run context.
	Post func(fx.Message)

	holder   Holder
	statusCh chan kayak.Status
	initOnce sync.Once
}

// NewTerminal creates a Terminal on the default tcell screen.
func NewTerminal(holdTimeout time.Duration) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Terminal{Screen: screen, Keys: DefaultKeyMap, HoldTimeout: holdTimeout}, nil
}

// AddToLoop implements framework.LoopAdder.
func (t *Terminal) AddToLoop(l *fx.Loop) {
	l.AddRunnable(t)
}

func (t *Terminal) init() {
	t.initOnce.Do(func() {
		t.statusCh = make(chan kayak.Status, 1)
		if t.Keys == nil {
			t.Keys = DefaultKeyMap
		}
		t.holder.Timeout = t.HoldTimeout
	})
}

// ReportStatus implements kayak.StatusReporter. Older statuses not yet
// shown are replaced.
func (t *Terminal) ReportStatus(s kayak.Status) {
	t.init()
	for {
		select {
		case t.statusCh <- s:
			return
		default:
		}
		select {
		case <-t.statusCh:
		default:
		}
	}
}

// poster returns override, or posting to the loop running ctx. The loop
// isn't woken up: events are applied at the next tick so packets keep
// going out at the loop interval.
func poster(ctx context.Context, override func(fx.Message)) func(fx.Message) {
	if override != nil {
		return override
	}
	return fx.LoopCtlFrom(ctx).PostMessage
}

// Run implements framework.Runnable.
func (t *Terminal) Run(ctx context.Context) error {
	t.init()
	post := poster(ctx, t.Post)
	if err := t.Screen.Init(); err != nil {
		return err
	}
	t.draw(kayak.Status{})

	defer t.Screen.Fini()

	eventCh := make(chan tcell.Event, 16)
	go func() {
		defer close(eventCh)
		for {
			ev := t.Screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	interval := t.HoldTimeout / 4
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-eventCh:
			if !ok {
				return nil
			}
			if events, quit := t.handleEvent(ev, time.Now()); quit {
				post(t.holder.ReleaseAll())
				if t.Quit != nil {
					t.Quit()
				}
			} else if len(events) > 0 {
				post(events)
			}
		case now := <-ticker.C:
			if events := t.holder.Expire(now); len(events) > 0 {
				post(events)
			}
		case s := <-t.statusCh:
			t.draw(s)
		}
	}
}

func (t *Terminal) handleEvent(ev tcell.Event, now time.Time) ([]drive.KeyEvent, bool) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return t.handleKey(ev.Key(), ev.Rune(), now)
	case *tcell.EventResize:
		t.Screen.Sync()
	}
	return nil, false
}

func (t *Terminal) handleKey(key tcell.Key, r rune, now time.Time) ([]drive.KeyEvent, bool) {
	switch {
	case key == tcell.KeyEscape || key == tcell.KeyCtrlC:
		return nil, true
	case key == tcell.KeyRune && (r == 'q' || r == 'Q'):
		return nil, true
	case key == tcell.KeyRune && r == ' ':
		return t.holder.ReleaseAll(), false
	}
	if d, ok := t.Keys[key]; ok {
		glog.V(3).Infof("key %s", d)
		return t.holder.Press(d, now), false
	}
	return nil, false
}

func (t *Terminal) draw(s kayak.Status) {
	t.Screen.Clear()
	lines := []string{
		"arrows: drive  space: stop  q/esc: quit",
		fmt.Sprintf("held: %-20s %s", s.State, s.Channels),
		fmt.Sprintf("ticks: %d  packet: % x", s.Ticks, s.Packet.Bytes()),
	}
	style := tcell.StyleDefault
	for y, line := range lines {
		for x, r := range line {
			t.Screen.SetContent(x, y, r, nil, style)
		}
		style = style.Foreground(tcell.ColorGreen)
	}
	t.Screen.Show()
}
