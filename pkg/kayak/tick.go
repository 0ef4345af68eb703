package kayak

import (
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/kayak/pkg/drive"
	fx "github.com/robotalks/kayak/pkg/framework"
	"github.com/robotalks/kayak/pkg/halfp"
	"github.com/robotalks/kayak/pkg/link"
)

// Status is a snapshot of the drive after a tick.
type Status struct {
	Time     time.Time
	Ticks    uint64
	State    drive.State
	Channels drive.Channels
	Packet   link.Packet
}

// StatusReporter receives a Status whenever the channels change. It
// must not block.
type StatusReporter interface {
	ReportStatus(Status)
}

// TickController sends the channels derived from the held keys on
// every tick, and copies whatever the kayak sent back to Sink.
type TickController struct {
	Transport link.Transport
	Codec     halfp.Codec
	Step      float64
	Sink      io.Writer
	Reporter  StatusReporter

	lock     sync.Mutex
	state    drive.State
	status   Status
	reported *drive.Channels
}

// NewTickController creates a TickController from conf.
func NewTickController(t link.Transport, conf *Config) *TickController {
	return &TickController{
		Transport: t,
		Codec:     conf.Codec(),
		Step:      conf.Step,
	}
}

// AddToLoop implements framework.LoopAdder.
func (c *TickController) AddToLoop(l *fx.Loop) {
	l.AddController(fx.StageSense, fx.ControlFunc(c.sense))
	l.AddController(fx.StageActuate, fx.ControlFunc(c.actuate))
	l.AddController(fx.StagePost, fx.ControlFunc(c.post))
}

// HandleKey applies a key event to the held state.
func (c *TickController) HandleKey(ev drive.KeyEvent) {
	c.lock.Lock()
	ev.Apply(&c.state)
	c.lock.Unlock()
	glog.V(1).Infof("key %s pressed=%v", ev.Direction, ev.Pressed)
}

// State returns a snapshot of the held keys.
func (c *TickController) State() drive.State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Status returns the result of the last tick.
func (c *TickController) Status() Status {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.status
}

// Encode encodes both channels into a packet.
func (c *TickController) Encode(ch drive.Channels) (pkt link.Packet, err error) {
	fa, err := c.Codec.Fields(ch.A)
	if err != nil {
		return pkt, err
	}
	fb, err := c.Codec.Fields(ch.B)
	if err != nil {
		return pkt, err
	}
	if glog.V(2) {
		glog.Infof("A=%v %s", ch.A, fa)
		glog.Infof("B=%v %s", ch.B, fb)
	}
	if pkt.A, err = c.Codec.Order.Put(fa.Value); err != nil {
		return pkt, err
	}
	pkt.B, err = c.Codec.Order.Put(fb.Value)
	return pkt, err
}

// Tick sends one packet computed from a snapshot of the held keys,
// then drains inbound bytes to Sink. A *link.TransportError means the
// link is gone; encode errors only skip this tick.
func (c *TickController) Tick(now time.Time) error {
	snapshot := c.State()
	ch := drive.ComputeChannels(snapshot, c.Step)
	pkt, err := c.Encode(ch)
	if err != nil {
		return err
	}
	if err := link.Send(c.Transport, pkt.Bytes()); err != nil {
		return err
	}
	if _, err := link.Drain(c.Transport, c.Sink); err != nil {
		return err
	}

	c.lock.Lock()
	c.status.Time = now
	c.status.Ticks++
	c.status.State = snapshot
	c.status.Channels = ch
	c.status.Packet = pkt
	c.lock.Unlock()
	return nil
}

func (c *TickController) sense(cc fx.ControlContext) error {
	cc.ProcessMessages(func(msg fx.Message) bool {
		switch ev := msg.(type) {
		case drive.KeyEvent:
			c.HandleKey(ev)
			return true
		case []drive.KeyEvent:
			for _, e := range ev {
				c.HandleKey(e)
			}
			return true
		}
		return false
	})
	return nil
}

func (c *TickController) actuate(cc fx.ControlContext) error {
	err := c.Tick(cc.Time())
	if err != nil && IsTransportError(err) {
		cc.Abort(err)
		return nil
	}
	return err
}

func (c *TickController) post(cc fx.ControlContext) error {
	if c.Reporter == nil {
		return nil
	}
	c.lock.Lock()
	status := c.status
	changed := status.Ticks > 0 && (c.reported == nil || *c.reported != status.Channels)
	if changed {
		c.reported = &status.Channels
	}
	c.lock.Unlock()
	if changed {
		c.Reporter.ReportStatus(status)
	}
	return nil
}
