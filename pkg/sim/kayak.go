package sim

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/kayak/pkg/drive"
	fx "github.com/robotalks/kayak/pkg/framework"
	"github.com/robotalks/kayak/pkg/halfp"
	"github.com/robotalks/kayak/pkg/link"
)

// Greeting is written when a connection starts, like a modem reporting
// the carrier.
const Greeting = "CONNECT 9600\r\n"

// Receiver reassembles packets from a byte stream. There's no framing,
// every 4 bytes are one packet.
type Receiver struct {
	Codec halfp.Codec

	buf []byte
}

// Feed consumes p and returns the channels of each completed packet.
func (r *Receiver) Feed(p []byte) ([]drive.Channels, error) {
	r.buf = append(r.buf, p...)
	var out []drive.Channels
	for {
		pkt, ok := link.ParsePacket(r.buf)
		if !ok {
			break
		}
		r.buf = r.buf[link.PacketSize:]
		ch, err := r.Decode(pkt)
		if err != nil {
			return out, err
		}
		out = append(out, ch)
	}
	if len(r.buf) == 0 {
		r.buf = nil
	}
	return out, nil
}

// Pending returns the number of bytes of an incomplete packet.
func (r *Receiver) Pending() int {
	return len(r.buf)
}

// Decode decodes both values of a packet.
func (r *Receiver) Decode(pkt link.Packet) (ch drive.Channels, err error) {
	if ch.A, err = r.Codec.Decode(pkt.A); err != nil {
		return
	}
	ch.B, err = r.Codec.Decode(pkt.B)
	return
}

// Kayak runs a simulated kayak on one connection.
type Kayak struct {
	Conn     io.ReadWriteCloser
	Receiver Receiver
	Boat     *Boat
	// Failsafe stops the boat when no packet arrives for the duration.
	Failsafe time.Duration
	// ReportInterval writes the pose back over Conn periodically.
	ReportInterval time.Duration

	lastPacket time.Time
	lastReport time.Time
}

type packetsMsg []drive.Channels

// AddToLoop implements LoopAdder.
func (k *Kayak) AddToLoop(l *fx.Loop) {
	l.AddRunnable(fx.NamedRun("receiver", k))
	l.AddController(fx.StageControl, fx.ControlFunc(k.control))
	l.AddController(fx.StagePost, fx.ControlFunc(k.post))
}

// Run reads Conn until it fails or ctx is done. Conn is closed on return.
func (k *Kayak) Run(ctx context.Context) error {
	loopCtl := fx.LoopCtlFrom(ctx)
	return fx.RunWithContextCloser(ctx, k.Conn, func() error {
		if _, err := io.WriteString(k.Conn, Greeting); err != nil {
			return err
		}
		buf := make([]byte, 64)
		for {
			n, err := k.Conn.Read(buf)
			if n > 0 {
				chs, derr := k.Receiver.Feed(buf[:n])
				if derr != nil {
					return derr
				}
				if len(chs) > 0 {
					loopCtl.PostMessage(packetsMsg(chs))
					loopCtl.TriggerNext()
				}
			}
			if err != nil {
				return err
			}
		}
	})
}

func (k *Kayak) control(cc fx.ControlContext) error {
	now := cc.Time()
	cc.ProcessMessages(func(msg fx.Message) bool {
		if chs, ok := msg.(packetsMsg); ok {
			ch := chs[len(chs)-1]
			if ch != k.Boat.Target() {
				glog.V(1).Infof("channels %s", ch)
			}
			k.Boat.Command(ch, now)
			k.lastPacket = now
			return true
		}
		return false
	})
	if k.Failsafe > 0 && !k.lastPacket.IsZero() && now.Sub(k.lastPacket) > k.Failsafe {
		if k.Boat.Target() != (drive.Channels{}) {
			glog.Warningf("no packet for %s, stopping", now.Sub(k.lastPacket))
			k.Boat.Command(drive.Channels{}, now)
		}
	}
	return nil
}

func (k *Kayak) post(cc fx.ControlContext) error {
	now := cc.Time()
	pose := k.Boat.Advance(now)
	if k.ReportInterval <= 0 || k.lastPacket.IsZero() || now.Sub(k.lastReport) < k.ReportInterval {
		return nil
	}
	k.lastReport = now
	_, err := fmt.Fprintf(k.Conn, "POS %.2f %.2f %.1f %.2f\r\n", pose.X, pose.Y, pose.Heading.Degrees(), k.Boat.Speed())
	if err != nil {
		cc.Abort(err)
	}
	return nil
}
