package sim

import (
	"bufio"
	"bytes"
	"context"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/kayak/pkg/drive"
	fx "github.com/robotalks/kayak/pkg/framework"
	"github.com/robotalks/kayak/pkg/halfp"
)

func TestBoatAdvance(t *testing.T) {
	testCases := []struct {
		name   string
		from   float64
		a      float64
		accel  float64
		after  time.Duration
		expect float64
	}{
		{name: "no accel", a: 0.5, after: time.Second, expect: 1},
		{name: "no accel reverse", a: -0.5, after: time.Second, expect: -1},
		{name: "before accel ends", a: 1, accel: 1, after: time.Second, expect: 0.5},
		{name: "at accel ends", a: 1, accel: 1, after: 2 * time.Second, expect: 2},
		{name: "after accel ends", a: 1, accel: 1, after: 3 * time.Second, expect: 4},
		{name: "slow down", from: 1, a: 0, accel: 1, after: time.Second, expect: 1.5},
		{name: "slow down to stop", from: 1, a: 0, accel: 1, after: 3 * time.Second, expect: 2},
		{name: "clamped", a: 3, after: time.Second, expect: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t0 := time.Unix(100, 0)
			b := &Boat{MaxSpeed: 2}
			b.Place(Pose2D{}, t0)
			if tc.from != 0 {
				b.Command(drive.Channels{A: tc.from}, t0)
			}
			b.Accel = tc.accel
			b.Command(drive.Channels{A: tc.a}, t0)
			pose := b.Advance(t0.Add(tc.after))
			require.InDelta(t, tc.expect, pose.X, 1e-9)
			require.InDelta(t, 0, pose.Y, 1e-9)
		})
	}
}

func TestBoatAdvanceInSteps(t *testing.T) {
	t0 := time.Unix(100, 0)
	b := &Boat{MaxSpeed: 2, Accel: 1}
	b.Place(Pose2D{}, t0)
	b.Command(drive.Channels{A: 1}, t0)
	for i := 1; i <= 30; i++ {
		b.Advance(t0.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	require.InDelta(t, 4, b.Pose().X, 1e-9)
	require.InDelta(t, 2, b.Speed(), 1e-9)
}

func TestBoatTurn(t *testing.T) {
	t0 := time.Unix(100, 0)
	b := &Boat{MaxSpeed: 1, MaxTurnRate: math.Pi / 2}
	b.Place(Pose2D{}, t0)
	b.Command(drive.Channels{B: 1}, t0)
	pose := b.Advance(t0.Add(time.Second))
	require.InDelta(t, 90, pose.Heading.Degrees(), 1e-9)
	require.Zero(t, pose.X)

	b.Command(drive.Channels{A: 1, B: -1}, t0.Add(time.Second))
	pose = b.Advance(t0.Add(2 * time.Second))
	require.InDelta(t, 0, pose.Heading.Degrees(), 1e-9)
	require.True(t, pose.X > 0)
	require.True(t, pose.Y > 0)
}

func TestAngle(t *testing.T) {
	require.InDelta(t, 180, AngleFromDegrees(180).Degrees(), 1e-9)
	require.InDelta(t, 180, AngleFromDegrees(-180).Degrees(), 1e-9)
	require.InDelta(t, -90, AngleFromDegrees(270).Degrees(), 1e-9)
	require.InDelta(t, 10, AngleFromDegrees(730).Degrees(), 1e-9)
	p := AngleFromDegrees(90).Project(2)
	require.InDelta(t, 0, p.X, 1e-9)
	require.InDelta(t, 2, p.Y, 1e-9)
}

func TestReceiverFeed(t *testing.T) {
	r := &Receiver{Codec: halfp.Codec{Order: halfp.LittleEndian}}
	chs, err := r.Feed([]byte{0x00, 0x38, 0x00})
	require.NoError(t, err)
	require.Empty(t, chs)
	require.Equal(t, 3, r.Pending())

	chs, err = r.Feed([]byte{0xb8, 0x00, 0x3c})
	require.NoError(t, err)
	require.Equal(t, []drive.Channels{{A: 0.5, B: -0.5}}, chs)
	require.Equal(t, 2, r.Pending())

	chs, err = r.Feed([]byte{0x00, 0x00, 0x00, 0x7e, 0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, []drive.Channels{{A: 1, B: 0}, {A: 98304, B: 0}}, chs)
	require.Zero(t, r.Pending())

	chs, err = r.Feed(nil)
	require.NoError(t, err)
	require.Empty(t, chs)

	r = &Receiver{Codec: halfp.Codec{Order: halfp.BigEndian}}
	chs, err = r.Feed([]byte{0x38, 0x00, 0xb8, 0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, []drive.Channels{{A: 0.5, B: -0.5}}, chs)
	require.Equal(t, 1, r.Pending())

	_, err = (&Receiver{}).Feed([]byte{0, 0, 0, 0})
	require.Equal(t, halfp.ErrByteOrder, err)
}

type bufConn struct {
	bytes.Buffer
}

func (c *bufConn) Close() error { return nil }

func TestKayakIteration(t *testing.T) {
	conn := &bufConn{}
	k := &Kayak{
		Conn:           conn,
		Boat:           &Boat{MaxSpeed: 2},
		Failsafe:       1500 * time.Millisecond,
		ReportInterval: time.Second,
	}
	l := &fx.Loop{}
	l.AddController(fx.StageControl, fx.ControlFunc(k.control))
	l.AddController(fx.StagePost, fx.ControlFunc(k.post))
	ctx := context.Background()
	t0 := time.Unix(100, 0)

	l.PostMessage(packetsMsg{{A: 0.5}, {A: 1}})
	require.NoError(t, l.RunIteration(ctx, t0))
	require.Equal(t, drive.Channels{A: 1}, k.Boat.Target())
	require.NoError(t, l.RunIteration(ctx, t0.Add(500*time.Millisecond)))
	require.NoError(t, l.RunIteration(ctx, t0.Add(time.Second)))
	require.Equal(t, "POS 0.00 0.00 0.0 2.00\r\nPOS 2.00 0.00 0.0 2.00\r\n", conn.String())

	conn.Reset()
	require.NoError(t, l.RunIteration(ctx, t0.Add(2*time.Second)))
	require.Equal(t, drive.Channels{}, k.Boat.Target())
	require.Equal(t, "POS 4.00 0.00 0.0 0.00\r\n", conn.String())
}

func TestKayakRun(t *testing.T) {
	server, client := net.Pipe()
	k := &Kayak{
		Conn:           server,
		Receiver:       Receiver{Codec: halfp.Codec{Order: halfp.LittleEndian}},
		Boat:           &Boat{MaxSpeed: 2},
		ReportInterval: 10 * time.Millisecond,
	}
	l := fx.NewLoop()
	l.Interval = 5 * time.Millisecond
	l.Add(k)
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Run(context.Background())
	}()

	require.NoError(t, client.SetDeadline(time.Now().Add(5*time.Second)))
	reader := bufio.NewReader(client)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, Greeting, line)

	_, err = client.Write([]byte{0x00, 0x3c, 0x00, 0x00})
	require.NoError(t, err)
	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(line, "POS "))
		if strings.HasSuffix(line, " 2.00\r\n") {
			break
		}
	}
	client.Close()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop didn't stop")
	}
}
