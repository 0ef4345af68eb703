package kayak

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/kayak/pkg/drive"
	fx "github.com/robotalks/kayak/pkg/framework"
	"github.com/robotalks/kayak/pkg/halfp"
	"github.com/robotalks/kayak/pkg/link"
	"github.com/robotalks/kayak/pkg/modem"
)

type fakeTransport struct {
	lock     sync.Mutex
	written  bytes.Buffer
	inbound  bytes.Buffer
	closes   int
	writeErr error
	readErr  error
}

func (t *fakeTransport) Write(p []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	return t.written.Write(p)
}

func (t *fakeTransport) Read(p []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.inbound.Len() == 0 {
		return 0, nil
	}
	return t.inbound.Read(p)
}

func (t *fakeTransport) Available() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.inbound.Len()
}

func (t *fakeTransport) Err() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.readErr
}

func (t *fakeTransport) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.closes++
	return nil
}

func (t *fakeTransport) bytes() []byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]byte(nil), t.written.Bytes()...)
}

func (t *fakeTransport) reply(s string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.inbound.WriteString(s)
}

func (t *fakeTransport) closeCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.closes
}

var (
	little = halfp.Codec{Order: halfp.LittleEndian}
	big    = halfp.Codec{Order: halfp.BigEndian}
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		format NumberFormat
		codec  halfp.Codec
		kind   CommandKind
		bytes  []byte
		err    error
	}{
		{"escape", "+++", FormatFloat, little, Passthrough, []byte("+++"), nil},
		{"text", "hello", FormatFloat, little, Passthrough, []byte("hello\r\n"), nil},
		{"at command", "ATH", FormatFloat, little, Passthrough, []byte("ATH\r\n"), nil},
		{"empty", "", FormatFloat, little, Passthrough, []byte("\r\n"), nil},
		{"escape with space", "+++ ", FormatFloat, little, Passthrough, []byte("+++ \r\n"), nil},
		{"half little", "0.5", FormatFloat, little, Encoded, []byte{0x00, 0x38}, nil},
		{"half big", "-0.5", FormatFloat, big, Encoded, []byte{0xb8, 0x00}, nil},
		{"half zero", "0", FormatFloat, little, Encoded, []byte{0, 0}, nil},
		{"half padded", " 1 ", FormatFloat, little, Encoded, []byte{0x00, 0x3c}, nil},
		{"nan", "nan", FormatFloat, little, Passthrough, nil, halfp.ErrInvalidValue},
		{"inf", "-Inf", FormatFloat, little, Passthrough, nil, halfp.ErrInvalidValue},
		{"float overflow", "1e400", FormatFloat, little, Passthrough, nil, halfp.ErrOutOfRange},
		{"float overflow negative", "-1e400", FormatFloat, big, Passthrough, nil, halfp.ErrOutOfRange},
		{"int", "127", FormatInt, little, Encoded, []byte{0x7f, 0x00}, nil},
		{"int negative", "-1", FormatInt, big, Encoded, []byte{0xff, 0xff}, nil},
		{"int big", "258", FormatInt, big, Encoded, []byte{0x01, 0x02}, nil},
		{"int out of range", "40000", FormatInt, little, Passthrough, nil, halfp.ErrOutOfRange},
		{"int overflow", "99999999999999999999", FormatInt, little, Passthrough, nil, halfp.ErrOutOfRange},
		{"int fraction", "1.5", FormatInt, little, Passthrough, []byte("1.5\r\n"), nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cmd, err := ParseLine(test.line, test.format, test.codec)
			if test.err != nil {
				require.True(t, errors.Is(err, test.err), "got %v", err)
				var encErr *halfp.EncodeError
				require.True(t, errors.As(err, &encErr))
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.kind, cmd.Kind)
			require.Equal(t, test.bytes, cmd.Bytes)
			require.Equal(t, test.line, cmd.Line)
			if test.kind == Passthrough && test.line != "+++" {
				require.Error(t, cmd.ParseErr)
			} else {
				require.NoError(t, cmd.ParseErr)
			}
		})
	}
}

func TestLineSessionRun(t *testing.T) {
	tr := &fakeTransport{}
	tr.reply("OK\r\n")
	var out bytes.Buffer
	s := &LineSession{Transport: tr, Codec: little, Out: &out}

	in := strings.NewReader("+++\nhello\nnan\n0.5\n")
	require.NoError(t, s.Run(context.Background(), in))

	expected := append([]byte("+++hello\r\n"), 0x00, 0x38)
	require.Equal(t, expected, tr.bytes())
	require.Equal(t, "OK\r\n", out.String())
	require.Equal(t, 1, tr.closeCount())
}

func TestLineSessionCancel(t *testing.T) {
	tr := &fakeTransport{}
	s := &LineSession{Transport: tr, Codec: little}
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, pr)
	}()
	_, err := pw.Write([]byte("1\n"))
	require.NoError(t, err)
	deadline := time.Now().Add(time.Second)
	for len(tr.bytes()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("session not stopped")
	}
	require.Equal(t, []byte{0x00, 0x3c}, tr.bytes())
	require.Equal(t, 1, tr.closeCount())
}

func TestLineSessionTransportError(t *testing.T) {
	tr := &fakeTransport{writeErr: errors.New("unplugged")}
	s := &LineSession{Transport: tr, Codec: little}
	err := s.Run(context.Background(), strings.NewReader("ATZ\n0.5\n"))
	require.True(t, IsTransportError(err))
	require.Contains(t, err.Error(), "unplugged")
	require.Equal(t, 1, tr.closeCount())
}

func TestLineSessionSendChannels(t *testing.T) {
	tr := &fakeTransport{}
	s := &LineSession{Transport: tr, Codec: big}
	pkt, err := s.SendChannels(drive.Channels{A: 1, B: -1})
	require.NoError(t, err)
	require.Equal(t, link.Packet{A: [2]byte{0x3c, 0x00}, B: [2]byte{0xbc, 0x00}}, pkt)
	require.Equal(t, pkt.Bytes(), tr.bytes())
}

func TestTick(t *testing.T) {
	tests := []struct {
		name  string
		held  []drive.Direction
		bytes []byte
	}{
		{"idle", nil, []byte{0, 0, 0, 0}},
		{"up left", []drive.Direction{drive.Up, drive.Left}, []byte{0x00, 0x38, 0x00, 0x38}},
		{"down right", []drive.Direction{drive.Down, drive.Right}, []byte{0x00, 0xb8, 0x00, 0xb8}},
		{"up wins", []drive.Direction{drive.Up, drive.Down}, []byte{0x00, 0x38, 0, 0}},
		{"left wins", []drive.Direction{drive.Right, drive.Left}, []byte{0, 0, 0x00, 0x38}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tr := &fakeTransport{}
			c := &TickController{Transport: tr, Codec: little, Step: 0.5}
			for _, d := range test.held {
				c.HandleKey(drive.KeyEvent{Direction: d, Pressed: true})
			}
			require.NoError(t, c.Tick(time.Now()))
			require.Equal(t, test.bytes, tr.bytes())
			require.Equal(t, uint64(1), c.Status().Ticks)
		})
	}
}

func TestTickRelease(t *testing.T) {
	tr := &fakeTransport{}
	var out bytes.Buffer
	c := &TickController{Transport: tr, Codec: little, Step: 0.5, Sink: &out}
	c.HandleKey(drive.KeyEvent{Direction: drive.Up, Pressed: true})
	require.NoError(t, c.Tick(time.Now()))
	c.HandleKey(drive.KeyEvent{Direction: drive.Up, Pressed: false})
	tr.reply("ack")
	require.NoError(t, c.Tick(time.Now()))
	require.Equal(t, []byte{0x00, 0x38, 0, 0, 0, 0, 0, 0}, tr.bytes())
	require.Equal(t, "ack", out.String())
	require.False(t, c.State().Any())
}

func TestTickInboundLogged(t *testing.T) {
	var logged []string
	logger := &LineLogger{Logf: func(format string, args ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}}
	monitor := modem.NewMonitor(logger)
	tr := &fakeTransport{}
	c := &TickController{Transport: tr, Codec: little, Step: 0.5, Sink: monitor}

	tr.reply("OK\r\nPOS 1.00")
	require.NoError(t, c.Tick(time.Now()))
	require.Equal(t, []string{`< "OK"`}, logged)
	require.Equal(t, modem.Attached, monitor.State())

	tr.reply(" 2.00\r\n\x00\x38")
	require.NoError(t, c.Tick(time.Now()))
	require.Equal(t, []string{`< "OK"`, `< "POS 1.00 2.00"`}, logged)

	logger.Flush()
	require.Equal(t, `< "\x008"`, logged[2])
}

func TestLineLoggerLongLine(t *testing.T) {
	var logged []string
	logger := &LineLogger{Logf: func(format string, args ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}}
	n, err := logger.Write(bytes.Repeat([]byte{'x'}, maxLogLine+1))
	require.NoError(t, err)
	require.Equal(t, maxLogLine+1, n)
	require.Len(t, logged, 1)
	logger.Flush()
	require.Len(t, logged, 1)
}

func TestTickEncodeError(t *testing.T) {
	tr := &fakeTransport{}
	c := &TickController{Transport: tr, Codec: halfp.Codec{Order: halfp.LittleEndian, Limit: 0.25}, Step: 0.5}
	c.HandleKey(drive.KeyEvent{Direction: drive.Up, Pressed: true})
	err := c.Tick(time.Now())
	require.True(t, errors.Is(err, halfp.ErrOutOfRange))
	require.False(t, IsTransportError(err))
	require.Empty(t, tr.bytes())
}

type recordingReporter struct {
	reports []Status
}

func (r *recordingReporter) ReportStatus(s Status) {
	r.reports = append(r.reports, s)
}

func TestTickControllerInLoop(t *testing.T) {
	tr := &fakeTransport{}
	reporter := &recordingReporter{}
	c := &TickController{Transport: tr, Codec: little, Step: 0.5, Reporter: reporter}
	loop := fx.NewLoop().Add(c)
	ctx := context.Background()

	loop.PostMessage(drive.KeyEvent{Direction: drive.Up, Pressed: true})
	require.NoError(t, loop.RunIteration(ctx, time.Now()))
	require.NoError(t, loop.RunIteration(ctx, time.Now()))
	loop.PostMessage([]drive.KeyEvent{
		{Direction: drive.Up, Pressed: false},
		{Direction: drive.Right, Pressed: true},
	})
	require.NoError(t, loop.RunIteration(ctx, time.Now()))

	require.Equal(t, []byte{
		0x00, 0x38, 0, 0,
		0x00, 0x38, 0, 0,
		0, 0, 0x00, 0xb8,
	}, tr.bytes())
	require.Len(t, reporter.reports, 2)
	require.Equal(t, drive.Channels{A: 0.5}, reporter.reports[0].Channels)
	require.Equal(t, drive.Channels{B: -0.5}, reporter.reports[1].Channels)
	require.Equal(t, uint64(3), reporter.reports[1].Ticks)
}

func TestTickControllerAbort(t *testing.T) {
	tr := &fakeTransport{writeErr: errors.New("gone")}
	c := &TickController{Transport: tr, Codec: little, Step: 0.5}
	loop := fx.NewLoop().Add(c)
	err := loop.RunIteration(context.Background(), time.Now())
	require.True(t, IsTransportError(err))
}

func TestDrive(t *testing.T) {
	tr := &fakeTransport{}
	guarded := link.Guard(tr)
	c := &TickController{Transport: guarded, Codec: little, Step: 0.5}
	loop := fx.NewLoop().Add(c)
	loop.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Drive(ctx, loop, guarded)
	}()
	for len(tr.bytes()) < 3*link.PacketSize {
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("drive not stopped")
	}
	require.Zero(t, len(tr.bytes())%link.PacketSize)
	require.Equal(t, link.ErrClosed, guarded.Close())
	require.Equal(t, 1, tr.closeCount())
}

func TestDrivePeerClosed(t *testing.T) {
	tr := &fakeTransport{readErr: io.EOF}
	c := &TickController{Transport: tr, Codec: little, Step: 0.5}
	loop := fx.NewLoop().Add(c)
	loop.Interval = time.Millisecond
	require.NoError(t, Drive(context.Background(), loop, tr))
	require.Equal(t, 1, tr.closeCount())
}

func TestLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "kayak")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "kayak.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
link:
  device: /dev/ttyUSB0
  baud: 9600
step: 0.75
interval: 20ms
byteOrder: big
rounding: nearest
format: int
`), 0644))

	conf := defaultConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	conf.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"-step", "0.25"}))
	require.NoError(t, LoadFile(fs, &conf, path))

	require.Equal(t, 0.25, conf.Step)
	require.Equal(t, "/dev/ttyUSB0", conf.Link.Device)
	require.Equal(t, 9600, conf.Link.BaudRate)
	require.Equal(t, 20*time.Millisecond, conf.Interval)
	require.Equal(t, halfp.BigEndian, conf.ByteOrder)
	require.Equal(t, halfp.Nearest, conf.Rounding)
	require.Equal(t, FormatInt, conf.Format)
	require.NoError(t, conf.Validate())
	require.Equal(t, halfp.Codec{Order: halfp.BigEndian, Rounding: halfp.Nearest}, conf.Codec())
}

func TestLoadFileUnknownKey(t *testing.T) {
	dir, err := ioutil.TempDir("", "kayak")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "kayak.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("speed: 3\n"), 0644))
	conf := defaultConfig
	require.Error(t, LoadFile(flag.NewFlagSet("test", flag.ContinueOnError), &conf, path))
}

func TestValidate(t *testing.T) {
	conf := defaultConfig
	conf.ByteOrder = 0
	require.Error(t, conf.Validate())
	conf = defaultConfig
	conf.Interval = 0
	require.Error(t, conf.Validate())
}
