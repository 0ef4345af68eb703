package kayak

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/kayak/pkg/drive"
	"github.com/robotalks/kayak/pkg/halfp"
	"github.com/robotalks/kayak/pkg/link"
	"github.com/robotalks/kayak/pkg/modem"
)

// CommandKind tells how a line is sent.
type CommandKind int

// Command kinds.
const (
	// Encoded lines are numbers sent as 2 encoded bytes.
	Encoded CommandKind = iota
	// Passthrough lines are sent as text for the modem.
	Passthrough
)

// String implements fmt.Stringer.
func (k CommandKind) String() string {
	if k == Passthrough {
		return "passthrough"
	}
	return "encoded"
}

// Command is a parsed input line.
type Command struct {
	Kind  CommandKind
	Line  string
	Bytes []byte
	// Value is the parsed number of an Encoded command.
	Value float64
	// ParseErr explains why a line wasn't taken as a number.
	ParseErr error
}

// ParseLine turns one input line (without its newline) into bytes to
// send. The modem escape is sent as is, numbers are encoded in format
// and anything else is sent as text terminated by CRLF. The error is an
// *halfp.EncodeError for numbers the codec rejects.
func ParseLine(line string, format NumberFormat, codec halfp.Codec) (Command, error) {
	cmd := Command{Line: line, Kind: Passthrough}
	if line == modem.Escape {
		cmd.Bytes = []byte(modem.Escape)
		return cmd, nil
	}

	text := strings.TrimSpace(line)
	var (
		encoded [2]byte
		err     error
	)
	switch format {
	case FormatInt:
		var n int64
		if n, err = strconv.ParseInt(text, 10, 64); err == nil {
			cmd.Value = float64(n)
			encoded, err = codec.EncodeInt16(n)
		} else if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			cmd.Value, _ = strconv.ParseFloat(text, 64)
			err = &halfp.EncodeError{Value: cmd.Value, Err: halfp.ErrOutOfRange}
		} else {
			cmd.ParseErr = &ParseError{Line: line, Err: err}
			err = nil
		}
	default:
		if cmd.Value, err = strconv.ParseFloat(text, 64); err == nil {
			encoded, err = codec.Encode(cmd.Value)
		} else if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			err = &halfp.EncodeError{Value: cmd.Value, Err: halfp.ErrOutOfRange}
		} else {
			cmd.ParseErr = &ParseError{Line: line, Err: err}
			err = nil
		}
	}
	if err != nil {
		return cmd, err
	}
	if cmd.ParseErr != nil {
		cmd.Bytes = modem.Command(line)
		return cmd, nil
	}
	cmd.Kind = Encoded
	cmd.Bytes = encoded[:]
	return cmd, nil
}

// LineSession forwards typed lines to the kayak and prints what comes
// back after each one.
type LineSession struct {
	Transport link.Transport
	Codec     halfp.Codec
	Format    NumberFormat
	// Out receives inbound bytes.
	Out io.Writer
}

// NewLineSession creates a LineSession from conf.
func NewLineSession(t link.Transport, conf *Config, out io.Writer) *LineSession {
	return &LineSession{
		Transport: t,
		Codec:     conf.Codec(),
		Format:    conf.Format,
		Out:       out,
	}
}

// Handle parses and sends one line. Lines rejected by the codec are
// reported and nothing is sent. Only a *link.TransportError is fatal.
func (s *LineSession) Handle(line string) (Command, error) {
	cmd, err := ParseLine(line, s.Format, s.Codec)
	if err != nil {
		glog.Warningf("not sent: %v", err)
		return cmd, err
	}
	glog.V(1).Infof("sending %s %q -> % x", cmd.Kind, line, cmd.Bytes)
	return cmd, s.SendRaw(cmd.Bytes)
}

// SendRaw sends b as is and drains the response.
func (s *LineSession) SendRaw(b []byte) error {
	if err := link.Send(s.Transport, b); err != nil {
		return err
	}
	_, err := link.Drain(s.Transport, s.Out)
	return err
}

// SendChannels sends a drive packet like a single tick does.
func (s *LineSession) SendChannels(ch drive.Channels) (link.Packet, error) {
	ctl := &TickController{Codec: s.Codec}
	pkt, err := ctl.Encode(ch)
	if err != nil {
		return pkt, err
	}
	return pkt, s.SendRaw(pkt.Bytes())
}

// Poll drains pending inbound bytes without sending anything.
func (s *LineSession) Poll() error {
	_, err := link.Drain(s.Transport, s.Out)
	return err
}

// Run reads lines from in until it's exhausted or ctx is done, and
// closes the transport before returning. End of input and cancellation
// are clean exits.
func (s *LineSession) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	err := s.run(ctx, lines, readErr)
	if cerr := s.Transport.Close(); cerr != nil && cerr != link.ErrClosed {
		glog.Errorf("close: %v", cerr)
	}
	return err
}

func (s *LineSession) run(ctx context.Context, lines <-chan string, readErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if _, err := s.Handle(line); err != nil && IsTransportError(err) {
				return err
			}
		}
	}
}
