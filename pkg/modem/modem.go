// Package modem knows the few Hayes-style conversations the base station
// has with its radio modem: escaping to command mode, hanging up and
// resetting, and spotting the modem's responses in the inbound stream.
package modem

import (
	"io"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// Escape switches the modem from data to command mode. It's sent raw,
// without a line terminator.
const Escape = "+++"

// Terminator ends every AT command line.
const Terminator = "\r\n"

// Well known commands.
const (
	CmdHangup = "ATH"
	CmdReset  = "ATZ"
)

// Command formats an AT command line.
func Command(cmd string) []byte {
	return []byte(strings.TrimRight(cmd, "\r\n") + Terminator)
}

// State is the modem state derived from its responses.
type State int

// States.
const (
	// Unattached means no response has been seen yet.
	Unattached State = iota
	// Attached means the modem answered OK in command mode.
	Attached
	// Connected means a carrier is up and data flows to the kayak.
	Connected
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Attached:
		return "attached"
	case Connected:
		return "connected"
	}
	return "unattached"
}

type response struct {
	token string
	next  State
	pos   int
}

func (r *response) feed(b byte) bool {
	if r.token[r.pos] == b {
		if r.pos++; r.pos == len(r.token) {
			r.pos = 0
			return true
		}
		return false
	}
	if r.token[0] == b {
		r.pos = 1
	} else {
		r.pos = 0
	}
	return false
}

// Monitor watches inbound bytes for modem responses. It implements
// io.Writer so it can sit next to any diagnostic sink. Bytes are passed
// through to Out unchanged.
type Monitor struct {
	Out      io.Writer
	OnChange func(from, to State)

	lock      sync.Mutex
	state     State
	responses []*response
}

// NewMonitor creates a Monitor passing bytes to out, which may be nil.
func NewMonitor(out io.Writer) *Monitor {
	return &Monitor{
		Out: out,
		responses: []*response{
			{token: "OK", next: Attached},
			{token: "CONNECT", next: Connected},
			{token: "NO CARRIER", next: Attached},
		},
	}
}

// State returns the current state.
func (m *Monitor) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Write implements io.Writer.
func (m *Monitor) Write(p []byte) (int, error) {
	m.lock.Lock()
	var changes [][2]State
	for _, b := range p {
		for _, r := range m.responses {
			if r.feed(b) && r.next != m.state {
				// data bytes may look like OK while connected.
				if m.state == Connected && r.next == Attached && r.token == "OK" {
					continue
				}
				changes = append(changes, [2]State{m.state, r.next})
				m.state = r.next
			}
		}
	}
	fn := m.OnChange
	m.lock.Unlock()

	for _, c := range changes {
		glog.Infof("modem %s -> %s", c[0], c[1])
		if fn != nil {
			fn(c[0], c[1])
		}
	}
	if m.Out != nil {
		return m.Out.Write(p)
	}
	return len(p), nil
}
