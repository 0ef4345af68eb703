package sh

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/robotalks/kayak/pkg/drive"
	"github.com/robotalks/kayak/pkg/halfp"
	"github.com/robotalks/kayak/pkg/kayak"
	"github.com/robotalks/kayak/pkg/modem"
)

// Console implements the shell commands on a LineSession.
type Console struct {
	Session *kayak.LineSession
	Modem   *modem.Monitor
}

// Line sends a line like it was typed in line mode.
func (c *Console) Line(line string) (string, error) {
	cmd, err := c.Session.Handle(line)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s % x", cmd.Kind, cmd.Bytes), nil
}

// Escape switches the modem to command mode.
func (c *Console) Escape() error {
	return c.Session.SendRaw([]byte(modem.Escape))
}

// AT sends an AT command, the "AT" prefix is optional.
func (c *Console) AT(args []string) error {
	cmd := strings.Join(args, " ")
	if !strings.HasPrefix(strings.ToUpper(cmd), "AT") {
		cmd = "AT" + cmd
	}
	return c.Session.SendRaw(modem.Command(cmd))
}

// Drive sends one packet with channel A and B.
func (c *Console) Drive(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("expect A B")
	}
	var ch drive.Channels
	var err error
	if ch.A, err = strconv.ParseFloat(args[0], 64); err != nil {
		return "", err
	}
	if ch.B, err = strconv.ParseFloat(args[1], 64); err != nil {
		return "", err
	}
	pkt, err := c.Session.SendChannels(ch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s -> % x", ch, pkt.Bytes()), nil
}

// Keys sends the packet for held directions, e.g. "up left".
func (c *Console) Keys(args []string, step float64) (string, error) {
	var state drive.State
	for _, arg := range args {
		for _, name := range strings.Split(arg, "+") {
			d, err := drive.ParseDirection(name)
			if err != nil {
				return "", err
			}
			state.Set(d, true)
		}
	}
	ch := drive.ComputeChannels(state, step)
	pkt, err := c.Session.SendChannels(ch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s -> % x", state, ch, pkt.Bytes()), nil
}

// Encode shows how a value is encoded without sending it.
func (c *Console) Encode(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expect VALUE")
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "", err
	}
	f, err := c.Session.Codec.Fields(v)
	if err != nil {
		return "", err
	}
	b, err := c.Session.Codec.Order.Put(f.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("% x %s decoded=%v", b[:], f, halfp.FromBits(f.Value)), nil
}

// Decode decodes hex bytes the way the receiver does, 2 bytes per value.
func (c *Console) Decode(args []string) (string, error) {
	raw, err := hex.DecodeString(strings.Join(args, ""))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 || len(raw)%2 != 0 {
		return "", fmt.Errorf("expect pairs of bytes")
	}
	values := make([]string, 0, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		v, err := c.Session.Codec.Decode([2]byte{raw[i], raw[i+1]})
		if err != nil {
			return "", err
		}
		values = append(values, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strings.Join(values, " "), nil
}

// ModemState returns the state seen in modem responses.
func (c *Console) ModemState() string {
	if c.Modem == nil {
		return "unknown"
	}
	return c.Modem.State().String()
}
