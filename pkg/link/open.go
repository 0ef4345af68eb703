package link

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/goburrow/serial"
	"github.com/golang/glog"
)

// SerialConfig describes how to open the link device.
type SerialConfig struct {
	// Device is a serial device path, e.g. /dev/ttyACM1, or
	// tcp://host:port for a serial-over-TCP bridge.
	Device   string        `yaml:"device"`
	BaudRate int           `yaml:"baud"`
	DataBits int           `yaml:"dataBits"`
	StopBits int           `yaml:"stopBits"`
	Parity   string        `yaml:"parity"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultSerialConfig matches the modem attached to the base station.
var DefaultSerialConfig = SerialConfig{
	Device:   "/dev/ttyACM1",
	BaudRate: 19200,
	DataBits: 8,
	StopBits: 1,
	Parity:   "N",
	Timeout:  100 * time.Millisecond,
}

const tcpScheme = "tcp://"

// Open opens the device described by conf.
func Open(conf SerialConfig) (*Stream, error) {
	if strings.HasPrefix(conf.Device, tcpScheme) {
		return DialTCP(strings.TrimPrefix(conf.Device, tcpScheme), conf.Timeout)
	}
	return OpenSerial(conf)
}

// OpenSerial opens a serial port.
func OpenSerial(conf SerialConfig) (*Stream, error) {
	if conf.Device == "" {
		return nil, fmt.Errorf("serial device not specified")
	}
	sc := &serial.Config{
		Address:  conf.Device,
		BaudRate: conf.BaudRate,
		DataBits: conf.DataBits,
		StopBits: conf.StopBits,
		Parity:   conf.Parity,
		Timeout:  conf.Timeout,
	}
	if sc.BaudRate == 0 {
		sc.BaudRate = DefaultSerialConfig.BaudRate
	}
	if sc.DataBits == 0 {
		sc.DataBits = DefaultSerialConfig.DataBits
	}
	if sc.StopBits == 0 {
		sc.StopBits = DefaultSerialConfig.StopBits
	}
	if sc.Parity == "" {
		sc.Parity = DefaultSerialConfig.Parity
	}
	if sc.Timeout == 0 {
		sc.Timeout = DefaultSerialConfig.Timeout
	}
	port, err := serial.Open(sc)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}
	glog.Infof("serial %s opened at %d baud %d%s%d", sc.Address, sc.BaudRate, sc.DataBits, sc.Parity, sc.StopBits)
	return NewStream(&serialPort{Port: port}), nil
}

// DialTCP connects a serial-over-TCP bridge.
func DialTCP(addr string, timeout time.Duration) (*Stream, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	glog.Infof("link connected to %s", addr)
	return NewStream(conn), nil
}

// serialPort turns read timeouts into empty reads so the stream reader
// keeps polling.
type serialPort struct {
	serial.Port
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if err == serial.ErrTimeout {
		err = nil
	}
	return n, err
}
