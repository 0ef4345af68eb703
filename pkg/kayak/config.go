package kayak

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v2"

	"github.com/robotalks/kayak/pkg/halfp"
	"github.com/robotalks/kayak/pkg/link"
)

// NumberFormat selects how numeric lines are encoded in line mode.
type NumberFormat int

// Number formats.
const (
	// FormatFloat encodes lines as half precision values.
	FormatFloat NumberFormat = iota
	// FormatInt encodes lines as 16-bit integers.
	FormatInt
)

// String implements flag.Value.
func (f NumberFormat) String() string {
	if f == FormatInt {
		return "int"
	}
	return "float"
}

// Set implements flag.Value.
func (f *NumberFormat) Set(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float", "half":
		*f = FormatFloat
	case "int", "integer":
		*f = FormatInt
	default:
		return fmt.Errorf("invalid number format %q", s)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *NumberFormat) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return f.Set(s)
}

// Config defines the configurations of the drive link.
type Config struct {
	Link link.SerialConfig `yaml:"link"`

	// Interval is the tick period in tick mode.
	Interval time.Duration `yaml:"interval"`
	// Step is the channel magnitude while a direction is held.
	Step float64 `yaml:"step"`
	// HoldTimeout releases a key not repeated within it. Zero means
	// the input reports releases itself.
	HoldTimeout time.Duration `yaml:"holdTimeout"`

	ByteOrder halfp.ByteOrder `yaml:"byteOrder"`
	Rounding  halfp.Rounding  `yaml:"rounding"`
	// Limit rejects channel values above it, zero for no limit.
	Limit float64 `yaml:"limit"`
	// Format is used by line mode.
	Format NumberFormat `yaml:"format"`

	// Input is "terminal" or "joystick" in tick mode.
	Input string `yaml:"input"`
	// JoystickIndex selects /dev/input/js<N>, -1 for detection.
	JoystickIndex int `yaml:"joystick"`

	// MQTTBrokerURL enables telemetry, e.g. mqtt://host:1883/robo/
	MQTTBrokerURL string `yaml:"mqtt"`
	// CaptureFile records the link traffic when set.
	CaptureFile string `yaml:"capture"`
	// FeedAddr enables the websocket status feed, e.g. :8080
	FeedAddr string `yaml:"feed"`
	// ID identifies this base station in telemetry topics.
	ID string `yaml:"id"`

	Verbose bool `yaml:"verbose"`
}

var defaultConfig = Config{
	Link:        link.DefaultSerialConfig,
	Interval:    10 * time.Millisecond,
	Step:        0.5,
	HoldTimeout: 150 * time.Millisecond,
	ByteOrder:   halfp.LittleEndian,
	Rounding:    halfp.Truncate,
	Format:      FormatFloat,

	Input:         InputTerminal,
	JoystickIndex: -1,
}

// Input sources in tick mode.
const (
	InputTerminal = "terminal"
	InputJoystick = "joystick"
)

func init() {
	if val := os.Getenv("KAYAK_DEVICE"); val != "" {
		defaultConfig.Link.Device = val
	}
	if val := os.Getenv("KAYAK_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("KAYAK_BYTE_ORDER"); val != "" {
		if err := defaultConfig.ByteOrder.Set(val); err != nil {
			fmt.Fprintf(os.Stderr, "KAYAK_BYTE_ORDER: %v\n", err)
		}
	}
	if id, err := machineid.ProtectedID("kayak"); err == nil {
		defaultConfig.ID = id[:12]
	}
}

var configFile string

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "YAML config file, flags given explicitly take precedence.")
	defaultConfig.AddFlags(flag.CommandLine)
}

// AddFlags registers flags bound to c.
func (c *Config) AddFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Link.Device, "device", c.Link.Device, "Serial device, or tcp://host:port.")
	fs.IntVar(&c.Link.BaudRate, "baud", c.Link.BaudRate, "Serial baud rate.")
	fs.DurationVar(&c.Interval, "interval", c.Interval, "Tick interval.")
	fs.Float64Var(&c.Step, "step", c.Step, "Channel magnitude while a direction is held.")
	fs.DurationVar(&c.HoldTimeout, "hold", c.HoldTimeout, "Release a key not repeated within this duration, 0 to disable.")
	fs.Var(&c.ByteOrder, "byte-order", "Byte order of encoded values: big or little.")
	fs.Var(&c.Rounding, "rounding", "Fraction rounding: truncate or nearest.")
	fs.Float64Var(&c.Limit, "limit", c.Limit, "Reject channel values above this magnitude, 0 for no limit.")
	fs.Var(&c.Format, "format", "Number format in line mode: float or int.")
	fs.StringVar(&c.Input, "input", c.Input, "Input in tick mode: terminal or joystick.")
	fs.IntVar(&c.JoystickIndex, "joystick", c.JoystickIndex, "Joystick index, -1 for auto detection.")
	fs.StringVar(&c.CaptureFile, "capture", c.CaptureFile, "Record link traffic into this file, rotated at 10MB.")
	fs.StringVar(&c.FeedAddr, "feed", c.FeedAddr, "Listen address of the websocket status feed, empty to disable.")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL for telemetry, empty to disable.")
	fs.StringVar(&c.ID, "id", c.ID, "Base station ID used in telemetry.")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "Print key and packet events.")
}

// NewConfig creates a config from defaults, command line flags and the
// config file if specified.
func NewConfig() (*Config, error) {
	if configFile != "" {
		if err := LoadFile(flag.CommandLine, &defaultConfig, configFile); err != nil {
			return nil, err
		}
	}
	conf := defaultConfig
	return &conf, conf.Validate()
}

// MustNewConfig creates the config and exits on error.
func MustNewConfig() *Config {
	conf, err := NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return conf
}

// LoadFile reads a YAML file into conf. Flags in fs which were set on
// the command line are applied again afterwards so they win.
func LoadFile(fs *flag.FlagSet, conf *Config, path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})
	if err := yaml.UnmarshalStrict(data, conf); err != nil {
		return fmt.Errorf("config %s: %v", path, err)
	}
	for name, val := range explicit {
		if err := fs.Set(name, val); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if !c.ByteOrder.Valid() {
		return fmt.Errorf("byte order must be set")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("invalid interval %v", c.Interval)
	}
	if c.Input != InputTerminal && c.Input != InputJoystick {
		return fmt.Errorf("invalid input %q", c.Input)
	}
	if c.Step < 0 {
		return fmt.Errorf("invalid step %v", c.Step)
	}
	return nil
}

// Codec creates the codec for a connection.
func (c *Config) Codec() halfp.Codec {
	return halfp.Codec{Order: c.ByteOrder, Rounding: c.Rounding, Limit: c.Limit}
}

// OpenLink opens the configured link, recording its traffic when a
// capture file is configured. The returned Transport closes once.
func (c *Config) OpenLink() (link.Transport, error) {
	stream, err := link.Open(c.Link)
	if err != nil {
		return nil, err
	}
	if c.CaptureFile == "" {
		return link.Guard(stream), nil
	}
	capture := link.OpenCapture(c.CaptureFile, 10)
	return link.Guard(&captureCloser{Transport: capture.Tap(stream), capture: capture}), nil
}

type captureCloser struct {
	link.Transport
	capture *link.Capture
}

func (c *captureCloser) Close() error {
	err := c.Transport.Close()
	c.capture.Close()
	return err
}

func (c *captureCloser) Err() error {
	if r, ok := c.Transport.(interface{ Err() error }); ok {
		return r.Err()
	}
	return nil
}
