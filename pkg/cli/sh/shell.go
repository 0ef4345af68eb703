package sh

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	fx "github.com/robotalks/kayak/pkg/framework"
	"github.com/robotalks/kayak/pkg/kayak"
	"github.com/robotalks/kayak/pkg/link"
	"github.com/robotalks/kayak/pkg/modem"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool

	Shell     *ishell.Shell
	Config    *kayak.Config
	Console   *Console
	Transport link.Transport

	err error
}

const (
	shellKey = "$shell"
	prompt   = "kayak > "
)

var (
	// flags

	rawLines bool

	// commands
	commands = []*ishell.Cmd{
		&EscapeCmd,
		&ATCmd,
		&HangupCmd,
		&DriveCmd,
		&KeysCmd,
		&StopCmd,
		&EncodeCmd,
		&DecodeCmd,
		&PollCmd,
		&ModemCmd,
	}
)

func init() {
	flag.BoolVar(&rawLines, "e", rawLines, "Read lines from stdin without the interactive shell.")
}

// New creates a new shell on an opened transport. Inbound bytes are
// printed and watched for modem responses.
func New(conf *kayak.Config, t link.Transport) *Shell {
	monitor := modem.NewMonitor(os.Stdout)
	s := &Shell{
		Interactive: !rawLines,
		Config:      conf,
		Transport:   link.Guard(t),
	}
	s.Console = &Console{
		Session: kayak.NewLineSession(s.Transport, conf, monitor),
		Modem:   monitor,
	}
	if s.Interactive {
		s.Shell = ishell.New()
		s.Shell.Set(shellKey, s)
		s.Shell.SetPrompt(prompt)
		for _, cmd := range commands {
			s.Shell.AddCmd(cmd)
		}
		s.Shell.NotFound(func(c *ishell.Context) {
			line := strings.Join(c.RawArgs, " ")
			s.report(c, func() (string, error) { return s.Console.Line(line) })
		})
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// report prints the result of fn. A transport error ends the shell.
func (s *Shell) report(c *ishell.Context, fn func() (string, error)) {
	out, err := fn()
	switch {
	case err == nil:
		if out != "" {
			c.Println(out)
		}
	case kayak.IsTransportError(err):
		c.Err(err)
		s.err = err
		s.Shell.Stop()
	default:
		c.Err(err)
	}
}

func (s *Shell) exec(c *ishell.Context, fn func() error) {
	s.report(c, func() (string, error) { return "", fn() })
}

// Run runs the shell until input ends or ctx is done. The transport is
// closed when it returns.
func (s *Shell) Run(ctx context.Context, args ...string) error {
	if !s.Interactive {
		return s.Console.Session.Run(ctx, os.Stdin)
	}
	defer s.close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			return err
		}
		return s.err
	}
	go func() {
		<-ctx.Done()
		s.Shell.Stop()
	}()
	s.Shell.Printf("%s: type numbers to send encoded, anything else goes to the modem.\n", s.Config.Link.Device)
	s.Shell.Run()
	return s.err
}

func (s *Shell) close() {
	if err := s.Transport.Close(); err != nil && err != link.ErrClosed {
		glog.Errorf("close: %v", err)
	}
}

var (
	// EscapeCmd switches the modem to command mode.
	EscapeCmd = ishell.Cmd{
		Name: "escape",
		Help: "send +++ to switch the modem to command mode",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.exec(c, s.Console.Escape)
		},
	}

	// ATCmd sends an AT command.
	ATCmd = ishell.Cmd{
		Name: "at",
		Help: "CMD, send an AT command",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.exec(c, func() error { return s.Console.AT(c.Args) })
		},
	}

	// HangupCmd escapes and hangs up.
	HangupCmd = ishell.Cmd{
		Name: "hangup",
		Help: "escape then ATH",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.exec(c, func() error {
				if err := s.Console.Escape(); err != nil {
					return err
				}
				return s.Console.AT([]string{modem.CmdHangup})
			})
		},
	}

	// DriveCmd sends one packet.
	DriveCmd = ishell.Cmd{
		Name:    "drive",
		Aliases: []string{"d"},
		Help:    "A B, send channel values",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.report(c, func() (string, error) { return s.Console.Drive(c.Args) })
		},
	}

	// KeysCmd sends the packet for held directions.
	KeysCmd = ishell.Cmd{
		Name:    "keys",
		Aliases: []string{"k"},
		Help:    "DIR..., send as if up/down/left/right were held",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.report(c, func() (string, error) { return s.Console.Keys(c.Args, s.Config.Step) })
		},
	}

	// StopCmd sends zero channels.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "send zero channels",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.report(c, func() (string, error) { return s.Console.Drive([]string{"0", "0"}) })
		},
	}

	// EncodeCmd shows an encoding.
	EncodeCmd = ishell.Cmd{
		Name: "encode",
		Help: "VALUE, show the encoding without sending",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.report(c, func() (string, error) { return s.Console.Encode(c.Args) })
		},
	}

	// DecodeCmd decodes hex bytes.
	DecodeCmd = ishell.Cmd{
		Name: "decode",
		Help: "HEX, decode values like the receiver",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.report(c, func() (string, error) { return s.Console.Decode(c.Args) })
		},
	}

	// PollCmd prints pending inbound bytes.
	PollCmd = ishell.Cmd{
		Name:    "poll",
		Aliases: []string{"p"},
		Help:    "print pending bytes from the kayak",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.exec(c, s.Console.Session.Poll)
		},
	}

	// ModemCmd prints the modem state.
	ModemCmd = ishell.Cmd{
		Name: "modem",
		Help: "show the modem state",
		Func: func(c *ishell.Context) {
			c.Println(ShellFrom(c).Console.ModemState())
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf := kayak.MustNewConfig()
	t, err := conf.OpenLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", conf.Link.Device, err)
		os.Exit(1)
	}
	runner := fx.NewRunner().HandleSignals()
	if err := New(conf, t).Run(runner.Context, flag.Args()...); err != nil {
		glog.Exitf("%v", err)
	}
}
