package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"

	"github.com/golang/glog"

	fx "github.com/robotalks/kayak/pkg/framework"
	"github.com/robotalks/kayak/pkg/input"
	"github.com/robotalks/kayak/pkg/kayak"
	"github.com/robotalks/kayak/pkg/modem"
	"github.com/robotalks/kayak/pkg/telemetry"
)

func init() {
	kayak.SetupFlags()
}

func main() {
	flag.Parse()
	conf := kayak.MustNewConfig()
	if conf.Verbose {
		flag.Set("v", "1")
	}

	t, err := conf.OpenLink()
	if err != nil {
		glog.Exitf("open %s: %v", conf.Link.Device, err)
	}

	defer glog.Flush()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := fx.NewRunnerWith(ctx).HandleSignals()
	loop := fx.NewLoop()
	loop.Interval = conf.Interval

	inbound := &kayak.LineLogger{}
	defer inbound.Flush()
	monitor := modem.NewMonitor(inbound)
	monitor.OnChange = func(from, to modem.State) {
		if to != modem.Connected {
			glog.Warningf("modem %s, the kayak won't get commands", to)
		}
	}
	ctl := kayak.NewTickController(t, conf)
	ctl.Sink = monitor

	var reporters telemetry.Reporters
	switch conf.Input {
	case kayak.InputJoystick:
		loop.Add(&input.Joystick{DeviceIndex: conf.JoystickIndex})
	default:
		term, err := input.NewTerminal(conf.HoldTimeout)
		if err != nil {
			glog.Exitf("terminal: %v", err)
		}
		term.Quit = cancel
		loop.Add(term)
		reporters = append(reporters, term)
	}
	if conf.MQTTBrokerURL != "" {
		pub, err := telemetry.NewPublisher(conf.MQTTBrokerURL, conf.ID)
		if err != nil {
			glog.Exitf("telemetry: %v", err)
		}
		loop.Add(pub)
		reporters = append(reporters, pub)
	}
	if conf.FeedAddr != "" {
		feed := telemetry.NewFeed(conf.ID)
		loop.Add(&telemetry.FeedServer{Addr: conf.FeedAddr, Feed: feed})
		reporters = append(reporters, feed)
	}
	if len(reporters) > 0 {
		ctl.Reporter = reporters
	}
	loop.Add(ctl)

	runner.Go(fx.RunFunc(func(ctx context.Context) error {
		return kayak.Drive(ctx, loop, t)
	}))
	if err := runner.Wait(); err != nil {
		glog.Exitf("%v", err)
	}
}
